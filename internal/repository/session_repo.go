package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"askmemo-backend/internal/models"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepo keeps each session as a hash with a sliding TTL.
type RedisSessionRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepo(client *redis.Client, ttl time.Duration) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, ttl: ttl}
}

func (r *RedisSessionRepo) Get(ctx context.Context, sessionID string) (models.Session, error) {
	key := sessionKeyPrefix + sessionID
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return models.Session{}, err
	}
	if len(fields) == 0 {
		return models.Session{}, nil
	}

	r.client.Expire(ctx, key, r.ttl)

	return sessionFromFields(fields), nil
}

func (r *RedisSessionRepo) SetAnswer(ctx context.Context, sessionID, question, answer string) error {
	key := sessionKeyPrefix + sessionID

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"question": question,
		"answer":   answer,
		"answered": "1",
	})
	pipe.Expire(ctx, key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSessionRepo) Reset(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// ResetIfMatch deletes the session inside a WATCH transaction, so a
// SetAnswer racing with it wins.
func (r *RedisSessionRepo) ResetIfMatch(ctx context.Context, sessionID string, expected models.Session) (bool, error) {
	key := sessionKeyPrefix + sessionID
	reset := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if sessionFromFields(fields) != expected {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			reset = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reset, nil
}

func sessionFromFields(fields map[string]string) models.Session {
	if len(fields) == 0 {
		return models.Session{}
	}
	return models.Session{
		Question: fields["question"],
		Answer:   fields["answer"],
		Answered: fields["answered"] == "1",
	}
}

// MemorySessionRepo is the single-process session store used without Redis.
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	session  models.Session
	lastSeen time.Time
}

func NewMemorySessionRepo(ttl time.Duration) *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *MemorySessionRepo) Get(ctx context.Context, sessionID string) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, nil
	}
	if r.expired(entry) {
		delete(r.sessions, sessionID)
		return models.Session{}, nil
	}
	entry.lastSeen = r.now()
	r.sessions[sessionID] = entry
	return entry.session, nil
}

func (r *MemorySessionRepo) SetAnswer(ctx context.Context, sessionID, question, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = memoryEntry{
		session:  models.Session{Question: question, Answer: answer, Answered: true},
		lastSeen: r.now(),
	}
	return nil
}

func (r *MemorySessionRepo) Reset(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *MemorySessionRepo) ResetIfMatch(ctx context.Context, sessionID string, expected models.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	current := models.Session{}
	if ok && !r.expired(entry) {
		current = entry.session
	}
	if current != expected {
		return false, nil
	}
	delete(r.sessions, sessionID)
	return true, nil
}

// Sweep drops expired sessions. main runs it periodically.
func (r *MemorySessionRepo) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.sessions {
		if r.expired(entry) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *MemorySessionRepo) expired(entry memoryEntry) bool {
	return r.ttl > 0 && r.now().Sub(entry.lastSeen) > r.ttl
}
