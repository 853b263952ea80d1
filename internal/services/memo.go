package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/models"
)

// SessionStore holds the per-session question/answer state.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (models.Session, error)
	SetAnswer(ctx context.Context, sessionID, question, answer string) error
	Reset(ctx context.Context, sessionID string) error
	// ResetIfMatch resets only while the session still holds expected and
	// reports whether it did.
	ResetIfMatch(ctx context.Context, sessionID string, expected models.Session) (bool, error)
}

// Completer answers one question with the named model.
type Completer interface {
	Name() string
	Ask(ctx context.Context, model, question string) (string, error)
}

// RecordStore is the external database rated answers are written to.
type RecordStore interface {
	VerifyDatabase(ctx context.Context, databaseID string) error
	CreateRecord(ctx context.Context, databaseID string, rec models.Record) (*models.SavedRecord, error)
}

// MemoObserver is told about finished asks and saves; metrics hook in here.
type MemoObserver interface {
	AskFinished(outcome string)
	SaveFinished(outcome string, rating models.Rating)
}

type MemoOptions struct {
	Model           string
	DatabaseID      string
	VerifyDatabase  bool
	DefaultUserName string
}

// MemoService drives the ask and rate-and-save round for one session at a time.
type MemoService struct {
	sessions SessionStore
	llm      Completer
	store    RecordStore
	observer MemoObserver
	opts     MemoOptions
	now      func() time.Time
}

func NewMemoService(sessions SessionStore, llm Completer, store RecordStore, observer MemoObserver, opts MemoOptions) *MemoService {
	if opts.DefaultUserName == "" {
		opts.DefaultUserName = "Anonymous"
	}
	return &MemoService{
		sessions: sessions,
		llm:      llm,
		store:    store,
		observer: observer,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *MemoService) Current(ctx context.Context, sessionID string) (models.Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Result{}, fmt.Errorf("failed to load session: %w", err)
	}
	return models.Result{Session: sess}, nil
}

// Ask sends question to the completion service and stores the answer.
// A blank question is rejected without any remote call or state change.
func (s *MemoService) Ask(ctx context.Context, sessionID, question string) (models.Result, error) {
	if strings.TrimSpace(question) == "" {
		s.askFinished("empty")
		return models.Result{}, &EmptyInputError{}
	}

	answer, err := s.llm.Ask(ctx, s.opts.Model, question)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = fmt.Errorf("%s returned an empty answer", s.llm.Name())
	}
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("provider", s.llm.Name()).Msg("completion failed")
		s.askFinished("error")
		return models.Result{}, &CompletionServiceError{Provider: s.llm.Name(), Err: err}
	}

	if err := s.sessions.SetAnswer(ctx, sessionID, question, answer); err != nil {
		s.askFinished("error")
		return models.Result{}, fmt.Errorf("failed to store answer: %w", err)
	}
	s.askFinished("ok")

	return models.Result{
		Session: models.Session{Question: question, Answer: answer, Answered: true},
		Render:  true,
	}, nil
}

// Save writes the pending question/answer with rating to the record store.
// The session is reset only when the write succeeds.
func (s *MemoService) Save(ctx context.Context, sessionID, userName string, rating models.Rating) (models.Result, error) {
	if !rating.Valid() {
		return models.Result{}, &ValidationError{Fields: map[string]string{"rating": "rating must be one of Good, Bad, Pending"}}
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Result{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Answered {
		return models.Result{Session: sess}, &NothingToSaveError{}
	}

	rec := s.buildRecord(sess, userName, rating)
	databaseID := s.opts.DatabaseID

	if s.opts.VerifyDatabase {
		if err := s.store.VerifyDatabase(ctx, databaseID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Str("database_id", databaseID).Msg("record database pre-check failed")
			s.saveFinished("database_not_found", rating)
			return models.Result{Session: sess}, &DatabaseNotFoundError{DatabaseID: databaseID, Err: err}
		}
	}

	saved, err := s.store.CreateRecord(ctx, databaseID, rec)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("record create failed")
		s.saveFinished("error", rating)
		return models.Result{Session: sess}, &StoreWriteError{Err: err}
	}
	s.saveFinished("ok", rating)

	log.Info().
		Str("session_id", sessionID).
		Str("record_id", saved.ID).
		Str("rating", string(rating)).
		Str("user", rec.User).
		Str("date", rec.DateString()).
		Msg("record saved")

	// The record exists at this point; a failed reset only leaves the answer on screen.
	reset, err := s.sessions.ResetIfMatch(ctx, sessionID, sess)
	if err != nil {
		return models.Result{Session: sess, Saved: saved}, fmt.Errorf("record saved but session reset failed: %w", err)
	}

	result := models.Result{
		Session: models.Session{},
		Render:  true,
		Saved:   saved,
		Notice: &models.Notice{
			Level:   models.NoticeSuccess,
			Message: fmt.Sprintf("Saved with %s rating.", rating),
		},
	}
	if !reset {
		// Another ask replaced the pair while the record was being written.
		current, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return models.Result{Session: sess, Saved: saved}, fmt.Errorf("failed to load session: %w", err)
		}
		result.Session = current
	}
	return result, nil
}

// Abandon drops the pending answer without saving it.
func (s *MemoService) Abandon(ctx context.Context, sessionID string) (models.Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Result{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Answered {
		return models.Result{Session: sess}, &NothingToSaveError{}
	}
	if err := s.sessions.Reset(ctx, sessionID); err != nil {
		return models.Result{Session: sess}, fmt.Errorf("failed to reset session: %w", err)
	}
	return models.Result{
		Session: models.Session{},
		Render:  true,
		Notice:  &models.Notice{Level: models.NoticeWarning, Message: "Answer discarded."},
	}, nil
}

func (s *MemoService) buildRecord(sess models.Session, userName string, rating models.Rating) models.Record {
	user := strings.TrimSpace(userName)
	if user == "" {
		user = s.opts.DefaultUserName
	}
	return models.Record{
		Title:  sess.Question,
		Answer: sess.Answer,
		Date:   s.now().Local(),
		User:   user,
		Rating: rating,
	}
}

func (s *MemoService) askFinished(outcome string) {
	if s.observer != nil {
		s.observer.AskFinished(outcome)
	}
}

func (s *MemoService) saveFinished(outcome string, rating models.Rating) {
	if s.observer != nil {
		s.observer.SaveFinished(outcome, rating)
	}
}
