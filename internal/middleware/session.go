package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

const (
	SessionCookieName  = "askmemo_session"
	SessionTokenHeader = "X-Session-Token"
)

// SessionAuth issues and verifies the signed cookie that carries a browser's
// session ID.
type SessionAuth struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	now    func() time.Time
}

func NewSessionAuth(secret string, ttl time.Duration, secure bool) *SessionAuth {
	return &SessionAuth{Secret: []byte(secret), TTL: ttl, Secure: secure, now: time.Now}
}

// GenerateToken signs a session token valid for TTL.
func (s *SessionAuth) GenerateToken(sessionID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        now.Add(s.TTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

// ParseToken returns the session ID and issue time of a valid token.
func (s *SessionAuth) ParseToken(tokenStr string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", time.Time{}, errors.New("invalid token claims")
	}

	sessionID, _ := claims["session_id"].(string)
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", time.Time{}, errors.New("invalid session ID in token")
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return sessionID, time.Time{}, nil
	}
	return sessionID, issuedAt.Time, nil
}

// Middleware attaches a session ID to every request. The ID comes from the
// session cookie or a Bearer token; a fresh one is minted when neither is
// valid. Tokens past half their lifetime are re-issued.
func (s *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, issuedAt, err := s.ParseToken(tokenFromRequest(r))
		if err != nil {
			sessionID = uuid.New().String()
			issuedAt = time.Time{}
		}

		if issuedAt.IsZero() || s.now().Sub(issuedAt) > s.TTL/2 {
			if err := s.issue(w, sessionID); err != nil {
				log.Error().Err(err).Msg("failed to sign session token")
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", r)
				return
			}
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *SessionAuth) issue(w http.ResponseWriter, sessionID string) error {
	token, err := s.GenerateToken(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionTokenHeader, token)
	return nil
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}

// GetSessionID extracts the session ID from request context
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
