package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/models"
	"askmemo-backend/internal/services"
)

const testSessionID = "1b4e28ba-2fa1-41d2-883f-0016d3cca427"

// stubMemo records the last call and returns canned results.
type stubMemo struct {
	result models.Result
	err    error

	calls     []string
	sessionID string
	question  string
	userName  string
	rating    models.Rating
}

func (s *stubMemo) Current(_ context.Context, sessionID string) (models.Result, error) {
	s.calls = append(s.calls, "current")
	s.sessionID = sessionID
	return s.result, s.err
}

func (s *stubMemo) Ask(_ context.Context, sessionID, question string) (models.Result, error) {
	s.calls = append(s.calls, "ask")
	s.sessionID, s.question = sessionID, question
	return s.result, s.err
}

func (s *stubMemo) Save(_ context.Context, sessionID, userName string, rating models.Rating) (models.Result, error) {
	s.calls = append(s.calls, "save")
	s.sessionID, s.userName, s.rating = sessionID, userName, rating
	return s.result, s.err
}

func (s *stubMemo) Abandon(_ context.Context, sessionID string) (models.Result, error) {
	s.calls = append(s.calls, "abandon")
	s.sessionID = sessionID
	return s.result, s.err
}

type stubNotifier struct {
	sessionID string
	messages  []models.WSMessage
	err       error
}

func (n *stubNotifier) Publish(_ context.Context, sessionID string, msg models.WSMessage) error {
	n.sessionID = sessionID
	n.messages = append(n.messages, msg)
	return n.err
}

func withSession(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.SessionIDKey, testSessionID)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	return req.WithContext(ctx)
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return withSession(req)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestHandleServiceError_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"empty input", &services.EmptyInputError{}, http.StatusBadRequest, "EMPTY_INPUT", "Please enter a question."},
		{"validation", &services.ValidationError{Fields: map[string]string{"rating": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"},
		{"nothing to save", &services.NothingToSaveError{}, http.StatusConflict, "NOTHING_TO_SAVE", ""},
		{"completion", &services.CompletionServiceError{Provider: "openai", Err: errors.New("rate limit exceeded")}, http.StatusBadGateway, "COMPLETION_ERROR", "rate limit exceeded"},
		{"database not found", &services.DatabaseNotFoundError{DatabaseID: "db1", Err: errors.New("404")}, http.StatusBadGateway, "DATABASE_NOT_FOUND", ""},
		{"store write", &services.StoreWriteError{Err: errors.New("timeout")}, http.StatusBadGateway, "STORE_WRITE_ERROR", "failed to save record: timeout"},
		{"wrapped", fmt.Errorf("outer: %w", &services.StoreWriteError{Err: errors.New("timeout")}), http.StatusBadGateway, "STORE_WRITE_ERROR", ""},
		{"unknown", errors.New("redis down"), http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/", nil))
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			apiErr := decodeError(t, rr)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, "req-1", apiErr.RequestID)
			if tc.message != "" {
				assert.Equal(t, tc.message, apiErr.Message)
			}
		})
	}
}

func TestMemoHandler_GetSession(t *testing.T) {
	memo := &stubMemo{result: models.Result{Session: models.Session{Question: "Q", Answer: "A", Answered: true}}}
	h := NewMemoHandler(memo, nil)

	rr := httptest.NewRecorder()
	h.GetSession(rr, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "A", got.Session.Answer)
	assert.Equal(t, testSessionID, memo.sessionID)
}

func TestMemoHandler_AskPublishesRender(t *testing.T) {
	memo := &stubMemo{result: models.Result{
		Session: models.Session{Question: "What is Go?", Answer: "A language.", Answered: true},
		Render:  true,
	}}
	notifier := &stubNotifier{}
	h := NewMemoHandler(memo, notifier)

	rr := httptest.NewRecorder()
	h.Ask(rr, jsonRequest(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": "What is Go?"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "What is Go?", memo.question)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, testSessionID, notifier.sessionID)
	assert.Equal(t, models.WSTypeSessionUpdate, notifier.messages[0].Type)
}

func TestMemoHandler_AskEmptyInput(t *testing.T) {
	memo := &stubMemo{err: &services.EmptyInputError{}}
	notifier := &stubNotifier{}
	h := NewMemoHandler(memo, notifier)

	rr := httptest.NewRecorder()
	h.Ask(rr, jsonRequest(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": "   "}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "EMPTY_INPUT", decodeError(t, rr).Code)
	assert.Empty(t, notifier.messages)
}

func TestMemoHandler_AskTooLong(t *testing.T) {
	memo := &stubMemo{}
	h := NewMemoHandler(memo, nil)

	rr := httptest.NewRecorder()
	h.Ask(rr, jsonRequest(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": strings.Repeat("x", 8001)}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Fields, "question")
	assert.Empty(t, memo.calls)
}

func TestMemoHandler_AskMalformedBody(t *testing.T) {
	h := NewMemoHandler(&stubMemo{}, nil)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{not json")))
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Code)
}

func TestMemoHandler_SaveInvalidRating(t *testing.T) {
	memo := &stubMemo{}
	h := NewMemoHandler(memo, nil)

	rr := httptest.NewRecorder()
	h.Save(rr, jsonRequest(t, http.MethodPost, "/api/v1/save", map[string]string{"user": "Alice", "rating": "Great"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, "rating must be one of: Good, Bad, Pending", apiErr.Fields["rating"])
	assert.Empty(t, memo.calls)
}

func TestMemoHandler_SaveSuccess(t *testing.T) {
	memo := &stubMemo{result: models.Result{
		Render: true,
		Saved:  &models.SavedRecord{ID: "page-1"},
		Notice: &models.Notice{Level: models.NoticeSuccess, Message: "Saved with Good rating."},
	}}
	notifier := &stubNotifier{}
	h := NewMemoHandler(memo, notifier)

	rr := httptest.NewRecorder()
	h.Save(rr, jsonRequest(t, http.MethodPost, "/api/v1/save", map[string]string{"user": "Alice", "rating": "Good"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Alice", memo.userName)
	assert.Equal(t, models.RatingGood, memo.rating)

	var got models.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.NotNil(t, got.Saved)
	assert.Equal(t, "page-1", got.Saved.ID)
	assert.True(t, got.Session.IsEmpty())
	assert.Len(t, notifier.messages, 1)
}

func TestMemoHandler_SaveStoreFailureShowsCause(t *testing.T) {
	memo := &stubMemo{err: &services.StoreWriteError{Err: errors.New("timeout")}}
	notifier := &stubNotifier{}
	h := NewMemoHandler(memo, notifier)

	rr := httptest.NewRecorder()
	h.Save(rr, jsonRequest(t, http.MethodPost, "/api/v1/save", map[string]string{"rating": "Pending"}))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, decodeError(t, rr).Message, "timeout")
	assert.Empty(t, notifier.messages)
}

func TestMemoHandler_AbandonNothingToSave(t *testing.T) {
	h := NewMemoHandler(&stubMemo{err: &services.NothingToSaveError{}}, nil)

	rr := httptest.NewRecorder()
	h.Abandon(rr, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/abandon", nil)))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "NOTHING_TO_SAVE", decodeError(t, rr).Code)
}

func TestNotify_PublishFailureIsNotFatal(t *testing.T) {
	memo := &stubMemo{result: models.Result{Render: true}}
	notifier := &stubNotifier{err: errors.New("redis down")}
	h := NewMemoHandler(memo, notifier)

	rr := httptest.NewRecorder()
	h.Abandon(rr, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/abandon", nil)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, notifier.messages, 1)
}

func TestMemoHandler_TabHeaderMarksOrigin(t *testing.T) {
	memo := &stubMemo{result: models.Result{Render: true}}
	notifier := &stubNotifier{}
	h := NewMemoHandler(memo, notifier)

	req := jsonRequest(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": "Q"})
	req.Header.Set(TabIDHeader, "client-7")
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "client-7", notifier.messages[0].Origin)
}
