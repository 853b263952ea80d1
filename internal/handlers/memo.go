package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/models"
)

// MemoController is the session workflow the handlers drive.
type MemoController interface {
	Current(ctx context.Context, sessionID string) (models.Result, error)
	Ask(ctx context.Context, sessionID, question string) (models.Result, error)
	Save(ctx context.Context, sessionID, userName string, rating models.Rating) (models.Result, error)
	Abandon(ctx context.Context, sessionID string) (models.Result, error)
}

// TabIDHeader lets an API client mark its own render signals.
const TabIDHeader = "X-Tab-ID"

// Notifier pushes render signals to other tabs of the same session.
type Notifier interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage) error
}

type MemoHandler struct {
	memo     MemoController
	notifier Notifier
}

func NewMemoHandler(memo MemoController, notifier Notifier) *MemoHandler {
	return &MemoHandler{memo: memo, notifier: notifier}
}

func (h *MemoHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.memo.Current(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MemoHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	notify(r.Context(), h.notifier, sessionID, r.Header.Get(TabIDHeader), result)
	writeJSON(w, http.StatusOK, result)
}

func (h *MemoHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Save(r.Context(), sessionID, req.User, models.Rating(req.Rating))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	notify(r.Context(), h.notifier, sessionID, r.Header.Get(TabIDHeader), result)
	writeJSON(w, http.StatusOK, result)
}

func (h *MemoHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Abandon(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	notify(r.Context(), h.notifier, sessionID, r.Header.Get(TabIDHeader), result)
	writeJSON(w, http.StatusOK, result)
}

// notify forwards a render signal. Delivery is best effort; the caller's
// response already carries the new state.
func notify(ctx context.Context, notifier Notifier, sessionID, origin string, result models.Result) {
	if notifier == nil || !result.Render {
		return
	}
	msg := models.WSMessage{
		Type:    models.WSTypeSessionUpdate,
		Origin:  origin,
		Payload: models.SessionUpdate{Session: result.Session, Notice: result.Notice},
	}
	if err := notifier.Publish(context.WithoutCancel(ctx), sessionID, msg); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to publish session update")
	}
}
