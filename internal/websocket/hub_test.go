package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/models"
)

type countingObserver struct {
	opened, closed int
}

func (o *countingObserver) ConnectionOpened() { o.opened++ }
func (o *countingObserver) ConnectionClosed() { o.closed++ }

func TestHub_LocalPublishReachesSession(t *testing.T) {
	auth := middleware.NewSessionAuth("secret", time.Hour, false)
	obs := &countingObserver{}
	hub := NewHub(nil, "", obs)

	srv := httptest.NewServer(auth.Middleware(http.HandlerFunc(hub.HandleWebSocket)))
	defer srv.Close()

	sessionID := "1b4e28ba-2fa1-41d2-883f-0016d3cca427"
	token, err := auth.GenerateToken(sessionID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.connectionCount(sessionID) == 1 }, time.Second, 10*time.Millisecond)

	msg := models.WSMessage{
		Type:    models.WSTypeSessionUpdate,
		Payload: models.SessionUpdate{Session: models.Session{Question: "q", Answer: "a", Answered: true}},
	}
	require.NoError(t, hub.Publish(context.Background(), sessionID, msg))
	// other sessions receive nothing and do not error
	require.NoError(t, hub.Publish(context.Background(), "someone-else", msg))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    string               `json:"type"`
		Payload models.SessionUpdate `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.WSTypeSessionUpdate, got.Type)
	assert.Equal(t, "a", got.Payload.Session.Answer)
	assert.Equal(t, 1, obs.opened)
}

func TestHub_RejectsMissingSession(t *testing.T) {
	hub := NewHub(nil, "", nil)
	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin("http://localhost:5173")

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))
}
