package models

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Origin  string      `json:"origin,omitempty"`
	Payload interface{} `json:"payload"`
}

const WSTypeSessionUpdate = "session_update"

// SessionUpdate is pushed to every open tab of a session after a render signal.
type SessionUpdate struct {
	Session Session `json:"session"`
	Notice  *Notice `json:"notice,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
