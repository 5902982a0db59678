package models

import "github.com/google/uuid"

// WebSocket message types
const (
	EventMessageAppended = "message_appended"
	EventStateChanged    = "state_changed"
	EventIdentity        = "identity"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type MessageAppended struct {
	SessionID uuid.UUID   `json:"session_id"`
	Message   ChatMessage `json:"message"`
}

type StateChanged struct {
	SessionID uuid.UUID `json:"session_id"`
	Phase     string    `json:"phase"`
	Outcome   string    `json:"outcome,omitempty"`
	Loading   bool      `json:"loading"`
}

// IdentityEvent is pushed when a user signs in or out. User is nil after
// sign-out and Redirect then points at the sign-in view.
type IdentityEvent struct {
	User     *User  `json:"user"`
	Redirect string `json:"redirect,omitempty"`
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
