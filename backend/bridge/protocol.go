package bridge

import "time"

// Message types exchanged over a bridge connection. The first client message
// must be a handshake; everything else is rejected until the session exists.
const (
	TypeHandshake        = "handshake"
	TypeSubscribe        = "subscribe"
	TypeCommand          = "command"
	TypePermissionReq    = "permission_request"
	TypePermissionGrant  = "permission_approved"
	TypePermissionDeny   = "permission_denied"
	TypeStatusChanged    = "status_changed"
	TypeHeartbeat        = "heartbeat"
	TypeError            = "error"
)

// Statuses carried on status_changed and heartbeat envelopes.
const (
	StatusAcknowledged = "acknowledged"
	StatusSubscribed   = "subscribed"
	StatusApproved     = "approved"
	StatusDenied       = "denied"
	StatusPing         = "ping"
	StatusPong         = "pong"
)

// Envelope is the wire frame for every bridge message, client- and
// server-originated alike. Unused fields are omitted per message type.
type Envelope struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	CommandID    string    `json:"command_id,omitempty"`
	CommandText  string    `json:"command_text,omitempty"`
	PermissionID string    `json:"permission_id,omitempty"`
	ThreadID     string    `json:"thread_id,omitempty"`
	EventTypes   []string  `json:"event_types,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func errorEnvelope(message string) Envelope {
	return Envelope{Type: TypeError, Error: message, Timestamp: time.Now().UTC()}
}
