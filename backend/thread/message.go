package thread

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Metadata carries out-of-band linkage for a message. Legacy tool messages
// reference their issuing assistant turn here rather than via a call id.
type Metadata struct {
	AssistantMessageID string         `json:"assistant_message_id,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// Message is the engine's view of a single thread message. Content is either
// a raw string or an already-decoded JSON value; the reconciliation engine
// normalizes it itself and never requires a particular shape.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Role      Role      `json:"role"`
	Content   any       `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Complete reports whether an assistant turn has finished streaming.
	// Tool and user messages are always complete.
	Complete bool `json:"complete"`
}

// ContentString renders the raw content for storage. Strings pass through
// unchanged; structured values are JSON-encoded.
func (m *Message) ContentString() (string, bool) {
	if s, ok := m.Content.(string); ok {
		return s, false
	}
	encoded, err := json.Marshal(m.Content)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}
