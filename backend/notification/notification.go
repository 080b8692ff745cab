package notification

import "time"

// Notification types.
const (
	TypeInfo          = "info"
	TypeSuccess       = "success"
	TypeWarning       = "warning"
	TypeError         = "error"
	TypeAgentComplete = "agent_complete"
)

// Notification categories for per-category preference overrides.
const (
	CategoryAgent   = "agent"
	CategorySystem  = "system"
	CategoryBilling = "billing"
	CategoryAdmin   = "admin"
)

// Notification is a single delivered (or pending) notification record. The
// record is persisted before any delivery attempt; delivery status and errors
// are written back afterwards.
type Notification struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Type        string         `json:"type"`
	Category    string         `json:"category,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	EmailSent   bool           `json:"email_sent"`
	EmailSentAt *time.Time     `json:"email_sent_at,omitempty"`
	EmailError  string         `json:"email_error,omitempty"`
	PushSent    bool           `json:"push_sent"`
	PushSentAt  *time.Time     `json:"push_sent_at,omitempty"`
	PushError   string         `json:"push_error,omitempty"`
	IsRead      bool           `json:"is_read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Preferences controls which channels and categories reach a user. A missing
// category entry means enabled; the global switch gates everything.
type Preferences struct {
	UserID             string          `json:"user_id"`
	EmailEnabled       bool            `json:"email_enabled"`
	PushEnabled        bool            `json:"push_enabled"`
	EmailCategories    map[string]bool `json:"email_categories"`
	PushCategories     map[string]bool `json:"push_categories"`
	Email              string          `json:"email,omitempty"`
	PushToken          string          `json:"push_token,omitempty"`
	PushTokenUpdatedAt *time.Time      `json:"push_token_updated_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DefaultPreferences returns the preferences applied to a user who never
// configured anything: all channels and categories on.
func DefaultPreferences(userID string) Preferences {
	now := time.Now().UTC()
	return Preferences{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		EmailCategories: map[string]bool{
			CategoryAgent: true, CategorySystem: true, CategoryBilling: true, CategoryAdmin: true,
		},
		PushCategories: map[string]bool{
			CategoryAgent: true, CategorySystem: true, CategoryBilling: true, CategoryAdmin: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AllowsEmail reports whether email delivery is enabled for a category.
func (p *Preferences) AllowsEmail(category string) bool {
	if !p.EmailEnabled {
		return false
	}
	if category == "" {
		return true
	}
	allowed, ok := p.EmailCategories[category]
	return !ok || allowed
}

// AllowsPush reports whether push delivery is enabled for a category.
func (p *Preferences) AllowsPush(category string) bool {
	if !p.PushEnabled {
		return false
	}
	if category == "" {
		return true
	}
	allowed, ok := p.PushCategories[category]
	return !ok || allowed
}
