package notification

import (
	"errors"
	"time"
)

// ErrBatchFinished marks a state transition attempted on a batch that is
// already completed or cancelled.
var ErrBatchFinished = errors.New("batch already finished")

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchSending   BatchStatus = "sending"
	BatchCompleted BatchStatus = "completed"
	BatchCancelled BatchStatus = "cancelled"
)

// Batch is the persisted record of one admin broadcast. The worker updates
// progress at every recipient, so an in-flight batch reads accurately and a
// cancel takes effect at the next recipient.
type Batch struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Category  string         `json:"category,omitempty"`
	SendEmail bool           `json:"send_email"`
	SendPush  bool           `json:"send_push"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UserIDs   []string       `json:"user_ids"`

	Status     BatchStatus    `json:"status"`
	Recipients int            `json:"recipients"`
	EmailsSent int            `json:"emails_sent"`
	PushesSent int            `json:"pushes_sent"`
	Failed     int            `json:"failed"`
	Outcomes   []BatchOutcome `json:"outcomes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// BatchProgress is the per-recipient progress write-back.
type BatchProgress struct {
	EmailsSent int
	PushesSent int
	Failed     int
	Outcomes   []BatchOutcome
}
