package notification

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// ListFilter narrows a notification listing.
type ListFilter struct {
	IsRead   *bool
	Category string
	Type     string
	Limit    int
	Offset   int
}

// AdminStats aggregates delivery counters across all users.
type AdminStats struct {
	Total       int `json:"total"`
	Unread      int `json:"unread"`
	EmailSent   int `json:"email_sent"`
	PushSent    int `json:"push_sent"`
	EmailFailed int `json:"email_failed"`
	PushFailed  int `json:"push_failed"`
	Users       int `json:"users"`
}

// Store persists notifications and per-user preferences.
type Store interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	Get(ctx context.Context, userID, id string) (Notification, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, read bool) (Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	UpdateDelivery(ctx context.Context, id string, update DeliveryUpdate) error
	Stats(ctx context.Context) (AdminStats, error)

	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	SavePreferences(ctx context.Context, prefs Preferences) (Preferences, error)
	RegisterPushToken(ctx context.Context, userID, token string) error
	ClearPushToken(ctx context.Context, userID, token string) error

	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]Batch, int, error)
	// MarkBatchSending moves a pending batch to sending; any other state
	// returns ErrBatchFinished so a cancelled batch never starts.
	MarkBatchSending(ctx context.Context, id string) error
	// UpdateBatchProgress writes counters and outcomes only, never status, so
	// a concurrent cancel is not overwritten by the sending worker.
	UpdateBatchProgress(ctx context.Context, id string, progress BatchProgress) error
	// CompleteBatch finishes a sending batch. A batch cancelled mid-run keeps
	// its cancelled status; the stored row is returned either way.
	CompleteBatch(ctx context.Context, id string) (Batch, error)
	// CancelBatch cancels a pending or sending batch. Completed or already
	// cancelled batches return ErrBatchFinished.
	CancelBatch(ctx context.Context, id string) (Batch, error)

	Close() error
}

// DeliveryUpdate carries the post-delivery status write-back.
type DeliveryUpdate struct {
	EmailSent   bool
	EmailSentAt *time.Time
	EmailError  string
	PushSent    bool
	PushSentAt  *time.Time
	PushError   string
}
