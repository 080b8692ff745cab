package thread

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Thread is a single conversation container. Messages are appended and never
// mutated in place, except for the assistant-turn completion flag.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists threads and their messages. Implementations assign message
// ids and server timestamps on append when the caller leaves them empty.
type Store interface {
	CreateThread(ctx context.Context, title string) (Thread, error)
	GetThread(ctx context.Context, id string) (Thread, error)
	ListThreads(ctx context.Context) ([]Thread, error)
	DeleteThread(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
	CompleteMessage(ctx context.Context, messageID string) error

	Close() error
}
