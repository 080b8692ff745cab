package event

import (
	"context"
	"time"

	"github.com/corvid/threadview/backend/thread"
)

// RecordingStore wraps a thread.Store and publishes events for every
// successful mutation, so stream consumers observe storage changes without
// the storage layer knowing about eventing.
type RecordingStore struct {
	inner  thread.Store
	router *EventRouter
	bus    *Bus
}

var _ thread.Store = (*RecordingStore)(nil)

func NewRecordingStore(inner thread.Store, router *EventRouter, bus *Bus) *RecordingStore {
	return &RecordingStore{inner: inner, router: router, bus: bus}
}

func (s *RecordingStore) CreateThread(ctx context.Context, title string) (thread.Thread, error) {
	created, err := s.inner.CreateThread(ctx, title)
	if err != nil {
		return created, err
	}
	s.router.Publish(NewThreadCreatedEvent(&created))
	if s.bus != nil {
		Publish(s.bus, ThreadCreatedEvent{ThreadID: created.ID, Title: created.Title})
	}
	return created, nil
}

func (s *RecordingStore) GetThread(ctx context.Context, id string) (thread.Thread, error) {
	return s.inner.GetThread(ctx, id)
}

func (s *RecordingStore) ListThreads(ctx context.Context) ([]thread.Thread, error) {
	return s.inner.ListThreads(ctx)
}

func (s *RecordingStore) DeleteThread(ctx context.Context, id string) error {
	if err := s.inner.DeleteThread(ctx, id); err != nil {
		return err
	}
	s.router.Publish(NewThreadDeletedEvent(id))
	if s.bus != nil {
		Publish(s.bus, ThreadDeletedEvent{ThreadID: id})
	}
	return nil
}

func (s *RecordingStore) AppendMessage(ctx context.Context, msg thread.Message) (thread.Message, error) {
	stored, err := s.inner.AppendMessage(ctx, msg)
	if err != nil {
		return stored, err
	}

	s.router.Publish(NewMessageCreatedEvent(&stored))
	if s.bus != nil {
		Publish(s.bus, MessageIngestedEvent{
			ThreadID:  stored.ThreadID,
			MessageID: stored.ID,
			Role:      stored.Role,
		})
	}
	return stored, nil
}

func (s *RecordingStore) ListMessages(ctx context.Context, threadID string) ([]thread.Message, error) {
	return s.inner.ListMessages(ctx, threadID)
}

func (s *RecordingStore) CompleteMessage(ctx context.Context, messageID string) error {
	if err := s.inner.CompleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.router.Publish(&StreamEvent{
		Type:      EventTypeMessageCompleted,
		Action:    ActionUpdated,
		Timestamp: time.Now(),
		Payload:   &MessageCompletedPayload{MessageID: messageID},
	})
	return nil
}

func (s *RecordingStore) Close() error {
	return s.inner.Close()
}
