package event

import "github.com/corvid/threadview/backend/thread"

// Typed events for the generic Bus. Components that need a concrete payload
// subscribe here; the websocket bridge uses the pattern-matched EventRouter
// instead.

type MessageIngestedEvent struct {
	ThreadID  string
	MessageID string
	Role      thread.Role
}

func (MessageIngestedEvent) Event() {}

type ThreadCreatedEvent struct {
	ThreadID string
	Title    string
}

func (ThreadCreatedEvent) Event() {}

type ThreadDeletedEvent struct {
	ThreadID string
}

func (ThreadDeletedEvent) Event() {}

type ThreadReconciledEvent struct {
	ThreadID string
	Pairs    int
	Resolved int
	Pending  int
}

func (ThreadReconciledEvent) Event() {}

type NotificationSentEvent struct {
	NotificationID string
	UserID         string
	Type           string
	EmailSent      bool
	PushSent       bool
}

func (NotificationSentEvent) Event() {}

type PermissionDecisionEvent struct {
	SessionID string
	RequestID string
	Approved  bool
}

func (PermissionDecisionEvent) Event() {}
