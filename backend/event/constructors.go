package event

import (
	"time"

	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/thread"
)

// Event type constants
const (
	// Thread events
	EventTypeThreadCreated = "thread.created"
	EventTypeThreadDeleted = "thread.deleted"

	// Message events
	EventTypeMessageCreated   = "message.created"
	EventTypeMessageCompleted = "message.completed"

	// Reconciliation events
	EventTypePairsUpdated = "pairs.updated"

	// Notification events
	EventTypeNotificationCreated = "notification.created"

	// Permission events (websocket bridge)
	EventTypePermissionRequested = "permission.requested"
	EventTypePermissionDecided   = "permission.decided"
)

// Event action constants
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ThreadEventPayload contains the payload for thread events.
type ThreadEventPayload struct {
	Thread *thread.Thread
}

// MessageEventPayload contains the payload for message events.
type MessageEventPayload struct {
	Message *thread.Message
}

// PairsUpdatedPayload carries a freshly reconciled pair list for a thread.
type PairsUpdatedPayload struct {
	ThreadID string
	Pairs    []reconcile.ToolCallPair
}

// NotificationEventPayload contains the payload for notification events.
type NotificationEventPayload struct {
	NotificationID string
	UserID         string
	Type           string
	Title          string
}

// PermissionEventPayload contains the payload for permission flow events.
type PermissionEventPayload struct {
	SessionID string
	RequestID string
	Command   string
	Approved  bool
}

// MessageCompletedPayload identifies an assistant turn that finished
// streaming, for consumers that only track the flag flip.
type MessageCompletedPayload struct {
	MessageID string
}

// DeletedEntityPayload contains the payload for deleted entity events.
type DeletedEntityPayload struct {
	ID string
}

// NewThreadCreatedEvent creates a new thread.created event.
func NewThreadCreatedEvent(t *thread.Thread) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypeThreadCreated,
		Action:    ActionCreated,
		Timestamp: time.Now(),
		ThreadID:  t.ID,
		Payload:   &ThreadEventPayload{Thread: t},
	}
}

// NewThreadDeletedEvent creates a new thread.deleted event.
func NewThreadDeletedEvent(threadID string) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypeThreadDeleted,
		Action:    ActionDeleted,
		Timestamp: time.Now(),
		ThreadID:  threadID,
		Payload:   &DeletedEntityPayload{ID: threadID},
	}
}

// NewMessageCreatedEvent creates a new message.created event.
func NewMessageCreatedEvent(msg *thread.Message) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypeMessageCreated,
		Action:    ActionCreated,
		Timestamp: time.Now(),
		ThreadID:  msg.ThreadID,
		Payload:   &MessageEventPayload{Message: msg},
	}
}

// NewMessageCompletedEvent creates a new message.completed event, published
// when an assistant turn finishes streaming.
func NewMessageCompletedEvent(msg *thread.Message) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypeMessageCompleted,
		Action:    ActionUpdated,
		Timestamp: time.Now(),
		ThreadID:  msg.ThreadID,
		Payload:   &MessageEventPayload{Message: msg},
	}
}

// NewPairsUpdatedEvent creates a new pairs.updated event carrying the result
// of a reconciliation pass. This is a transient streaming event.
func NewPairsUpdatedEvent(threadID string, pairs []reconcile.ToolCallPair) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypePairsUpdated,
		Action:    ActionUpdated,
		Timestamp: time.Now(),
		ThreadID:  threadID,
		Payload:   &PairsUpdatedPayload{ThreadID: threadID, Pairs: pairs},
	}
}

// NewNotificationCreatedEvent creates a new notification.created event.
func NewNotificationCreatedEvent(notificationID, userID, notificationType, title string) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypeNotificationCreated,
		Action:    ActionCreated,
		Timestamp: time.Now(),
		Payload: &NotificationEventPayload{
			NotificationID: notificationID,
			UserID:         userID,
			Type:           notificationType,
			Title:          title,
		},
	}
}

// NewPermissionRequestedEvent creates a new permission.requested event.
func NewPermissionRequestedEvent(sessionID, requestID, command string) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypePermissionRequested,
		Action:    ActionCreated,
		Timestamp: time.Now(),
		Payload: &PermissionEventPayload{
			SessionID: sessionID,
			RequestID: requestID,
			Command:   command,
		},
	}
}

// NewPermissionDecidedEvent creates a new permission.decided event.
func NewPermissionDecidedEvent(sessionID, requestID string, approved bool) *StreamEvent {
	return &StreamEvent{
		Type:      EventTypePermissionDecided,
		Action:    ActionUpdated,
		Timestamp: time.Now(),
		Payload: &PermissionEventPayload{
			SessionID: sessionID,
			RequestID: requestID,
			Approved:  approved,
		},
	}
}
