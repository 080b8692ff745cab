package analytics

import (
	"context"

	"github.com/posthog/posthog-go"

	"github.com/corvid/threadview/backend/event"
)

// Attach subscribes the analytics emitters to the event bus. Returns a
// function that detaches them again.
func Attach(bus *event.Bus, client posthog.Client) func() {
	subs := []*event.Subscription{
		event.Subscribe(bus, func(_ context.Context, e event.ThreadCreatedEvent) {
			EmitThreadCreated(client, e.ThreadID, e.Title)
		}, nil),
		event.Subscribe(bus, func(_ context.Context, e event.ThreadDeletedEvent) {
			EmitThreadDeleted(client, e.ThreadID)
		}, nil),
		event.Subscribe(bus, func(_ context.Context, e event.MessageIngestedEvent) {
			EmitMessageIngested(client, e.ThreadID, e.MessageID, string(e.Role))
		}, nil),
		event.Subscribe(bus, func(_ context.Context, e event.ThreadReconciledEvent) {
			EmitThreadReconciled(client, e.ThreadID, e.Pairs, e.Resolved, e.Pending)
		}, nil),
		event.Subscribe(bus, func(_ context.Context, e event.NotificationSentEvent) {
			EmitNotificationSent(client, e.NotificationID, e.Type, e.EmailSent, e.PushSent)
		}, nil),
		event.Subscribe(bus, func(_ context.Context, e event.PermissionDecisionEvent) {
			EmitPermissionDecided(client, e.SessionID, e.Approved)
		}, nil),
	}

	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}
