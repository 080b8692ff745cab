package analytics

import (
	"github.com/posthog/posthog-go"
)

func EmitThreadCreated(client posthog.Client, threadID string, title string) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "thread_created",
		Properties: map[string]interface{}{
			"thread_id": threadID,
			"title":     title,
		},
	})
}

func EmitThreadDeleted(client posthog.Client, threadID string) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "thread_deleted",
		Properties: map[string]interface{}{
			"thread_id": threadID,
		},
	})
}

func EmitMessageIngested(client posthog.Client, threadID string, messageID string, role string) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "message_ingested",
		Properties: map[string]interface{}{
			"thread_id":  threadID,
			"message_id": messageID,
			"role":       role,
		},
	})
}

func EmitThreadReconciled(client posthog.Client, threadID string, pairs int, resolved int, pending int) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "thread_reconciled",
		Properties: map[string]interface{}{
			"thread_id": threadID,
			"pairs":     pairs,
			"resolved":  resolved,
			"pending":   pending,
		},
	})
}

func EmitNotificationSent(client posthog.Client, notificationID string, notificationType string, emailSent bool, pushSent bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "notification_sent",
		Properties: map[string]interface{}{
			"notification_id": notificationID,
			"type":            notificationType,
			"email_sent":      emailSent,
			"push_sent":       pushSent,
		},
	})
}

func EmitPermissionDecided(client posthog.Client, sessionID string, approved bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "permission_decided",
		Properties: map[string]interface{}{
			"session_id": sessionID,
			"approved":   approved,
		},
	})
}
