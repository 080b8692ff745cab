package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid/threadview/backend/notification"
)

func userHeaders(userID string) map[string]string {
	return map[string]string{HeaderUserID: userID}
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func TestNotificationRoutesRequireUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/preferences", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndReadNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.notifs.Insert(ctx, notification.Notification{
		UserID: "u1", Title: "a", Message: "m", Type: notification.TypeInfo,
	})
	require.NoError(t, err)
	_, err = env.notifs.Insert(ctx, notification.Notification{
		UserID: "u1", Title: "b", Message: "m", Type: notification.TypeError,
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/notifications", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Notifications []notification.Notification `json:"notifications"`
		Total         int                         `json:"total"`
	}
	decodeData(t, rec, &listed)
	assert.Equal(t, 2, listed.Total)

	rec = env.do(t, http.MethodGet, "/v1/notifications?type=error", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &listed)
	require.Len(t, listed.Notifications, 1)
	assert.Equal(t, "b", listed.Notifications[0].Title)

	rec = env.do(t, http.MethodGet, "/v1/notifications/unread-count", nil, userHeaders("u1"))
	var count struct {
		UnreadCount int `json:"unread_count"`
	}
	decodeData(t, rec, &count)
	assert.Equal(t, 2, count.UnreadCount)

	rec = env.do(t, http.MethodPost, "/v1/notifications/"+first.ID+"/read", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/unread-count", nil, userHeaders("u1"))
	decodeData(t, rec, &count)
	assert.Equal(t, 1, count.UnreadCount)

	// Another user cannot read it.
	rec = env.do(t, http.MethodPost, "/v1/notifications/"+first.ID+"/read", nil, userHeaders("u2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/notifications/read-all", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/unread-count", nil, userHeaders("u1"))
	decodeData(t, rec, &count)
	assert.Zero(t, count.UnreadCount)
}

func TestGetNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inserted, err := env.notifs.Insert(ctx, notification.Notification{
		UserID: "u1", Title: "Agent finished", Message: "done", Type: notification.TypeInfo,
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/notifications/"+inserted.ID, nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var got notification.Notification
	decodeData(t, rec, &got)
	assert.Equal(t, inserted.ID, got.ID)
	assert.Equal(t, "Agent finished", got.Title)

	// Scoped to the owner.
	rec = env.do(t, http.MethodGet, "/v1/notifications/"+inserted.ID, nil, userHeaders("u2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/missing", nil, userHeaders("u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotificationsValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/notifications?is_read=banana", nil, userHeaders("u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications?limit=-1", nil, userHeaders("u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferencesPartialUpdate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/notifications/preferences", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs notification.Preferences
	decodeData(t, rec, &prefs)
	assert.True(t, prefs.EmailEnabled)

	rec = env.do(t, http.MethodPut, "/v1/notifications/preferences", map[string]any{
		"email_enabled": false,
		"email":         "u1@example.com",
	}, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &prefs)
	assert.False(t, prefs.EmailEnabled)
	assert.Equal(t, "u1@example.com", prefs.Email)
	// Untouched fields keep their defaults.
	assert.True(t, prefs.PushEnabled)

	rec = env.do(t, http.MethodGet, "/v1/notifications/preferences", nil, userHeaders("u1"))
	decodeData(t, rec, &prefs)
	assert.False(t, prefs.EmailEnabled)
	assert.True(t, prefs.PushEnabled)
}

func TestPushTokenRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/notifications/token", map[string]string{
		"token": "ExponentPushToken[abc]",
	}, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/preferences", nil, userHeaders("u1"))
	var prefs notification.Preferences
	decodeData(t, rec, &prefs)
	assert.Equal(t, "ExponentPushToken[abc]", prefs.PushToken)

	rec = env.do(t, http.MethodDelete, "/v1/notifications/token", map[string]string{
		"token": "ExponentPushToken[abc]",
	}, userHeaders("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/notifications/preferences", nil, userHeaders("u1"))
	// push_token is omitempty, so decode into a zero value rather than the
	// struct still holding the registered token.
	prefs = notification.Preferences{}
	decodeData(t, rec, &prefs)
	assert.Empty(t, prefs.PushToken)

	rec = env.do(t, http.MethodPost, "/v1/notifications/token", map[string]string{}, userHeaders("u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminBatchSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// u1 has an email on file, u2 does not.
	prefs, err := env.notifs.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	prefs.Email = "u1@example.com"
	_, err = env.notifs.SavePreferences(ctx, prefs)
	require.NoError(t, err)

	body := map[string]any{
		"user_ids":   []string{"u1", "u2"},
		"title":      "Maintenance",
		"message":    "Scheduled downtime tonight",
		"type":       notification.TypeWarning,
		"category":   notification.CategoryAdmin,
		"send_email": true,
	}

	rec := env.do(t, http.MethodPost, "/admin/notifications/batch", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/notifications/batch", body, map[string]string{
		"Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The batch is accepted immediately and delivered in the background.
	rec = env.do(t, http.MethodPost, "/admin/notifications/batch", body, adminHeaders())
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created notification.Batch
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, notification.BatchPending, created.Status)
	assert.Equal(t, 2, created.Recipients)

	require.Eventually(t, func() bool {
		b, err := env.notifs.GetBatch(ctx, created.ID)
		return err == nil && b.Status == notification.BatchCompleted
	}, 5*time.Second, 10*time.Millisecond, "batch never completed")

	rec = env.do(t, http.MethodGet, "/admin/notifications/batches/"+created.ID, nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var batch notification.Batch
	decodeData(t, rec, &batch)
	assert.Equal(t, notification.BatchCompleted, batch.Status)
	assert.Equal(t, 1, batch.EmailsSent)
	assert.Zero(t, batch.Failed)
	require.Len(t, batch.Outcomes, 2)
	require.NotNil(t, batch.CompletedAt)

	emails := env.mailer.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "u1@example.com", emails[0].To)

	// Both users got a persisted record regardless of delivery.
	for _, userID := range []string{"u1", "u2"} {
		_, total, err := env.notifs.List(ctx, userID, notification.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, total, userID)
	}

	rec = env.do(t, http.MethodGet, "/admin/notifications/batches", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Batches []notification.Batch `json:"batches"`
		Total   int                  `json:"total"`
	}
	decodeData(t, rec, &listed)
	assert.Equal(t, 1, listed.Total)
	require.Len(t, listed.Batches, 1)
	assert.Equal(t, created.ID, listed.Batches[0].ID)

	rec = env.do(t, http.MethodGet, "/admin/notifications/stats", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var stats notification.AdminStats
	decodeData(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.EmailSent)
	assert.Equal(t, 2, stats.Users)
}

func TestAdminBatchCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending, err := env.notifs.InsertBatch(ctx, notification.Batch{
		Title: "t", Message: "m", UserIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/admin/notifications/batches/"+pending.ID+"/cancel", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled notification.Batch
	decodeData(t, rec, &cancelled)
	assert.Equal(t, notification.BatchCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// Cancelling again is rejected.
	rec = env.do(t, http.MethodPost, "/admin/notifications/batches/"+pending.ID+"/cancel", nil, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/notifications/batches/missing/cancel", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/notifications/batches/missing", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
