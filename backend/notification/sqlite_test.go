package notification

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "notifications.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteInsertAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, Notification{
		UserID:   "u1",
		Title:    "Agent finished",
		Message:  "done",
		Type:     TypeAgentComplete,
		Category: CategoryAgent,
		ThreadID: "th1",
		Metadata: map[string]any{"run": "r1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, inserted.ID)

	got, err := store.Get(ctx, "u1", inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agent finished", got.Title)
	assert.Equal(t, CategoryAgent, got.Category)
	assert.Equal(t, map[string]any{"run": "r1"}, got.Metadata)
	assert.False(t, got.IsRead)

	// Other users cannot see it.
	_, err = store.Get(ctx, "u2", inserted.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListFilters(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, n := range []Notification{
		{UserID: "u1", Title: "a", Message: "m", Type: TypeInfo, Category: CategoryAgent},
		{UserID: "u1", Title: "b", Message: "m", Type: TypeError, Category: CategorySystem},
		{UserID: "u2", Title: "c", Message: "m", Type: TypeInfo},
	} {
		_, err := store.Insert(ctx, n)
		require.NoError(t, err)
	}

	all, total, err := store.List(ctx, "u1", ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	errs, total, err := store.List(ctx, "u1", ListFilter{Type: TypeError})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].Title)

	agent, _, err := store.List(ctx, "u1", ListFilter{Category: CategoryAgent})
	require.NoError(t, err)
	require.Len(t, agent, 1)
	assert.Equal(t, "a", agent[0].Title)
}

func TestSQLiteMarkReadAndUnreadCount(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, Notification{UserID: "u1", Title: "a", Message: "m", Type: TypeInfo})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Notification{UserID: "u1", Title: "b", Message: "m", Type: TypeInfo})
	require.NoError(t, err)

	count, err := store.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	marked, err := store.MarkRead(ctx, "u1", first.ID, true)
	require.NoError(t, err)
	assert.True(t, marked.IsRead)
	assert.NotNil(t, marked.ReadAt)

	count, err = store.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Unread again clears the read timestamp.
	unmarked, err := store.MarkRead(ctx, "u1", first.ID, false)
	require.NoError(t, err)
	assert.False(t, unmarked.IsRead)
	assert.Nil(t, unmarked.ReadAt)

	_, err = store.MarkRead(ctx, "u1", "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteMarkAllRead(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for range 3 {
		_, err := store.Insert(ctx, Notification{UserID: "u1", Title: "t", Message: "m", Type: TypeInfo})
		require.NoError(t, err)
	}

	updated, err := store.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	count, err := store.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteUpdateDelivery(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := store.Insert(ctx, Notification{UserID: "u1", Title: "t", Message: "m", Type: TypeInfo})
	require.NoError(t, err)

	now := n.CreatedAt
	err = store.UpdateDelivery(ctx, n.ID, DeliveryUpdate{
		EmailSent:   true,
		EmailSentAt: &now,
		PushError:   "DeviceNotRegistered",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailSent)
	require.NotNil(t, got.EmailSentAt)
	assert.False(t, got.PushSent)
	assert.Equal(t, "DeviceNotRegistered", got.PushError)

	assert.ErrorIs(t, store.UpdateDelivery(ctx, "missing", DeliveryUpdate{}), ErrNotFound)
}

func TestSQLiteStats(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	n1, err := store.Insert(ctx, Notification{UserID: "u1", Title: "a", Message: "m", Type: TypeInfo})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Notification{UserID: "u2", Title: "b", Message: "m", Type: TypeInfo})
	require.NoError(t, err)

	now := n1.CreatedAt
	require.NoError(t, store.UpdateDelivery(ctx, n1.ID, DeliveryUpdate{
		EmailSent: true, EmailSentAt: &now, PushError: "expo http 500",
	}))
	_, err = store.MarkRead(ctx, "u1", n1.ID, true)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Unread)
	assert.Equal(t, 1, stats.EmailSent)
	assert.Zero(t, stats.PushSent)
	assert.Equal(t, 1, stats.PushFailed)
	assert.Equal(t, 2, stats.Users)
}

func TestSQLiteBatchLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	inserted, err := store.InsertBatch(ctx, Batch{
		Title:     "Maintenance",
		Message:   "tonight",
		Type:      TypeWarning,
		Category:  CategoryAdmin,
		SendEmail: true,
		UserIDs:   []string{"u1", "u2"},
		Metadata:  map[string]any{"window": "22:00"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, inserted.ID)
	assert.Equal(t, BatchPending, inserted.Status)

	got, err := store.GetBatch(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.UserIDs)
	assert.Equal(t, 2, got.Recipients)
	assert.Equal(t, map[string]any{"window": "22:00"}, got.Metadata)
	assert.Nil(t, got.StartedAt)

	require.NoError(t, store.MarkBatchSending(ctx, inserted.ID))
	// Only a pending batch can start.
	assert.ErrorIs(t, store.MarkBatchSending(ctx, inserted.ID), ErrBatchFinished)

	require.NoError(t, store.UpdateBatchProgress(ctx, inserted.ID, BatchProgress{
		EmailsSent: 1,
		Outcomes:   []BatchOutcome{{UserID: "u1", NotificationID: "n1", EmailSent: true}},
	}))

	done, err := store.CompleteBatch(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, done.Status)
	assert.Equal(t, 1, done.EmailsSent)
	require.Len(t, done.Outcomes, 1)
	assert.Equal(t, "u1", done.Outcomes[0].UserID)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)

	_, err = store.CancelBatch(ctx, inserted.ID)
	assert.ErrorIs(t, err, ErrBatchFinished)

	_, err = store.GetBatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.CancelBatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.MarkBatchSending(ctx, "missing"), ErrNotFound)
}

func TestSQLiteCancelledBatchStaysCancelled(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	b, err := store.InsertBatch(ctx, Batch{Title: "t", Message: "m", UserIDs: []string{"u1"}})
	require.NoError(t, err)
	require.NoError(t, store.MarkBatchSending(ctx, b.ID))

	cancelled, err := store.CancelBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// The worker finishing afterwards must not flip the status back.
	after, err := store.CompleteBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchCancelled, after.Status)
	assert.Nil(t, after.CompletedAt)
}

func TestSQLiteListBatches(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := store.InsertBatch(ctx, Batch{Title: title, Message: "m", UserIDs: []string{"u1"}})
		require.NoError(t, err)
	}

	all, total, err := store.ListBatches(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	page, total, err := store.ListBatches(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)

	rest, _, err := store.ListBatches(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestSQLitePreferences(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	// Unknown users get defaults.
	prefs, err := store.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, prefs.EmailEnabled)
	assert.True(t, prefs.AllowsEmail(CategoryAgent))

	prefs.EmailEnabled = false
	prefs.PushCategories[CategoryBilling] = false
	prefs.Email = "u1@example.com"
	_, err = store.SavePreferences(ctx, prefs)
	require.NoError(t, err)

	loaded, err := store.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loaded.EmailEnabled)
	assert.Equal(t, "u1@example.com", loaded.Email)
	assert.False(t, loaded.AllowsPush(CategoryBilling))
	assert.True(t, loaded.AllowsPush(CategoryAgent))
}

func TestSQLitePushTokenLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.RegisterPushToken(ctx, "u1", "ExponentPushToken[old]"))

	prefs, err := store.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[old]", prefs.PushToken)
	assert.NotNil(t, prefs.PushTokenUpdatedAt)

	// Clearing with a stale token is a no-op.
	require.NoError(t, store.ClearPushToken(ctx, "u1", "ExponentPushToken[other]"))
	prefs, err = store.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[old]", prefs.PushToken)

	require.NoError(t, store.ClearPushToken(ctx, "u1", "ExponentPushToken[old]"))
	prefs, err = store.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, prefs.PushToken)
	assert.Nil(t, prefs.PushTokenUpdatedAt)
}
