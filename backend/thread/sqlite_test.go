package thread

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "threadview.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestThreadLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateThread(ctx, "research session")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.GetThread(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "research session", got.Title)

	threads, err := store.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	require.NoError(t, store.DeleteThread(ctx, created.ID))
	_, err = store.GetThread(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageAssignsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	th, err := store.CreateThread(ctx, "t")
	require.NoError(t, err)

	msg, err := store.AppendMessage(ctx, Message{
		ThreadID: th.ID,
		Role:     RoleUser,
		Content:  "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.True(t, msg.Complete, "non-assistant messages are always complete")
}

func TestAppendMessageUnknownThread(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), Message{
		ThreadID: "missing",
		Role:     RoleUser,
		Content:  "hello",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessageContentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	th, err := store.CreateThread(ctx, "t")
	require.NoError(t, err)

	structured := map[string]any{
		"tool_calls": []any{
			map[string]any{"id": "tu_1", "function": map[string]any{"name": "web_search"}},
		},
	}

	_, err = store.AppendMessage(ctx, Message{
		ThreadID:  th.ID,
		Role:      RoleAssistant,
		Content:   structured,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, Message{
		ThreadID:  th.ID,
		Role:      RoleTool,
		Content:   "plain result text",
		Metadata:  Metadata{AssistantMessageID: "a1"},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	})
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, structured, msgs[0].Content, "structured content decodes back")
	assert.Equal(t, "plain result text", msgs[1].Content, "strings stay strings")
	assert.Equal(t, "a1", msgs[1].Metadata.AssistantMessageID)
}

func TestListMessagesOrderedByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	th, err := store.CreateThread(ctx, "t")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		_, err := store.AppendMessage(ctx, Message{
			ID:        []string{"m2", "m0", "m1"}[i],
			ThreadID:  th.ID,
			Role:      RoleUser,
			Content:   "x",
			CreatedAt: base.Add(offset),
		})
		require.NoError(t, err)
	}

	msgs, err := store.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m0", msgs[0].ID)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, "m2", msgs[2].ID)
}

func TestCompleteMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	th, err := store.CreateThread(ctx, "t")
	require.NoError(t, err)

	msg, err := store.AppendMessage(ctx, Message{
		ThreadID: th.ID,
		Role:     RoleAssistant,
		Content:  `{"tool_calls":[]}`,
	})
	require.NoError(t, err)
	assert.False(t, msg.Complete)

	require.NoError(t, store.CompleteMessage(ctx, msg.ID))

	msgs, err := store.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Complete)

	assert.ErrorIs(t, store.CompleteMessage(ctx, "missing"), ErrNotFound)
}

func TestDeleteThreadCascadesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	th, err := store.CreateThread(ctx, "t")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, Message{ThreadID: th.ID, Role: RoleUser, Content: "x"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteThread(ctx, th.ID))

	msgs, err := store.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
