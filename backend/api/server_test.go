package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid/threadview/backend/event"
	"github.com/corvid/threadview/backend/notification"
	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/thread"
)

const testAdminToken = "admin-secret"

// The fakes are mutex-guarded because batch delivery runs on a background
// goroutine while the test polls.
type fakePusher struct {
	mu   sync.Mutex
	sent []notification.PushMessage
}

func (p *fakePusher) Send(_ context.Context, msg notification.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notification.Email
}

func (m *fakeMailer) Send(_ context.Context, email notification.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) emails() []notification.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Email(nil), m.sent...)
}

type testEnv struct {
	server *Server
	router *event.EventRouter
	bus    *event.Bus
	store  thread.Store
	notifs notification.Store
	pusher *fakePusher
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := thread.NewSQLiteStore(filepath.Join(dir, "threads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifStore, err := notification.NewSQLiteStore(filepath.Join(dir, "notifications.db"))
	require.NoError(t, err)
	t.Cleanup(func() { notifStore.Close() })

	router := event.NewEventRouter(16)
	t.Cleanup(router.Close)

	bus := event.NewBus(nil)
	t.Cleanup(bus.Close)

	cache, err := reconcile.NewPairCache(reconcile.NewEngine(), 32)
	require.NoError(t, err)

	pusher := &fakePusher{}
	mailer := &fakeMailer{}
	svc := notification.NewService(notifStore, pusher, mailer,
		notification.WithBatchRateLimit(1000, 1000))

	recording := event.NewRecordingStore(store, router, bus)
	server := NewServer(Config{AdminToken: testAdminToken}, recording, cache, svc, notifStore, router,
		WithBus(bus))

	return &testEnv{
		server: server,
		router: router,
		bus:    bus,
		store:  recording,
		notifs: notifStore,
		pusher: pusher,
		mailer: mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success envelope, got error: %s", envelope.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

func (e *testEnv) createThread(t *testing.T, title string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/threads", map[string]string{"title": title}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThreadLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "debug session")

	rec := env.do(t, http.MethodGet, "/v1/threads/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Title string `json:"title"`
	}
	decodeData(t, rec, &got)
	assert.Equal(t, "debug session", got.Title)

	rec = env.do(t, http.MethodGet, "/v1/threads", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var threads []json.RawMessage
	decodeData(t, rec, &threads)
	assert.Len(t, threads, 1)

	rec = env.do(t, http.MethodDelete, "/v1/threads/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/threads/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendMessagesAndToolPairs(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "run")

	rec := env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"role":     "assistant",
		"content":  `{"tool_calls":[{"id":"tu_1","function":{"name":"web_search","arguments":"{}"}}]}`,
		"complete": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"role":    "tool",
		"content": `{"role":"tool","tool_call_id":"tu_1","name":"web_search","content":"3 results"}`,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/threads/"+id+"/tool-pairs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pairs []struct {
		CallID   string `json:"call_id"`
		Function string `json:"function"`
		Output   string `json:"output"`
		State    string `json:"state"`
		Success  bool   `json:"success"`
	}
	decodeData(t, rec, &pairs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "tu_1", pairs[0].CallID)
	assert.Equal(t, "web_search", pairs[0].Function)
	assert.Equal(t, "3 results", pairs[0].Output)
	assert.Equal(t, "resolved", pairs[0].State)
	assert.True(t, pairs[0].Success)
}

func TestCompleteMessageEscalatesPendingPair(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "run")

	rec := env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"role":    "assistant",
		"content": `{"tool_calls":[{"id":"tu_1","function":{"name":"execute_command","arguments":"{}"}}]}`,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &msg)

	// While the turn streams, the unanswered call stays pending.
	rec = env.do(t, http.MethodGet, "/v1/threads/"+id+"/tool-pairs", nil, nil)
	var pairs []struct {
		State   string `json:"state"`
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}
	decodeData(t, rec, &pairs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "pending", pairs[0].State)

	rec = env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages/"+msg.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/threads/"+id+"/tool-pairs", nil, nil)
	decodeData(t, rec, &pairs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "resolved", pairs[0].State)
	assert.False(t, pairs[0].Success)
	assert.Equal(t, "no result received", pairs[0].Output)
}

func TestMessageMutationBroadcastsPairs(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := env.router.Subscribe(ctx, event.SubscribeOptions{
		EventTypes: []string{event.EventTypePairsUpdated},
		ThreadID:   id,
	})

	rec := env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"role":     "assistant",
		"content":  `{"tool_calls":[{"id":"tu_1","function":{"name":"web_search","arguments":"{}"}}]}`,
		"complete": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case evt := <-ch:
		payload, ok := evt.Payload.(*event.PairsUpdatedPayload)
		require.True(t, ok)
		assert.Equal(t, id, payload.ThreadID)
		require.Len(t, payload.Pairs, 1)
		assert.Equal(t, "tu_1", payload.Pairs[0].Call.ID)
	case <-time.After(time.Second):
		t.Fatal("no pairs.updated event received")
	}
}

func TestMessageMutationPublishesReconcileToBus(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "run")

	reconciled := make(chan event.ThreadReconciledEvent, 4)
	sub := event.Subscribe(env.bus, func(_ context.Context, e event.ThreadReconciledEvent) {
		reconciled <- e
	}, nil)
	defer sub.Unsubscribe()

	rec := env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"role":     "assistant",
		"content":  `{"tool_calls":[{"id":"tu_1","function":{"name":"web_search","arguments":"{}"}}]}`,
		"complete": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case e := <-reconciled:
		assert.Equal(t, id, e.ThreadID)
		assert.Equal(t, 1, e.Pairs)
		assert.Equal(t, 1, e.Resolved)
		assert.Equal(t, 0, e.Pending)
	case <-time.After(time.Second):
		t.Fatal("no reconcile event reached the bus")
	}
}

func TestUnknownThreadRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/v1/threads/missing",
		"/v1/threads/missing/messages",
		"/v1/threads/missing/tool-pairs",
	} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := env.do(t, http.MethodPost, "/v1/threads/missing/messages", map[string]any{
		"role": "user", "content": "hi",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.createThread(t, "run")

	rec := env.do(t, http.MethodPost, "/v1/threads/"+id+"/messages", map[string]any{
		"content": "missing role",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
