package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/corvid/threadview/backend/api/conv"
	"github.com/corvid/threadview/backend/event"
)

const handshakeWait = 10 * time.Second

// pendingPermission tracks a command awaiting a user decision.
type pendingPermission struct {
	sessionID   string
	commandID   string
	commandText string
	requestedAt time.Time
}

// Bridge accepts websocket sessions, runs the permission flow for commands,
// and forwards stream events to subscribed clients.
type Bridge struct {
	router   *event.EventRouter
	bus      *event.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]pendingPermission
}

type Option func(*Bridge)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

func WithBus(bus *event.Bus) Option {
	return func(b *Bridge) { b.bus = bus }
}

func New(router *event.EventRouter, opts ...Option) *Bridge {
	b := &Bridge{
		router: router,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
		pending:  make(map[string]pendingPermission),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ServeHTTP upgrades the connection and runs the session to completion.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	go b.serve(conn)
}

func (b *Bridge) serve(conn *websocket.Conn) {
	session, err := b.handshake(conn)
	if err != nil {
		b.logger.Info("handshake rejected", "error", err)
		conn.WriteJSON(errorEnvelope(err.Error()))
		conn.Close()
		return
	}

	b.register(session)
	defer b.cleanup(session)

	go session.writePump()
	session.Send(Envelope{
		Type:      TypeHandshake,
		Status:    StatusAcknowledged,
		SessionID: session.ID,
		Timestamp: time.Now().UTC(),
	})

	b.readLoop(session)
}

// handshake reads the first frame, which must identify the session and user.
func (b *Bridge) handshake(conn *websocket.Conn) (*Session, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, errHandshakeTimeout
	}
	if env.Type != TypeHandshake {
		return nil, errHandshakeFirst
	}
	if env.SessionID == "" || env.UserID == "" {
		return nil, errHandshakeIdentity
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return newSession(env.SessionID, env.UserID, conn), nil
}

func (b *Bridge) register(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A reconnect with the same session id replaces the old connection.
	if old, ok := b.sessions[s.ID]; ok {
		old.close()
	}
	b.sessions[s.ID] = s
	b.logger.Info("session connected", "session_id", s.ID, "user_id", s.UserID)
}

func (b *Bridge) cleanup(s *Session) {
	s.close()

	b.mu.Lock()
	if b.sessions[s.ID] == s {
		delete(b.sessions, s.ID)
	}
	for id, p := range b.pending {
		if p.sessionID == s.ID {
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	b.logger.Info("session disconnected", "session_id", s.ID)
}

// SessionCount reports the number of connected sessions.
func (b *Bridge) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Bridge) readLoop(s *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case TypeHeartbeat:
			s.touchHeartbeat()
			s.Send(Envelope{
				Type:      TypeHeartbeat,
				Status:    StatusPong,
				SessionID: s.ID,
				Timestamp: time.Now().UTC(),
			})

		case TypeSubscribe:
			b.subscribe(ctx, s, env)

		case TypeCommand:
			b.requestPermission(s, env)

		case TypePermissionGrant:
			b.decidePermission(s, env.PermissionID, true)

		case TypePermissionDeny:
			b.decidePermission(s, env.PermissionID, false)

		default:
			b.logger.Warn("unknown message type",
				"session_id", s.ID, "type", env.Type)
			s.Send(errorEnvelope("unknown message type: " + env.Type))
		}
	}
}

// subscribe attaches the session to the event router and forwards matching
// events until the session ends.
func (b *Bridge) subscribe(ctx context.Context, s *Session, env Envelope) {
	ch, _ := b.router.Subscribe(ctx, event.SubscribeOptions{
		EventTypes: env.EventTypes,
		ThreadID:   env.ThreadID,
	})

	go func() {
		for evt := range ch {
			s.Send(toEnvelope(evt))
		}
	}()

	s.Send(Envelope{
		Type:      TypeStatusChanged,
		Status:    StatusSubscribed,
		SessionID: s.ID,
		ThreadID:  env.ThreadID,
		Timestamp: time.Now().UTC(),
	})
}

// requestPermission holds the command and asks the client for a decision.
func (b *Bridge) requestPermission(s *Session, env Envelope) {
	commandID := env.CommandID
	if commandID == "" {
		commandID = uuid.NewString()
	}
	permissionID := uuid.NewString()

	b.mu.Lock()
	b.pending[permissionID] = pendingPermission{
		sessionID:   s.ID,
		commandID:   commandID,
		commandText: env.CommandText,
		requestedAt: time.Now().UTC(),
	}
	b.mu.Unlock()

	b.router.Publish(event.NewPermissionRequestedEvent(s.ID, permissionID, env.CommandText))

	s.Send(Envelope{
		Type:         TypePermissionReq,
		PermissionID: permissionID,
		CommandID:    commandID,
		CommandText:  env.CommandText,
		SessionID:    s.ID,
		Timestamp:    time.Now().UTC(),
	})
}

func (b *Bridge) decidePermission(s *Session, permissionID string, approved bool) {
	b.mu.Lock()
	p, ok := b.pending[permissionID]
	if ok {
		delete(b.pending, permissionID)
	}
	b.mu.Unlock()

	if !ok || p.sessionID != s.ID {
		s.Send(errorEnvelope("unknown permission id"))
		return
	}

	status := StatusDenied
	if approved {
		status = StatusApproved
		s.countExecution()
	}

	b.router.Publish(event.NewPermissionDecidedEvent(s.ID, permissionID, approved))
	if b.bus != nil {
		event.Publish(b.bus, event.PermissionDecisionEvent{
			SessionID: s.ID,
			RequestID: permissionID,
			Approved:  approved,
		})
	}

	s.Send(Envelope{
		Type:         TypeStatusChanged,
		Status:       status,
		PermissionID: permissionID,
		CommandID:    p.commandID,
		SessionID:    s.ID,
		Timestamp:    time.Now().UTC(),
	})
}

// toEnvelope maps a stream event onto the wire frame, converting known
// payloads to their public DTO shapes.
func toEnvelope(evt *event.StreamEvent) Envelope {
	env := Envelope{
		Type:      evt.Type,
		ThreadID:  evt.ThreadID,
		Timestamp: evt.Timestamp,
	}

	switch payload := evt.Payload.(type) {
	case *event.PairsUpdatedPayload:
		env.Payload = conv.ConvertPairs(payload.Pairs)
	case *event.MessageEventPayload:
		env.Payload = conv.ConvertMessage(payload.Message)
	case *event.ThreadEventPayload:
		env.Payload = conv.ConvertThread(payload.Thread)
	default:
		env.Payload = evt.Payload
	}
	return env
}
