package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second

	sendBufferSize = 64
)

// Session is one connected bridge client. Outbound traffic goes through the
// send channel so the write pump is the only writer on the connection.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	conn *websocket.Conn
	send chan Envelope
	done chan struct{}

	mu             sync.Mutex
	lastHeartbeat  time.Time
	executionCount int

	closeOnce sync.Once
}

func newSession(id, userID string, conn *websocket.Conn) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		conn:      conn,
		send:      make(chan Envelope, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// Send queues an envelope for delivery. A full buffer drops the message
// rather than blocking the caller.
func (s *Session) Send(env Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

func (s *Session) touchHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) countExecution() {
	s.mu.Lock()
	s.executionCount++
	s.mu.Unlock()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writePump serializes all writes and drives the protocol ping keepalive.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case env := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			s.Send(Envelope{
				Type:      TypeHeartbeat,
				Status:    StatusPing,
				SessionID: s.ID,
				Timestamp: time.Now().UTC(),
			})
		case <-s.done:
			return
		}
	}
}
