package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultChannelBufferSize is the default buffer size for subscriber channels.
	DefaultChannelBufferSize = 100
)

// StreamEvent is the domain event type used by the EventRouter.
// It carries the event metadata and payload for fan-out to stream consumers
// such as websocket sessions.
type StreamEvent struct {
	// Type is the event type string (e.g., "thread.created", "message.created", "pairs.updated").
	Type string

	// Action is the action that occurred (created, updated, deleted, or empty for non-CRUD events).
	Action string

	// Timestamp is when the change occurred.
	Timestamp time.Time

	// ThreadID is the optional thread scope for filtering. Empty for events
	// that are not tied to a single thread.
	ThreadID string

	// Payload is the domain payload (e.g., *MessageEventPayload, *PairsUpdatedPayload).
	Payload any
}

// SubscribeOptions configures event subscription filtering.
type SubscribeOptions struct {
	// EventTypes specifies which event types to receive using glob patterns.
	// Supports: "*" (all), "entity.*" (e.g., "thread.*"), "*.action" (e.g., "*.created"), or exact match.
	// Empty slice subscribes to all events.
	// Note: internal.* events are filtered out unless Internal is set to true.
	EventTypes []string

	// ThreadID filters events to only those scoped to a specific thread.
	ThreadID string

	// Internal allows subscribing to internal.* events.
	// This should only be set by internal components, not external API consumers.
	Internal bool
}

// eventSubscription represents an active event subscription.
type eventSubscription struct {
	id         uuid.UUID
	patterns   []string
	threadID   string
	channel    chan *StreamEvent
	cancelFunc context.CancelFunc
}

// EventRouter manages event subscriptions and distribution.
type EventRouter struct {
	subscriptions map[uuid.UUID]*eventSubscription
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
}

// NewEventRouter creates a new EventRouter with the specified channel buffer size.
func NewEventRouter(bufferSize int) *EventRouter {
	if bufferSize <= 0 {
		bufferSize = DefaultChannelBufferSize
	}
	return &EventRouter{
		subscriptions: make(map[uuid.UUID]*eventSubscription),
		bufferSize:    bufferSize,
	}
}

// Subscribe creates a new subscription with pattern matching and returns a channel
// for receiving events. Call the returned cancel function to unsubscribe and close
// the channel. The channel is also closed if ctx is cancelled.
func (r *EventRouter) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *StreamEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan *StreamEvent)
		close(ch)
		return ch, func() {}
	}

	// Parse patterns, filtering out internal event patterns for external consumers
	patterns := opts.EventTypes
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	if !opts.Internal {
		patterns = filterInternalPatterns(patterns)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan *StreamEvent, r.bufferSize)

	sub := &eventSubscription{
		id:         uuid.New(),
		patterns:   patterns,
		threadID:   opts.ThreadID,
		channel:    ch,
		cancelFunc: cancel,
	}

	r.subscriptions[sub.id] = sub

	// Cleanup goroutine
	go func() {
		<-subCtx.Done()
		r.unsubscribe(sub.id)
	}()

	return ch, cancel
}

// unsubscribe removes a subscription and closes its channel.
func (r *EventRouter) unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscriptions[id]; ok {
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

// Publish sends an event to all matching subscribers.
// Events are delivered non-blocking; if a subscriber's channel is full, the event is dropped.
func (r *EventRouter) Publish(event *StreamEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	for _, sub := range r.subscriptions {
		if r.matches(sub, event) {
			select {
			case sub.channel <- event:
				// Delivered
			default:
				// Channel full, drop event
				slog.Debug("dropped event due to full channel buffer",
					"event_type", event.Type,
					"subscription_id", sub.id,
				)
			}
		}
	}
}

// matches checks if an event matches a subscription's filters.
func (r *EventRouter) matches(sub *eventSubscription, event *StreamEvent) bool {
	// Check thread scope filter
	if sub.threadID != "" {
		if event.ThreadID == "" || event.ThreadID != sub.threadID {
			return false
		}
	}

	// Check pattern filter
	for _, pattern := range sub.patterns {
		if matchPattern(pattern, event.Type) {
			return true
		}
	}

	return false
}

// internalEventPrefix is the prefix for internal coordination events.
const internalEventPrefix = "internal."

// filterInternalPatterns removes patterns that would match internal events.
func filterInternalPatterns(patterns []string) []string {
	filtered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !strings.HasPrefix(p, internalEventPrefix) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// isInternalEvent checks if an event type is an internal event.
func isInternalEvent(eventType string) bool {
	return strings.HasPrefix(eventType, internalEventPrefix)
}

// matchPattern checks if an event type matches a glob pattern.
// Supported patterns:
//   - "*" matches all event types (except internal.* events)
//   - "entity.*" matches all events for that entity (e.g., "thread.*" matches "thread.created")
//   - "*.action" matches that action across all entities (e.g., "*.created" matches "thread.created")
//   - Exact strings match exactly (e.g., "pairs.updated")
//
// Note: Internal events (internal.*) are only matched by explicit internal.* patterns,
// never by wildcards. This prevents external consumers from accidentally receiving internal events.
func matchPattern(pattern, eventType string) bool {
	// Internal events require explicit internal.* patterns to match
	if isInternalEvent(eventType) && !strings.HasPrefix(pattern, internalEventPrefix) {
		return false
	}

	if pattern == "*" {
		return true
	}

	if pattern == eventType {
		return true
	}

	// Split pattern and event type
	patternParts := strings.SplitN(pattern, ".", 2)
	eventParts := strings.SplitN(eventType, ".", 2)

	if len(patternParts) != 2 || len(eventParts) != 2 {
		return false
	}

	patternEntity, patternAction := patternParts[0], patternParts[1]
	eventEntity, eventAction := eventParts[0], eventParts[1]

	// "entity.*" pattern
	if patternAction == "*" && patternEntity == eventEntity {
		return true
	}

	// "*.action" pattern
	if patternEntity == "*" && patternAction == eventAction {
		return true
	}

	return false
}

// Close shuts down the router and closes all subscription channels.
func (r *EventRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true

	for id, sub := range r.subscriptions {
		sub.cancelFunc()
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

// SubscriptionCount returns the number of active subscriptions.
// Useful for testing and debugging.
func (r *EventRouter) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}
