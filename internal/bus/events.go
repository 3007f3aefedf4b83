// Package bus provides a small topic-based publish/subscribe system for
// internal inbox events. Metrics and the urgent-message notifier observe
// the sync engine through it without being wired into the engine directly.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is a single inbox occurrence.
type Event struct {
	Type      string         // e.g. "message.merged", "feed.status"
	Source    string         // originating component
	Payload   map[string]any // event-specific data
	Timestamp time.Time
}

// Handler is a callback for events.
type Handler func(Event)

// Well-known event types.
const (
	EventMessageMerged    = "message.merged"
	EventDuplicateDropped = "duplicate.dropped"
	EventFeedStatus       = "feed.status"
	EventMutationRollback = "mutation.rollback"
	EventRefreshFailed    = "refresh.failed"
	EventPersistError     = "persist.error"
)

type namedHandler struct {
	id      string
	handler Handler
}

// Bus dispatches events synchronously to subscribed handlers. A handler
// panic is recovered and logged so one bad observer cannot take down the
// sync loop.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	nextID   uint64
	logger   *slog.Logger
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]namedHandler),
		logger:   logger,
	}
}

// On registers a handler for the given event type. Use "*" to listen to
// all events. Returns the handler ID for Off.
func (b *Bus) On(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Monotonic counter: an ID is never reused, even after Off.
	b.nextID++
	id := fmt.Sprintf("%s-%d", eventType, b.nextID)
	b.handlers[eventType] = append(b.handlers[eventType], namedHandler{id: id, handler: handler})
	return id
}

// Off removes a handler by its ID.
func (b *Bus) Off(eventType, handlerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h.id == handlerID {
			b.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit publishes an event to matching and wildcard handlers, in
// registration order.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]namedHandler, 0, len(b.handlers[event.Type])+len(b.handlers["*"]))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func(nh namedHandler) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", "event", event.Type, "handler", nh.id, "panic", r)
				}
			}()
			nh.handler(event)
		}(h)
	}
}
