// Package events provides the synchronous in-process event bus.
package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives the payload passed to Emit
type Handler func(data any)

// Bus dispatches events to handlers registered per event type.
//
// Emit runs every handler on the caller's goroutine in registration order
// and returns after the last one. A panicking handler is not recovered:
// the panic propagates to the emitter and later handlers are skipped.
// Wrap a handler with SafeHandler to contain it.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates an empty bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// On appends handler to the list for eventType. Registering the same
// handler twice makes it run twice.
func (b *Bus) On(eventType EventType, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Emit synchronously delivers data to every handler of eventType
func (b *Bus) Emit(eventType EventType, data any) {
	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	b.log.Trace().
		Str("event_type", eventType.String()).
		Int("handlers", len(handlers)).
		Msg("Dispatching event")

	// The slice is append-only, so the snapshot stays valid while handlers run
	// even if one of them registers another handler.
	for _, h := range handlers {
		h(data)
	}
}

// HandlerCount returns how many handlers are registered for eventType
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// SafeHandler wraps h so that a panic inside it is logged instead of
// unwinding through Emit.
func SafeHandler(name string, h Handler, log zerolog.Logger) Handler {
	return func(data any) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("handler", name).
					Str("panic", fmt.Sprint(r)).
					Msg("Event handler panicked")
			}
		}()
		h(data)
	}
}
