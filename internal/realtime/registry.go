// internal/realtime/registry.go
package realtime

import (
	"fmt"
	"sync"

	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"
)

// Handler receives one event. A panicking handler is recovered and logged;
// it stays registered.
type Handler func(Event)

type registration struct {
	id      uint64
	handler Handler
}

// Registry is the in-process event bus. Handlers are invoked synchronously
// by Emit, outside the registry lock, so a handler may subscribe or
// unsubscribe without deadlocking.
type Registry struct {
	logger logger.Logger

	mu        sync.RWMutex
	listeners map[EventType][]registration
	nextID    uint64
	last      *Event
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		logger:    logger.ForComponent(log, "realtime.registry"),
		listeners: make(map[EventType][]registration),
	}
}

// Subscribe appends h to the listeners of eventType. The returned func removes
// exactly this registration; calling it again does nothing.
func (r *Registry) Subscribe(eventType EventType, h Handler) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[eventType] = append(r.listeners[eventType], registration{id: id, handler: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(eventType, id) })
	}
}

func (r *Registry) remove(eventType EventType, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.listeners[eventType]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		kept := make([]registration, 0, len(regs)-1)
		kept = append(kept, regs[:i]...)
		kept = append(kept, regs[i+1:]...)
		if len(kept) == 0 {
			delete(r.listeners, eventType)
		} else {
			r.listeners[eventType] = kept
		}
		return
	}
}

// Emit records e as the last event and invokes the listeners for e.Type in
// registration order, then the wildcard listeners.
func (r *Registry) Emit(e Event) {
	r.mu.Lock()
	last := e
	r.last = &last
	typed := r.listeners[e.Type]
	var wildcard []registration
	if e.Type != All {
		wildcard = r.listeners[All]
	}
	r.mu.Unlock()

	metrics.RealtimeEventsEmitted.WithLabelValues(string(e.Type)).Inc()

	// Slices are never mutated in place by remove, so the snapshots are stable.
	for _, reg := range typed {
		r.invoke(reg, e)
	}
	for _, reg := range wildcard {
		r.invoke(reg, e)
	}
}

func (r *Registry) invoke(reg registration, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RealtimeListenerFailures.WithLabelValues(string(e.Type)).Inc()
			r.logger.Error("realtime listener failed", map[string]interface{}{
				"eventType":  string(e.Type),
				"eventId":    e.ID,
				"listenerId": reg.id,
				"panic":      fmt.Sprint(rec),
			})
		}
	}()
	reg.handler(e)
}

// LastEvent returns the most recently emitted event. It is informational
// only and never replayed to late subscribers.
func (r *Registry) LastEvent() (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Event{}, false
	}
	return *r.last, true
}

// ListenerCount returns the number of registrations for eventType.
func (r *Registry) ListenerCount(eventType EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[eventType])
}

// HasType reports whether any listener is registered under eventType.
func (r *Registry) HasType(eventType EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[eventType]
	return ok
}

// SubscribeMany registers h under each type and returns one func removing
// all of those registrations.
func (r *Registry) SubscribeMany(types []EventType, h Handler) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, r.Subscribe(t, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// SubscribeProperty follows listing activity.
func (r *Registry) SubscribeProperty(h Handler) (unsubscribe func()) {
	return r.SubscribeMany(PropertyTypes, h)
}

// SubscribeMessaging follows message, typing and presence events.
func (r *Registry) SubscribeMessaging(h Handler) (unsubscribe func()) {
	return r.SubscribeMany(MessagingTypes, h)
}
