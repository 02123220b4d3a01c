// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"
	"marketplace-console/internal/session"
)

// SessionWatcher is the part of session.Session the hub follows.
type SessionWatcher interface {
	Current() *session.User
	OnChange(fn func(*session.User)) (unsubscribe func())
}

// Hub binds a session, an event source and the registry: the source is
// connected exactly while a user is signed in, and everything it delivers is
// emitted on the registry.
type Hub struct {
	session  SessionWatcher
	source   EventSource
	registry *Registry
	logger   logger.Logger

	signal chan struct{}

	mu        sync.Mutex
	wantUser  bool
	connected bool
	running   bool
}

func NewHub(sess SessionWatcher, source EventSource, registry *Registry, log logger.Logger) *Hub {
	return &Hub{
		session:  sess,
		source:   source,
		registry: registry,
		logger:   logger.ForComponent(log, "realtime.hub"),
		signal:   make(chan struct{}, 1),
	}
}

// Registry returns the registry events are emitted on.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connected is true while a session user exists and the source was started.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Run follows the session until ctx is cancelled, then disconnects.
// Session changes are reconciled on this goroutine so a listener may log the
// user out without deadlocking the source.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.NewValidationError("hub", "hub is already running")
	}
	h.running = true
	h.mu.Unlock()

	h.source.OnEvent(h.registry.Emit)
	unsubscribe := h.session.OnChange(func(u *session.User) {
		h.mu.Lock()
		h.wantUser = u != nil
		h.mu.Unlock()
		select {
		case h.signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	current := h.session.Current() != nil
	h.mu.Lock()
	h.wantUser = current
	h.mu.Unlock()

	h.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			h.setDisconnected()
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return nil
		case <-h.signal:
			h.reconcile(ctx)
		}
	}
}

func (h *Hub) reconcile(ctx context.Context) {
	h.mu.Lock()
	want, have := h.wantUser, h.connected
	h.mu.Unlock()

	switch {
	case want && !have:
		if err := h.source.Connect(ctx); err != nil {
			h.logger.Error("realtime source failed to connect", map[string]interface{}{
				"error": err.Error(),
			})
		}
		h.mu.Lock()
		h.connected = true
		h.mu.Unlock()
		metrics.RealtimeConnected.Set(1)
		h.logger.Info("realtime connected", nil)
	case !want && have:
		h.setDisconnected()
	}
}

func (h *Hub) setDisconnected() {
	h.mu.Lock()
	have := h.connected
	h.connected = false
	h.mu.Unlock()
	if !have {
		return
	}
	if err := h.source.Disconnect(); err != nil {
		h.logger.Warn("realtime source disconnect failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	metrics.RealtimeConnected.Set(0)
	h.logger.Info("realtime disconnected", nil)
}
