// internal/messaging/typing.go
package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/realtime"
)

const DefaultTypingExpiry = 3 * time.Second

// Typing tracks typing indicators. Local state is a prediction only: the
// backend has no typing endpoint, so Send never leaves the process. Remote
// state follows typing_start and typing_stop events. Both expire on their own.
type Typing struct {
	expiry time.Duration
	logger logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	local  map[string]time.Time
	remote map[string]map[string]time.Time
}

func NewTyping(expiry time.Duration, log logger.Logger) *Typing {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &Typing{
		expiry: expiry,
		logger: logger.ForComponent(log, "messaging.typing"),
		now:    time.Now,
		local:  make(map[string]time.Time),
		remote: make(map[string]map[string]time.Time),
	}
}

func (t *Typing) WithClock(now func() time.Time) *Typing {
	t.now = now
	return t
}

// SetLocal marks the current user as typing in convID until the expiry.
func (t *Typing) SetLocal(convID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local[convID] = t.now().Add(t.expiry)
}

func (t *Typing) StopLocal(convID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.local, convID)
}

// IsLocalTyping reports whether the local flag is set and unexpired.
func (t *Typing) IsLocalTyping(convID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.local[convID]
	if !ok {
		return false
	}
	if !t.now().Before(until) {
		delete(t.local, convID)
		return false
	}
	return true
}

// Send would publish the local typing state. There is no server contract
// for it, so it only logs.
func (t *Typing) Send(_ context.Context, convID string, typing bool) error {
	if typing {
		t.SetLocal(convID)
	} else {
		t.StopLocal(convID)
	}
	t.logger.Debug("typing indicator not sent: no backend endpoint", map[string]interface{}{
		"conversationId": convID,
		"typing":         typing,
	})
	return nil
}

// HandleEvent applies typing_start and typing_stop events.
func (t *Typing) HandleEvent(e realtime.Event) {
	if e.Type != realtime.TypingStart && e.Type != realtime.TypingStop {
		return
	}
	var p readPayload
	if err := e.Decode(&p); err != nil || p.ConversationID == "" || p.UserID == "" {
		t.logger.Warn("ignoring malformed typing event", map[string]interface{}{"eventId": e.ID})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.remote[p.ConversationID]
	if e.Type == realtime.TypingStop {
		delete(users, p.UserID)
		if len(users) == 0 {
			delete(t.remote, p.ConversationID)
		}
		return
	}
	if users == nil {
		users = make(map[string]time.Time)
		t.remote[p.ConversationID] = users
	}
	users[p.UserID] = t.now().Add(t.expiry)
}

// TypingUsers lists users currently typing in convID, sorted.
func (t *Typing) TypingUsers(convID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []string
	for user, until := range t.remote[convID] {
		if now.Before(until) {
			out = append(out, user)
		} else {
			delete(t.remote[convID], user)
		}
	}
	if len(t.remote[convID]) == 0 {
		delete(t.remote, convID)
	}
	sort.Strings(out)
	return out
}

// Attach subscribes to typing events on r.
func (t *Typing) Attach(r *realtime.Registry) (unsubscribe func()) {
	return r.SubscribeMany([]realtime.EventType{realtime.TypingStart, realtime.TypingStop}, t.HandleEvent)
}
