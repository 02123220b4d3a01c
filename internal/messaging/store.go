// internal/messaging/store.go
package messaging

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/realtime"
	"marketplace-console/internal/session"

	"github.com/google/uuid"
)

// API is the REST collaborator. restclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
	Delete(ctx context.Context, path string, out interface{}) error
}

type CurrentUser interface {
	Current() *session.User
}

const (
	conversationsKey = "conversations"
	messagesKeyPref  = "messages:"
)

// Store is the in-memory conversation view. Sends, reads and deletes are
// applied optimistically and rolled back on failure; realtime events are
// merged by message id.
type Store struct {
	api      API
	users    CurrentUser
	notifier toast.Notifier
	reporter *errors.Reporter
	logger   logger.Logger
	fetches  *latestOnly
	now      func() time.Time

	mu            sync.RWMutex
	conversations []Conversation
	messages      map[string][]Message
	active        string
}

func NewStore(api API, users CurrentUser, notifier toast.Notifier, log logger.Logger) *Store {
	log = logger.ForComponent(log, "messaging")
	if notifier == nil {
		notifier = toast.NewLogNotifier(log)
	}
	return &Store{
		api:      api,
		users:    users,
		notifier: notifier,
		reporter: errors.NewReporter(log, notifier),
		logger:   log,
		fetches:  newLatestOnly(),
		now:      time.Now,
		messages: make(map[string][]Message),
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) currentUserID() string {
	if s.users == nil {
		return ""
	}
	if u := s.users.Current(); u != nil {
		return u.ID
	}
	return ""
}

// SetActive marks the conversation being viewed; its incoming messages do
// not raise the unread count.
func (s *Store) SetActive(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = convID
}

// Conversations returns a copy of the list: pinned first, then by recency.
// Archived conversations are included; callers filter as needed.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	out := make([]Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.clone()
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Messages returns a copy of the loaded messages of convID in list order.
func (s *Store) Messages(convID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[convID]
	out := make([]Message, len(list))
	for i, m := range list {
		out[i] = m.clone()
	}
	return out
}

// LoadConversations replaces the conversation list. A newer call supersedes
// an in-flight one.
func (s *Store) LoadConversations(ctx context.Context) ([]Conversation, error) {
	ctx, gen, finish := s.fetches.begin(ctx, conversationsKey)
	defer finish()

	var raw json.RawMessage
	if err := s.api.Get(ctx, "/messages/conversations", &raw); err != nil {
		return nil, s.fetchFailed(ctx, conversationsKey, gen, "load conversations", err)
	}
	list, err := decodeConversations(raw)
	if err != nil {
		return nil, s.fetchFailed(ctx, conversationsKey, gen, "load conversations", errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error()))
	}

	applied := s.fetches.apply(conversationsKey, gen, func() {
		s.mu.Lock()
		s.conversations = list
		s.mu.Unlock()
	})
	if !applied {
		return nil, ErrSuperseded
	}
	return s.Conversations(), nil
}

// LoadMessages replaces the messages of convID. Starting a second load for
// the same conversation cancels the first, and a stale response is never
// applied even if it arrives last.
func (s *Store) LoadMessages(ctx context.Context, convID string) ([]Message, error) {
	key := messagesKeyPref + convID
	ctx, gen, finish := s.fetches.begin(ctx, key)
	defer finish()

	var raw json.RawMessage
	if err := s.api.Get(ctx, "/messages/conversations/"+url.PathEscape(convID), &raw); err != nil {
		return nil, s.fetchFailed(ctx, key, gen, "load messages", err)
	}
	list, err := decodeMessages(raw)
	if err != nil {
		return nil, s.fetchFailed(ctx, key, gen, "load messages", errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error()))
	}

	applied := s.fetches.apply(key, gen, func() {
		s.mu.Lock()
		pending := pendingOf(s.messages[convID])
		s.messages[convID] = mergePending(list, pending)
		s.mu.Unlock()
	})
	if !applied {
		return nil, ErrSuperseded
	}
	return s.Messages(convID), nil
}

// fetchFailed separates supersession, which is silent, from real failures,
// including undecodable responses.
func (s *Store) fetchFailed(ctx context.Context, key string, gen uint64, op string, err error) error {
	if !s.fetches.apply(key, gen, func() {}) {
		s.logger.Debug("fetch superseded", map[string]interface{}{"resource": key})
		return ErrSuperseded
	}
	return s.reporter.Report(ctx, op, err)
}

func pendingOf(list []Message) []Message {
	var out []Message
	for _, m := range list {
		if m.Pending {
			out = append(out, m)
		}
	}
	return out
}

// mergePending keeps optimistic messages still in flight after a reload.
func mergePending(list, pending []Message) []Message {
	if len(pending) == 0 {
		return list
	}
	return append(list, pending...)
}

// SendMessage appends a temporary message at once, then swaps it for the
// server's copy in the same position. On failure the temporary entry is
// removed and the error reported; nothing is retried.
func (s *Store) SendMessage(ctx context.Context, convID, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, s.reporter.Report(ctx, "send message", errors.NewValidationError("message", "Message cannot be empty"))
	}

	temp := Message{
		ID:             TempIDPrefix + uuid.NewString(),
		ConversationID: convID,
		SenderID:       s.currentUserID(),
		Message:        text,
		CreatedAt:      s.now(),
		Pending:        true,
	}
	s.mu.Lock()
	s.messages[convID] = append(s.messages[convID], temp)
	s.mu.Unlock()

	var raw json.RawMessage
	err := s.api.Post(ctx, "/messages/send", sendRequest{ConversationID: convID, Message: text}, &raw)
	var sent Message
	if err == nil {
		sent, err = decodeMessage(raw)
		if err == nil && sent.ID == "" {
			err = stderrors.New("server returned a message without id")
		}
		if err != nil {
			err = errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error())
		}
	}

	if err != nil {
		s.mu.Lock()
		s.messages[convID] = removeByID(s.messages[convID], temp.ID)
		s.mu.Unlock()
		metrics.OptimisticSends.WithLabelValues("failed").Inc()
		return nil, s.reporter.Report(ctx, "send message", err)
	}

	if sent.ConversationID == "" {
		sent.ConversationID = convID
	}
	s.mu.Lock()
	list := s.messages[convID]
	if indexOf(list, sent.ID) >= 0 {
		// The realtime copy arrived first.
		s.messages[convID] = removeByID(list, temp.ID)
	} else if i := indexOf(list, temp.ID); i >= 0 {
		list[i] = sent
	} else {
		s.messages[convID] = append(list, sent)
	}
	s.touchConversation(convID, sent, false)
	s.mu.Unlock()

	metrics.OptimisticSends.WithLabelValues("confirmed").Inc()
	return &sent, nil
}

// MarkRead zeroes the unread count immediately and restores it if the
// server call fails.
func (s *Store) MarkRead(ctx context.Context, convID string) error {
	s.mu.Lock()
	i := s.conversationIndex(convID)
	prev := 0
	if i >= 0 {
		prev = s.conversations[i].UnreadCount
		s.conversations[i].UnreadCount = 0
	}
	s.mu.Unlock()

	if err := s.api.Put(ctx, "/messages/conversations/"+url.PathEscape(convID)+"/read", nil, nil); err != nil {
		s.mu.Lock()
		if j := s.conversationIndex(convID); j >= 0 {
			s.conversations[j].UnreadCount = prev
		}
		s.mu.Unlock()
		return s.reporter.Report(ctx, "mark read", err)
	}
	return nil
}

// DeleteMessage removes the message at once and puts it back in place if the
// server refuses. Messages still being sent cannot be deleted.
func (s *Store) DeleteMessage(ctx context.Context, msgID string) error {
	if IsTempID(msgID) {
		return s.reporter.Report(ctx, "delete message", errors.NewValidationError("messageId", "Message is still sending"))
	}

	s.mu.Lock()
	convID, idx := s.locate(msgID)
	var removed Message
	if idx >= 0 {
		removed = s.messages[convID][idx]
		s.messages[convID] = removeByID(s.messages[convID], msgID)
	}
	s.mu.Unlock()

	if err := s.api.Delete(ctx, "/messages/"+url.PathEscape(msgID), nil); err != nil {
		if idx >= 0 {
			s.mu.Lock()
			list := s.messages[convID]
			if indexOf(list, msgID) < 0 {
				at := idx
				if at > len(list) {
					at = len(list)
				}
				list = append(list, Message{})
				copy(list[at+1:], list[at:])
				list[at] = removed
				s.messages[convID] = list
			}
			s.mu.Unlock()
		}
		return s.reporter.Report(ctx, "delete message", err)
	}
	return nil
}

// EditMessage changes the text locally. The backend has no edit endpoint,
// so the change is not persisted.
func (s *Store) EditMessage(msgID, text string) error {
	s.mu.Lock()
	convID, idx := s.locate(msgID)
	if idx < 0 {
		s.mu.Unlock()
		return s.reporter.Report(context.Background(), "edit message", errors.ErrNotFound)
	}
	now := s.now()
	s.messages[convID][idx].Message = text
	s.messages[convID][idx].EditedAt = &now
	s.mu.Unlock()
	s.localOnly("edit message", map[string]interface{}{"messageId": msgID})
	return nil
}

// ArchiveConversation, PinConversation and MuteConversation are local only.
func (s *Store) ArchiveConversation(convID string, archived bool) error {
	return s.patchConversation("archive conversation", convID, func(c *Conversation) { c.IsArchived = archived })
}

func (s *Store) PinConversation(convID string, pinned bool) error {
	return s.patchConversation("pin conversation", convID, func(c *Conversation) { c.IsPinned = pinned })
}

func (s *Store) MuteConversation(convID string, muted bool) error {
	return s.patchConversation("mute conversation", convID, func(c *Conversation) { c.IsMuted = muted })
}

func (s *Store) patchConversation(op, convID string, fn func(*Conversation)) error {
	s.mu.Lock()
	i := s.conversationIndex(convID)
	if i < 0 {
		s.mu.Unlock()
		return s.reporter.Report(context.Background(), op, errors.ErrNotFound)
	}
	fn(&s.conversations[i])
	s.mu.Unlock()
	s.localOnly(op, map[string]interface{}{"conversationId": convID})
	return nil
}

func (s *Store) localOnly(op string, fields map[string]interface{}) {
	notImpl := errors.NewNotImplementedError(op)
	fields["operation"] = op
	fields["errorCode"] = string(notImpl.Code)
	s.logger.Warn(notImpl.Message, fields)
}

// HandleEvent merges a realtime message event. Merging is idempotent by id.
func (s *Store) HandleEvent(e realtime.Event) {
	switch e.Type {
	case realtime.NewMessage:
		var m Message
		if !s.decode(e, &m) || m.ID == "" || m.ConversationID == "" {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		list, loaded := s.messages[m.ConversationID]
		if indexOf(list, m.ID) >= 0 {
			return
		}
		if loaded {
			s.messages[m.ConversationID] = append(list, m)
		}
		incoming := m.SenderID != s.currentUserID() && m.ConversationID != s.active
		s.touchConversation(m.ConversationID, m, incoming)

	case realtime.MessageUpdated:
		var m Message
		if !s.decode(e, &m) || m.ID == "" {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		convID, idx := s.locate(m.ID)
		if idx < 0 {
			return
		}
		cur := &s.messages[convID][idx]
		cur.Message = m.Message
		if m.EditedAt != nil {
			cur.EditedAt = m.EditedAt
		} else {
			now := s.now()
			cur.EditedAt = &now
		}
		if ci := s.conversationIndex(convID); ci >= 0 {
			if last := s.conversations[ci].LastMessage; last != nil && last.ID == m.ID {
				last.Message = cur.Message
			}
		}

	case realtime.MessageDeleted:
		var p deletedPayload
		if !s.decode(e, &p) || p.ID == "" {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		convID, idx := s.locate(p.ID)
		if idx < 0 {
			return
		}
		s.messages[convID] = removeByID(s.messages[convID], p.ID)
		if ci := s.conversationIndex(convID); ci >= 0 {
			if last := s.conversations[ci].LastMessage; last != nil && last.ID == p.ID {
				s.conversations[ci].LastMessage = lastConfirmed(s.messages[convID])
			}
		}

	case realtime.MessageRead:
		var p readPayload
		if !s.decode(e, &p) || p.ConversationID == "" {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if p.UserID == "" || p.UserID == s.currentUserID() {
			if ci := s.conversationIndex(p.ConversationID); ci >= 0 {
				s.conversations[ci].UnreadCount = 0
			}
			return
		}
		list := s.messages[p.ConversationID]
		for i := range list {
			if !contains(list[i].ReadBy, p.UserID) {
				list[i].ReadBy = append(list[i].ReadBy, p.UserID)
			}
		}
	}
}

func (s *Store) decode(e realtime.Event, v interface{}) bool {
	if err := e.Decode(v); err != nil {
		s.logger.Warn("ignoring undecodable message event", map[string]interface{}{
			"eventType": string(e.Type),
			"eventId":   e.ID,
			"error":     err.Error(),
		})
		return false
	}
	return true
}

// Attach subscribes the store to message events on r.
func (s *Store) Attach(r *realtime.Registry) (unsubscribe func()) {
	return r.SubscribeMany([]realtime.EventType{
		realtime.NewMessage,
		realtime.MessageUpdated,
		realtime.MessageDeleted,
		realtime.MessageRead,
	}, s.HandleEvent)
}

// Poll reloads conversations every interval until ctx ends. Failures are
// reported and polling continues.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.LoadConversations(ctx); err != nil && ctx.Err() == nil {
				s.logger.Debug("conversation poll failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// touchConversation must be called with s.mu held.
func (s *Store) touchConversation(convID string, m Message, incoming bool) {
	i := s.conversationIndex(convID)
	if i < 0 {
		return
	}
	last := m.clone()
	c := &s.conversations[i]
	c.LastMessage = &last
	if m.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = m.CreatedAt
	}
	if incoming {
		c.UnreadCount++
	}
}

func (s *Store) conversationIndex(convID string) int {
	for i, c := range s.conversations {
		if c.ID == convID {
			return i
		}
	}
	return -1
}

func (s *Store) locate(msgID string) (string, int) {
	for convID, list := range s.messages {
		if i := indexOf(list, msgID); i >= 0 {
			return convID, i
		}
	}
	return "", -1
}

func indexOf(list []Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func removeByID(list []Message, id string) []Message {
	i := indexOf(list, id)
	if i < 0 {
		return list
	}
	out := make([]Message, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func lastConfirmed(list []Message) *Message {
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Pending {
			m := list[i].clone()
			return &m
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
