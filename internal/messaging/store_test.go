// internal/messaging/store_test.go
package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/realtime"
	"marketplace-console/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type getReply struct {
	body    string
	err     error
	entered chan struct{}
	release chan struct{}
	ctx     context.Context
}

// fakeAPI serves queued GET replies per path and delegates writes to hooks.
type fakeAPI struct {
	mu      sync.Mutex
	gets    map[string][]*getReply
	post    func(path string, body interface{}) (string, error)
	putErr  error
	delErr  error
	puts    []string
	deletes []string
	posts   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{gets: make(map[string][]*getReply)}
}

func (f *fakeAPI) queue(path string, r *getReply) *getReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[path] = append(f.gets[path], r)
	return r
}

func (f *fakeAPI) Get(ctx context.Context, path string, out interface{}) error {
	f.mu.Lock()
	queue := f.gets[path]
	if len(queue) == 0 {
		f.mu.Unlock()
		return errors.NewAPIError(404, "no reply queued for "+path, "")
	}
	r := queue[0]
	f.gets[path] = queue[1:]
	r.ctx = ctx
	f.mu.Unlock()

	if r.entered != nil {
		close(r.entered)
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return r.err
	}
	return json.Unmarshal([]byte(r.body), out)
}

func (f *fakeAPI) Post(ctx context.Context, path string, body, out interface{}) error {
	f.mu.Lock()
	f.posts++
	hook := f.post
	f.mu.Unlock()
	if hook == nil {
		return errors.NewAPIError(500, "no post hook", "")
	}
	reply, err := hook(path, body)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(reply), out)
}

func (f *fakeAPI) Put(ctx context.Context, path string, body, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, path)
	return f.putErr
}

func (f *fakeAPI) Delete(ctx context.Context, path string, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path)
	return f.delErr
}

type staticUser struct{ user *session.User }

func (s staticUser) Current() *session.User { return s.user }

var (
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	me      = &session.User{ID: "admin-1", Name: "Asha", Role: session.RoleAdmin}
)

const (
	conversationsBody = `[
		{"_id":"c1","participants":["admin-1","v-1"],"unreadCount":2,"updatedAt":"2024-05-01T10:00:00Z"},
		{"_id":"c2","participants":["admin-1","v-2"],"unreadCount":0,"updatedAt":"2024-05-01T11:00:00Z"}
	]`
	messagesBody = `{"messages":[
		{"_id":"m1","conversationId":"c1","senderId":"v-1","message":"hi","createdAt":"2024-05-01T09:00:00Z"},
		{"_id":"m2","conversationId":"c1","senderId":"admin-1","message":"hello","createdAt":"2024-05-01T09:01:00Z"},
		{"_id":"m3","conversationId":"c1","sender":{"_id":"v-1","name":"Vik"},"message":"thanks","createdAt":"2024-05-01T09:02:00Z"}
	]}`
)

func createTestStore(t *testing.T, api *fakeAPI) (*Store, *toast.Recorder) {
	t.Helper()
	rec := toast.NewRecorder()
	s := NewStore(api, staticUser{me}, rec, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return testNow })
	return s, rec
}

func loadedStore(t *testing.T, api *fakeAPI) (*Store, *toast.Recorder) {
	t.Helper()
	s, rec := createTestStore(t, api)
	api.queue("/messages/conversations", &getReply{body: conversationsBody})
	api.queue("/messages/conversations/c1", &getReply{body: messagesBody})
	_, err := s.LoadConversations(context.Background())
	require.NoError(t, err)
	_, err = s.LoadMessages(context.Background(), "c1")
	require.NoError(t, err)
	return s, rec
}

func ids(list []Message) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

func emit(t *testing.T, r *realtime.Registry, typ realtime.EventType, data interface{}) {
	t.Helper()
	e, err := realtime.NewEvent(typ, data, testNow)
	require.NoError(t, err)
	r.Emit(e)
}

func TestSendMessage_TempEntryReplacedByServerCopy(t *testing.T) {
	api := newFakeAPI()
	s, rec := createTestStore(t, api)

	var inFlight []Message
	api.post = func(path string, body interface{}) (string, error) {
		assert.Equal(t, "/messages/send", path)
		assert.Equal(t, sendRequest{ConversationID: "c9", Message: "hello"}, body)
		inFlight = s.Messages("c9")
		return `{"message":{"_id":"m1","conversationId":"c9","senderId":"admin-1","message":"hello","createdAt":"2024-05-01T12:00:01Z"}}`, nil
	}

	sent, err := s.SendMessage(context.Background(), "c9", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m1", sent.ID)

	require.Len(t, inFlight, 1)
	assert.True(t, IsTempID(inFlight[0].ID))
	assert.True(t, inFlight[0].Pending)
	assert.Equal(t, "hello", inFlight[0].Message)
	assert.Equal(t, "admin-1", inFlight[0].SenderID)

	after := s.Messages("c9")
	require.Len(t, after, 1)
	assert.Equal(t, "m1", after[0].ID)
	assert.False(t, after[0].Pending)
	assert.Empty(t, rec.Errors())
}

func TestSendMessage_KeepsPositionAmongExisting(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)
	api.post = func(string, interface{}) (string, error) {
		return `{"_id":"m4","conversationId":"c1","senderId":"admin-1","message":"new","createdAt":"2024-05-01T12:00:00Z"}`, nil
	}

	_, err := s.SendMessage(context.Background(), "c1", "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(s.Messages("c1")))

	var c1 Conversation
	for _, c := range s.Conversations() {
		if c.ID == "c1" {
			c1 = c
		}
	}
	require.NotNil(t, c1.LastMessage)
	assert.Equal(t, "m4", c1.LastMessage.ID)
	assert.Equal(t, 2, c1.UnreadCount)
}

func TestSendMessage_FailureRemovesTempEntry(t *testing.T) {
	api := newFakeAPI()
	s, rec := loadedStore(t, api)
	api.post = func(string, interface{}) (string, error) {
		assert.Len(t, s.Messages("c1"), 4)
		return "", errors.NewAPIError(500, "Conversation closed", "")
	}

	_, err := s.SendMessage(context.Background(), "c1", "hello")
	require.Error(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages("c1")))

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, toast.LevelError, last.Level)
	assert.Equal(t, "Conversation closed", last.Message)
}

func TestSendMessage_RealtimeCopyArrivesFirst(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)
	registry := realtime.NewRegistry(logger.NewTestLogger(t))
	s.Attach(registry)

	server := map[string]interface{}{
		"_id": "m4", "conversationId": "c1", "senderId": "admin-1",
		"message": "hello", "createdAt": testNow,
	}
	api.post = func(string, interface{}) (string, error) {
		emit(t, registry, realtime.NewMessage, server)
		b, _ := json.Marshal(server)
		return string(b), nil
	}

	_, err := s.SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(s.Messages("c1")))
}

func TestDeleteMessage_PendingSendRefusedLocally(t *testing.T) {
	api := newFakeAPI()
	s, rec := loadedStore(t, api)

	var deleteErr error
	api.post = func(string, interface{}) (string, error) {
		list := s.Messages("c1")
		pending := list[len(list)-1]
		require.True(t, IsTempID(pending.ID))
		deleteErr = s.DeleteMessage(context.Background(), pending.ID)
		return `{"_id":"m4","conversationId":"c1","senderId":"admin-1","message":"oops","createdAt":"2024-05-01T12:00:00Z"}`, nil
	}

	_, err := s.SendMessage(context.Background(), "c1", "oops")
	require.NoError(t, err)

	assert.True(t, errors.HasCode(deleteErr, errors.ErrCodeValidationFailed))
	assert.Empty(t, api.deletes)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(s.Messages("c1")))
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "Message is still sending", rec.Errors()[0].Message)

	require.NoError(t, s.DeleteMessage(context.Background(), "m4"))
	assert.Equal(t, []string{"/messages/m4"}, api.deletes)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages("c1")))
}

func TestSendMessage_BlankTextRejectedLocally(t *testing.T) {
	api := newFakeAPI()
	s, rec := createTestStore(t, api)

	_, err := s.SendMessage(context.Background(), "c1", "   ")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Zero(t, api.posts)
	assert.Empty(t, s.Messages("c1"))
	assert.Len(t, rec.Errors(), 1)
}

func TestLoadMessages_OnlyLatestFetchApplies(t *testing.T) {
	t.Run("stale response arriving last", func(t *testing.T) {
		api := newFakeAPI()
		s, rec := createTestStore(t, api)
		first := api.queue("/messages/conversations/c1", &getReply{
			body:    `[{"_id":"a1","conversationId":"c1","message":"from A"}]`,
			entered: make(chan struct{}),
			release: make(chan struct{}),
		})
		api.queue("/messages/conversations/c1", &getReply{
			body: `[{"_id":"b1","conversationId":"c1","message":"from B"}]`,
		})

		done := make(chan error, 1)
		go func() {
			_, err := s.LoadMessages(context.Background(), "c1")
			done <- err
		}()
		<-first.entered

		got, err := s.LoadMessages(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(got))
		assert.ErrorIs(t, first.ctx.Err(), context.Canceled)

		close(first.release)
		assert.ErrorIs(t, <-done, ErrSuperseded)
		assert.Equal(t, []string{"b1"}, ids(s.Messages("c1")))
		assert.Empty(t, rec.Errors())
	})

	t.Run("cancelled request is silent", func(t *testing.T) {
		api := newFakeAPI()
		s, rec := createTestStore(t, api)
		first := api.queue("/messages/conversations/c1", &getReply{
			err:     context.Canceled,
			entered: make(chan struct{}),
			release: make(chan struct{}),
		})
		api.queue("/messages/conversations/c1", &getReply{body: `[]`})

		done := make(chan error, 1)
		go func() {
			_, err := s.LoadMessages(context.Background(), "c1")
			done <- err
		}()
		<-first.entered

		_, err := s.LoadMessages(context.Background(), "c1")
		require.NoError(t, err)
		close(first.release)
		assert.ErrorIs(t, <-done, ErrSuperseded)
		assert.Empty(t, rec.Errors())
	})

	t.Run("undecodable stale response is silent", func(t *testing.T) {
		api := newFakeAPI()
		s, rec := createTestStore(t, api)
		first := api.queue("/messages/conversations/c1", &getReply{
			body:    `"garbage"`,
			entered: make(chan struct{}),
			release: make(chan struct{}),
		})
		api.queue("/messages/conversations/c1", &getReply{
			body: `[{"_id":"b1","conversationId":"c1","message":"from B"}]`,
		})

		done := make(chan error, 1)
		go func() {
			_, err := s.LoadMessages(context.Background(), "c1")
			done <- err
		}()
		<-first.entered

		_, err := s.LoadMessages(context.Background(), "c1")
		require.NoError(t, err)
		close(first.release)
		assert.ErrorIs(t, <-done, ErrSuperseded)
		assert.Equal(t, []string{"b1"}, ids(s.Messages("c1")))
		assert.Empty(t, rec.Errors())
	})

	t.Run("undecodable current response is reported", func(t *testing.T) {
		api := newFakeAPI()
		s, rec := createTestStore(t, api)
		api.queue("/messages/conversations", &getReply{body: `"garbage"`})

		_, err := s.LoadConversations(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSuperseded)
		require.Len(t, rec.Errors(), 1)
		assert.Equal(t, "Unexpected response from server", rec.Errors()[0].Message)
	})

	t.Run("different conversations do not interfere", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := createTestStore(t, api)
		first := api.queue("/messages/conversations/c1", &getReply{
			body:    `[{"_id":"a1","conversationId":"c1"}]`,
			entered: make(chan struct{}),
			release: make(chan struct{}),
		})
		api.queue("/messages/conversations/c2", &getReply{body: `[{"_id":"x1","conversationId":"c2"}]`})

		done := make(chan error, 1)
		go func() {
			_, err := s.LoadMessages(context.Background(), "c1")
			done <- err
		}()
		<-first.entered

		_, err := s.LoadMessages(context.Background(), "c2")
		require.NoError(t, err)
		close(first.release)
		require.NoError(t, <-done)
		assert.Equal(t, []string{"a1"}, ids(s.Messages("c1")))
		assert.Equal(t, []string{"x1"}, ids(s.Messages("c2")))
	})
}

func TestLoadConversations_FailureReported(t *testing.T) {
	api := newFakeAPI()
	s, rec := createTestStore(t, api)
	api.queue("/messages/conversations", &getReply{err: errors.NewAPIError(500, "", "")})

	_, err := s.LoadConversations(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSuperseded)
	assert.Len(t, rec.Errors(), 1)
	assert.Empty(t, s.Conversations())
}

func TestConversations_PinnedFirstThenRecent(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)

	assert.Equal(t, "c2", s.Conversations()[0].ID)

	require.NoError(t, s.PinConversation("c1", true))
	list := s.Conversations()
	assert.Equal(t, "c1", list[0].ID)
	assert.True(t, list[0].IsPinned)

	require.NoError(t, s.ArchiveConversation("c2", true))
	require.NoError(t, s.MuteConversation("c2", true))
	assert.True(t, s.Conversations()[1].IsArchived)
	assert.True(t, s.Conversations()[1].IsMuted)

	assert.Error(t, s.PinConversation("missing", true))
	assert.Empty(t, api.puts)
}

func TestHandleEvent_NewMessageIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)
	registry := realtime.NewRegistry(logger.NewTestLogger(t))
	unsubscribe := s.Attach(registry)
	defer unsubscribe()

	incoming := map[string]interface{}{"_id": "m9", "conversationId": "c1", "senderId": "v-1", "message": "ping", "createdAt": testNow}
	emit(t, registry, realtime.NewMessage, incoming)
	emit(t, registry, realtime.NewMessage, incoming)

	assert.Equal(t, []string{"m1", "m2", "m3", "m9"}, ids(s.Messages("c1")))
	unread := map[string]int{}
	for _, c := range s.Conversations() {
		unread[c.ID] = c.UnreadCount
	}
	assert.Equal(t, 3, unread["c1"])

	s.SetActive("c1")
	emit(t, registry, realtime.NewMessage, map[string]interface{}{"_id": "m10", "conversationId": "c1", "senderId": "v-1", "createdAt": testNow})
	emit(t, registry, realtime.NewMessage, map[string]interface{}{"_id": "x1", "conversationId": "c2", "senderId": "admin-1", "createdAt": testNow})
	for _, c := range s.Conversations() {
		unread[c.ID] = c.UnreadCount
	}
	assert.Equal(t, 3, unread["c1"], "active conversation")
	assert.Equal(t, 0, unread["c2"], "own message")
	assert.Empty(t, s.Messages("c2"), "unloaded conversation only updates summary")
}

func TestHandleEvent_UpdateDeleteRead(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)
	registry := realtime.NewRegistry(logger.NewTestLogger(t))
	s.Attach(registry)

	emit(t, registry, realtime.MessageUpdated, map[string]interface{}{"_id": "m2", "message": "hello again"})
	msgs := s.Messages("c1")
	assert.Equal(t, "hello again", msgs[1].Message)
	require.NotNil(t, msgs[1].EditedAt)

	emit(t, registry, realtime.MessageDeleted, map[string]interface{}{"_id": "m1", "conversationId": "c1"})
	emit(t, registry, realtime.MessageDeleted, map[string]interface{}{"_id": "m1", "conversationId": "c1"})
	assert.Equal(t, []string{"m2", "m3"}, ids(s.Messages("c1")))

	emit(t, registry, realtime.MessageRead, map[string]interface{}{"conversationId": "c1", "userId": "v-1"})
	for _, m := range s.Messages("c1") {
		assert.Contains(t, m.ReadBy, "v-1")
	}

	emit(t, registry, realtime.MessageRead, map[string]interface{}{"conversationId": "c1", "userId": "admin-1"})
	for _, c := range s.Conversations() {
		if c.ID == "c1" {
			assert.Zero(t, c.UnreadCount)
		}
	}

	registry.Emit(realtime.Event{ID: "bad", Type: realtime.NewMessage, Data: json.RawMessage(`"not an object"`)})
	assert.Len(t, s.Messages("c1"), 2)
}

func TestDeleteMessage(t *testing.T) {
	t.Run("rollback restores position", func(t *testing.T) {
		api := newFakeAPI()
		api.delErr = errors.NewAPIError(403, "Not allowed", "")
		s, rec := loadedStore(t, api)

		err := s.DeleteMessage(context.Background(), "m2")
		require.Error(t, err)
		assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages("c1")))
		assert.Equal(t, []string{"/messages/m2"}, api.deletes)
		assert.Len(t, rec.Errors(), 1)
	})

	t.Run("success removes", func(t *testing.T) {
		api := newFakeAPI()
		s, rec := loadedStore(t, api)

		require.NoError(t, s.DeleteMessage(context.Background(), "m2"))
		assert.Equal(t, []string{"m1", "m3"}, ids(s.Messages("c1")))
		assert.Empty(t, rec.Errors())
	})
}

func TestMarkRead(t *testing.T) {
	unreadOf := func(s *Store) int {
		for _, c := range s.Conversations() {
			if c.ID == "c1" {
				return c.UnreadCount
			}
		}
		return -1
	}

	t.Run("success", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := loadedStore(t, api)
		require.NoError(t, s.MarkRead(context.Background(), "c1"))
		assert.Zero(t, unreadOf(s))
		assert.Equal(t, []string{"/messages/conversations/c1/read"}, api.puts)
	})

	t.Run("failure restores count", func(t *testing.T) {
		api := newFakeAPI()
		api.putErr = errors.NewAPIError(500, "", "")
		s, _ := loadedStore(t, api)
		require.Error(t, s.MarkRead(context.Background(), "c1"))
		assert.Equal(t, 2, unreadOf(s))
	})
}

func TestEditMessage_LocalOnly(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)

	require.NoError(t, s.EditMessage("m3", "thank you"))
	m := s.Messages("c1")[2]
	assert.Equal(t, "thank you", m.Message)
	require.NotNil(t, m.EditedAt)
	assert.Equal(t, testNow, *m.EditedAt)
	assert.Zero(t, api.posts)
	assert.Empty(t, api.puts)

	assert.Error(t, s.EditMessage("nope", "x"))
}

func TestMessages_ReturnsCopies(t *testing.T) {
	api := newFakeAPI()
	s, _ := loadedStore(t, api)

	msgs := s.Messages("c1")
	msgs[0].Message = "changed"
	assert.Equal(t, "hi", s.Messages("c1")[0].Message)
	assert.Equal(t, "v-1", s.Messages("c1")[2].SenderID)
}
