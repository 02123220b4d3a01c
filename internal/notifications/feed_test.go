// internal/notifications/feed_test.go
package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/restclient"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu         sync.Mutex
	listBody   string
	countBody  string
	failWrites bool
	listGate   chan struct{}
	requests   []string
}

// holdList makes list requests wait until the returned func is called.
func (b *fakeBackend) holdList() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.listGate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (b *fakeBackend) listRequests() int {
	n := 0
	for _, r := range b.seen() {
		if strings.HasPrefix(r, "GET /subadmin/notifications?") {
			n++
		}
	}
	return n
}

func (b *fakeBackend) setList(list, count string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listBody = list
	b.countBody = count
}

func (b *fakeBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, r.Method+" "+r.URL.RequestURI())
	gate := b.listGate
	b.mu.Unlock()
	if gate != nil && r.Method == http.MethodGet && r.URL.Path == "/subadmin/notifications" {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/subadmin/notifications":
		_, _ = w.Write([]byte(`{"success":true,"data":` + b.listBody + `}`))
	case r.Method == http.MethodGet && r.URL.Path == "/subadmin/notifications/unread-count":
		_, _ = w.Write([]byte(`{"success":true,"data":` + b.countBody + `}`))
	case r.Method == http.MethodPut && b.failWrites:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Could not update notification"}`))
	case r.Method == http.MethodPut:
		_, _ = w.Write([]byte(`{"success":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const twoUnread = `{"notifications":[
	{"_id":"n1","type":"vendor_application","title":"New application","message":"Skyline Realty applied","read":false,"createdAt":"2024-05-01T10:00:00Z"},
	{"_id":"n2","type":"system","title":"Maintenance","message":"Tonight","read":false,"createdAt":"2024-05-01T09:00:00Z","data":{"window":"2h"}}
],"total":2,"page":1,"limit":20}`

func createTestFeed(t *testing.T, backend *fakeBackend) (*Feed, *toast.Recorder) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	api := restclient.New(restclient.Config{BaseURL: srv.URL}, restclient.StaticToken("tok"), logger.NewTestLogger(t))
	rec := toast.NewRecorder()
	return NewFeed(NewClient(api), rec, logger.NewTestLogger(t)), rec
}

func TestFeed_Refresh(t *testing.T) {
	backend := &fakeBackend{}
	backend.setList(twoUnread, `{"count":2}`)
	feed, rec := createTestFeed(t, backend)

	require.NoError(t, feed.Refresh(context.Background()))
	items := feed.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].ID)
	assert.JSONEq(t, `{"window":"2h"}`, string(items[1].Data))
	assert.Equal(t, 2, feed.Unread())
	assert.Contains(t, backend.seen(), "GET /subadmin/notifications?limit=20&page=1")
	assert.Empty(t, rec.All())
}

func TestFeed_MarkRead(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.setList(twoUnread, `2`)
		feed, _ := createTestFeed(t, backend)
		require.NoError(t, feed.Refresh(context.Background()))

		require.NoError(t, feed.MarkRead(context.Background(), "n2"))
		assert.True(t, feed.Items()[1].Read)
		assert.Equal(t, 1, feed.Unread())
		assert.Contains(t, backend.seen(), "PUT /subadmin/notifications/n2/read")
	})

	t.Run("failure rolls back", func(t *testing.T) {
		backend := &fakeBackend{failWrites: true}
		backend.setList(twoUnread, `{"unreadCount":2}`)
		feed, rec := createTestFeed(t, backend)
		require.NoError(t, feed.Refresh(context.Background()))

		require.Error(t, feed.MarkRead(context.Background(), "n1"))
		assert.False(t, feed.Items()[0].Read)
		assert.Equal(t, 2, feed.Unread())

		last, ok := rec.Last()
		require.True(t, ok)
		assert.Equal(t, "Could not update notification", last.Message)
	})

	t.Run("blank id rejected without a call", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.setList(`[]`, `0`)
		feed, _ := createTestFeed(t, backend)

		require.Error(t, feed.MarkRead(context.Background(), ""))
		assert.Empty(t, backend.seen())
	})
}

func TestFeed_MarkAllRead(t *testing.T) {
	backend := &fakeBackend{failWrites: true}
	backend.setList(twoUnread, `2`)
	feed, _ := createTestFeed(t, backend)
	require.NoError(t, feed.Refresh(context.Background()))

	require.Error(t, feed.MarkAllRead(context.Background()))
	assert.Equal(t, 2, feed.Unread())
	assert.False(t, feed.Items()[0].Read)

	backend.mu.Lock()
	backend.failWrites = false
	backend.mu.Unlock()

	require.NoError(t, feed.MarkAllRead(context.Background()))
	assert.Zero(t, feed.Unread())
	for _, n := range feed.Items() {
		assert.True(t, n.Read)
	}
	assert.Contains(t, backend.seen(), "PUT /subadmin/notifications/read-all")
}

func TestFeed_RefreshesOnNotificationEvent(t *testing.T) {
	backend := &fakeBackend{}
	backend.setList(`[]`, `0`)
	feed, _ := createTestFeed(t, backend)
	require.NoError(t, feed.Refresh(context.Background()))
	assert.Empty(t, feed.Items())

	registry := realtime.NewRegistry(logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	unsubscribe := feed.Attach(ctx, registry)
	defer unsubscribe()

	backend.setList(twoUnread, `2`)
	e, err := realtime.NewEvent(realtime.Notification, map[string]string{"title": "New application", "message": "Skyline Realty applied"}, time.Now())
	require.NoError(t, err)
	registry.Emit(e)

	assert.Eventually(t, func() bool {
		return len(feed.Items()) == 2 && feed.Unread() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_AttachCollapsesBursts(t *testing.T) {
	backend := &fakeBackend{}
	backend.setList(twoUnread, `{"count":2}`)
	release := backend.holdList()
	feed, _ := createTestFeed(t, backend)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry := realtime.NewRegistry(logger.NewTestLogger(t))
	unsubscribe := feed.Attach(ctx, registry)
	defer unsubscribe()

	emitNotification := func() {
		e, err := realtime.NewEvent(realtime.Notification, map[string]string{"title": "New application"}, time.Now())
		require.NoError(t, err)
		registry.Emit(e)
	}

	emitNotification()
	require.Eventually(t, func() bool { return backend.listRequests() == 1 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		emitNotification()
	}
	release()

	assert.Eventually(t, func() bool {
		return backend.listRequests() == 2 && feed.Unread() == 2
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, backend.listRequests())
}

func TestClient_ListBareArray(t *testing.T) {
	backend := &fakeBackend{}
	backend.setList(`[{"_id":"n1","title":"Hi"}]`, `0`)
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api := restclient.New(restclient.Config{BaseURL: srv.URL}, nil, logger.NewTestLogger(t))
	page, err := NewClient(api).List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, []string{"GET /subadmin/notifications"}, backend.seen())
}
