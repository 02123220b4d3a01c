// internal/notifications/feed.go
package notifications

import (
	"context"
	"sync"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/realtime"
)

const DefaultPageSize = 20

// Feed caches the first page of notifications and the unread count. It
// refreshes itself when a notification event arrives.
type Feed struct {
	client   *Client
	reporter *errors.Reporter
	logger   logger.Logger
	limit    int

	mu     sync.RWMutex
	items  []Notification
	unread int

	refreshMu sync.Mutex
}

func NewFeed(client *Client, notifier toast.Notifier, log logger.Logger) *Feed {
	log = logger.ForComponent(log, "notifications")
	if notifier == nil {
		notifier = toast.NewLogNotifier(log)
	}
	return &Feed{
		client:   client,
		reporter: errors.NewReporter(log, notifier),
		logger:   log,
		limit:    DefaultPageSize,
	}
}

func (f *Feed) WithPageSize(n int) *Feed {
	if n > 0 {
		f.limit = n
	}
	return f
}

// Items returns a copy of the cached notifications.
func (f *Feed) Items() []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Notification(nil), f.items...)
}

func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Refresh reloads the first page and the unread count. The cache is left
// untouched when either call fails.
func (f *Feed) Refresh(ctx context.Context) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	page, err := f.client.List(ctx, 1, f.limit)
	if err != nil {
		return f.reporter.Report(ctx, "load notifications", err)
	}
	count, err := f.client.UnreadCount(ctx)
	if err != nil {
		return f.reporter.Report(ctx, "load unread count", err)
	}

	f.mu.Lock()
	f.items = page.Notifications
	f.unread = count
	f.mu.Unlock()

	f.logger.Debug("notifications refreshed", map[string]interface{}{
		"count":  len(page.Notifications),
		"unread": count,
	})
	return nil
}

// MarkRead flags one notification read locally, then on the server. A
// failure restores the previous state.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	changed := false
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].Read {
			f.items[i].Read = true
			changed = true
			if f.unread > 0 {
				f.unread--
			}
		}
	}
	f.mu.Unlock()

	if err := f.client.MarkRead(ctx, id); err != nil {
		if changed {
			f.mu.Lock()
			for i := range f.items {
				if f.items[i].ID == id {
					f.items[i].Read = false
				}
			}
			f.unread++
			f.mu.Unlock()
		}
		return f.reporter.Report(ctx, "mark notification read", err)
	}
	return nil
}

// MarkAllRead flags every cached notification read and zeroes the count.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	prevItems := append([]Notification(nil), f.items...)
	prevUnread := f.unread
	for i := range f.items {
		f.items[i].Read = true
	}
	f.unread = 0
	f.mu.Unlock()

	if err := f.client.MarkAllRead(ctx); err != nil {
		f.mu.Lock()
		f.items = prevItems
		f.unread = prevUnread
		f.mu.Unlock()
		return f.reporter.Report(ctx, "mark all notifications read", err)
	}
	return nil
}

// Attach refreshes the feed on notification events. One worker bound to ctx
// runs the refreshes; events arriving while a refresh is running collapse
// into a single follow-up refresh.
func (f *Feed) Attach(ctx context.Context, r *realtime.Registry) (unsubscribe func()) {
	pending := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				_ = f.Refresh(ctx)
			}
		}
	}()

	return r.Subscribe(realtime.Notification, func(e realtime.Event) {
		f.logger.Debug("notification event", map[string]interface{}{"eventId": e.ID})
		select {
		case pending <- struct{}{}:
		default:
		}
	})
}
