// internal/notifications/client.go
package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketplace-console/internal/common/errors"
)

const basePath = "/subadmin/notifications"

// API is the REST collaborator. restclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
}

// Notification is passed through from the backend. Data stays opaque.
type Notification struct {
	ID        string          `json:"_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Page is one page of the notification list.
type Page struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
}

type Client struct {
	api API
}

func NewClient(api API) *Client {
	return &Client{api: api}
}

// List fetches one page. page and limit are omitted from the query when zero.
func (c *Client) List(ctx context.Context, page, limit int) (*Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := basePath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw json.RawMessage
	if err := c.api.Get(ctx, path, &raw); err != nil {
		return nil, err
	}

	var list []Notification
	if err := json.Unmarshal(raw, &list); err == nil {
		return &Page{Notifications: list, Total: len(list), Page: page, Limit: limit}, nil
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error())
	}
	if p.Total == 0 {
		p.Total = len(p.Notifications)
	}
	return &p, nil
}

// UnreadCount accepts {"count": n}, {"unreadCount": n} or a bare number.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var raw json.RawMessage
	if err := c.api.Get(ctx, basePath+"/unread-count", &raw); err != nil {
		return 0, err
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var wrapped struct {
		Count       *int `json:"count"`
		UnreadCount *int `json:"unreadCount"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return 0, errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error())
	}
	switch {
	case wrapped.Count != nil:
		return *wrapped.Count, nil
	case wrapped.UnreadCount != nil:
		return *wrapped.UnreadCount, nil
	}
	return 0, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return errors.NewValidationError("id", "notification id is required")
	}
	return c.api.Put(ctx, basePath+"/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.api.Put(ctx, basePath+"/read-all", nil, nil)
}
