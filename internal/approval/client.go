// internal/approval/client.go
package approval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"marketplace-console/internal/common/errors"
)

const basePath = "/admin/vendor-approvals"

// API is the REST collaborator. restclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

// Client reads vendor applications.
type Client struct {
	api API
}

func NewClient(api API) *Client {
	return &Client{api: api}
}

func applicationPath(id string, action ...string) string {
	p := basePath + "/" + url.PathEscape(id)
	for _, a := range action {
		p += "/" + a
	}
	return p
}

// Get fetches one application. The backend may wrap it as {"application": ...}.
func (c *Client) Get(ctx context.Context, id string) (*Application, error) {
	if id == "" {
		return nil, errors.NewValidationError("id", "application id is required")
	}
	var raw json.RawMessage
	if err := c.api.Get(ctx, applicationPath(id), &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Application *Application `json:"application"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Application != nil {
		return wrapped.Application, nil
	}
	var app Application
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error())
	}
	return &app, nil
}

// List returns the review queue, optionally filtered by status.
func (c *Client) List(ctx context.Context, status Status) ([]Application, error) {
	path := basePath
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var raw json.RawMessage
	if err := c.api.Get(ctx, path, &raw); err != nil {
		return nil, err
	}

	var apps []Application
	if err := json.Unmarshal(raw, &apps); err == nil {
		return apps, nil
	}
	var wrapped struct {
		Applications []Application `json:"applications"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.NewAPIError(http.StatusOK, "Unexpected response from server", err.Error())
	}
	return wrapped.Applications, nil
}
