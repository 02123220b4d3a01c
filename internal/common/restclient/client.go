// internal/common/restclient/client.go
package restclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// CallRecorder receives per-call telemetry; observability.Observability implements it.
type CallRecorder interface {
	RecordAPICall(ctx context.Context, method, status string, duration time.Duration)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
	Debug      bool
}

// Client is the REST collaborator. It is safe for concurrent use.
type Client struct {
	http     *resty.Client
	baseURL  string
	tokens   TokenSource
	logger   logger.Logger
	recorder CallRecorder
	tracer   trace.Tracer
}

// Envelope is the backend's standard response wrapper.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func New(cfg Config, tokens TokenSource, log logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "marketplace-console/1.0"
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.Debug {
		httpClient.SetDebug(true)
	}

	return &Client{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		tokens:  tokens,
		logger:  logger.ForComponent(log, "restclient"),
		tracer:  otel.Tracer("marketplace-console/restclient"),
	}
}

// WithRecorder attaches a telemetry recorder.
func (c *Client) WithRecorder(r CallRecorder) *Client {
	c.recorder = r
	return c
}

// HTTPClient exposes the underlying resty client for tests.
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do issues a request and decodes the response envelope's data (or the raw
// body when the backend did not wrap it) into out. A cancelled ctx is returned
// as ctx.Err() so callers can distinguish a superseded request.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			span.RecordError(err)
			return errors.NewUnauthenticatedError(err.Error())
		}
		if token != "" {
			req.SetAuthToken(token)
		}
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			c.record(ctx, method, "cancelled", elapsed)
			return ctx.Err()
		}
		c.record(ctx, method, "network_error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return errors.NewNetworkError(method, c.baseURL+path, err)
	}

	status := resp.StatusCode()
	c.record(ctx, method, strconv.Itoa(status), elapsed)
	span.SetAttributes(attribute.Int("http.status_code", status))

	if !resp.IsSuccess() {
		apiErr := c.decodeError(status, resp.Body())
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Warn("request rejected", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": status,
			"error":  apiErr.Message,
		})
		return apiErr
	}

	return decodeBody(status, resp.Body(), out)
}

func (c *Client) record(ctx context.Context, method, status string, elapsed time.Duration) {
	metrics.APIRequests.WithLabelValues(method, status).Inc()
	metrics.APIRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if c.recorder != nil {
		c.recorder.RecordAPICall(ctx, method, status, elapsed)
	}
}

func (c *Client) decodeError(status int, body []byte) *errors.StandardError {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return errors.NewAPIError(status, msg, string(body))
	}
	return errors.NewAPIError(status, "", string(body))
}

func decodeBody(status int, body []byte, out interface{}) error {
	if len(body) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
		if !*env.Success {
			msg := env.Message
			if msg == "" {
				msg = env.Error
			}
			return errors.NewAPIError(status, msg, string(body))
		}
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.NewAPIError(status, "Unexpected response from server", err.Error())
		}
		return nil
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewAPIError(status, "Unexpected response from server", err.Error())
	}
	return nil
}

// IsCancelled reports whether err is a context cancellation from a superseded call.
func IsCancelled(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
