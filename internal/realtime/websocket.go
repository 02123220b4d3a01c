// internal/realtime/websocket.go
package realtime

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultPongWait         = 60 * time.Second
	defaultReconnectInitial = time.Second
	defaultReconnectMax     = 30 * time.Second
	writeWait               = 10 * time.Second
)

type WebSocketConfig struct {
	URL              string
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// PongWait is how long the connection may stay silent; pings are sent
	// at 9/10 of it.
	PongWait time.Duration
}

// WebSocketSource streams events from the backend push channel. It
// reconnects with exponential backoff until Disconnect or ctx cancellation.
type WebSocketSource struct {
	cfg       WebSocketConfig
	tokens    func(ctx context.Context) (string, error)
	dialer    *websocket.Dialer
	decoder   *frameDecoder
	logger    logger.Logger
	sleepFunc func(ctx context.Context, d time.Duration) bool

	mu      sync.Mutex
	handler func(Event)
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWebSocketSource builds the source. tokens may be nil for an
// unauthenticated channel.
func NewWebSocketSource(cfg WebSocketConfig, tokens func(ctx context.Context) (string, error), validator Validator, log logger.Logger) *WebSocketSource {
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = defaultReconnectMax
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	log = logger.ForComponent(log, "realtime.websocket")
	return &WebSocketSource{
		cfg:       cfg,
		tokens:    tokens,
		dialer:    websocket.DefaultDialer,
		decoder:   newFrameDecoder("websocket", validator, log),
		logger:    log,
		sleepFunc: sleepContext,
	}
}

func (s *WebSocketSource) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Connect validates the URL and starts the connection loop in the
// background. Connecting twice is a no-op.
func (s *WebSocketSource) Connect(ctx context.Context) error {
	u, err := url.Parse(s.cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.NewConfigError("realtime.websocket_url", "must be a ws:// or wss:// URL")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

func (s *WebSocketSource) Disconnect() error {
	s.mu.Lock()
	cancel, done, conn := s.cancel, s.done, s.conn
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(writeWait))
	}
	cancel()
	<-done
	return nil
}

func (s *WebSocketSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := s.cfg.ReconnectInitial
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("websocket dial failed", map[string]interface{}{
				"url":     s.cfg.URL,
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
		} else {
			backoff = s.cfg.ReconnectInitial
			s.decoder.resetSequence()
			s.setConn(conn)
			s.logger.Info("websocket connected", map[string]interface{}{"url": s.cfg.URL})

			err = s.serve(ctx, conn)

			s.setConn(nil)
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("websocket connection lost", map[string]interface{}{
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
		}

		if !s.sleepFunc(ctx, backoff) {
			return
		}
		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}
	}
}

func (s *WebSocketSource) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.tokens != nil {
		token, err := s.tokens(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.NewTransportError("websocket", err)
	}
	return conn, nil
}

// serve runs the read pump until the connection fails or ctx ends.
func (s *WebSocketSource) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(ctx, conn, stop)
	}()
	defer func() {
		close(stop)
		_ = conn.Close()
		wg.Wait()
	}()

	pongWait := s.cfg.PongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		e, ok := s.decoder.decode(raw)
		if !ok {
			continue
		}
		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(e)
		}
	}
}

// pingLoop keeps the connection alive and closes it when ctx ends so the
// blocked read returns.
func (s *WebSocketSource) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("websocket ping failed", map[string]interface{}{"error": err.Error()})
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *WebSocketSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
