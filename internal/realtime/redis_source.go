// internal/realtime/redis_source.go
package realtime

import (
	"context"
	"sync"

	"marketplace-console/internal/common/database"
	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// RedisSource receives events published on a redis channel. go-redis
// re-establishes the subscription on its own after network failures.
type RedisSource struct {
	redis   *database.RedisClient
	channel string
	decoder *frameDecoder
	logger  logger.Logger

	mu      sync.Mutex
	handler func(Event)
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRedisSource(rdb *database.RedisClient, channel string, validator Validator, log logger.Logger) *RedisSource {
	log = logger.ForComponent(log, "realtime.redis")
	return &RedisSource{
		redis:   rdb,
		channel: channel,
		decoder: newFrameDecoder("redis", validator, log),
		logger:  log,
	}
}

func (s *RedisSource) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Connect subscribes and waits for the subscription to be confirmed.
func (s *RedisSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	ps, err := s.redis.Subscribe(ctx, s.channel)
	if err != nil {
		return errors.NewTransportError("redis", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.pubsub = ps
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, ps, s.done)

	s.logger.Info("subscribed to realtime channel", map[string]interface{}{"channel": s.channel})
	return nil
}

func (s *RedisSource) run(ctx context.Context, ps *redis.PubSub, done chan struct{}) {
	defer close(done)
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			e, valid := s.decoder.decode([]byte(msg.Payload))
			if !valid {
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
}

func (s *RedisSource) Disconnect() error {
	s.mu.Lock()
	cancel, done, ps := s.cancel, s.done, s.pubsub
	s.cancel, s.done, s.pubsub = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := ps.Close()
	<-done
	s.logger.Info("unsubscribed from realtime channel", map[string]interface{}{"channel": s.channel})
	return err
}
