// internal/realtime/simulator.go
package realtime

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"marketplace-console/internal/common/logger"
)

const (
	DefaultSimulatorInterval    = 8 * time.Second
	DefaultSimulatorProbability = 0.15
)

// SimulatedTypes is the demo vocabulary the simulator draws from.
var SimulatedTypes = []EventType{PropertyViewed, NewInquiry, NewReview, FavoriteAdded, Notification}

var demoCustomers = []string{"Priya Sharma", "Rahul Verma", "Ananya Iyer", "Vikram Singh", "Meera Nair"}

// SimulatedSource manufactures occasional demo events on a timer. It stands
// in for a push channel when none is configured.
type SimulatedSource struct {
	interval    time.Duration
	probability float64
	types       []EventType
	logger      logger.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	now     func() time.Time
	handler func(Event)
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSimulatedSource(interval time.Duration, probability float64, log logger.Logger) *SimulatedSource {
	if interval <= 0 {
		interval = DefaultSimulatorInterval
	}
	return &SimulatedSource{
		interval:    interval,
		probability: probability,
		types:       SimulatedTypes,
		logger:      logger.ForComponent(log, "realtime.simulator"),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// WithRand injects the random source, for deterministic tests.
func (s *SimulatedSource) WithRand(r *rand.Rand) *SimulatedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = r
	return s
}

// WithClock injects the timestamp clock.
func (s *SimulatedSource) WithClock(now func() time.Time) *SimulatedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// WithTypes restricts the vocabulary, e.g. to the catalog's synthetic types.
func (s *SimulatedSource) WithTypes(types []EventType) *SimulatedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) > 0 {
		s.types = types
	}
	return s
}

func (s *SimulatedSource) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Connect starts the timer. Connecting twice is a no-op.
func (s *SimulatedSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.logger.Info("simulated realtime source started", map[string]interface{}{
		"interval":    s.interval.String(),
		"probability": s.probability,
	})
	return nil
}

func (s *SimulatedSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *SimulatedSource) Disconnect() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.logger.Info("simulated realtime source stopped", nil)
	return nil
}

// Tick runs one timer step: with the configured probability it synthesises
// an event and delivers it. It reports whether an event was produced.
func (s *SimulatedSource) Tick() bool {
	s.mu.Lock()
	if s.rng.Float64() >= s.probability {
		s.mu.Unlock()
		return false
	}
	eventType := s.types[s.rng.Intn(len(s.types))]
	payload := s.payload(eventType)
	at := s.now()
	handler := s.handler
	s.mu.Unlock()

	e, err := NewEvent(eventType, payload, at)
	if err != nil {
		s.logger.Error("failed to build simulated event", map[string]interface{}{"error": err.Error()})
		return false
	}
	if handler != nil {
		handler(e)
	}
	return true
}

// payload must be called with s.mu held.
func (s *SimulatedSource) payload(eventType EventType) map[string]interface{} {
	propertyID := fmt.Sprintf("property-%d", s.rng.Intn(100)+1)
	switch eventType {
	case NewInquiry:
		return map[string]interface{}{
			"propertyId":   propertyID,
			"customerName": demoCustomers[s.rng.Intn(len(demoCustomers))],
		}
	case NewReview:
		return map[string]interface{}{
			"propertyId": propertyID,
			"rating":     s.rng.Intn(5) + 1,
		}
	case Notification:
		return map[string]interface{}{
			"title":   "New activity",
			"message": fmt.Sprintf("There is new activity on %s", propertyID),
		}
	default:
		return map[string]interface{}{"propertyId": propertyID}
	}
}
