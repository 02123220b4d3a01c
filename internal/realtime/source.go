// internal/realtime/source.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"

	"github.com/google/uuid"
)

// EventSource is a transport delivering events to a single callback. The
// registry does not care which transport feeds it.
type EventSource interface {
	Connect(ctx context.Context) error
	Disconnect() error
	OnEvent(fn func(Event))
}

// Validator checks an inbound payload for its event type.
// validation.EventValidator implements it.
type Validator interface {
	Validate(eventType string, payload []byte) error
}

// frame is the wire shape shared by the websocket and redis transports.
type frame struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
}

// frameDecoder turns raw frames into events, dropping invalid ones with a log
// line and a metric. It also tracks the server sequence number for gap
// detection.
type frameDecoder struct {
	source    string
	validator Validator
	logger    logger.Logger
	now       func() time.Time

	lastSeq uint64
}

func newFrameDecoder(source string, validator Validator, log logger.Logger) *frameDecoder {
	return &frameDecoder{source: source, validator: validator, logger: log, now: time.Now}
}

func (d *frameDecoder) decode(raw []byte) (Event, bool) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		d.drop("malformed", errors.NewInvalidEventError(err.Error()))
		return Event{}, false
	}
	if f.Type == "" {
		d.drop("missing_type", errors.NewInvalidEventError("frame has no type"))
		return Event{}, false
	}
	if d.validator != nil {
		if err := d.validator.Validate(string(f.Type), f.Data); err != nil {
			d.drop("invalid", err)
			return Event{}, false
		}
	}

	if f.Seq > 0 {
		if d.lastSeq > 0 && f.Seq > d.lastSeq+1 {
			d.logger.Warn("realtime sequence gap", map[string]interface{}{
				"source":   d.source,
				"expected": d.lastSeq + 1,
				"received": f.Seq,
				"missed":   f.Seq - d.lastSeq - 1,
			})
		}
		if f.Seq <= d.lastSeq {
			d.drop("duplicate", errors.NewInvalidEventError(fmt.Sprintf("seq %d already seen", f.Seq)))
			return Event{}, false
		}
		d.lastSeq = f.Seq
	}

	e := Event{ID: f.ID, Type: f.Type, Data: f.Data}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if f.Timestamp != nil {
		e.Timestamp = *f.Timestamp
	} else {
		e.Timestamp = d.now()
	}
	return e, true
}

// resetSequence is called after a reconnect; the server restarts numbering
// per connection.
func (d *frameDecoder) resetSequence() {
	d.lastSeq = 0
}

func (d *frameDecoder) drop(reason string, err error) {
	metrics.RealtimeEventsDropped.WithLabelValues(d.source, reason).Inc()
	d.logger.Warn("dropping realtime frame", map[string]interface{}{
		"source": d.source,
		"reason": reason,
		"error":  err.Error(),
	})
}
