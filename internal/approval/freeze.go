// internal/approval/freeze.go
package approval

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultFreezePeriod = 10 * time.Minute
	DefaultTick         = time.Second
)

// FreezeState is the cooling-off countdown derived from the server's
// phoneVerifiedAt stamp. The client clock is only used for display.
type FreezeState struct {
	Started   bool
	Remaining time.Duration
}

// Done reports whether the freeze has run out after phone verification.
func (f FreezeState) Done() bool {
	return f.Started && f.Remaining == 0
}

// FreezeRemaining returns period - (now - verifiedAt), clamped at zero. A nil
// verifiedAt means verification has not happened and the full period remains.
func FreezeRemaining(verifiedAt *time.Time, now time.Time, period time.Duration) FreezeState {
	if verifiedAt == nil {
		return FreezeState{Started: false, Remaining: period}
	}
	remaining := period - now.Sub(*verifiedAt)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > period {
		remaining = period
	}
	return FreezeState{Started: true, Remaining: remaining}
}

// ItemEditable gates checklist toggles: the phone item is always editable,
// every other item only once the freeze after phone verification is over.
func ItemEditable(item ChecklistItem, verifiedAt *time.Time, now time.Time, period time.Duration) bool {
	if item == ItemPhoneVerified {
		return true
	}
	return FreezeRemaining(verifiedAt, now, period).Done()
}

// Countdown emits the remaining freeze immediately and then once per tick.
// It sends a final zero and closes; it also closes when ctx ends.
func Countdown(ctx context.Context, verifiedAt time.Time, period, tick time.Duration, now func() time.Time) <-chan time.Duration {
	if tick <= 0 {
		tick = DefaultTick
	}
	if now == nil {
		now = time.Now
	}
	out := make(chan time.Duration, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			remaining := FreezeRemaining(&verifiedAt, now(), period).Remaining
			select {
			case out <- remaining:
			case <-ctx.Done():
				return
			}
			if remaining == 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// FormatRemaining renders a countdown as mm:ss.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d/time.Minute), int((d%time.Minute)/time.Second))
}
