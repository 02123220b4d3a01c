// internal/approval/freeze_test.go
package approval

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeRemaining(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		v := now.Add(-ago)
		return &v
	}

	tests := []struct {
		name       string
		verifiedAt *time.Time
		want       FreezeState
	}{
		{"not verified", nil, FreezeState{Started: false, Remaining: DefaultFreezePeriod}},
		{"just verified", at(0), FreezeState{Started: true, Remaining: 10 * time.Minute}},
		{"nine minutes", at(9 * time.Minute), FreezeState{Started: true, Remaining: time.Minute}},
		{"nine and a half", at(9*time.Minute + 30*time.Second), FreezeState{Started: true, Remaining: 30 * time.Second}},
		{"eleven minutes", at(11 * time.Minute), FreezeState{Started: true, Remaining: 0}},
		{"clock skew into the future", at(-time.Minute), FreezeState{Started: true, Remaining: 10 * time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FreezeRemaining(tt.verifiedAt, now, DefaultFreezePeriod))
		})
	}
}

func TestItemEditable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	nineAgo := now.Add(-9 * time.Minute)
	elevenAgo := now.Add(-11 * time.Minute)

	for _, item := range Items {
		wantDuringFreeze := item == ItemPhoneVerified
		assert.Equal(t, wantDuringFreeze, ItemEditable(item, nil, now, DefaultFreezePeriod), "unverified %s", item)
		assert.Equal(t, wantDuringFreeze, ItemEditable(item, &nineAgo, now, DefaultFreezePeriod), "9m %s", item)
		assert.True(t, ItemEditable(item, &elevenAgo, now, DefaultFreezePeriod), "11m %s", item)
	}
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
	dt  time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.dt)
	return t
}

func TestCountdown_RunsToZero(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &steppingClock{now: start, dt: time.Second}
	verifiedAt := start.Add(-9*time.Minute - 57*time.Second)

	var got []time.Duration
	for d := range Countdown(context.Background(), verifiedAt, DefaultFreezePeriod, time.Millisecond, clock.Now) {
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second, time.Second, 0}, got)
}

func TestCountdown_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Countdown(ctx, time.Now(), time.Hour, time.Millisecond, nil)

	first := <-ch
	assert.Greater(t, first, 59*time.Minute)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "10:00", FormatRemaining(10*time.Minute))
	assert.Equal(t, "01:00", FormatRemaining(time.Minute+200*time.Millisecond))
	assert.Equal(t, "00:00", FormatRemaining(-time.Second))
}

func TestChecklist(t *testing.T) {
	var c Checklist
	assert.Len(t, c.Missing(), 12)
	assert.False(t, c.Complete())

	for _, item := range Items {
		require.NoError(t, c.Set(item, true))
	}
	assert.True(t, c.Complete())
	assert.Empty(t, c.Missing())

	require.NoError(t, c.Set(ItemTaxIDVerified, false))
	assert.Equal(t, []ChecklistItem{ItemTaxIDVerified}, c.Missing())
	assert.Error(t, c.Set("unknown", true))
	assert.False(t, c.Get("unknown"))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"taxIdVerified":false`)
	assert.Contains(t, string(data), `"reraRegistrationVerified":true`)

	_, err = ParseItem("agreementSigned")
	assert.NoError(t, err)
	_, err = ParseItem("agreement")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusUnderReview))
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusUnderReview, StatusRejected))
	assert.False(t, CanTransition(StatusUnderReview, StatusPending))
	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusUnderReview))
}
