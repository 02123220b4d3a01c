// internal/common/toast/toast_test.go
package toast

import (
	"sync"
	"testing"

	"marketplace-console/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	_, ok := r.Last()
	assert.False(t, ok)

	r.Success("Vendor approved")
	r.Error("Please provide a rejection reason")
	r.Info("Checklist unlocked")

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, LevelSuccess, all[0].Level)
	assert.False(t, all[0].At.IsZero())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, Toast{Level: LevelInfo, Message: "Checklist unlocked", At: last.At}, last)

	errs := r.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "Please provide a rejection reason", errs[0].Message)

	all[0].Message = "mutated"
	assert.Equal(t, "Vendor approved", r.All()[0].Message)
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Error("failed")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Errors(), 50)
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b, NewLogNotifier(logger.NewTestLogger(t))}

	m.Success("saved")
	m.Error("failed")
	m.Info("note")

	for _, r := range []*Recorder{a, b} {
		all := r.All()
		require.Len(t, all, 3)
		assert.Equal(t, []Level{LevelSuccess, LevelError, LevelInfo}, []Level{all[0].Level, all[1].Level, all[2].Level})
	}
}
