// internal/messaging/fetcher.go
package messaging

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"marketplace-console/internal/common/metrics"
)

// ErrSuperseded is returned by a fetch that a newer fetch for the same
// resource replaced. Its response is discarded.
var ErrSuperseded = stderrors.New("fetch superseded by a newer request")

// latestOnly tracks one in-flight fetch per resource key. Starting a fetch
// cancels the previous one for that key, and only the newest fetch may apply
// its response.
type latestOnly struct {
	mu      sync.Mutex
	gens    map[string]uint64
	cancels map[string]context.CancelFunc
}

func newLatestOnly() *latestOnly {
	return &latestOnly{
		gens:    make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// begin starts a fetch for key. finish must be called when the fetch ends.
func (l *latestOnly) begin(parent context.Context, key string) (ctx context.Context, gen uint64, finish func()) {
	ctx, cancel := context.WithCancel(parent)

	l.mu.Lock()
	if prev, ok := l.cancels[key]; ok {
		prev()
		metrics.FetchesSuperseded.WithLabelValues(resourceLabel(key)).Inc()
	}
	l.gens[key]++
	gen = l.gens[key]
	l.cancels[key] = cancel
	l.mu.Unlock()

	return ctx, gen, func() {
		l.mu.Lock()
		if l.gens[key] == gen {
			delete(l.cancels, key)
		}
		l.mu.Unlock()
		cancel()
	}
}

// apply runs fn only if gen is still the newest fetch for key. fn runs under
// the tracker lock so a newer begin cannot interleave with it.
func (l *latestOnly) apply(key string, gen uint64, fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gens[key] != gen {
		return false
	}
	fn()
	return true
}

func resourceLabel(key string) string {
	resource, _, _ := strings.Cut(key, ":")
	return resource
}
