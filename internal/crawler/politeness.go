package crawler

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// visitTracker provides thread-safe visited URL tracking to prevent revisits.
type visitTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitTracker() *visitTracker {
	return &visitTracker{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *visitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[url]; ok {
		return false
	}
	t.seen[url] = struct{}{}
	return true
}

// Count returns how many URLs have been marked.
func (t *visitTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// pauseController abstracts the polite inter-request delay so tests can skip it.
type pauseController interface {
	Pause(ctx context.Context)
}

// randomPause sleeps a random duration in [min, max], honoring cancellation.
type randomPause struct {
	min time.Duration
	max time.Duration
}

func (p *randomPause) Pause(ctx context.Context) {
	delay := p.min
	if p.max > p.min {
		delay += time.Duration(rand.Int63n(int64(p.max - p.min)))
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// noPause is used by tests.
type noPause struct{}

func (noPause) Pause(context.Context) {}
