package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/store"
	memorystore "github.com/sitewatch/sitewatch/internal/store/memory"
)

func newTestScheduler(t *testing.T) (*Scheduler, *memorystore.Store, *fakeCrawler) {
	t.Helper()
	cr := &fakeCrawler{}
	st := memorystore.New()
	svc := NewService(cr, nil, &fakeDetector{changes: []detect.Change{{Kind: detect.KindSiteCheck}}}, st, st, nil, zap.NewNop())
	return NewScheduler(svc, st, time.Minute, zap.NewNop()), st, cr
}

func TestClaim(t *testing.T) {
	t.Parallel()
	sched, _, _ := newTestScheduler(t)
	now := time.Now()

	// Never-run target is immediately due.
	require.True(t, sched.claim("https://example.com/", now, time.Hour))

	// In flight, so a second claim is refused.
	assert.False(t, sched.claim("https://example.com/", now, time.Hour))

	// Completing the run releases the claim but stamps lastRun.
	sched.mu.Lock()
	delete(sched.running, "https://example.com/")
	sched.lastRun["https://example.com/"] = now
	sched.mu.Unlock()

	assert.False(t, sched.claim("https://example.com/", now.Add(30*time.Minute), time.Hour))
	assert.True(t, sched.claim("https://example.com/", now.Add(2*time.Hour), time.Hour))
}

func TestClaimIsPerTarget(t *testing.T) {
	t.Parallel()
	sched, _, _ := newTestScheduler(t)
	now := time.Now()

	require.True(t, sched.claim("https://a.example.com/", now, time.Hour))
	assert.True(t, sched.claim("https://b.example.com/", now, time.Hour),
		"one in-flight target must not block another")
}

func TestScanRunsDueTargets(t *testing.T) {
	t.Parallel()
	sched, st, cr := newTestScheduler(t)

	require.NoError(t, st.UpsertConfig(context.Background(), store.MonitorConfig{
		URL:            "https://example.com/",
		CheckFrequency: "1 hour",
	}))

	sched.scan(context.Background())

	// runOne is asynchronous; wait for the claim to be released.
	require.Eventually(t, func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		return !sched.running["https://example.com/"] && !sched.lastRun["https://example.com/"].IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"https://example.com/"}, cr.crawled)

	// Within the interval a second scan is a no-op.
	sched.scan(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, cr.crawled, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	sched, _, _ := newTestScheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
