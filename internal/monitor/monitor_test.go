package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/detect"
	memorystore "github.com/sitewatch/sitewatch/internal/store/memory"
)

type fakeCrawler struct {
	err     error
	crawled []string
}

func (c *fakeCrawler) Crawl(_ context.Context, rootURL string, _ bool) (crawler.Result, error) {
	c.crawled = append(c.crawled, rootURL)
	if c.err != nil {
		return crawler.Result{}, c.err
	}
	return crawler.Result{Snapshot: crawler.Snapshot{
		TargetURL: rootURL,
		Pages:     []crawler.PageRecord{{URL: rootURL, Location: "/"}},
	}}, nil
}

type fakeCapturer struct {
	ref string
	err error
}

func (c *fakeCapturer) Capture(context.Context, string) (string, error) {
	return c.ref, c.err
}

type fakeDetector struct {
	changes []detect.Change
	err     error
	gotRef  string
}

func (d *fakeDetector) Detect(_ context.Context, snap crawler.Snapshot) ([]detect.Change, error) {
	d.gotRef = snap.ScreenshotRef
	return d.changes, d.err
}

type collectingNotifier struct {
	mu      sync.Mutex
	batches [][]detect.Change
	done    chan struct{}
}

func newCollectingNotifier() *collectingNotifier {
	return &collectingNotifier{done: make(chan struct{}, 1)}
}

func (n *collectingNotifier) Notify(_ context.Context, _ string, changes []detect.Change) error {
	n.mu.Lock()
	n.batches = append(n.batches, changes)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func TestCheckRunsFullPipeline(t *testing.T) {
	t.Parallel()

	cr := &fakeCrawler{}
	det := &fakeDetector{changes: []detect.Change{
		{ID: "c1", Kind: detect.KindTextChange, SignificanceScore: 8},
	}}
	st := memorystore.New()
	notifier := newCollectingNotifier()
	svc := NewService(cr, &fakeCapturer{ref: "shots/x.png"}, det, st, st, notifier, zap.NewNop())

	result, err := svc.Check(context.Background(), "example.com", false)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", result.Target)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.Changes, 1)

	// Screenshot ref flowed into the snapshot handed to the detector.
	assert.Equal(t, "shots/x.png", det.gotRef)

	// Changes were persisted.
	stored, err := st.ListChanges(context.Background(), "https://example.com/", 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// Significant change was notified.
	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.batches, 1)
	assert.Equal(t, "c1", notifier.batches[0][0].ID)
}

func TestCheckCrawlFailureAborts(t *testing.T) {
	t.Parallel()

	cr := &fakeCrawler{err: errors.New("origin unreachable")}
	st := memorystore.New()
	det := &fakeDetector{}
	svc := NewService(cr, nil, det, st, st, nil, zap.NewNop())

	_, err := svc.Check(context.Background(), "https://example.com/", false)
	require.Error(t, err)

	stored, err := st.ListChanges(context.Background(), "https://example.com/", 10)
	require.NoError(t, err)
	assert.Empty(t, stored, "a failed crawl must not record anything")
}

func TestCheckScreenshotFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	st := memorystore.New()
	det := &fakeDetector{changes: []detect.Change{{Kind: detect.KindSiteCheck}}}
	svc := NewService(&fakeCrawler{}, &fakeCapturer{err: errors.New("browser gone")}, det, st, st, nil, zap.NewNop())

	result, err := svc.Check(context.Background(), "https://example.com/", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	assert.Empty(t, det.gotRef)
}

func TestCheckRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	st := memorystore.New()
	svc := NewService(&fakeCrawler{}, nil, &fakeDetector{}, st, st, nil, zap.NewNop())

	_, err := svc.Check(context.Background(), "", false)
	require.Error(t, err)
}

func TestFilterSignificantDropsHeartbeatsAndLowScores(t *testing.T) {
	t.Parallel()

	st := memorystore.New()
	svc := NewService(&fakeCrawler{}, nil, &fakeDetector{}, st, st, nil, zap.NewNop())

	changes := []detect.Change{
		{ID: "heartbeat", Kind: detect.KindSiteCheck, SignificanceScore: 10},
		{ID: "low", Kind: detect.KindTextChange, SignificanceScore: 3},
		{ID: "exactly-min", Kind: detect.KindTextChange, SignificanceScore: 5},
		{ID: "high", Kind: detect.KindLinksAdded, SignificanceScore: 9},
	}
	got := svc.filterSignificant(changes)

	require.Len(t, got, 2)
	assert.Equal(t, "exactly-min", got[0].ID)
	assert.Equal(t, "high", got[1].ID)
}

func TestFilterSignificantHonorsSavedPreferences(t *testing.T) {
	t.Parallel()

	st := memorystore.New()
	prefs, err := st.GetPreferences(context.Background())
	require.NoError(t, err)
	prefs.Notification.MinimumSignificance = 8
	require.NoError(t, st.SavePreferences(context.Background(), prefs))

	svc := NewService(&fakeCrawler{}, nil, &fakeDetector{}, st, st, nil, zap.NewNop())
	got := svc.filterSignificant([]detect.Change{
		{ID: "seven", Kind: detect.KindTextChange, SignificanceScore: 7},
		{ID: "eight", Kind: detect.KindTextChange, SignificanceScore: 8},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "eight", got[0].ID)
}

func TestCheckSerializesSameTarget(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	cr := &slowCrawler{enter: func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
	}, exit: func() {
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}

	st := memorystore.New()
	det := &fakeDetector{changes: []detect.Change{{Kind: detect.KindSiteCheck}}}
	svc := NewService(cr, nil, det, st, st, nil, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Check(context.Background(), "https://example.com/", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight, "checks for the same target must not overlap")
}

type slowCrawler struct {
	enter, exit func()
}

func (c *slowCrawler) Crawl(_ context.Context, rootURL string, _ bool) (crawler.Result, error) {
	c.enter()
	time.Sleep(10 * time.Millisecond)
	c.exit()
	return crawler.Result{Snapshot: crawler.Snapshot{
		TargetURL: rootURL,
		Pages:     []crawler.PageRecord{{URL: rootURL, Location: "/"}},
	}}, nil
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Hour, ParseFrequency("1 hour"))
	assert.Equal(t, time.Hour, ParseFrequency("Hourly"))
	assert.Equal(t, 6*time.Hour, ParseFrequency("6 hours"))
	assert.Equal(t, 12*time.Hour, ParseFrequency("12 hours"))
	assert.Equal(t, 24*time.Hour, ParseFrequency("24 hours"))
	assert.Equal(t, 24*time.Hour, ParseFrequency("daily"))
	assert.Equal(t, 6*time.Hour, ParseFrequency("every fortnight"))
	assert.Equal(t, 6*time.Hour, ParseFrequency(""))
}
