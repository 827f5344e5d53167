package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/clock/system"
	"github.com/sitewatch/sitewatch/internal/extract"
	"github.com/sitewatch/sitewatch/internal/metrics"
)

// Crawler walks a target site and assembles a Snapshot. The frontier is an
// unordered set: callers get at most PageCap pages with no ordering
// guarantee beyond the root being first.
type Crawler struct {
	cfg       Config
	fetcher   Fetcher
	renderer  Renderer
	extractor Extractor
	retry     RetryPolicy
	pause     pauseController
	clock     Clock
	logger    *zap.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithRenderer attaches a headless renderer. Render failures fall back to
// the static fetch; a nil renderer disables dynamic rendering entirely.
func WithRenderer(r Renderer) Option {
	return func(c *Crawler) { c.renderer = r }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Crawler) { c.retry = p }
}

// WithClock overrides the clock, for tests.
func WithClock(clk Clock) Option {
	return func(c *Crawler) { c.clock = clk }
}

// WithoutDelay disables the polite inter-page pause, for tests.
func WithoutDelay() Option {
	return func(c *Crawler) { c.pause = noPause{} }
}

// New constructs a Crawler.
func New(cfg Config, fetcher Fetcher, extractor Extractor, logger *zap.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		retry:     NewBackoffRetryPolicy(),
		pause:     &randomPause{min: cfg.DelayMin, max: cfg.DelayMax},
		clock:     system.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches the root page and, when crawlAll is set, walks same-domain
// links breadth-wise until the frontier drains or the page cap is reached.
// A root fetch failure is fatal; failing non-root pages are skipped and
// logged. The context is rechecked between pages, so a crawl can be
// cancelled at page granularity.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, crawlAll bool) (Result, error) {
	started := c.clock.Now()
	defer func() {
		metrics.CrawlDuration.Observe(time.Since(started).Seconds())
	}()

	root, err := NormalizeURL(rootURL)
	if err != nil {
		return Result{}, fmt.Errorf("normalize root url: %w", err)
	}

	res := Result{Snapshot: Snapshot{TargetURL: root, Timestamp: started}}
	visited := newVisitTracker()
	frontier := map[string]struct{}{root: {}}

	for len(frontier) > 0 && visited.Count() < c.cfg.PageCap {
		if err := ctx.Err(); err != nil {
			c.logLine(&res, "crawl cancelled: %v", err)
			break
		}

		next := popAny(frontier)
		if !visited.MarkIfNew(next) {
			continue
		}

		isRoot := next == root
		if !isRoot {
			c.pause.Pause(ctx)
		}

		page, fetchErr := c.fetchWithRetry(ctx, next, &res)
		if fetchErr != nil {
			metrics.PagesFetched.WithLabelValues("error").Inc()
			if isRoot {
				c.logLine(&res, "root fetch failed: %v", fetchErr)
				return res, fmt.Errorf("fetch root %s: %w", root, fetchErr)
			}
			c.logLine(&res, "skipping %s: %v", next, fetchErr)
			c.logger.Warn("page skipped", zap.String("url", next), zap.Error(fetchErr))
			continue
		}
		metrics.PagesFetched.WithLabelValues("ok").Inc()

		record, links := c.buildRecord(next, root, page, &res)
		res.Snapshot.Pages = append(res.Snapshot.Pages, record)
		c.logLine(&res, "fetched %s (%d links)", next, len(links))

		if crawlAll {
			for _, link := range links {
				if _, seen := frontier[link]; seen {
					continue
				}
				if visited.Count()+len(frontier) >= c.cfg.PageCap*4 {
					break
				}
				frontier[link] = struct{}{}
			}
		}
	}

	if len(res.Snapshot.Pages) == 0 {
		return res, fmt.Errorf("crawl of %s produced no pages", root)
	}

	c.finalizeSnapshot(&res.Snapshot)
	return res, nil
}

// fetchWithRetry runs the static fetch under the retry policy, then
// optionally upgrades the body via the headless renderer. Render failures
// degrade to the static body and are never fatal.
func (c *Crawler) fetchWithRetry(ctx context.Context, pageURL string, res *Result) (Page, error) {
	var page Page
	var err error
	for attempt := 0; ; attempt++ {
		page, err = c.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			break
		}
		if !c.retry.ShouldRetry(err, attempt+1) {
			return Page{}, err
		}
		metrics.FetchRetries.Inc()
		backoff := c.retry.Backoff(attempt)
		c.logLine(res, "retrying %s after %s (attempt %d): %v", pageURL, backoff, attempt+1, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Page{}, ctx.Err()
		case <-timer.C:
		}
	}

	if c.renderer == nil {
		return page, nil
	}
	rendered, renderErr := c.renderer.Render(ctx, pageURL)
	if renderErr != nil {
		c.logLine(res, "render failed for %s, using static html: %v", pageURL, renderErr)
		return page, nil
	}
	if len(strings.TrimSpace(string(rendered.Body))) == 0 {
		return page, nil
	}
	return rendered, nil
}

func (c *Crawler) buildRecord(pageURL, root string, page Page, res *Result) (PageRecord, []string) {
	out, err := c.extractor.Extract(page.Body, pageURL, root)
	if err != nil {
		// Extraction always has a fallback path; an error here means even
		// the fallback found nothing. Record the page with empty facts.
		c.logLine(res, "extraction failed for %s: %v", pageURL, err)
		out = extract.Result{}
	}
	record := PageRecord{
		URL:           pageURL,
		Location:      Location(pageURL),
		TextContent:   out.Text,
		Links:         out.Links,
		Styles:        out.Style,
		MenuStructure: out.Menus,
	}
	return record, out.Links
}

// finalizeSnapshot fills the root-mirroring convenience fields and the
// content fingerprint. The fingerprint covers every page so that a change on
// any crawled page defeats the short-circuit, not just the root.
func (c *Crawler) finalizeSnapshot(s *Snapshot) {
	var texts []string
	var allLinks []string
	for _, p := range s.Pages {
		texts = append(texts, p.TextContent)
		allLinks = append(allLinks, p.Links...)
	}
	s.ContentHash = ContentFingerprint(strings.Join(texts, "\n\n"), allLinks)

	root := s.Root()
	s.TextContent = root.TextContent
	s.Links = root.Links
	s.Styles = root.Styles
	s.MenuStructure = root.MenuStructure
	s.ScreenshotRef = root.ScreenshotRef
}

func (c *Crawler) logLine(res *Result, format string, args ...any) {
	res.Log = append(res.Log, LogEntry{
		At:      c.clock.Now(),
		Message: fmt.Sprintf(format, args...),
	})
}

// popAny removes and returns an arbitrary member of the set.
func popAny(set map[string]struct{}) string {
	for k := range set {
		delete(set, k)
		return k
	}
	return ""
}
