package crawler

import (
	"context"
	"time"

	"github.com/sitewatch/sitewatch/internal/extract"
)

// Fetcher retrieves a single page over HTTP(S).
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer executes client-side script in a headless browser and returns the
// fully rendered DOM. Implementations must be safe for reuse across pages
// within one crawl.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// Extractor derives structured page facts from HTML. baseURL anchors the
// same-domain link filter; pageURL resolves relative hrefs.
type Extractor interface {
	Extract(html []byte, pageURL string, baseURL string) (extract.Result, error)
}

// RetryPolicy decides whether a failed fetch deserves another attempt and
// how long to wait before it.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}
