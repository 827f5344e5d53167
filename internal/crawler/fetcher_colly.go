package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// browserHeaders mimic a desktop browser. Several monitored storefronts
// serve bot traffic a 403 or an empty shell page without them.
var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// CollyFetcher implements Fetcher using a Colly collector.
type CollyFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)
	base.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders {
			r.Headers.Set(k, v)
		}
	})

	return &CollyFetcher{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch retrieves a page, mapping 403/404/429 to typed fetch errors so the
// crawl loop can decide whether to retry.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		send(fetchResult{err: classifyFetchError(rawURL, r, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, &FetchError{
			Kind: FetchNetwork,
			URL:  rawURL,
			Err:  errors.New("colly fetch produced no result"),
		}
	}
}

func classifyFetchError(rawURL string, r *colly.Response, err error) error {
	if err == nil {
		err = errors.New("unknown colly error")
	}
	status := 0
	if r != nil {
		status = r.StatusCode
	}
	kind := FetchNetwork
	switch status {
	case http.StatusForbidden:
		kind = FetchBlocked
	case http.StatusNotFound:
		kind = FetchNotFound
	case http.StatusTooManyRequests:
		kind = FetchRateLimited
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = FetchTimeout
		}
	}
	return &FetchError{Kind: kind, URL: rawURL, StatusCode: status, Err: err}
}

type fetchResult struct {
	page Page
	err  error
}
