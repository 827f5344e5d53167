// Package screenshot captures full-page raster images of monitored URLs and
// computes pixel-level differences between two captures.
package screenshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/blob"
)

// Standard capture dimensions; both sides of a comparison are normalized to
// this size before pixel diffing.
const (
	captureWidth  = 1920
	captureHeight = 1080
)

// Capturer takes full-page screenshots through headless Chrome and persists
// them through the blob provider.
type Capturer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	blobs           blob.Provider
	timeout         time.Duration
	logger          *zap.Logger
}

// NewCapturer starts a dedicated headless browser for screenshot work.
func NewCapturer(blobs blob.Provider, timeout time.Duration, logger *zap.Logger) (*Capturer, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(captureWidth, captureHeight),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &Capturer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		blobs:           blobs,
		timeout:         timeout,
		logger:          logger,
	}, nil
}

// Close tears down the browser.
func (c *Capturer) Close(_ context.Context) error {
	if c == nil {
		return nil
	}
	c.browserCancel()
	c.allocatorCancel()
	return nil
}

// Capture screenshots url, stores the PNG, and returns the blob reference.
func (c *Capturer) Capture(ctx context.Context, url string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("capturer not available")
	}
	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTask()

	go func() {
		select {
		case <-ctx.Done():
			cancelTask()
		case <-taskCtx.Done():
		}
	}()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
		chromedp.FullScreenshot(&png, 90),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("capture %s: %w", url, err)
	}

	ref := screenshotRef(url)
	if err := c.blobs.Put(ctx, ref, png); err != nil {
		return "", fmt.Errorf("store screenshot: %w", err)
	}
	return ref, nil
}

func screenshotRef(url string) string {
	sanitized := strings.NewReplacer("://", "_", "/", "_", ":", "_").Replace(url)
	return fmt.Sprintf("screenshots/%s_%s.png", sanitized, time.Now().UTC().Format("20060102_150405"))
}
