// Package monitor orchestrates a full check of one monitored site: crawl,
// screenshot, change detection, persistence, and notification.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/store"
)

// Crawler walks a site and returns its snapshot.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string, crawlAll bool) (crawler.Result, error)
}

// Capturer takes a screenshot of a URL and returns a blob reference.
type Capturer interface {
	Capture(ctx context.Context, url string) (string, error)
}

// Detector diffs a snapshot against the stored baseline.
type Detector interface {
	Detect(ctx context.Context, snap crawler.Snapshot) ([]detect.Change, error)
}

// Service runs checks. Checks against the same target are serialized so a
// slow crawl cannot race its own baseline; distinct targets run freely in
// parallel.
type Service struct {
	crawler  Crawler
	capturer Capturer
	detector Detector
	changes  store.ChangeStore
	configs  store.ConfigStore
	notifier notify.Notifier
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the pipeline. capturer and notifier may be nil; the
// corresponding steps are skipped.
func NewService(cr Crawler, cap Capturer, det Detector, changes store.ChangeStore, configs store.ConfigStore, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		crawler:  cr,
		capturer: cap,
		detector: det,
		changes:  changes,
		configs:  configs,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// CheckResult summarizes one completed check.
type CheckResult struct {
	Target    string             `json:"target"`
	PageCount int                `json:"page_count"`
	Changes   []detect.Change    `json:"changes"`
	CrawlLog  []crawler.LogEntry `json:"crawl_log,omitempty"`
}

// Check runs the full pipeline for one target. A crawl failure aborts the
// check without touching the baseline, so a transient outage never registers
// as the site's new state. A persistence failure is fatal too; notification
// failures are logged and swallowed.
func (s *Service) Check(ctx context.Context, rawURL string, crawlAll bool) (CheckResult, error) {
	normalized, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return CheckResult{}, fmt.Errorf("invalid target url: %w", err)
	}
	target := crawler.TargetKey(normalized)

	lock := s.targetLock(target)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.runCheck(ctx, target, crawlAll)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues("error").Inc()
		return CheckResult{}, err
	}
	metrics.ChecksTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func (s *Service) runCheck(ctx context.Context, target string, crawlAll bool) (CheckResult, error) {
	started := time.Now()
	s.logger.Info("check started", zap.String("target", target), zap.Bool("crawl_all", crawlAll))

	crawled, err := s.crawler.Crawl(ctx, target, crawlAll)
	if err != nil {
		return CheckResult{}, fmt.Errorf("crawl %s: %w", target, err)
	}
	snap := crawled.Snapshot

	if s.capturer != nil {
		ref, err := s.capturer.Capture(ctx, target)
		if err != nil {
			s.logger.Warn("screenshot capture failed, continuing without visual diff",
				zap.String("target", target), zap.Error(err))
		} else {
			snap.ScreenshotRef = ref
			if len(snap.Pages) > 0 {
				snap.Pages[0].ScreenshotRef = ref
			}
		}
	}

	changes, err := s.detector.Detect(ctx, snap)
	if err != nil {
		return CheckResult{}, fmt.Errorf("detect changes for %s: %w", target, err)
	}

	if err := s.changes.AppendChanges(ctx, target, changes); err != nil {
		return CheckResult{}, fmt.Errorf("persist changes for %s: %w", target, err)
	}

	s.notifyAsync(target, changes)

	s.logger.Info("check completed",
		zap.String("target", target),
		zap.Int("pages", len(snap.Pages)),
		zap.Int("changes", len(changes)),
		zap.Duration("elapsed", time.Since(started)))

	return CheckResult{
		Target:    target,
		PageCount: len(snap.Pages),
		Changes:   changes,
		CrawlLog:  crawled.Log,
	}, nil
}

// notifyAsync dispatches significant changes in the background. The check
// result does not wait on delivery.
func (s *Service) notifyAsync(target string, changes []detect.Change) {
	if s.notifier == nil {
		return
	}
	significant := s.filterSignificant(changes)
	if len(significant) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, target, significant); err != nil {
			s.logger.Error("notification failed", zap.String("target", target), zap.Error(err))
		}
	}()
}

// filterSignificant drops heartbeats and changes below the configured
// minimum significance.
func (s *Service) filterSignificant(changes []detect.Change) []detect.Change {
	minimum := store.DefaultPreferences().Notification.MinimumSignificance
	if s.configs != nil {
		if prefs, err := s.configs.GetPreferences(context.Background()); err == nil {
			minimum = prefs.Notification.MinimumSignificance
		}
	}
	var out []detect.Change
	for _, c := range changes {
		if c.Kind == detect.KindSiteCheck {
			continue
		}
		if c.SignificanceScore >= minimum {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) targetLock(target string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[target]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[target] = lock
	}
	return lock
}
