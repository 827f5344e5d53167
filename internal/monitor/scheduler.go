package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/store"
)

// defaultFrequency applies when a config carries an unrecognized frequency.
const defaultFrequency = 6 * time.Hour

// ParseFrequency maps the human-readable check frequencies to durations.
// Unrecognized values fall back to the six hour default.
func ParseFrequency(s string) time.Duration {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1 hour", "hourly":
		return time.Hour
	case "6 hours":
		return 6 * time.Hour
	case "12 hours":
		return 12 * time.Hour
	case "24 hours", "daily":
		return 24 * time.Hour
	default:
		return defaultFrequency
	}
}

// Scheduler periodically re-reads the monitor configuration and runs checks
// whose interval has elapsed. Configuration changes take effect on the next
// scan without a restart.
type Scheduler struct {
	service  *Service
	configs  store.ConfigStore
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
	running map[string]bool
}

// NewScheduler builds a scheduler that scans configs every scanInterval.
func NewScheduler(service *Service, configs store.ConfigStore, scanInterval time.Duration, logger *zap.Logger) *Scheduler {
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}
	return &Scheduler{
		service:  service,
		configs:  configs,
		interval: scanInterval,
		logger:   logger,
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled. Every monitored target gets an
// immediate first check, then repeats at its configured frequency. Checks
// for distinct targets run concurrently; a target never overlaps itself.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", zap.Duration("scan_interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	configs, err := s.configs.ListConfigs(ctx)
	if err != nil {
		s.logger.Error("scheduler: list configs", zap.Error(err))
		return
	}
	now := time.Now()
	for _, cfg := range configs {
		if !s.claim(cfg.URL, now, ParseFrequency(cfg.CheckFrequency)) {
			continue
		}
		go s.runOne(ctx, cfg)
	}
}

// claim marks the target as running when its interval has elapsed. Returns
// false when the check is not yet due or is already in flight.
func (s *Scheduler) claim(target string, now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[target] {
		return false
	}
	if last, ok := s.lastRun[target]; ok && now.Sub(last) < every {
		return false
	}
	s.running[target] = true
	return true
}

func (s *Scheduler) runOne(ctx context.Context, cfg store.MonitorConfig) {
	defer func() {
		s.mu.Lock()
		s.lastRun[cfg.URL] = time.Now()
		delete(s.running, cfg.URL)
		s.mu.Unlock()
	}()
	if _, err := s.service.Check(ctx, cfg.URL, cfg.CrawlAllPages); err != nil {
		s.logger.Error("scheduled check failed", zap.String("target", cfg.URL), zap.Error(err))
	}
}
