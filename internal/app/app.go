// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/blob"
	"github.com/sitewatch/sitewatch/internal/config"
	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/extract"
	"github.com/sitewatch/sitewatch/internal/logging"
	"github.com/sitewatch/sitewatch/internal/monitor"
	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/score"
	"github.com/sitewatch/sitewatch/internal/screenshot"
	"github.com/sitewatch/sitewatch/internal/store"
	filestore "github.com/sitewatch/sitewatch/internal/store/file"
	memorystore "github.com/sitewatch/sitewatch/internal/store/memory"
	postgresstore "github.com/sitewatch/sitewatch/internal/store/postgres"
)

// App holds the shared services. It is initialized once at startup and
// passed to the commands that need it.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Changes store.ChangeStore
	Configs store.ConfigStore
	Blobs   blob.Provider
	Monitor *monitor.Service

	renderer *crawler.ChromedpRenderer
	capturer *screenshot.Capturer
	pgStore  *postgresstore.Store
	closers  []func() error
}

// New builds every service from configuration. It fails fast when a
// configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	if err := a.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initBlobs(ctx, cfg); err != nil {
		return nil, err
	}

	cr, err := a.buildCrawler(cfg)
	if err != nil {
		return nil, err
	}

	var capturer monitor.Capturer
	var differ detect.VisualDiffer
	if cfg.Screenshot.Enabled {
		c, err := screenshot.NewCapturer(a.Blobs, cfg.Screenshot.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("init screenshot capturer: %w", err)
		}
		a.capturer = c
		capturer = c
		differ = screenshot.NewDiffer(a.Blobs)
	}

	scorer := a.buildScorer(cfg)
	detector := detect.NewDetector(detect.NewMemoryBaselineStore(), scorer, differ, logger)

	notifier, err := a.buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Monitor = monitor.NewService(cr, capturer, detector, a.Changes, a.Configs, notifier, logger)

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Backend),
		zap.String("blob", cfg.Blob.Backend),
		zap.Bool("screenshots", cfg.Screenshot.Enabled))
	return a, nil
}

func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	switch cfg.Store.Backend {
	case "memory":
		s := memorystore.New()
		a.Changes, a.Configs = s, s
	case "file":
		s, err := filestore.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		a.Changes, a.Configs = s, s
	case "postgres":
		s, err := postgresstore.New(ctx, postgresstore.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.pgStore = s
		a.Changes, a.Configs = s, s
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
	return nil
}

func (a *App) initBlobs(ctx context.Context, cfg config.Config) error {
	switch cfg.Blob.Backend {
	case "memory":
		a.Blobs = blob.NewMemoryProvider()
	case "local":
		p, err := blob.NewLocalProvider(cfg.Blob.Dir)
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.Blobs = p
	case "gcs":
		p, err := blob.NewGCSProvider(ctx, cfg.Blob.Bucket)
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.Blobs = p
	default:
		return fmt.Errorf("unknown blob backend: %s", cfg.Blob.Backend)
	}
	return nil
}

func (a *App) buildCrawler(cfg config.Config) (*crawler.Crawler, error) {
	fetcher, err := crawler.NewCollyFetcher(cfg.Crawler, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	extractor := extract.NewExtractor(crawler.NormalizeURL)
	var opts []crawler.Option
	if cfg.Crawler.RenderEnabled {
		renderer, err := crawler.NewChromedpRenderer(cfg.Crawler, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		a.renderer = renderer
		opts = append(opts, crawler.WithRenderer(renderer))
	}
	return crawler.New(cfg.Crawler, fetcher, extractor, a.Logger, opts...), nil
}

func (a *App) buildScorer(cfg config.Config) detect.Scorer {
	if cfg.Classifier.Endpoint == "" {
		a.Logger.Info("no classifier endpoint configured, changes get the fallback score")
		return score.NewScorer(nil, cfg.Classifier.Timeout, a.Logger)
	}
	classifier, err := score.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.APIKey, cfg.Classifier.Model)
	if err != nil {
		a.Logger.Warn("classifier misconfigured, falling back to default scoring", zap.Error(err))
		return score.NewScorer(nil, cfg.Classifier.Timeout, a.Logger)
	}
	return score.NewScorer(classifier, cfg.Classifier.Timeout, a.Logger)
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, error) {
	notifiers := []notify.Notifier{notify.NewLogNotifier(a.Logger)}
	if cfg.Notify.SMTP.Enabled {
		n, err := notify.NewEmailNotifier(notify.SMTPConfig{
			Host:      cfg.Notify.SMTP.Host,
			Port:      cfg.Notify.SMTP.Port,
			Username:  cfg.Notify.SMTP.Username,
			Password:  cfg.Notify.SMTP.Password,
			From:      cfg.Notify.SMTP.From,
			Recipient: cfg.Notify.SMTP.To,
		})
		if err != nil {
			return nil, fmt.Errorf("init email notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Notify.PubSub.Enabled {
		n, err := notify.NewPubSubNotifier(ctx, cfg.Notify.PubSub.ProjectID, cfg.Notify.PubSub.TopicID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		notifiers = append(notifiers, n)
	}
	return notify.NewMulti(a.Logger, notifiers...), nil
}

// Close releases browsers, connections, and clients in reverse dependency
// order. Errors are logged, not returned; shutdown always completes.
func (a *App) Close(ctx context.Context) {
	if a.capturer != nil {
		if err := a.capturer.Close(ctx); err != nil {
			a.Logger.Warn("close capturer", zap.Error(err))
		}
	}
	if a.renderer != nil {
		if err := a.renderer.Close(ctx); err != nil {
			a.Logger.Warn("close renderer", zap.Error(err))
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.Logger.Warn("close service", zap.Error(err))
		}
	}
	if a.Blobs != nil {
		if err := a.Blobs.Close(); err != nil {
			a.Logger.Warn("close blob store", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	_ = a.Logger.Sync()
}
