// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sitewatch/sitewatch/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Crawler    crawler.Config
	Screenshot ScreenshotConfig
	Classifier ClassifierConfig
	Store      StoreConfig
	Blob       BlobConfig
	Notify     NotifyConfig
	Scheduler  SchedulerConfig
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool
}

// ScreenshotConfig controls the screenshot capturer.
type ScreenshotConfig struct {
	Enabled bool
	Timeout time.Duration
}

// ClassifierConfig points at the change scoring endpoint.
type ClassifierConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// StoreConfig selects the change/config store backend.
type StoreConfig struct {
	Backend string // memory, file, postgres
	Path    string // file backend
	DSN     string // postgres backend
}

// BlobConfig selects the screenshot blob backend.
type BlobConfig struct {
	Backend string // memory, local, gcs
	Dir     string // local backend
	Bucket  string // gcs backend
}

// NotifyConfig configures outbound notification transports.
type NotifyConfig struct {
	SMTP   SMTPConfig
	PubSub PubSubConfig
}

// SMTPConfig carries email delivery settings.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool
	ProjectID string
	TopicID   string
}

// SchedulerConfig controls the background check scheduler.
type SchedulerConfig struct {
	Enabled      bool
	ScanInterval time.Duration
}

// InitConfig builds a Viper instance with defaults, optional config file,
// and SITEWATCH_ environment binding.
func InitConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load assembles the full Config from an initialized Viper instance.
func Load(v *viper.Viper) (Config, error) {
	crawlerCfg, err := crawler.LoadConfig(v)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Server: ServerConfig{
			Port: v.GetInt("server.port"),
		},
		Logging: LoggingConfig{
			Development: v.GetBool("logging.development"),
		},
		Crawler: crawlerCfg,
		Screenshot: ScreenshotConfig{
			Enabled: v.GetBool("screenshot.enabled"),
			Timeout: v.GetDuration("screenshot.timeout"),
		},
		Classifier: ClassifierConfig{
			Endpoint: v.GetString("classifier.endpoint"),
			APIKey:   v.GetString("classifier.api_key"),
			Model:    v.GetString("classifier.model"),
			Timeout:  v.GetDuration("classifier.timeout"),
		},
		Store: StoreConfig{
			Backend: v.GetString("store.backend"),
			Path:    v.GetString("store.path"),
			DSN:     v.GetString("store.dsn"),
		},
		Blob: BlobConfig{
			Backend: v.GetString("blob.backend"),
			Dir:     v.GetString("blob.dir"),
			Bucket:  v.GetString("blob.bucket"),
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Enabled:  v.GetBool("notify.smtp.enabled"),
				Host:     v.GetString("notify.smtp.host"),
				Port:     v.GetInt("notify.smtp.port"),
				Username: v.GetString("notify.smtp.username"),
				Password: v.GetString("notify.smtp.password"),
				From:     v.GetString("notify.smtp.from"),
				To:       v.GetString("notify.smtp.to"),
			},
			PubSub: PubSubConfig{
				Enabled:   v.GetBool("notify.pubsub.enabled"),
				ProjectID: v.GetString("notify.pubsub.project_id"),
				TopicID:   v.GetString("notify.pubsub.topic_id"),
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			ScanInterval: v.GetDuration("scheduler.scan_interval"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)

	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.page_cap", 50)
	v.SetDefault("crawler.delay_min", time.Second)
	v.SetDefault("crawler.delay_max", 3*time.Second)
	v.SetDefault("crawler.render_enabled", false)
	v.SetDefault("crawler.render_timeout", 30*time.Second)
	v.SetDefault("crawler.render_max_concurrency", 2)
	v.SetDefault("crawler.render_domain_qps", 1.0)
	v.SetDefault("crawler.render_scroll_passes", 3)

	v.SetDefault("screenshot.enabled", false)
	v.SetDefault("screenshot.timeout", 30*time.Second)

	v.SetDefault("classifier.timeout", 30*time.Second)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "sitewatch.json")

	v.SetDefault("blob.backend", "memory")
	v.SetDefault("blob.dir", "screenshots")

	v.SetDefault("notify.smtp.enabled", false)
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.pubsub.enabled", false)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.scan_interval", time.Minute)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the file backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory, file, or postgres")
	}
	switch c.Blob.Backend {
	case "memory":
	case "local":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob.dir must be set for the local backend")
		}
	case "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("blob.backend must be memory, local, or gcs")
	}
	if c.Notify.SMTP.Enabled {
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" || c.Notify.SMTP.To == "" {
			return fmt.Errorf("notify.smtp.host, from, and to must be set when smtp is enabled")
		}
	}
	if c.Notify.PubSub.Enabled {
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "" {
			return fmt.Errorf("notify.pubsub.project_id and topic_id must be set when pubsub is enabled")
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.ScanInterval <= 0 {
		return fmt.Errorf("scheduler.scan_interval must be > 0 when the scheduler is enabled")
	}
	return nil
}
