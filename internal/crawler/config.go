package crawler

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences a crawl run. Values originate
// from Viper so the crawler can be configured via file, env, or flags.
type Config struct {
	UserAgent            string
	RequestTimeout       time.Duration
	PageCap              int
	DelayMin             time.Duration
	DelayMax             time.Duration
	RenderEnabled        bool
	RenderTimeout        time.Duration
	RenderMaxConcurrency int
	RenderDomainQPS      float64
	RenderScrollPasses   int
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		UserAgent:            v.GetString("crawler.user_agent"),
		RequestTimeout:       v.GetDuration("crawler.request_timeout"),
		PageCap:              v.GetInt("crawler.page_cap"),
		DelayMin:             v.GetDuration("crawler.delay_min"),
		DelayMax:             v.GetDuration("crawler.delay_max"),
		RenderEnabled:        v.GetBool("crawler.render_enabled"),
		RenderTimeout:        v.GetDuration("crawler.render_timeout"),
		RenderMaxConcurrency: v.GetInt("crawler.render_max_concurrency"),
		RenderDomainQPS:      v.GetFloat64("crawler.render_domain_qps"),
		RenderScrollPasses:   v.GetInt("crawler.render_scroll_passes"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.PageCap <= 0 {
		return fmt.Errorf("crawler.page_cap must be > 0")
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("crawler.delay_min/delay_max must satisfy 0 <= min <= max")
	}
	if c.RenderEnabled {
		if c.RenderTimeout <= 0 {
			return fmt.Errorf("crawler.render_timeout must be > 0")
		}
		if c.RenderMaxConcurrency <= 0 {
			return fmt.Errorf("crawler.render_max_concurrency must be > 0")
		}
	}
	if c.RenderDomainQPS < 0 {
		return fmt.Errorf("crawler.render_domain_qps must be >= 0")
	}
	return nil
}
