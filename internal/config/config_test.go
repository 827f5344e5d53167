package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	v, err := InitConfig("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, 50, cfg.Crawler.PageCap)
	assert.Equal(t, 30*time.Second, cfg.Crawler.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Crawler.DelayMin)
	assert.Equal(t, 3*time.Second, cfg.Crawler.DelayMax)
	assert.Contains(t, cfg.Crawler.UserAgent, "Chrome/120")
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "memory", cfg.Blob.Backend)
	assert.False(t, cfg.Screenshot.Enabled)
	assert.False(t, cfg.Notify.SMTP.Enabled)
	assert.Equal(t, 587, cfg.Notify.SMTP.Port)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Minute, cfg.Scheduler.ScanInterval)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
crawler:
  page_cap: 10
store:
  backend: file
  path: /tmp/state.json
scheduler:
  enabled: true
  scan_interval: 30s
`), 0o600))

	v, err := InitConfig(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Crawler.PageCap)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "/tmp/state.json", cfg.Store.Path)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ScanInterval)
}

func TestInitConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := InitConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		v, err := InitConfig("")
		require.NoError(t, err)
		cfg, err := Load(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: "store.backend",
		},
		{
			name: "file store without path",
			mutate: func(c *Config) {
				c.Store.Backend = "file"
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name:    "postgres store without dsn",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "store.dsn",
		},
		{
			name:    "unknown blob backend",
			mutate:  func(c *Config) { c.Blob.Backend = "s3" },
			wantErr: "blob.backend",
		},
		{
			name: "gcs blob without bucket",
			mutate: func(c *Config) {
				c.Blob.Backend = "gcs"
			},
			wantErr: "blob.bucket",
		},
		{
			name: "smtp enabled without host",
			mutate: func(c *Config) {
				c.Notify.SMTP.Enabled = true
				c.Notify.SMTP.From = "alerts@example.com"
				c.Notify.SMTP.To = "ops@example.com"
			},
			wantErr: "notify.smtp",
		},
		{
			name: "pubsub enabled without topic",
			mutate: func(c *Config) {
				c.Notify.PubSub.Enabled = true
				c.Notify.PubSub.ProjectID = "proj"
			},
			wantErr: "notify.pubsub",
		},
		{
			name: "scheduler enabled without interval",
			mutate: func(c *Config) {
				c.Scheduler.Enabled = true
				c.Scheduler.ScanInterval = 0
			},
			wantErr: "scheduler.scan_interval",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, base().Validate())
	})
}
