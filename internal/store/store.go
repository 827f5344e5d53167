// Package store persists change records and per-target monitor
// configuration with bounded retention, behind provider interfaces with
// memory, JSON-file, and Postgres backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sitewatch/sitewatch/internal/detect"
)

// MaxChangesPerTarget bounds retained history. The bound applies per target
// so one noisy site cannot starve another's history.
const MaxChangesPerTarget = 100

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MonitorConfig is the per-target monitoring configuration.
type MonitorConfig struct {
	URL            string       `json:"url"`
	CheckFrequency string       `json:"check_frequency"`
	CrawlAllPages  bool         `json:"crawl_all_pages"`
	AddedAt        time.Time    `json:"added_at"`
	Preferences    *Preferences `json:"preferences,omitempty"`
}

// Preferences groups the notification, monitoring, and display settings.
type Preferences struct {
	Notification NotificationPrefs `json:"notification"`
	Monitoring   MonitoringPrefs   `json:"monitoring"`
	Display      DisplayPrefs      `json:"display"`
}

// NotificationPrefs controls outbound notifications.
type NotificationPrefs struct {
	EmailNotifications    bool   `json:"email_notifications"`
	Email                 string `json:"email,omitempty"`
	MinimumSignificance   int    `json:"minimum_significance"`
	NotificationFrequency string `json:"notification_frequency"`
}

// MonitoringPrefs controls default check behavior.
type MonitoringPrefs struct {
	DefaultCheckFrequency string `json:"default_check_frequency"`
	CrawlAllPagesDefault  bool   `json:"crawl_all_pages_default"`
}

// DisplayPrefs controls how much history consumers show by default.
type DisplayPrefs struct {
	RecentChangesLimit int `json:"recent_changes_limit"`
}

// DefaultPreferences returns the documented defaults.
func DefaultPreferences() Preferences {
	return Preferences{
		Notification: NotificationPrefs{
			EmailNotifications:    true,
			MinimumSignificance:   5,
			NotificationFrequency: "immediate",
		},
		Monitoring: MonitoringPrefs{
			DefaultCheckFrequency: "6 hours",
			CrawlAllPagesDefault:  false,
		},
		Display: DisplayPrefs{
			RecentChangesLimit: 10,
		},
	}
}

// ChangeStore persists detected changes with per-target retention.
type ChangeStore interface {
	// AppendChanges appends changes for target and trims that target's
	// history to MaxChangesPerTarget, oldest evicted first.
	AppendChanges(ctx context.Context, target string, changes []detect.Change) error
	// ListChanges returns up to limit changes, newest first. An empty
	// target lists across all targets.
	ListChanges(ctx context.Context, target string, limit int) ([]detect.Change, error)
}

// ConfigStore persists monitor configurations and global preferences.
type ConfigStore interface {
	UpsertConfig(ctx context.Context, cfg MonitorConfig) error
	GetConfig(ctx context.Context, url string) (MonitorConfig, error)
	ListConfigs(ctx context.Context) ([]MonitorConfig, error)
	DeleteConfig(ctx context.Context, url string) error

	GetPreferences(ctx context.Context) (Preferences, error)
	SavePreferences(ctx context.Context, prefs Preferences) error
}
