// Package memory provides in-memory store implementations for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/store"
)

// Store implements store.ChangeStore and store.ConfigStore in-process.
type Store struct {
	mu      sync.RWMutex
	changes map[string][]detect.Change
	configs map[string]store.MonitorConfig
	prefs   *store.Preferences
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		changes: make(map[string][]detect.Change),
		configs: make(map[string]store.MonitorConfig),
	}
}

// AppendChanges appends and trims the target's history to the retention
// bound, oldest evicted first.
func (s *Store) AppendChanges(_ context.Context, target string, changes []detect.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.changes[target], changes...)
	if excess := len(history) - store.MaxChangesPerTarget; excess > 0 {
		history = append([]detect.Change(nil), history[excess:]...)
	}
	s.changes[target] = history
	return nil
}

// ListChanges returns up to limit changes newest-first. Empty target lists
// across all targets, merged by timestamp.
func (s *Store) ListChanges(_ context.Context, target string, limit int) ([]detect.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = store.MaxChangesPerTarget
	}

	var all []detect.Change
	if target != "" {
		all = append(all, s.changes[target]...)
	} else {
		for _, history := range s.changes {
			all = append(all, history...)
		}
	}

	// Histories are append-ordered; reverse for newest-first, then fix up
	// cross-target ordering by timestamp.
	out := make([]detect.Change, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if target == "" {
		sortByTimestampDesc(out)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByTimestampDesc(changes []detect.Change) {
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && changes[j].Timestamp.After(changes[j-1].Timestamp); j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
}

// UpsertConfig inserts or replaces the config for its URL.
func (s *Store) UpsertConfig(_ context.Context, cfg store.MonitorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.AddedAt.IsZero() {
		cfg.AddedAt = time.Now().UTC()
	}
	s.configs[cfg.URL] = cfg
	return nil
}

// GetConfig returns the config for url.
func (s *Store) GetConfig(_ context.Context, url string) (store.MonitorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[url]
	if !ok {
		return store.MonitorConfig{}, store.ErrNotFound
	}
	return cfg, nil
}

// ListConfigs returns every stored monitor config.
func (s *Store) ListConfigs(_ context.Context) ([]store.MonitorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.MonitorConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	return out, nil
}

// DeleteConfig removes the config for url.
func (s *Store) DeleteConfig(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[url]; !ok {
		return store.ErrNotFound
	}
	delete(s.configs, url)
	return nil
}

// GetPreferences returns saved preferences, or the documented defaults.
func (s *Store) GetPreferences(_ context.Context) (store.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefs == nil {
		return store.DefaultPreferences(), nil
	}
	return *s.prefs, nil
}

// SavePreferences replaces the stored preferences.
func (s *Store) SavePreferences(_ context.Context, prefs store.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = &prefs
	return nil
}
