// Package file implements the stores over a single JSON document on disk,
// matching the original key-value layout: changes grouped by target, the
// monitor config list, and the preferences object.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/store"
)

type document struct {
	Changes     map[string][]detect.Change `json:"changes"`
	Configs     []store.MonitorConfig      `json:"configs"`
	Preferences *store.Preferences         `json:"preferences,omitempty"`
}

// Store implements store.ChangeStore and store.ConfigStore over one JSON
// file. All operations are read-modify-write under a single mutex: the
// retention trim must be atomic with the append.
type Store struct {
	mu   sync.Mutex
	path string
}

// New ensures the backing file exists and returns a Store over it.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store file path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(document{Changes: map[string][]detect.Change{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return document{}, fmt.Errorf("read store file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("decode store file: %w", err)
	}
	if doc.Changes == nil {
		doc.Changes = map[string][]detect.Change{}
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// AppendChanges appends under the target key and trims that target's list to
// the retention bound.
func (s *Store) AppendChanges(_ context.Context, target string, changes []detect.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	history := append(doc.Changes[target], changes...)
	if excess := len(history) - store.MaxChangesPerTarget; excess > 0 {
		history = history[excess:]
	}
	doc.Changes[target] = history
	return s.write(doc)
}

// ListChanges returns up to limit changes newest-first.
func (s *Store) ListChanges(_ context.Context, target string, limit int) ([]detect.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = store.MaxChangesPerTarget
	}

	var all []detect.Change
	if target != "" {
		all = doc.Changes[target]
	} else {
		for _, history := range doc.Changes {
			all = append(all, history...)
		}
	}

	// Histories are append-ordered; reverse for newest-first. A cross-target
	// merge walks the map in arbitrary order, so re-sort it by timestamp.
	out := make([]detect.Change, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if target == "" {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertConfig inserts or replaces the config for its URL.
func (s *Store) UpsertConfig(_ context.Context, cfg store.MonitorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if cfg.AddedAt.IsZero() {
		cfg.AddedAt = time.Now().UTC()
	}
	replaced := false
	for i := range doc.Configs {
		if doc.Configs[i].URL == cfg.URL {
			doc.Configs[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Configs = append(doc.Configs, cfg)
	}
	return s.write(doc)
}

// GetConfig returns the config for url.
func (s *Store) GetConfig(_ context.Context, url string) (store.MonitorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return store.MonitorConfig{}, err
	}
	for _, cfg := range doc.Configs {
		if cfg.URL == url {
			return cfg, nil
		}
	}
	return store.MonitorConfig{}, store.ErrNotFound
}

// ListConfigs returns every stored monitor config.
func (s *Store) ListConfigs(_ context.Context) ([]store.MonitorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return append([]store.MonitorConfig(nil), doc.Configs...), nil
}

// DeleteConfig removes the config for url.
func (s *Store) DeleteConfig(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	for i, cfg := range doc.Configs {
		if cfg.URL == url {
			doc.Configs = append(doc.Configs[:i], doc.Configs[i+1:]...)
			return s.write(doc)
		}
	}
	return store.ErrNotFound
}

// GetPreferences returns saved preferences, or the documented defaults.
func (s *Store) GetPreferences(_ context.Context) (store.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return store.Preferences{}, err
	}
	if doc.Preferences == nil {
		return store.DefaultPreferences(), nil
	}
	return *doc.Preferences, nil
}

// SavePreferences replaces the stored preferences.
func (s *Store) SavePreferences(_ context.Context, prefs store.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Preferences = &prefs
	return s.write(doc)
}
