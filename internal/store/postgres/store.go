// Package postgres provides Postgres-backed persistence for change records
// and monitor configuration.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitewatch/sitewatch/internal/detect"
	"github.com/sitewatch/sitewatch/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.ChangeStore and store.ConfigStore over Postgres.
type Store struct {
	pool querier
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for tests).
func NewWithPool(pool querier) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const appendChangeSQL = `INSERT INTO changes (id, target_url, kind, recorded_at, payload)
VALUES ($1, $2, $3, $4, $5)`

// trimChangesSQL keeps the newest rows per target; ranking happens inside
// the statement so append-and-trim stays a single round trip per call.
const trimChangesSQL = `DELETE FROM changes WHERE id IN (
SELECT id FROM (
SELECT id, ROW_NUMBER() OVER (PARTITION BY target_url ORDER BY recorded_at DESC) AS rn
FROM changes WHERE target_url = $1
) ranked WHERE rn > $2)`

// AppendChanges inserts the changes and trims the target's history to the
// retention bound.
func (s *Store) AppendChanges(ctx context.Context, target string, changes []detect.Change) error {
	for _, c := range changes {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode change %s: %w", c.ID, err)
		}
		if _, err := s.pool.Exec(ctx, appendChangeSQL,
			c.ID, target, string(c.Kind), c.Timestamp, payload); err != nil {
			return fmt.Errorf("insert change %s: %w", c.ID, err)
		}
	}
	if _, err := s.pool.Exec(ctx, trimChangesSQL, target, store.MaxChangesPerTarget); err != nil {
		return fmt.Errorf("trim changes for %s: %w", target, err)
	}
	return nil
}

const listChangesSQL = `SELECT payload FROM changes
WHERE ($1 = '' OR target_url = $1)
ORDER BY recorded_at DESC LIMIT $2`

// ListChanges returns up to limit changes, newest first.
func (s *Store) ListChanges(ctx context.Context, target string, limit int) ([]detect.Change, error) {
	if limit <= 0 {
		limit = store.MaxChangesPerTarget
	}
	rows, err := s.pool.Query(ctx, listChangesSQL, target, limit)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var out []detect.Change
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		var c detect.Change
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode change: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return out, nil
}

const upsertConfigSQL = `INSERT INTO monitor_configs (url, check_frequency, crawl_all_pages, added_at, preferences)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE SET
check_frequency = EXCLUDED.check_frequency,
crawl_all_pages = EXCLUDED.crawl_all_pages,
preferences = EXCLUDED.preferences`

// UpsertConfig inserts or replaces the config for its URL.
func (s *Store) UpsertConfig(ctx context.Context, cfg store.MonitorConfig) error {
	if cfg.AddedAt.IsZero() {
		cfg.AddedAt = time.Now().UTC()
	}
	var prefs []byte
	if cfg.Preferences != nil {
		var err error
		if prefs, err = json.Marshal(cfg.Preferences); err != nil {
			return fmt.Errorf("encode preferences: %w", err)
		}
	}
	if _, err := s.pool.Exec(ctx, upsertConfigSQL,
		cfg.URL, cfg.CheckFrequency, cfg.CrawlAllPages, cfg.AddedAt, prefs); err != nil {
		return fmt.Errorf("upsert config %s: %w", cfg.URL, err)
	}
	return nil
}

const getConfigSQL = `SELECT url, check_frequency, crawl_all_pages, added_at, preferences
FROM monitor_configs WHERE url = $1`

// GetConfig returns the config for url.
func (s *Store) GetConfig(ctx context.Context, url string) (store.MonitorConfig, error) {
	row := s.pool.QueryRow(ctx, getConfigSQL, url)
	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.MonitorConfig{}, store.ErrNotFound
	}
	return cfg, err
}

const listConfigsSQL = `SELECT url, check_frequency, crawl_all_pages, added_at, preferences
FROM monitor_configs ORDER BY added_at`

// ListConfigs returns every stored monitor config.
func (s *Store) ListConfigs(ctx context.Context) ([]store.MonitorConfig, error) {
	rows, err := s.pool.Query(ctx, listConfigsSQL)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}
	defer rows.Close()

	var out []store.MonitorConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteConfig removes the config for url.
func (s *Store) DeleteConfig(ctx context.Context, url string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitor_configs WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("delete config %s: %w", url, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const getPreferencesSQL = `SELECT payload FROM preferences WHERE id = 1`

// GetPreferences returns saved preferences, or the documented defaults.
func (s *Store) GetPreferences(ctx context.Context) (store.Preferences, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, getPreferencesSQL).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.DefaultPreferences(), nil
	}
	if err != nil {
		return store.Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	var prefs store.Preferences
	if err := json.Unmarshal(payload, &prefs); err != nil {
		return store.Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

const savePreferencesSQL = `INSERT INTO preferences (id, payload) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`

// SavePreferences replaces the stored preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs store.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if _, err := s.pool.Exec(ctx, savePreferencesSQL, payload); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (store.MonitorConfig, error) {
	var cfg store.MonitorConfig
	var prefs []byte
	if err := row.Scan(&cfg.URL, &cfg.CheckFrequency, &cfg.CrawlAllPages, &cfg.AddedAt, &prefs); err != nil {
		return store.MonitorConfig{}, err
	}
	if len(prefs) > 0 {
		cfg.Preferences = &store.Preferences{}
		if err := json.Unmarshal(prefs, cfg.Preferences); err != nil {
			return store.MonitorConfig{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return cfg, nil
}
