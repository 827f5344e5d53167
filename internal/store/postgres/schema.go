package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS changes (
		id TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		kind TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS changes_target_recorded_idx
		ON changes (target_url, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS monitor_configs (
		url TEXT PRIMARY KEY,
		check_frequency TEXT NOT NULL,
		crawl_all_pages BOOLEAN NOT NULL DEFAULT FALSE,
		added_at TIMESTAMPTZ NOT NULL,
		preferences JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		id INT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
