package store

import (
	"fmt"
	"time"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *DB) migrate() error {
	statements := []string{
		// Member registry: one row per sequence, allocating the integer
		// id the clustering core works with.
		`CREATE TABLE IF NOT EXISTS members (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			seq_id   TEXT UNIQUE NOT NULL,
			group_id TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_members_group ON members(group_id)`,

		// All pairwise hits. Rank 0 marks a self-hit; non-self hits of a
		// query are ranked 1..n by descending score.
		`CREATE TABLE IF NOT EXISTS hits (
			query_id      INTEGER NOT NULL REFERENCES members(id),
			subject_id    INTEGER NOT NULL REFERENCES members(id),
			query_group   TEXT NOT NULL,
			subject_group TEXT NOT NULL,
			score         REAL NOT NULL,
			rank          INTEGER NOT NULL,
			PRIMARY KEY (query_id, subject_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_hits_groups ON hits(query_group, subject_group)`,

		// One row per clustering run; phase and error record where a
		// failed run died, report holds the JSON summary of a completed
		// one.
		`CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			groups     TEXT NOT NULL,
			policy     TEXT NOT NULL,
			status     TEXT NOT NULL CHECK(status IN ('running','complete','failed')),
			phase      TEXT NOT NULL DEFAULT '',
			error      TEXT NOT NULL DEFAULT '',
			report     TEXT NOT NULL DEFAULT ''
		)`,

		// The persisted partition: cluster rows plus ordered members,
		// written in a single transaction per run.
		`CREATE TABLE IF NOT EXISTS clusters (
			run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			cluster_id INTEGER NOT NULL,
			size       INTEGER NOT NULL,
			PRIMARY KEY (run_id, cluster_id)
		)`,

		`CREATE TABLE IF NOT EXISTS cluster_members (
			run_id     TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			position   INTEGER NOT NULL,
			member_id  INTEGER NOT NULL REFERENCES members(id),
			PRIMARY KEY (run_id, cluster_id, position),
			FOREIGN KEY (run_id, cluster_id) REFERENCES clusters(run_id, cluster_id) ON DELETE CASCADE
		)`,

		// Fan-out queue consumed by the downstream per-cluster scheduler.
		`CREATE TABLE IF NOT EXISTS work_units (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			state      TEXT NOT NULL DEFAULT 'pending' CHECK(state IN ('pending','claimed','done','failed')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id, cluster_id) REFERENCES clusters(run_id, cluster_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_work_units_state ON work_units(state)`,

		// Metadata table
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", truncate(stmt, 80), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return s.seedMeta()
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *DB) seedMeta() error {
	defaults := map[string]string{
		"schema_version": "1",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// truncate shortens a string for error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
