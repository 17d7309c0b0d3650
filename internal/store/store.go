// Package store provides the SQLite storage layer for linkclust.
//
// One database file holds everything:
// - The member registry mapping external sequence identifiers to ids
// - All pairwise hits with per-query ranks (rank 0 marks a self-hit)
// - Run records with status, failure phase and the final report
// - Persisted partitions (clusters + ordered members per run)
// - The work-unit queue consumed by downstream per-cluster jobs
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.linkclust/linkclust.db"

// DefaultBatchSize is the default batch size for bulk hit inserts.
const DefaultBatchSize = 500

// Config holds configuration for Open.
type Config struct {
	DBPath    string
	BatchSize int
}

// Stats holds aggregate counts for the stats command.
type Stats struct {
	Members     int64
	Hits        int64
	SelfHits    int64
	Runs        int64
	PendingWork int64
	DBSizeBytes int64
}

// DB is the SQLite-backed store. One value is safe for use from a
// single process; SQLite's busy timeout covers concurrent CLIs.
type DB struct {
	db        *sql.DB
	dbPath    string
	batchSize int
}

// Open opens (creating if necessary) the database at cfg.DBPath.
// Pass ":memory:" for in-memory databases (testing).
func Open(cfg Config) (*DB, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &DB{db: db, dbPath: cfg.DBPath, batchSize: cfg.BatchSize}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Stats reports aggregate store counts.
func (s *DB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM members", &st.Members},
		{"SELECT COUNT(*) FROM hits", &st.Hits},
		{"SELECT COUNT(*) FROM hits WHERE rank = 0", &st.SelfHits},
		{"SELECT COUNT(*) FROM runs", &st.Runs},
		{"SELECT COUNT(*) FROM work_units WHERE state = 'pending'", &st.PendingWork},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting (%s): %w", c.query, err)
		}
	}

	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
