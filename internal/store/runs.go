package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Run is one clustering run record.
type Run struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Groups    []string
	Policy    string
	Status    string
	Phase     string
	Error     string
	Report    string
}

// StartRun records a new running run and returns its id.
func (s *DB) StartRun(ctx context.Context, groups []string, policy string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, groups, policy, status) VALUES (?, ?, ?, 'running')`,
		id, strings.Join(groups, ","), policy)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run complete, attaching its JSON report.
func (s *DB) CompleteRun(ctx context.Context, id, report string) error {
	return s.finishRun(ctx, id, RunComplete, "", "", report)
}

// FailRun marks a run failed, recording the phase it died in and the
// error message for post-mortem.
func (s *DB) FailRun(ctx context.Context, id, phase, errMsg string) error {
	return s.finishRun(ctx, id, RunFailed, phase, errMsg, "")
}

func (s *DB) finishRun(ctx context.Context, id, status, phase, errMsg, report string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, phase = ?, error = ?, report = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, phase, errMsg, report, id)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun fetches one run by id, or nil when it does not exist.
func (s *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, groups, policy, status, phase, error, report
		 FROM runs WHERE id = ?`, id))
}

// LatestRun returns the most recent run with the given status, or nil
// when none exists. An empty status matches any run.
func (s *DB) LatestRun(ctx context.Context, status string) (*Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, groups, policy, status, phase, error, report
		 FROM runs WHERE (? = '' OR status = ?)
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, status, status))
}

func (s *DB) scanRun(row *sql.Row) (*Run, error) {
	r := &Run{}
	var groups string
	err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt, &groups,
		&r.Policy, &r.Status, &r.Phase, &r.Error, &r.Report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	if groups != "" {
		r.Groups = strings.Split(groups, ",")
	}
	return r, nil
}
