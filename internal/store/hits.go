package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/grisedale/linkclust/internal/admit"
	"github.com/grisedale/linkclust/internal/linkage"
	"github.com/grisedale/linkclust/internal/partition"
)

// The store is the production edge source for clustering passes.
var _ linkage.EdgeSource = (*DB)(nil)

// Hit is one pairwise similarity row ready for insertion: endpoints
// named by external sequence identifier, already ranked (0 = self-hit,
// 1..n by descending score otherwise).
type Hit struct {
	QuerySeq     string
	SubjectSeq   string
	QueryGroup   string
	SubjectGroup string
	Score        float64
	Rank         int
}

// InsertHits upserts the endpoint members and writes the hit rows in
// batches of the configured size, one transaction per batch. Reloading
// the same rows is idempotent (hits are keyed by endpoint pair and
// replaced). Returns the number of members created.
func (s *DB) InsertHits(ctx context.Context, hits []Hit) (int, error) {
	// Member ids survive across batches; the cache saves one SELECT per
	// repeated endpoint.
	cache := make(map[string]int64)
	newMembers := 0

	for i := 0; i < len(hits); i += s.batchSize {
		end := i + s.batchSize
		if end > len(hits) {
			end = len(hits)
		}
		n, err := s.insertHitBatch(ctx, hits[i:end], cache)
		newMembers += n
		if err != nil {
			return newMembers, fmt.Errorf("hit batch %d-%d: %w", i, end, err)
		}
	}
	return newMembers, nil
}

func (s *DB) insertHitBatch(ctx context.Context, hits []Hit, cache map[string]int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	memIns, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO members (seq_id, group_id) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing member insert: %w", err)
	}
	defer memIns.Close()

	memSel, err := tx.PrepareContext(ctx,
		`SELECT id FROM members WHERE seq_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing member lookup: %w", err)
	}
	defer memSel.Close()

	hitIns, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO hits (query_id, subject_id, query_group, subject_group, score, rank)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing hit insert: %w", err)
	}
	defer hitIns.Close()

	created := 0
	ensure := func(seq, group string) (int64, error) {
		if id, ok := cache[seq]; ok {
			return id, nil
		}
		res, err := memIns.ExecContext(ctx, seq, group)
		if err != nil {
			return 0, fmt.Errorf("upserting member %q: %w", seq, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			created++
		}
		var id int64
		if err := memSel.QueryRowContext(ctx, seq).Scan(&id); err != nil {
			return 0, fmt.Errorf("resolving member %q: %w", seq, err)
		}
		cache[seq] = id
		return id, nil
	}

	for _, h := range hits {
		qid, err := ensure(h.QuerySeq, h.QueryGroup)
		if err != nil {
			return created, err
		}
		sid, err := ensure(h.SubjectSeq, h.SubjectGroup)
		if err != nil {
			return created, err
		}
		if _, err := hitIns.ExecContext(ctx, qid, sid, h.QueryGroup, h.SubjectGroup, h.Score, h.Rank); err != nil {
			return created, fmt.Errorf("inserting hit %q->%q: %w", h.QuerySeq, h.SubjectSeq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return created, fmt.Errorf("committing batch: %w", err)
	}
	return created, nil
}

// Reset empties every data table. Used by load --replace before a
// fresh import.
func (s *DB) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Child tables first so foreign keys hold throughout.
	tables := []string{"work_units", "cluster_members", "clusters", "runs", "hits", "members"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}
	return nil
}

// SelfScores streams the self-hit score of every member of the named
// groups that has one recorded.
func (s *DB) SelfScores(ctx context.Context, groups []string, fn func(m partition.Member, score float64) error) error {
	query := fmt.Sprintf(
		`SELECT query_id, score FROM hits
		 WHERE query_id = subject_id AND query_group IN (%s)`,
		placeholders(len(groups)))

	rows, err := s.db.QueryContext(ctx, query, groupArgs(groups)...)
	if err != nil {
		return fmt.Errorf("querying self-scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m int64
		var score float64
		if err := rows.Scan(&m, &score); err != nil {
			return fmt.Errorf("scanning self-score: %w", err)
		}
		if err := fn(partition.Member(m), score); err != nil {
			return err
		}
	}
	return rows.Err()
}

// RBHPairs streams reciprocal-best pairs between two distinct groups:
// each endpoint is the other's rank-1 hit. The self-join enforces
// reciprocity; every pair is yielded once, in groupA->groupB direction.
func (s *DB) RBHPairs(ctx context.Context, groupA, groupB string, fn func(a, b partition.Member) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.query_id, h.subject_id
		 FROM hits h
		 JOIN hits r ON r.query_id = h.subject_id AND r.subject_id = h.query_id
		 WHERE h.rank = 1 AND r.rank = 1
		   AND h.query_group = ? AND h.subject_group = ?`,
		groupA, groupB)
	if err != nil {
		return fmt.Errorf("querying rbh pairs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return fmt.Errorf("scanning rbh pair: %w", err)
		}
		if err := fn(partition.Member(a), partition.Member(b)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CandidatePairs streams ranked non-self hits whose endpoints both
// belong to the named groups. When more than one group is named,
// within-group hits are excluded; a single-group call yields exactly
// those.
func (s *DB) CandidatePairs(ctx context.Context, groups []string, fn func(admit.Pair) error) error {
	ph := placeholders(len(groups))
	query := fmt.Sprintf(
		`SELECT query_id, subject_id, score, rank FROM hits
		 WHERE query_id <> subject_id
		   AND query_group IN (%s) AND subject_group IN (%s)`, ph, ph)
	args := append(groupArgs(groups), groupArgs(groups)...)

	if len(groups) > 1 {
		query += ` AND query_group <> subject_group`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying candidate pairs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q, sub int64
		var c admit.Pair
		if err := rows.Scan(&q, &sub, &c.Score, &c.Rank); err != nil {
			return fmt.Errorf("scanning candidate pair: %w", err)
		}
		c.Query, c.Subject = partition.Member(q), partition.Member(sub)
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func groupArgs(groups []string) []any {
	args := make([]any, len(groups))
	for i, g := range groups {
		args[i] = g
	}
	return args
}
