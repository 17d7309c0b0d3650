package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grisedale/linkclust/internal/linkage"
	"github.com/grisedale/linkclust/internal/partition"
)

// PartitionWriter persists one run's partition atomically. Every
// SaveCluster and Enqueue lands in a single transaction; Commit makes
// the partition authoritative, Abort discards it whole. A failed run
// therefore never leaves a partial partition behind.
type PartitionWriter struct {
	tx      *sql.Tx
	runID   string
	cluIns  *sql.Stmt
	memIns  *sql.Stmt
	workIns *sql.Stmt
}

var (
	_ linkage.ClusterSink = (*PartitionWriter)(nil)
	_ linkage.WorkQueue   = (*PartitionWriter)(nil)
)

// BeginPartition opens the transaction that will hold the run's
// partition and fan-out rows.
func (s *DB) BeginPartition(ctx context.Context, runID string) (*PartitionWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning partition transaction: %w", err)
	}

	w := &PartitionWriter{tx: tx, runID: runID}
	prepared := []struct {
		dest  **sql.Stmt
		query string
	}{
		{&w.cluIns, `INSERT INTO clusters (run_id, cluster_id, size) VALUES (?, ?, ?)`},
		{&w.memIns, `INSERT INTO cluster_members (run_id, cluster_id, position, member_id) VALUES (?, ?, ?, ?)`},
		{&w.workIns, `INSERT INTO work_units (run_id, cluster_id) VALUES (?, ?)`},
	}
	for _, p := range prepared {
		stmt, err := tx.PrepareContext(ctx, p.query)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("preparing partition statement: %w", err)
		}
		*p.dest = stmt
	}
	return w, nil
}

// SaveCluster writes one cluster row and its ordered members.
func (w *PartitionWriter) SaveCluster(ctx context.Context, id int64, members []partition.Member) error {
	if _, err := w.cluIns.ExecContext(ctx, w.runID, id, len(members)); err != nil {
		return fmt.Errorf("inserting cluster %d: %w", id, err)
	}
	for pos, m := range members {
		if _, err := w.memIns.ExecContext(ctx, w.runID, id, pos, int64(m)); err != nil {
			return fmt.Errorf("inserting member %d of cluster %d: %w", m, id, err)
		}
	}
	return nil
}

// Enqueue writes the fan-out row for a saved cluster.
func (w *PartitionWriter) Enqueue(ctx context.Context, clusterID int64) error {
	if _, err := w.workIns.ExecContext(ctx, w.runID, clusterID); err != nil {
		return fmt.Errorf("enqueueing cluster %d: %w", clusterID, err)
	}
	return nil
}

// Commit finishes the partition transaction.
func (w *PartitionWriter) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("committing partition: %w", err)
	}
	return nil
}

// Abort rolls the partition back. Calling it after Commit is a no-op.
func (w *PartitionWriter) Abort() {
	_ = w.tx.Rollback()
}

// ClusterRow is one persisted cluster with its members resolved back
// to external sequence identifiers, in emission order.
type ClusterRow struct {
	ClusterID int64
	Size      int
	SeqIDs    []string
}

// RunClusters lists a run's clusters. A positive limit caps the number
// of clusters returned.
func (s *DB) RunClusters(ctx context.Context, runID string, limit int) ([]ClusterRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cm.cluster_id, c.size, m.seq_id
		 FROM cluster_members cm
		 JOIN clusters c ON c.run_id = cm.run_id AND c.cluster_id = cm.cluster_id
		 JOIN members m ON m.id = cm.member_id
		 WHERE cm.run_id = ?
		 ORDER BY cm.cluster_id, cm.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying clusters for run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make([]ClusterRow, 0)
	for rows.Next() {
		var id int64
		var size int
		var seq string
		if err := rows.Scan(&id, &size, &seq); err != nil {
			return nil, fmt.Errorf("scanning cluster member: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ClusterID != id {
			if limit > 0 && len(out) == limit {
				break
			}
			out = append(out, ClusterRow{ClusterID: id, Size: size})
		}
		last := &out[len(out)-1]
		last.SeqIDs = append(last.SeqIDs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
