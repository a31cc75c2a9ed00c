package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// PutWorkerLease records (or refreshes) the heartbeat for the worker
// processing an execution. On orchestrator restart, leases whose
// heartbeat predates the restart identify executions whose worker was
// lost without updating the execution's status — the basis for
// lost-worker detection.
func (s *Store) PutWorkerLease(ctx context.Context, lease types.WorkerLease) error {
	if lease.HeartbeatAt.IsZero() {
		lease.HeartbeatAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worker_leases (execution_id, worker_id, variant, heartbeat_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			worker_id = excluded.worker_id, variant = excluded.variant, heartbeat_at = excluded.heartbeat_at
	`, lease.ExecutionID, lease.WorkerID, lease.Variant, lease.HeartbeatAt)
	if err != nil {
		return fmt.Errorf("sqlite: putting worker lease: %w", err)
	}
	return nil
}

// GetWorkerLease returns the lease for an execution, or nil if none exists.
func (s *Store) GetWorkerLease(ctx context.Context, executionID int64) (*types.WorkerLease, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, worker_id, variant, heartbeat_at FROM worker_leases WHERE execution_id = ?
	`, executionID)
	var l types.WorkerLease
	if err := row.Scan(&l.ExecutionID, &l.WorkerID, &l.Variant, &l.HeartbeatAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting worker lease: %w", err)
	}
	return &l, nil
}

// DeleteWorkerLease removes a worker lease, e.g. once its execution
// reaches a terminal status.
func (s *Store) DeleteWorkerLease(ctx context.Context, executionID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM worker_leases WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("sqlite: deleting worker lease: %w", err)
	}
	return nil
}
