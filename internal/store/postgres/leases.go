package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// PutWorkerLease records (or refreshes) the heartbeat for the worker
// processing an execution.
func (s *Store) PutWorkerLease(ctx context.Context, lease types.WorkerLease) error {
	if lease.HeartbeatAt.IsZero() {
		lease.HeartbeatAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_leases (execution_id, worker_id, variant, heartbeat_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (execution_id) DO UPDATE SET
			worker_id = excluded.worker_id, variant = excluded.variant, heartbeat_at = excluded.heartbeat_at
	`, lease.ExecutionID, lease.WorkerID, lease.Variant, lease.HeartbeatAt)
	if err != nil {
		return fmt.Errorf("postgres: putting worker lease: %w", err)
	}
	return nil
}

// GetWorkerLease returns the lease for an execution, or nil if none exists.
func (s *Store) GetWorkerLease(ctx context.Context, executionID int64) (*types.WorkerLease, error) {
	var l types.WorkerLease
	err := s.pool.QueryRow(ctx, `
		SELECT execution_id, worker_id, variant, heartbeat_at FROM worker_leases WHERE execution_id = $1
	`, executionID).Scan(&l.ExecutionID, &l.WorkerID, &l.Variant, &l.HeartbeatAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: getting worker lease: %w", err)
	}
	return &l, nil
}

// DeleteWorkerLease removes a worker lease.
func (s *Store) DeleteWorkerLease(ctx context.Context, executionID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM worker_leases WHERE execution_id = $1`, executionID); err != nil {
		return fmt.Errorf("postgres: deleting worker lease: %w", err)
	}
	return nil
}
