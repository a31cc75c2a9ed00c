package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dwsmith1983/interlock/internal/lifecycle"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// InsertExecution inserts a new Execution row in pending status. The
// (group_id, dataset_hash) unique constraint makes this idempotent: a
// second insert for the same inputs returns the existing row rather than
// erroring, satisfying the re-solve-is-a-no-op invariant.
func (s *Store) InsertExecution(ctx context.Context, e types.Execution) (types.Execution, error) {
	if e.Status == "" {
		e.Status = types.ExecutionPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, dataset_hash) DO NOTHING
	`, e.GroupID, e.DatasetHash, e.Status, e.OutputDir, e.LogRef, e.RetryCount, e.Reason, e.StartedAt, e.FinishedAt, e.CreatedAt)
	if err != nil {
		return types.Execution{}, fmt.Errorf("sqlite: inserting execution: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return types.Execution{}, err
		}
		e.ID = id
		return e, nil
	}

	existing, err := s.GetExecutionByHash(ctx, e.GroupID, e.DatasetHash)
	if err != nil {
		return types.Execution{}, err
	}
	if existing == nil {
		return types.Execution{}, fmt.Errorf("sqlite: execution vanished after conflict")
	}
	return *existing, nil
}

func scanExecution(scan func(dest ...interface{}) error) (types.Execution, error) {
	var e types.Execution
	var logRef, reason sql.NullString
	if err := scan(&e.ID, &e.GroupID, &e.DatasetHash, &e.Status, &e.OutputDir, &logRef, &e.RetryCount, &reason, &e.StartedAt, &e.FinishedAt, &e.CreatedAt); err != nil {
		return types.Execution{}, err
	}
	e.LogRef = logRef.String
	e.Reason = reason.String
	return e, nil
}

// GetExecution returns the Execution with the given id, or nil.
func (s *Store) GetExecution(ctx context.Context, id int64) (*types.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at
		FROM executions WHERE id = ?
	`, id)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting execution: %w", err)
	}
	return &e, nil
}

// GetExecutionByHash returns the Execution for (groupID, datasetHash), or
// nil if no such execution exists.
func (s *Store) GetExecutionByHash(ctx context.Context, groupID int64, datasetHash string) (*types.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at
		FROM executions WHERE group_id = ? AND dataset_hash = ?
	`, groupID, datasetHash)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting execution by hash: %w", err)
	}
	return &e, nil
}

// ListExecutions returns every Execution belonging to a group, newest first.
func (s *Store) ListExecutions(ctx context.Context, groupID int64) ([]types.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at
		FROM executions WHERE group_id = ? ORDER BY id DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRunningExecutions returns every execution currently in running
// status, across all groups — used by lost-worker detection on startup.
func (s *Store) ListRunningExecutions(ctx context.Context) ([]types.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at
		FROM executions WHERE status = ?
	`, types.ExecutionRunning)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing running executions: %w", err)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CompareAndSwapStatus validates the transition against the lifecycle
// state machine, then applies it only if the row's current status still
// equals expected. The idx_executions_one_running partial unique index gives
// the running-status case a second, DB-enforced guarantee against two
// concurrent writers both winning a pending->running CAS for the same
// group via two different executions.
func (s *Store) CompareAndSwapStatus(ctx context.Context, executionID int64, expected, next types.ExecutionStatus, reason string) (bool, error) {
	if err := lifecycle.Transition(expected, next); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	var setClauses string
	args := []interface{}{next}
	switch next {
	case types.ExecutionRunning:
		setClauses = ", started_at = ?"
		args = append(args, now)
	case types.ExecutionSucceeded, types.ExecutionFailed, types.ExecutionCancelled:
		setClauses = ", finished_at = ?"
		args = append(args, now)
	case types.ExecutionPending:
		setClauses = ", retry_count = retry_count + 1, started_at = NULL, finished_at = NULL"
	}
	if reason != "" {
		setClauses += ", reason = ?"
		args = append(args, reason)
	}
	args = append(args, executionID, expected)

	res, err := tx.ExecContext(ctx, `
		UPDATE executions SET status = ?`+setClauses+`
		WHERE id = ? AND status = ?
	`, args...)
	if err != nil {
		return false, fmt.Errorf("sqlite: compare-and-swap status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// SetExecutionInputs replaces the full set of dataset inputs pinned to an
// execution at enqueue time.
func (s *Store) SetExecutionInputs(ctx context.Context, executionID int64, inputs []types.ExecutionInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM execution_inputs WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("sqlite: clearing execution inputs: %w", err)
	}
	for _, in := range inputs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO execution_inputs (execution_id, dataset_id, version) VALUES (?, ?, ?)
		`, executionID, in.DatasetID, in.Version); err != nil {
			return fmt.Errorf("sqlite: writing execution input: %w", err)
		}
	}
	return tx.Commit()
}

// GetExecutionInputs returns the dataset inputs pinned to an execution.
func (s *Store) GetExecutionInputs(ctx context.Context, executionID int64) ([]types.ExecutionInput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, dataset_id, version FROM execution_inputs WHERE execution_id = ?
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing execution inputs: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionInput
	for rows.Next() {
		var in types.ExecutionInput
		if err := rows.Scan(&in.ExecutionID, &in.DatasetID, &in.Version); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
