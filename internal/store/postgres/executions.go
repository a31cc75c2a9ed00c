package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/interlock/internal/lifecycle"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// InsertExecution inserts a new Execution row in pending status, or
// returns the existing row if one already exists for (group_id,
// dataset_hash).
func (s *Store) InsertExecution(ctx context.Context, e types.Execution) (types.Execution, error) {
	if e.Status == "" {
		e.Status = types.ExecutionPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO executions (group_id, dataset_hash, status, output_dir, log_ref, retry_count, reason, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (group_id, dataset_hash) DO UPDATE SET group_id = executions.group_id
		RETURNING id
	`, e.GroupID, e.DatasetHash, e.Status, e.OutputDir, e.LogRef, e.RetryCount, e.Reason, e.StartedAt, e.FinishedAt, e.CreatedAt).Scan(&id)
	if err != nil {
		return types.Execution{}, fmt.Errorf("postgres: inserting execution: %w", err)
	}

	existing, err := s.GetExecution(ctx, id)
	if err != nil {
		return types.Execution{}, err
	}
	if existing == nil {
		return types.Execution{}, fmt.Errorf("postgres: execution vanished after insert")
	}
	return *existing, nil
}

func scanExecution(row pgx.Row) (types.Execution, error) {
	var e types.Execution
	if err := row.Scan(&e.ID, &e.GroupID, &e.DatasetHash, &e.Status, &e.OutputDir, &e.LogRef, &e.RetryCount, &e.Reason, &e.StartedAt, &e.FinishedAt, &e.CreatedAt); err != nil {
		return types.Execution{}, err
	}
	return e, nil
}

const executionColumns = `id, group_id, dataset_hash, status, output_dir, COALESCE(log_ref, ''), retry_count, COALESCE(reason, ''), started_at, finished_at, created_at`

// GetExecution returns the Execution with the given id, or nil.
func (s *Store) GetExecution(ctx context.Context, id int64) (*types.Execution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting execution: %w", err)
	}
	return &e, nil
}

// GetExecutionByHash returns the Execution for (groupID, datasetHash).
func (s *Store) GetExecutionByHash(ctx context.Context, groupID int64, datasetHash string) (*types.Execution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE group_id = $1 AND dataset_hash = $2`, groupID, datasetHash)
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting execution by hash: %w", err)
	}
	return &e, nil
}

// ListExecutions returns every Execution belonging to a group, newest first.
func (s *Store) ListExecutions(ctx context.Context, groupID int64) ([]types.Execution, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+executionColumns+` FROM executions WHERE group_id = $1 ORDER BY id DESC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing executions: %w", err)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRunningExecutions returns every execution currently in running
// status, across all groups.
func (s *Store) ListRunningExecutions(ctx context.Context) ([]types.Execution, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+executionColumns+` FROM executions WHERE status = $1`, types.ExecutionRunning)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing running executions: %w", err)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CompareAndSwapStatus validates the transition against the lifecycle
// state machine, then applies it only if the row's current status still
// equals expected.
func (s *Store) CompareAndSwapStatus(ctx context.Context, executionID int64, expected, next types.ExecutionStatus, reason string) (bool, error) {
	if err := lifecycle.Transition(expected, next); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	var cmd string
	switch next {
	case types.ExecutionRunning:
		cmd = `UPDATE executions SET status = $1, started_at = $2, reason = COALESCE($3, reason) WHERE id = $4 AND status = $5`
	case types.ExecutionSucceeded, types.ExecutionFailed, types.ExecutionCancelled:
		cmd = `UPDATE executions SET status = $1, finished_at = $2, reason = COALESCE($3, reason) WHERE id = $4 AND status = $5`
	case types.ExecutionPending:
		cmd = `UPDATE executions SET status = $1, retry_count = retry_count + 1, started_at = NULL, finished_at = NULL, reason = COALESCE($3, reason) WHERE id = $4 AND status = $5`
	default:
		cmd = `UPDATE executions SET status = $1, reason = COALESCE($3, reason) WHERE id = $4 AND status = $5`
	}

	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}

	tag, err := s.pool.Exec(ctx, cmd, next, now, reasonArg, executionID, expected)
	if err != nil {
		return false, fmt.Errorf("postgres: compare-and-swap status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetExecutionInputs replaces the full set of dataset inputs pinned to an
// execution at enqueue time.
func (s *Store) SetExecutionInputs(ctx context.Context, executionID int64, inputs []types.ExecutionInput) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM execution_inputs WHERE execution_id = $1`, executionID); err != nil {
		return fmt.Errorf("postgres: clearing execution inputs: %w", err)
	}
	for _, in := range inputs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO execution_inputs (execution_id, dataset_id, version) VALUES ($1, $2, $3)
		`, executionID, in.DatasetID, in.Version); err != nil {
			return fmt.Errorf("postgres: writing execution input: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetExecutionInputs returns the dataset inputs pinned to an execution.
func (s *Store) GetExecutionInputs(ctx context.Context, executionID int64) ([]types.ExecutionInput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT execution_id, dataset_id, version FROM execution_inputs WHERE execution_id = $1
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing execution inputs: %w", err)
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
