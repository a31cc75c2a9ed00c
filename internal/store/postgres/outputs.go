package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// RecordOutputs writes an execution's declared output manifest, rejecting
// any rel_path that is absolute or escapes the output directory.
func (s *Store) RecordOutputs(ctx context.Context, executionID int64, manifest []types.OutputManifestEntry) ([]types.ExecutionOutput, error) {
	for _, m := range manifest {
		if filepath.IsAbs(m.RelPath) {
			return nil, fmt.Errorf("postgres: output path %q must be relative", m.RelPath)
		}
		clean := filepath.Clean(m.RelPath)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("postgres: output path %q escapes output directory", m.RelPath)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out := make([]types.ExecutionOutput, 0, len(manifest))
	for _, m := range manifest {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO execution_outputs (execution_id, rel_path, type, mime_type, description)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (execution_id, rel_path) DO UPDATE SET
				type = excluded.type, mime_type = excluded.mime_type, description = excluded.description
			RETURNING id
		`, executionID, m.RelPath, m.Type, m.MimeType, m.Description).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("postgres: recording output %q: %w", m.RelPath, err)
		}
		out = append(out, types.ExecutionOutput{
			ID:          id,
			ExecutionID: executionID,
			RelPath:     m.RelPath,
			Type:        m.Type,
			MimeType:    m.MimeType,
			Description: m.Description,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOutputs returns the output manifest recorded for an execution.
func (s *Store) ListOutputs(ctx context.Context, executionID int64) ([]types.ExecutionOutput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, rel_path, type, mime_type, COALESCE(description, '')
		FROM execution_outputs WHERE execution_id = $1
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing outputs: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionOutput
	for rows.Next() {
		var o types.ExecutionOutput
		if err := rows.Scan(&o.ID, &o.ExecutionID, &o.RelPath, &o.Type, &o.MimeType, &o.Description); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecordMetricValues writes the scalar and series metric values produced
// by a diagnostic run.
func (s *Store) RecordMetricValues(ctx context.Context, scalars []types.MetricValue, series []types.SeriesMetricValue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, m := range scalars {
		if _, err := tx.Exec(ctx, `
			INSERT INTO metric_values (execution_id, facets, value) VALUES ($1, $2, $3)
		`, m.ExecutionID, m.Facets, m.Value); err != nil {
			return fmt.Errorf("postgres: recording metric value: %w", err)
		}
	}

	for _, sm := range series {
		if _, err := tx.Exec(ctx, `
			INSERT INTO series_metric_values (execution_id, facets, idx_values, values) VALUES ($1, $2, $3, $4)
		`, sm.ExecutionID, sm.Facets, sm.Index, sm.Values); err != nil {
			return fmt.Errorf("postgres: recording series metric value: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListMetricValues returns every scalar and series metric value recorded
// for an execution. pgx decodes the JSONB facets/index/values columns
// directly into the Go map/slice fields.
func (s *Store) ListMetricValues(ctx context.Context, executionID int64) ([]types.MetricValue, []types.SeriesMetricValue, error) {
	scalarRows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, facets, value FROM metric_values WHERE execution_id = $1
	`, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: listing metric values: %w", err)
	}
	defer scalarRows.Close()

	var scalars []types.MetricValue
	for scalarRows.Next() {
		var m types.MetricValue
		if err := scalarRows.Scan(&m.ID, &m.ExecutionID, &m.Facets, &m.Value); err != nil {
			return nil, nil, err
		}
		scalars = append(scalars, m)
	}
	if err := scalarRows.Err(); err != nil {
		return nil, nil, err
	}

	seriesRows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, facets, idx_values, values FROM series_metric_values WHERE execution_id = $1
	`, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: listing series metric values: %w", err)
	}
	defer seriesRows.Close()

	var series []types.SeriesMetricValue
	for seriesRows.Next() {
		var sm types.SeriesMetricValue
		if err := seriesRows.Scan(&sm.ID, &sm.ExecutionID, &sm.Facets, &sm.Index, &sm.Values); err != nil {
			return nil, nil, err
		}
		series = append(series, sm)
	}
	return scalars, series, seriesRows.Err()
}
