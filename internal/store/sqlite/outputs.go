package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// RecordOutputs writes an execution's declared output manifest. Every
// rel_path must be a relative path beneath the execution's output_dir;
// absolute paths or paths that escape via ".." are rejected so the
// manifest can never be used to read files outside the sandbox.
func (s *Store) RecordOutputs(ctx context.Context, executionID int64, manifest []types.OutputManifestEntry) ([]types.ExecutionOutput, error) {
	for _, m := range manifest {
		if filepath.IsAbs(m.RelPath) {
			return nil, fmt.Errorf("sqlite: output path %q must be relative", m.RelPath)
		}
		clean := filepath.Clean(m.RelPath)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("sqlite: output path %q escapes output directory", m.RelPath)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	out := make([]types.ExecutionOutput, 0, len(manifest))
	for _, m := range manifest {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO execution_outputs (execution_id, rel_path, type, mime_type, description)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(execution_id, rel_path) DO UPDATE SET
				type = excluded.type, mime_type = excluded.mime_type, description = excluded.description
		`, executionID, m.RelPath, m.Type, m.MimeType, m.Description)
		if err != nil {
			return nil, fmt.Errorf("sqlite: recording output %q: %w", m.RelPath, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
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

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOutputs returns the output manifest recorded for an execution.
func (s *Store) ListOutputs(ctx context.Context, executionID int64) ([]types.ExecutionOutput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, rel_path, type, mime_type, description
		FROM execution_outputs WHERE execution_id = ?
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing outputs: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionOutput
	for rows.Next() {
		var o types.ExecutionOutput
		var description sql.NullString
		if err := rows.Scan(&o.ID, &o.ExecutionID, &o.RelPath, &o.Type, &o.MimeType, &description); err != nil {
			return nil, err
		}
		o.Description = description.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecordMetricValues writes the scalar and series metric values produced
// by a diagnostic run, each tagged with its facet coordinates.
func (s *Store) RecordMetricValues(ctx context.Context, scalars []types.MetricValue, series []types.SeriesMetricValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range scalars {
		facetsJSON, err := json.Marshal(m.Facets)
		if err != nil {
			return fmt.Errorf("sqlite: encoding metric facets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metric_values (execution_id, facets, value) VALUES (?, ?, ?)
		`, m.ExecutionID, string(facetsJSON), m.Value); err != nil {
			return fmt.Errorf("sqlite: recording metric value: %w", err)
		}
	}

	for _, sm := range series {
		facetsJSON, err := json.Marshal(sm.Facets)
		if err != nil {
			return fmt.Errorf("sqlite: encoding series facets: %w", err)
		}
		indexJSON, err := json.Marshal(sm.Index)
		if err != nil {
			return err
		}
		valuesJSON, err := json.Marshal(sm.Values)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO series_metric_values (execution_id, facets, idx_values, values) VALUES (?, ?, ?, ?)
		`, sm.ExecutionID, string(facetsJSON), string(indexJSON), string(valuesJSON)); err != nil {
			return fmt.Errorf("sqlite: recording series metric value: %w", err)
		}
	}

	return tx.Commit()
}

// ListMetricValues returns every scalar and series metric value recorded
// for an execution.
func (s *Store) ListMetricValues(ctx context.Context, executionID int64) ([]types.MetricValue, []types.SeriesMetricValue, error) {
	scalarRows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, facets, value FROM metric_values WHERE execution_id = ?
	`, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: listing metric values: %w", err)
	}
	defer scalarRows.Close()

	var scalars []types.MetricValue
	for scalarRows.Next() {
		var m types.MetricValue
		var facetsJSON string
		if err := scalarRows.Scan(&m.ID, &m.ExecutionID, &facetsJSON, &m.Value); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(facetsJSON), &m.Facets); err != nil {
			return nil, nil, fmt.Errorf("sqlite: decoding metric facets: %w", err)
		}
		scalars = append(scalars, m)
	}
	if err := scalarRows.Err(); err != nil {
		return nil, nil, err
	}

	seriesRows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, facets, idx_values, values FROM series_metric_values WHERE execution_id = ?
	`, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: listing series metric values: %w", err)
	}
	defer seriesRows.Close()

	var series []types.SeriesMetricValue
	for seriesRows.Next() {
		var sm types.SeriesMetricValue
		var facetsJSON, indexJSON, valuesJSON string
		if err := seriesRows.Scan(&sm.ID, &sm.ExecutionID, &facetsJSON, &indexJSON, &valuesJSON); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(facetsJSON), &sm.Facets); err != nil {
			return nil, nil, fmt.Errorf("sqlite: decoding series facets: %w", err)
		}
		if err := json.Unmarshal([]byte(indexJSON), &sm.Index); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(valuesJSON), &sm.Values); err != nil {
			return nil, nil, err
		}
		series = append(series, sm)
	}
	return scalars, series, seriesRows.Err()
}
