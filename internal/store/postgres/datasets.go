package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// UpsertDataset inserts a new Dataset row (idempotent on
// (source_type, instance_id, version)) and reactivates the newest
// version for its instance_id.
func (s *Store) UpsertDataset(ctx context.Context, d types.Dataset) (types.Dataset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Dataset{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO datasets (source_type, instance_id, version, active, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (source_type, instance_id, version) DO UPDATE SET source_type = datasets.source_type
		RETURNING id
	`, d.SourceType, d.InstanceID, d.Version, d.CreatedAt).Scan(&id)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("postgres: upserting dataset: %w", err)
	}

	if err := reactivateLatestVersion(ctx, tx, d.SourceType, d.InstanceID); err != nil {
		return types.Dataset{}, err
	}

	for name, value := range d.Facets {
		if _, err := tx.Exec(ctx, `
			INSERT INTO dataset_facets (dataset_id, facet_name, facet_value) VALUES ($1, $2, $3)
			ON CONFLICT (dataset_id, facet_name) DO UPDATE SET facet_value = excluded.facet_value
		`, id, name, value); err != nil {
			return types.Dataset{}, fmt.Errorf("postgres: writing facet %q: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Dataset{}, err
	}

	d.ID = id
	return d, nil
}

func reactivateLatestVersion(ctx context.Context, tx pgx.Tx, sourceType types.SourceDatasetType, instanceID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE datasets SET active = FALSE WHERE source_type = $1 AND instance_id = $2
	`, sourceType, instanceID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE datasets SET active = TRUE
		WHERE id = (
			SELECT id FROM datasets
			WHERE source_type = $1 AND instance_id = $2
			ORDER BY version DESC LIMIT 1
		)
	`, sourceType, instanceID)
	return err
}

// InsertFile inserts a File row, idempotent on its unique path.
func (s *Store) InsertFile(ctx context.Context, f types.File) (types.File, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO files (dataset_id, path, size, checksum, variable_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path) DO UPDATE SET
			dataset_id = excluded.dataset_id, size = excluded.size, checksum = excluded.checksum
		RETURNING id
	`, f.DatasetID, f.Path, f.Size, f.Checksum, f.VariableID, f.StartTime, f.EndTime).Scan(&f.ID)
	if err != nil {
		return types.File{}, fmt.Errorf("postgres: inserting file: %w", err)
	}
	return f, nil
}

// GetDataset returns the Dataset row by surrogate key, or nil if none
// exists. Unlike GetDatasetByInstance it is not restricted to active rows,
// since a superseded Dataset version may still back a past Execution.
func (s *Store) GetDataset(ctx context.Context, id int64) (*types.Dataset, error) {
	var d types.Dataset
	err := s.pool.QueryRow(ctx, `
		SELECT id, source_type, instance_id, version, active, created_at
		FROM datasets WHERE id = $1
	`, id).Scan(&d.ID, &d.SourceType, &d.InstanceID, &d.Version, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: getting dataset by id: %w", err)
	}

	facets, err := s.loadFacets(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Facets = facets
	return &d, nil
}

// GetDatasetByInstance returns the active Dataset row for (sourceType,
// instanceID), or nil if none is active.
func (s *Store) GetDatasetByInstance(ctx context.Context, sourceType types.SourceDatasetType, instanceID string) (*types.Dataset, error) {
	var d types.Dataset
	err := s.pool.QueryRow(ctx, `
		SELECT id, source_type, instance_id, version, active, created_at
		FROM datasets WHERE source_type = $1 AND instance_id = $2 AND active = TRUE
	`, sourceType, instanceID).Scan(&d.ID, &d.SourceType, &d.InstanceID, &d.Version, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: getting dataset: %w", err)
	}

	facets, err := s.loadFacets(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Facets = facets
	return &d, nil
}

// ListActiveDatasets returns all active Dataset rows for a source type.
func (s *Store) ListActiveDatasets(ctx context.Context, sourceType types.SourceDatasetType) ([]types.Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_type, instance_id, version, active, created_at
		FROM datasets WHERE source_type = $1 AND active = TRUE
	`, sourceType)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing datasets: %w", err)
	}
	defer rows.Close()

	var out []types.Dataset
	for rows.Next() {
		var d types.Dataset
		if err := rows.Scan(&d.ID, &d.SourceType, &d.InstanceID, &d.Version, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		facets, err := s.loadFacets(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Facets = facets
	}
	return out, nil
}

func (s *Store) loadFacets(ctx context.Context, datasetID int64) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT facet_name, facet_value FROM dataset_facets WHERE dataset_id = $1
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading facets: %w", err)
	}
	defer rows.Close()

	facets := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		facets[k] = v
	}
	return facets, rows.Err()
}

// ListFiles returns all File rows belonging to a dataset.
func (s *Store) ListFiles(ctx context.Context, datasetID int64) ([]types.File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, dataset_id, path, size, checksum, COALESCE(variable_id, ''), start_time, end_time
		FROM files WHERE dataset_id = $1
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing files: %w", err)
	}
	defer rows.Close()

	var out []types.File
	for rows.Next() {
		var f types.File
		if err := rows.Scan(&f.ID, &f.DatasetID, &f.Path, &f.Size, &f.Checksum, &f.VariableID, &f.StartTime, &f.EndTime); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// QueryCatalog returns rows for the active datasets of sourceType that
// satisfy the conjunction of keep=true filters and none of the keep=false
// filters.
func (s *Store) QueryCatalog(ctx context.Context, sourceType types.SourceDatasetType, filters []store.DatasetFilter) ([]store.CatalogRow, error) {
	datasets, err := s.ListActiveDatasets(ctx, sourceType)
	if err != nil {
		return nil, err
	}

	var out []store.CatalogRow
	for _, d := range datasets {
		if !matchesFilters(d.Facets, filters) {
			continue
		}
		files, err := s.ListFiles(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		for _, f := range files {
			out = append(out, store.CatalogRow{
				DatasetID:  d.ID,
				FileID:     f.ID,
				SourceType: d.SourceType,
				InstanceID: d.InstanceID,
				Version:    d.Version,
				Path:       f.Path,
				VariableID: f.VariableID,
				StartTime:  f.StartTime,
				EndTime:    f.EndTime,
				Facets:     d.Facets,
			})
		}
	}
	return out, nil
}

func matchesFilters(facets map[string]string, filters []store.DatasetFilter) bool {
	for _, f := range filters {
		matches := facetSetMatches(facets, f.Facets)
		if f.Keep && !matches {
			return false
		}
		if !f.Keep && matches {
			return false
		}
	}
	return true
}

func facetSetMatches(facets map[string]string, want map[string][]string) bool {
	for name, values := range want {
		v, ok := facets[name]
		if !ok {
			return false
		}
		found := false
		for _, candidate := range values {
			if v == candidate {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
