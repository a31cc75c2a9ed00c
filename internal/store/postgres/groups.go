package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/interlock/pkg/types"
)

func encodeGroupKey(key []types.FacetPair) (string, error) {
	if key == nil {
		key = []types.FacetPair{}
	}
	b, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeGroupKey(s string) ([]types.FacetPair, error) {
	var key []types.FacetPair
	if err := json.Unmarshal([]byte(s), &key); err != nil {
		return nil, err
	}
	return key, nil
}

// GetGroup returns the ExecutionGroup matching (providerSlug,
// diagnosticSlug, groupKey), or nil if it does not exist.
func (s *Store) GetGroup(ctx context.Context, providerSlug, diagnosticSlug string, groupKey []types.FacetPair) (*types.ExecutionGroup, error) {
	encoded, err := encodeGroupKey(groupKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: encoding group key: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups WHERE provider_slug = $1 AND diagnostic_slug = $2 AND group_key = $3
	`, providerSlug, diagnosticSlug, encoded)
	return scanGroup(row)
}

// GetGroupByID returns the ExecutionGroup with the given surrogate key, or
// nil if it does not exist.
func (s *Store) GetGroupByID(ctx context.Context, id int64) (*types.ExecutionGroup, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups WHERE id = $1
	`, id)
	return scanGroup(row)
}

func scanGroup(row pgx.Row) (*types.ExecutionGroup, error) {
	var g types.ExecutionGroup
	var rawKey string
	var latestExecID *int64
	if err := row.Scan(&g.ID, &g.ProviderSlug, &g.DiagnosticSlug, &rawKey, &g.Dirty, &g.Stale, &latestExecID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: getting group: %w", err)
	}
	key, err := decodeGroupKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: decoding group key: %w", err)
	}
	g.GroupKey = key
	g.LatestExecutionID = latestExecID
	return &g, nil
}

// UpsertGroup inserts a new ExecutionGroup, or updates the dirty/stale
// flags and latest_exec_id of an existing one.
func (s *Store) UpsertGroup(ctx context.Context, g types.ExecutionGroup) (types.ExecutionGroup, error) {
	encoded, err := encodeGroupKey(g.GroupKey)
	if err != nil {
		return types.ExecutionGroup{}, fmt.Errorf("postgres: encoding group key: %w", err)
	}

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO execution_groups (provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_slug, diagnostic_slug, group_key) DO UPDATE SET
			dirty = excluded.dirty,
			stale = excluded.stale,
			latest_exec_id = excluded.latest_exec_id,
			updated_at = excluded.updated_at
	`, g.ProviderSlug, g.DiagnosticSlug, encoded, g.Dirty, g.Stale, g.LatestExecutionID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return types.ExecutionGroup{}, fmt.Errorf("postgres: upserting group: %w", err)
	}

	stored, err := s.GetGroup(ctx, g.ProviderSlug, g.DiagnosticSlug, g.GroupKey)
	if err != nil {
		return types.ExecutionGroup{}, err
	}
	return *stored, nil
}

// MarkGroupStale flips the stale flag on a group.
func (s *Store) MarkGroupStale(ctx context.Context, groupID int64, stale bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE execution_groups SET stale = $1, updated_at = $2 WHERE id = $3
	`, stale, time.Now().UTC(), groupID)
	if err != nil {
		return fmt.Errorf("postgres: marking group stale: %w", err)
	}
	return nil
}

// ListGroups returns groups whose provider/diagnostic slug contains the
// given substrings. Empty filters match everything.
func (s *Store) ListGroups(ctx context.Context, providerFilter, diagnosticFilter string) ([]types.ExecutionGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups
		WHERE provider_slug LIKE '%' || $1 || '%' AND diagnostic_slug LIKE '%' || $2 || '%'
		ORDER BY provider_slug, diagnostic_slug, id
	`, providerFilter, diagnosticFilter)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing groups: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionGroup
	for rows.Next() {
		var g types.ExecutionGroup
		var rawKey string
		var latestExecID *int64
		if err := rows.Scan(&g.ID, &g.ProviderSlug, &g.DiagnosticSlug, &rawKey, &g.Dirty, &g.Stale, &latestExecID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		key, err := decodeGroupKey(rawKey)
		if err != nil {
			return nil, fmt.Errorf("postgres: decoding group key: %w", err)
		}
		g.GroupKey = key
		g.LatestExecutionID = latestExecID
		out = append(out, g)
	}
	return out, rows.Err()
}
