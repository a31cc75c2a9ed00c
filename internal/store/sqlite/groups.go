package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// encodeGroupKey renders a group key as canonical JSON. Callers are
// expected to pass group keys already sorted by facet name, as the
// resolver guarantees; this function does not itself sort, so the same
// slice always serializes to the same bytes.
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
		return nil, fmt.Errorf("sqlite: encoding group key: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups WHERE provider_slug = ? AND diagnostic_slug = ? AND group_key = ?
	`, providerSlug, diagnosticSlug, encoded)
	return scanGroup(row)
}

// GetGroupByID returns the ExecutionGroup with the given surrogate key, or
// nil if it does not exist. Executions reference a group only by ID, so
// the executor needs this lookup to learn a group's provider/diagnostic
// slug and key before invoking the plugin.
func (s *Store) GetGroupByID(ctx context.Context, id int64) (*types.ExecutionGroup, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups WHERE id = ?
	`, id)
	return scanGroup(row)
}

func scanGroup(row *sql.Row) (*types.ExecutionGroup, error) {
	var g types.ExecutionGroup
	var rawKey string
	var latestExecID sql.NullInt64
	if err := row.Scan(&g.ID, &g.ProviderSlug, &g.DiagnosticSlug, &rawKey, &g.Dirty, &g.Stale, &latestExecID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting group: %w", err)
	}
	key, err := decodeGroupKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decoding group key: %w", err)
	}
	g.GroupKey = key
	if latestExecID.Valid {
		v := latestExecID.Int64
		g.LatestExecutionID = &v
	}
	return &g, nil
}

// UpsertGroup inserts a new ExecutionGroup, or updates the dirty/stale
// flags and latest_exec_id of an existing one identified by its unique
// (provider_slug, diagnostic_slug, group_key).
func (s *Store) UpsertGroup(ctx context.Context, g types.ExecutionGroup) (types.ExecutionGroup, error) {
	encoded, err := encodeGroupKey(g.GroupKey)
	if err != nil {
		return types.ExecutionGroup{}, fmt.Errorf("sqlite: encoding group key: %w", err)
	}

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	var latestExecID interface{}
	if g.LatestExecutionID != nil {
		latestExecID = *g.LatestExecutionID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_groups (provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_slug, diagnostic_slug, group_key) DO UPDATE SET
			dirty = excluded.dirty,
			stale = excluded.stale,
			latest_exec_id = excluded.latest_exec_id,
			updated_at = excluded.updated_at
	`, g.ProviderSlug, g.DiagnosticSlug, encoded, g.Dirty, g.Stale, latestExecID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return types.ExecutionGroup{}, fmt.Errorf("sqlite: upserting group: %w", err)
	}

	stored, err := s.GetGroup(ctx, g.ProviderSlug, g.DiagnosticSlug, g.GroupKey)
	if err != nil {
		return types.ExecutionGroup{}, err
	}
	return *stored, nil
}

// MarkGroupStale flips the stale flag on a group, e.g. when a dataset
// relevant to its inputs has been superseded by a newer version.
func (s *Store) MarkGroupStale(ctx context.Context, groupID int64, stale bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE execution_groups SET stale = ?, updated_at = ? WHERE id = ?
	`, stale, time.Now().UTC(), groupID)
	if err != nil {
		return fmt.Errorf("sqlite: marking group stale: %w", err)
	}
	return nil
}

// ListGroups returns groups whose provider/diagnostic slug contains the
// given substrings (case-sensitive), matching the --provider/--diagnostic
// solve filters. Empty filters match everything.
func (s *Store) ListGroups(ctx context.Context, providerFilter, diagnosticFilter string) ([]types.ExecutionGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_slug, diagnostic_slug, group_key, dirty, stale, latest_exec_id, created_at, updated_at
		FROM execution_groups
		WHERE instr(provider_slug, ?) > 0 AND instr(diagnostic_slug, ?) > 0
		ORDER BY provider_slug, diagnostic_slug, id
	`, providerFilter, diagnosticFilter)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionGroup
	for rows.Next() {
		var g types.ExecutionGroup
		var rawKey string
		var latestExecID sql.NullInt64
		if err := rows.Scan(&g.ID, &g.ProviderSlug, &g.DiagnosticSlug, &rawKey, &g.Dirty, &g.Stale, &latestExecID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		key, err := decodeGroupKey(rawKey)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decoding group key: %w", err)
		}
		g.GroupKey = key
		if latestExecID.Valid {
			v := latestExecID.Int64
			g.LatestExecutionID = &v
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// groupKeyString is a helper for callers building log/event messages from
// a group key without importing encoding/json themselves.
func groupKeyString(key []types.FacetPair) string {
	parts := make([]string, 0, len(key))
	for _, p := range key {
		parts = append(parts, p.Facet+"="+p.Value)
	}
	return strings.Join(parts, ",")
}
