package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// AppendEvent writes an entry to the append-only event log.
func (s *Store) AppendEvent(ctx context.Context, event types.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var groupID, execID interface{}
	if event.GroupID != 0 {
		groupID = event.GroupID
	}
	if event.ExecutionID != 0 {
		execID = event.ExecutionID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (kind, provider_slug, group_id, execution_id, message, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.Kind, event.ProviderSlug, groupID, execID, event.Message, event.Details, event.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: appending event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for a group, newest first,
// capped at limit rows (0 means unlimited).
func (s *Store) ListEvents(ctx context.Context, groupID int64, limit int) ([]types.Event, error) {
	query := `
		SELECT kind, COALESCE(provider_slug, ''), COALESCE(group_id, 0), COALESCE(execution_id, 0),
			COALESCE(message, ''), details, timestamp
		FROM events WHERE group_id = $1 ORDER BY timestamp DESC, id DESC
	`
	args := []interface{}{groupID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.Kind, &e.ProviderSlug, &e.GroupID, &e.ExecutionID, &e.Message, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
