package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// AppendEvent writes an entry to the append-only event log.
func (s *Store) AppendEvent(ctx context.Context, event types.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("sqlite: encoding event details: %w", err)
		}
	}

	var groupID, execID interface{}
	if event.GroupID != 0 {
		groupID = event.GroupID
	}
	if event.ExecutionID != 0 {
		execID = event.ExecutionID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (kind, provider_slug, group_id, execution_id, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.Kind, event.ProviderSlug, groupID, execID, event.Message, string(detailsJSON), event.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: appending event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for a group, newest first,
// capped at limit rows (0 means unlimited).
func (s *Store) ListEvents(ctx context.Context, groupID int64, limit int) ([]types.Event, error) {
	query := `
		SELECT kind, provider_slug, group_id, execution_id, message, details, timestamp
		FROM events WHERE group_id = ? ORDER BY timestamp DESC, id DESC
	`
	args := []interface{}{groupID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var e types.Event
		var providerSlug, message sql.NullString
		var groupIDN, execIDN sql.NullInt64
		var detailsJSON sql.NullString
		if err := rows.Scan(&e.Kind, &providerSlug, &groupIDN, &execIDN, &message, &detailsJSON, &e.Timestamp); err != nil {
			return nil, err
		}
		e.ProviderSlug = providerSlug.String
		e.Message = message.String
		e.GroupID = groupIDN.Int64
		e.ExecutionID = execIDN.Int64
		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, fmt.Errorf("sqlite: decoding event details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
