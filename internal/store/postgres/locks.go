package postgres

import (
	"context"
	"fmt"
	"os"
	"time"
)

// lockOwner identifies this process for the lifetime of the Store.
var lockOwner = fmt.Sprintf("pid-%d-%d", os.Getpid(), time.Now().UnixNano())

// AcquireLock attempts to take the advisory lock identified by key,
// expiring after ttl. Table-based rather than pg_advisory_lock so that
// the embedded and server backends share identical lease semantics under
// internal/store/storetest, including surviving a connection drop — a
// session-scoped pg_advisory_lock would release early on disconnect,
// which the solver's cross-host serialization cannot tolerate.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO locks (key, owner, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE locks.owner = excluded.owner OR locks.expires_at < $4
	`, key, lockOwner, expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("postgres: acquiring lock %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLock releases a lock this process holds.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM locks WHERE key = $1 AND owner = $2
	`, key, lockOwner); err != nil {
		return fmt.Errorf("postgres: releasing lock %q: %w", key, err)
	}
	return nil
}
