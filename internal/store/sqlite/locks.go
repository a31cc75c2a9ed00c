package sqlite

import (
	"context"
	"fmt"
	"time"
)

// lockOwner identifies this process for the lifetime of the Store, so
// that a lock it already holds can be refreshed by re-acquiring rather
// than being treated as contended.
var lockOwner = fmt.Sprintf("pid-%d", time.Now().UnixNano())

// AcquireLock attempts to take the advisory lock identified by key,
// expiring after ttl. It succeeds if the lock is unheld, already expired,
// or already held by this process; it fails if another live owner holds
// it. Used to serialize solver passes across hosts sharing one store.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE locks.owner = excluded.owner OR locks.expires_at < ?
	`, key, lockOwner, expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("sqlite: acquiring lock %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseLock releases a lock this process holds. Releasing a lock held
// by another owner, or a lock that does not exist, is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM locks WHERE key = ? AND owner = ?
	`, key, lockOwner); err != nil {
		return fmt.Errorf("sqlite: releasing lock %q: %w", key, err)
	}
	return nil
}
