// Package sqlite implements the execution store on an embedded SQLite
// database, for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Config configures the embedded SQLite backend.
type Config struct {
	Path string `toml:"path" json:"path"`
}

// Store implements store.Store on top of database/sql + go-sqlite3.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New opens (and, on first use, creates) the SQLite database at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // serialize writers; sqlite has a single writer anyway

	return &Store{db: db, path: cfg.Path, logger: slog.Default()}, nil
}

// Start runs the schema migration (idempotent, CREATE TABLE IF NOT EXISTS)
// and pings the connection.
func (s *Store) Start(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("sqlite: applying schema: %w", err)
	}
	return s.Ping(ctx)
}

// Stop closes the underlying database handle.
func (s *Store) Stop(_ context.Context) error {
	return s.db.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Backup copies the database file to a timestamped sibling path before a
// schema migration, then prunes older backups beyond maxBackups.
func (s *Store) Backup(_ context.Context, maxBackups int) (types.BackupRecord, error) {
	if maxBackups <= 0 {
		maxBackups = 5
	}
	now := time.Now().UTC()
	dst := fmt.Sprintf("%s.bak.%s", s.path, now.Format("20060102T150405"))

	if err := copyFile(s.path, dst); err != nil {
		return types.BackupRecord{}, fmt.Errorf("sqlite: backup: %w", err)
	}

	if err := pruneBackups(s.path, maxBackups); err != nil {
		s.logger.Warn("sqlite: failed to prune old backups", "error", err)
	}

	return types.BackupRecord{Path: dst, CreatedAt: now}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func pruneBackups(basePath string, maxBackups int) error {
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var backups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > len(base)+5 && name[:len(base)+5] == base+".bak." {
			backups = append(backups, filepath.Join(dir, name))
		}
	}
	if len(backups) <= maxBackups {
		return nil
	}
	// Lexicographic sort on the timestamp suffix is also chronological.
	for i := 0; i < len(backups)-maxBackups; i++ {
		oldest := backups[i]
		for j := i + 1; j < len(backups); j++ {
			if backups[j] < oldest {
				backups[i], backups[j] = backups[j], backups[i]
				oldest = backups[i]
			}
		}
	}
	for _, b := range backups[:len(backups)-maxBackups] {
		_ = os.Remove(b)
	}
	return nil
}
