// Package sqlite stores entities in a local SQLite file. It backs the
// client's replica store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the goose migrations for this store.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Store struct {
	db dbx.DBTX
	// closer is nil when the caller owns the handle.
	closer *sql.DB
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Batcher = (*Store)(nil)
)

// Open opens dsn (a file path or "file:...?mode=memory") and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := dbx.Migrate(ctx, db, "sqlite3", Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	return &Store{db: db, closer: db}, nil
}

// New wraps an already migrated handle.
func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, kind, id string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entities WHERE kind = ? AND id = ?`, kind, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", kind, id, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, kind, id string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (kind, id, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, kind, id, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, kind, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entities WHERE kind = ? ORDER BY id`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return ids, nil
}

// Batch runs fn on a store bound to one transaction. A store that is
// already bound to a caller's handle runs fn directly.
func (s *Store) Batch(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.closer == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.closer, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, New(tx))
	})
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
