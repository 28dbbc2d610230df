// Package postgres is the server's primary storage.Store, on PostgreSQL
// through pgx.
package postgres

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
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrate = dbx.Migrate

type Store struct {
	db dbx.DBTX
	// pool is nil for a store bound to a transaction.
	pool *sql.DB
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Batcher = (*Store)(nil)
)

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, pool: db}
}

func (s *Store) RunMigrations(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	if err := migrate(ctx, s.pool, "pgx", sub); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind, id string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entities WHERE kind = $1 AND id = $2`, kind, id).Scan(&value)
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
		INSERT INTO entities (kind, id, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, kind, id, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = $1 AND id = $2`, kind, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entities WHERE kind = $1 ORDER BY id`, kind)
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

// Batch runs fn on a store bound to one transaction.
func (s *Store) Batch(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.pool, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &Store{db: tx})
	})
}

func (s *Store) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
