package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMigrate_AppliesMigrations(t *testing.T) {
	db, err := sql.Open("sqlite", "file:dbx_migrate?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"00001_init.sql": {Data: []byte("-- +goose Up\nCREATE TABLE m (id INTEGER PRIMARY KEY);\n-- +goose Down\nDROP TABLE m;\n")},
	}

	require.NoError(t, Migrate(context.Background(), db, "sqlite3", fsys))

	_, err = db.Exec(`INSERT INTO m (id) VALUES (1)`)
	require.NoError(t, err)

	// second run is a no-op
	require.NoError(t, Migrate(context.Background(), db, "sqlite3", fsys))
}

func TestMigrate_UnknownDialect(t *testing.T) {
	require.Error(t, Migrate(context.Background(), nil, "no-such-dialect", fstest.MapFS{}))
}

func TestMigrate_PropagatesGooseError(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	t.Cleanup(func() { gooseUpContext = orig })

	err := Migrate(context.Background(), nil, "pgx", fstest.MapFS{})
	require.EqualError(t, err, "boom")
}
