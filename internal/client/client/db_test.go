package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDatabase_CreatesFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "replica.db")

	store, err := InitDatabase(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(context.Background(), "vault", "v1", []byte("x")))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestInitDatabase_InMemoryURI(t *testing.T) {
	store, err := InitDatabase(context.Background(), "file:client_db_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "vault", "v1", []byte("x")))
	got, err := store.Get(ctx, "vault", "v1")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}
