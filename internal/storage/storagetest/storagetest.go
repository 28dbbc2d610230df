// Package storagetest is a conformance suite every storage.Store backend
// runs in its own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

func (w *widget) Kind() string     { return "widget" }
func (w *widget) EntityID() string { return w.ID }

// Run exercises s. The store must start empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "vault", "nope")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "vault", "v1", []byte("one")))
		got, err := s.Get(ctx, "vault", "v1")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got)

		require.NoError(t, s.Set(ctx, "vault", "v1", []byte("two")))
		got, err = s.Get(ctx, "vault", "v1")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("kinds are separate", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "invite", "v1", []byte("inv")))
		got, err := s.Get(ctx, "vault", "v1")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "vault", "v0", []byte("zero")))
		ids, err := s.List(ctx, "vault")
		require.NoError(t, err)
		assert.Equal(t, []string{"v0", "v1"}, ids)

		ids, err = s.List(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "vault", "v0"))
		_, err := s.Get(ctx, "vault", "v0")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		assert.NoError(t, s.Delete(ctx, "vault", "v0"))
	})

	t.Run("typed helpers", func(t *testing.T) {
		w := &widget{ID: "w1", Color: "red"}
		require.NoError(t, storage.Save(ctx, s, w))

		got, err := storage.Load[widget](ctx, s, "w1")
		require.NoError(t, err)
		assert.Equal(t, w, got)

		require.NoError(t, storage.Remove(ctx, s, w))
		_, err = storage.Load[widget](ctx, s, "w1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
	t.Run("atomically", func(t *testing.T) {
		require.NoError(t, storage.Atomically(ctx, s, func(ctx context.Context, tx storage.Store) error {
			if err := tx.Set(ctx, "batch", "a", []byte("1")); err != nil {
				return err
			}
			return tx.Set(ctx, "batch", "b", []byte("2"))
		}))
		ids, err := s.List(ctx, "batch")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	if _, ok := s.(storage.Batcher); ok {
		t.Run("batch rolls back", func(t *testing.T) {
			errAbort := errors.New("abort")
			err := storage.Atomically(ctx, s, func(ctx context.Context, tx storage.Store) error {
				require.NoError(t, tx.Set(ctx, "batch", "c", []byte("3")))
				require.NoError(t, tx.Delete(ctx, "batch", "a"))
				return errAbort
			})
			require.ErrorIs(t, err, errAbort)

			ids, err := s.List(ctx, "batch")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)
		})
	}
}
