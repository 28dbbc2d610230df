// Package bolt stores entities in a single bbolt file, one bucket per
// kind. It suits a single-node server without PostgreSQL.
package bolt

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	bolt "go.etcd.io/bbolt"
)

type Store struct {
	db *bolt.DB
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Batcher = (*Store)(nil)
)

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func get(tx *bolt.Tx, kind, id string) ([]byte, error) {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return nil, common.ErrorNotFound
	}
	v := b.Get([]byte(id))
	if v == nil {
		return nil, common.ErrorNotFound
	}
	// v is only valid inside the transaction
	return append([]byte(nil), v...), nil
}

func put(tx *bolt.Tx, kind, id string, value []byte) error {
	b, err := tx.CreateBucketIfNotExists([]byte(kind))
	if err != nil {
		return err
	}
	return b.Put([]byte(id), value)
}

func del(tx *bolt.Tx, kind, id string) error {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(id))
}

// list relies on bbolt iterating keys in byte order.
func list(tx *bolt.Tx, kind string) ([]string, error) {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return nil, nil
	}
	var ids []string
	err := b.ForEach(func(k, _ []byte) error {
		ids = append(ids, string(k))
		return nil
	})
	return ids, err
}

func (s *Store) Get(ctx context.Context, kind, id string) (value []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		value, err = get(tx, kind, id)
		return err
	})
	return value, err
}

func (s *Store) Set(ctx context.Context, kind, id string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, kind, id, value) })
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error { return del(tx, kind, id) })
}

func (s *Store) List(ctx context.Context, kind string) (ids []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		ids, err = list(tx, kind)
		return err
	})
	return ids, err
}

// Batch runs fn inside one read-write bbolt transaction.
func (s *Store) Batch(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(ctx, txStore{tx: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// txStore is a Store view of an open transaction. Close is a no-op; the
// transaction ends with Batch.
type txStore struct {
	tx *bolt.Tx
}

func (t txStore) Get(_ context.Context, kind, id string) ([]byte, error) { return get(t.tx, kind, id) }
func (t txStore) Set(_ context.Context, kind, id string, value []byte) error {
	return put(t.tx, kind, id, value)
}
func (t txStore) Delete(_ context.Context, kind, id string) error { return del(t.tx, kind, id) }
func (t txStore) List(_ context.Context, kind string) ([]string, error) {
	return list(t.tx, kind)
}
func (t txStore) Close() error { return nil }
