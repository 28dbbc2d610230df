// Package storage defines the key-value persistence used by the server
// and by local replicas, plus JSON helpers for typed entities.
//
// Values are opaque bytes addressed by (kind, id). Backends live in the
// sub-packages.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a key-value store partitioned by kind. Get returns
// common.ErrorNotFound for a missing key; Delete of a missing key is not
// an error.
type Store interface {
	Get(ctx context.Context, kind, id string) ([]byte, error)
	Set(ctx context.Context, kind, id string, value []byte) error
	Delete(ctx context.Context, kind, id string) error
	// List returns the ids stored under kind in ascending order.
	List(ctx context.Context, kind string) ([]string, error)
	Close() error
}

// Batcher is implemented by stores that can apply several writes as one
// transaction. fn must use the Store it is given, not the outer one.
type Batcher interface {
	Batch(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Atomically runs fn in a batch when s is a Batcher and directly on s
// otherwise.
func Atomically(ctx context.Context, s Store, fn func(ctx context.Context, s Store) error) error {
	if b, ok := s.(Batcher); ok {
		return b.Batch(ctx, fn)
	}
	return fn(ctx, s)
}

// Entity is anything that knows its own storage key.
type Entity interface {
	Kind() string
	EntityID() string
}

// Save stores e as JSON.
func Save(ctx context.Context, s Store, e Entity) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", e.Kind(), e.EntityID(), err)
	}
	return s.Set(ctx, e.Kind(), e.EntityID(), b)
}

// Load reads the entity of type T with the given id.
//
//	v, err := storage.Load[vault.Vault](ctx, store, id)
func Load[T any, PT interface {
	*T
	Entity
}](ctx context.Context, s Store, id string) (PT, error) {
	var zero T
	kind := PT(&zero).Kind()

	b, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	out := PT(new(T))
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return out, nil
}

// Remove deletes e.
func Remove(ctx context.Context, s Store, e Entity) error {
	return s.Delete(ctx, e.Kind(), e.EntityID())
}

// Key joins kind and id for backends with a flat key space.
func Key(kind, id string) string {
	return kind + "/" + id
}
