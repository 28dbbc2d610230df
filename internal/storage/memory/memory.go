// Package memory is an in-process storage.Store for tests and single-node
// development servers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, kind, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[storage.Key(kind, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, kind, id string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[storage.Key(kind, id)] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, storage.Key(kind, id))
	return nil
}

func (s *Store) List(_ context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := kind + "/"
	var ids []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error { return nil }
