// Package keyring remembers which account was last used against a server,
// so the CLI can offer it at the login prompt. Only the email is stored;
// passwords and keys never reach the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/zalando/go-keyring"
)

type Store struct {
	service string
}

func New(service string) *Store {
	return &Store{service: service}
}

func user(server string) string {
	return "last-email:" + strings.ToLower(strings.TrimSpace(server))
}

// RememberEmail records email as the last account used on server.
func (s *Store) RememberEmail(server, email string) error {
	if err := keyring.Set(s.service, user(server), email); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// LastEmail returns the remembered email for server, or
// common.ErrorNotFound.
func (s *Store) LastEmail(server string) (string, error) {
	email, err := keyring.Get(s.service, user(server))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no remembered account for %s: %w", server, common.ErrorNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return email, nil
}

// Forget drops the remembered email. Forgetting twice is not an error.
func (s *Store) Forget(server string) error {
	err := keyring.Delete(s.service, user(server))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}
