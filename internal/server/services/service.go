// Package services holds the server-side business logic: accounts and
// sessions, per-vault merge arbitration and the invite mailbox.
//
// Every state change goes through storage.Store. Writes to one vault are
// serialized with a keyed lock; different vaults proceed in parallel.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/keylock"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

// Config carries the service settings taken from the server config.
type Config struct {
	SecretKey                []byte
	AccessTokenValidity      time.Duration
	VerificationCodeValidity time.Duration
	// MaxInviteTTL caps the lifetime clients may request for invites.
	MaxInviteTTL time.Duration
	ClientURL    string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store     storage.Store
	crypto    cryptox.Provider
	messenger messenger.Messenger
	logger    logging.Logger
	cfg       Config
	locks     keylock.Locker
}

func New(store storage.Store, p cryptox.Provider, m messenger.Messenger, l logging.Logger, cfg Config) *Service {
	if cfg.AccessTokenValidity <= 0 {
		cfg.AccessTokenValidity = time.Hour
	}
	if cfg.VerificationCodeValidity <= 0 {
		cfg.VerificationCodeValidity = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     store,
		crypto:    p,
		messenger: m,
		logger:    l.With("module", "service"),
		cfg:       cfg,
	}
}

func (s *Service) now() time.Time { return s.cfg.Now() }

// Authenticate resolves a session token to an account id. Tokens revoked
// by Logout are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := auth.ParseToken(token, s.cfg.SecretKey)
	if err != nil {
		return "", err
	}
	if _, err := s.store.Get(ctx, revokedKind, claims.ID); err == nil {
		return "", common.ErrInvalidToken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("check revocation: %w", err)
	}
	return claims.AccountID, nil
}

func (s *Service) issueToken(accountID string) (string, error) {
	token, _, err := auth.GenerateToken(accountID, s.cfg.SecretKey, s.cfg.AccessTokenValidity)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", common.ErrorInternal)
	}
	return token, nil
}

func (s *Service) caller(ctx context.Context) (string, error) {
	return auth.AccountID(ctx)
}

func (s *Service) loadAccount(ctx context.Context, id string) (*account.Account, error) {
	a, err := storage.Load[account.Account](ctx, s.store, id)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return a, nil
}

func (s *Service) loadVault(ctx context.Context, id string) (*vault.Vault, error) {
	v, err := storage.Load[vault.Vault](ctx, s.store, id)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", id, err)
	}
	return v, nil
}

// effectiveMember checks that accountID is a live member of v and of every
// ancestor of v, and returns its role in v.
func (s *Service) effectiveMember(ctx context.Context, v *vault.Vault, accountID string) (vault.Role, error) {
	m, ok := v.Member(accountID)
	if !ok {
		return "", fmt.Errorf("vault %s: %w", v.ID, common.ErrorUnauthorized)
	}
	seen := map[string]bool{v.ID: true}
	for parentID := v.ParentID; parentID != ""; {
		if seen[parentID] {
			return "", fmt.Errorf("vault %s: cyclic parent chain: %w", v.ID, common.ErrorUnauthorized)
		}
		seen[parentID] = true
		parent, err := s.loadVault(ctx, parentID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", fmt.Errorf("vault %s: missing ancestor: %w", v.ID, common.ErrorUnauthorized)
			}
			return "", err
		}
		if _, ok := parent.Member(accountID); !ok {
			return "", fmt.Errorf("vault %s: not a member of ancestor %s: %w", v.ID, parent.ID, common.ErrorUnauthorized)
		}
		parentID = parent.ParentID
	}
	return m.Role, nil
}

func (s *Service) requireAdmin(ctx context.Context, v *vault.Vault, accountID string) error {
	role, err := s.effectiveMember(ctx, v, accountID)
	if err != nil {
		return err
	}
	if !role.Allows(vault.RoleAdmin) {
		return fmt.Errorf("vault %s: admin required: %w", v.ID, common.ErrorUnauthorized)
	}
	return nil
}

func accountLockKey(id string) string { return "account:" + id }
func vaultLockKey(id string) string   { return "vault:" + id }
func inviteLockKey(id string) string  { return "invite:" + id }
func emailLockKey(e string) string    { return "email:" + e }
