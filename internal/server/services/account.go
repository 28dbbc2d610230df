package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

const (
	emailKind        = "email"
	verificationKind = "verification"
	revokedKind      = "revoked_token"

	maxVerificationAttempts = 5
	authSaltSize            = 16
)

// emailIndex maps a normalized address to its account.
type emailIndex struct {
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
}

func (e *emailIndex) Kind() string     { return emailKind }
func (e *emailIndex) EntityID() string { return e.Email }

// verification is a pending signup code. Only a MAC of the code is kept.
type verification struct {
	Email     string    `json:"email"`
	Digest    []byte    `json:"digest"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

func (v *verification) Kind() string     { return verificationKind }
func (v *verification) EntityID() string { return v.Email }

type revokedToken struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *revokedToken) Kind() string     { return revokedKind }
func (r *revokedToken) EntityID() string { return r.ID }

// Session is returned by signup and login.
type Session struct {
	Token   string
	Account *account.Account
}

func (s *Service) codeDigest(email, code string) []byte {
	return s.crypto.MAC(s.cfg.SecretKey, []byte("verification:"+email+"|"+code))
}

func (s *Service) lookupEmail(ctx context.Context, email string) (string, error) {
	idx, err := storage.Load[emailIndex](ctx, s.store, email)
	if err != nil {
		return "", err
	}
	return idx.AccountID, nil
}

// RequestEmailVerification sends a one-time code to email. Signing up
// requires it.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) error {
	email = account.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("empty email: %w", common.ErrInvalidCredentials)
	}
	if _, err := s.lookupEmail(ctx, email); err == nil {
		return fmt.Errorf("email %s: %w", email, common.ErrAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	rnd, err := s.crypto.RandomBytes(4)
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", binary.BigEndian.Uint32(rnd)%1_000_000)

	unlock := s.locks.Lock(emailLockKey(email))
	defer unlock()

	v := &verification{
		Email:     email,
		Digest:    s.codeDigest(email, code),
		ExpiresAt: s.now().Add(s.cfg.VerificationCodeValidity),
	}
	if err := storage.Save(ctx, s.store, v); err != nil {
		return err
	}
	if err := s.messenger.Send(ctx, email, messenger.EmailVerificationMessage{Code: code}); err != nil {
		s.logger.Error(ctx, "sending verification code failed", "email", email, "error", err)
		return fmt.Errorf("send verification code: %w", common.ErrUnavailable)
	}
	s.logger.Info(ctx, "verification code sent", "email", email)
	return nil
}

func (s *Service) checkVerification(ctx context.Context, email, code string) error {
	v, err := storage.Load[verification](ctx, s.store, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no pending verification for %s: %w", email, common.ErrInvalidCredentials)
		}
		return err
	}
	if !s.now().Before(v.ExpiresAt) || v.Attempts >= maxVerificationAttempts {
		if err := storage.Remove(ctx, s.store, v); err != nil {
			s.logger.Error(ctx, "removing stale verification failed", "email", email, "error", err)
		}
		return fmt.Errorf("verification code expired: %w", common.ErrInvalidCredentials)
	}
	if subtle.ConstantTimeCompare(v.Digest, s.codeDigest(email, code)) != 1 {
		v.Attempts++
		if err := storage.Save(ctx, s.store, v); err != nil {
			return err
		}
		return fmt.Errorf("wrong verification code: %w", common.ErrInvalidCredentials)
	}
	return nil
}

func validateNewAccount(a *account.Account) error {
	if a == nil || a.ID == "" || a.Email == "" || len(a.PublicKey) == 0 ||
		len(a.EncryptedPrivateKey) == 0 || len(a.AuthSalt) == 0 || len(a.Verifier) == 0 {
		return fmt.Errorf("incomplete account: %w", common.ErrInvalidCredentials)
	}
	return nil
}

func validateMainVault(a *account.Account, v *vault.Vault) error {
	if v == nil || v.ID == "" || v.ParentID != "" || v.Owner != a.ID {
		return fmt.Errorf("main vault: %w", common.ErrorUnauthorized)
	}
	m, ok := v.Member(a.ID)
	if !ok || m.Role != vault.RoleOwner || !bytes.Equal(m.PublicKey, a.PublicKey) {
		return fmt.Errorf("main vault owner: %w", common.ErrorUnauthorized)
	}
	return nil
}

// CreateAccount registers a, together with its root vault, once the
// verification code for a.Email checks out.
func (s *Service) CreateAccount(ctx context.Context, a *account.Account, code string, mainVault *vault.Vault) (*Session, error) {
	if err := validateNewAccount(a); err != nil {
		return nil, err
	}
	a.Email = account.NormalizeEmail(a.Email)
	if err := validateMainVault(a, mainVault); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(emailLockKey(a.Email))
	defer unlock()

	if err := s.checkVerification(ctx, a.Email, code); err != nil {
		return nil, err
	}
	if _, err := s.lookupEmail(ctx, a.Email); err == nil {
		return nil, fmt.Errorf("email %s: %w", a.Email, common.ErrAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if _, err := s.store.Get(ctx, a.Kind(), a.ID); err == nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, common.ErrAlreadyExists)
	}
	if _, err := s.store.Get(ctx, mainVault.Kind(), mainVault.ID); err == nil {
		return nil, fmt.Errorf("vault %s: %w", mainVault.ID, common.ErrAlreadyExists)
	}

	a.MainVault = mainVault.ID
	a.Vaults = []string{mainVault.ID}

	err := storage.Atomically(ctx, s.store, func(ctx context.Context, tx storage.Store) error {
		if err := storage.Save(ctx, tx, mainVault); err != nil {
			return err
		}
		if err := storage.Save(ctx, tx, a); err != nil {
			return err
		}
		if err := storage.Save(ctx, tx, &emailIndex{Email: a.Email, AccountID: a.ID}); err != nil {
			return err
		}
		return tx.Delete(ctx, verificationKind, a.Email)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(a.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created", "account", a.ID)
	return &Session{Token: token, Account: a.Public()}, nil
}

// GetAuthParams returns the salt a client needs to compute its login
// verifier. Unknown addresses get a stable fake salt so they look the
// same as known ones.
func (s *Service) GetAuthParams(ctx context.Context, email string) ([]byte, error) {
	email = account.NormalizeEmail(email)
	id, err := s.lookupEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.crypto.MAC(s.cfg.SecretKey, []byte("auth-salt:"+email))[:authSaltSize], nil
		}
		return nil, err
	}
	a, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.AuthSalt, nil
}

// Login checks verifier against the stored one and opens a session.
func (s *Service) Login(ctx context.Context, email string, verifier []byte) (*Session, error) {
	email = account.NormalizeEmail(email)
	id, err := s.lookupEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	a, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(a.Verifier, verifier) != 1 {
		s.logger.Warn(ctx, "login failed", "email", email)
		return nil, common.ErrInvalidCredentials
	}
	token, err := s.issueToken(a.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Account: a.Public()}, nil
}

// Logout revokes token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.cfg.SecretKey)
	if err != nil {
		return err
	}
	r := &revokedToken{ID: claims.ID}
	if claims.ExpiresAt != nil {
		r.ExpiresAt = claims.ExpiresAt.Time
	}
	return storage.Save(ctx, s.store, r)
}

// GetAccount returns the caller's account without its verifier.
func (s *Service) GetAccount(ctx context.Context) (*account.Account, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Public(), nil
}

// UpdateAccount stores new key material and login parameters after a
// password change. oldVerifier must match the current verifier. Identity
// fields cannot change.
func (s *Service) UpdateAccount(ctx context.Context, updated *account.Account, oldVerifier []byte) (*account.Account, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if updated == nil || updated.ID != id {
		return nil, fmt.Errorf("update account: %w", common.ErrorUnauthorized)
	}

	unlock := s.locks.Lock(accountLockKey(id))
	defer unlock()

	a, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(a.Verifier, oldVerifier) != 1 {
		return nil, common.ErrInvalidCredentials
	}
	if !bytes.Equal(a.PublicKey, updated.PublicKey) {
		return nil, fmt.Errorf("public key is immutable: %w", common.ErrorUnauthorized)
	}
	if len(updated.EncryptedPrivateKey) == 0 || len(updated.AuthSalt) == 0 || len(updated.Verifier) == 0 {
		return nil, fmt.Errorf("incomplete account: %w", common.ErrInvalidCredentials)
	}

	if updated.Name != "" {
		a.Name = updated.Name
	}
	a.EncryptedPrivateKey = updated.EncryptedPrivateKey
	a.KeySalt = updated.KeySalt
	a.AuthSalt = updated.AuthSalt
	a.Verifier = updated.Verifier

	if err := storage.Save(ctx, s.store, a); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account updated", "account", id)
	return a.Public(), nil
}

// indexVault adds or removes vaultID from an account's vault list.
// Accounts that do not exist are skipped.
func (s *Service) indexVault(ctx context.Context, accountID, vaultID string, member bool) error {
	unlock := s.locks.Lock(accountLockKey(accountID))
	defer unlock()

	a, err := s.loadAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	has := a.HasVault(vaultID)
	switch {
	case member && !has:
		a.Vaults = append(a.Vaults, vaultID)
	case !member && has:
		kept := a.Vaults[:0]
		for _, v := range a.Vaults {
			if v != vaultID {
				kept = append(kept, v)
			}
		}
		a.Vaults = kept
	default:
		return nil
	}
	return storage.Save(ctx, s.store, a)
}
