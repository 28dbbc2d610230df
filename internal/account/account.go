// Package account models a user's identity: a key pair whose private half
// is stored encrypted under a password-derived key, and the locked or
// unlocked state of that key in memory.
package account

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/google/uuid"
)

const saltSize = 16

type Account struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	Name                string `json:"name"`
	PublicKey           []byte `json:"public_key"`
	EncryptedPrivateKey []byte `json:"encrypted_private_key"`
	KeySalt             []byte `json:"key_salt"`
	AuthSalt            []byte `json:"auth_salt"`
	// Verifier is kept by the server only; clients send it at signup and
	// password change.
	Verifier  []byte   `json:"verifier,omitempty"`
	MainVault string   `json:"main_vault"`
	Vaults    []string `json:"vaults,omitempty"`

	mu         sync.RWMutex
	privateKey []byte
}

func (a *Account) Kind() string     { return "account" }
func (a *Account) EntityID() string { return a.ID }

// NormalizeEmail lowercases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New creates an unlocked account with a fresh key pair.
func New(p cryptox.Provider, email, name, password string) (*Account, error) {
	kp, err := p.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	a := &Account{
		ID:        uuid.NewString(),
		Email:     NormalizeEmail(email),
		Name:      name,
		PublicKey: kp.Public,
	}
	if err := a.protect(p, kp.Private, password); err != nil {
		return nil, err
	}
	a.privateKey = kp.Private
	return a, nil
}

func (a *Account) aad() []byte {
	return []byte("account/" + a.ID)
}

// protect encrypts private under password with new salts and refreshes
// the login verifier.
func (a *Account) protect(p cryptox.Provider, private []byte, password string) error {
	keySalt, err := p.RandomBytes(saltSize)
	if err != nil {
		return err
	}
	authSalt, err := p.RandomBytes(saltSize)
	if err != nil {
		return err
	}
	unlockKey := p.DeriveKey([]byte(password), keySalt)
	defer common.WipeByteArray(unlockKey)

	enc, err := p.Encrypt(unlockKey, private, a.aad())
	if err != nil {
		return err
	}
	a.KeySalt = keySalt
	a.AuthSalt = authSalt
	a.EncryptedPrivateKey = enc
	a.Verifier = LoginVerifier(p, password, authSalt)
	return nil
}

// LoginVerifier is what a client presents at login for password and salt.
func LoginVerifier(p cryptox.Provider, password string, authSalt []byte) []byte {
	loginKey := p.DeriveKey([]byte(password), authSalt)
	defer common.WipeByteArray(loginKey)
	return cryptox.MakeVerifier(loginKey)
}

// Unlock decrypts the private key with password and keeps it in memory.
func (a *Account) Unlock(p cryptox.Provider, password string) error {
	unlockKey := p.DeriveKey([]byte(password), a.KeySalt)
	defer common.WipeByteArray(unlockKey)

	private, err := p.Decrypt(unlockKey, a.EncryptedPrivateKey, a.aad())
	if err != nil {
		return fmt.Errorf("unlock %s: %w", a.Email, common.ErrInvalidCredentials)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	common.WipeByteArray(a.privateKey)
	a.privateKey = private
	return nil
}

// Lock wipes the private key from memory.
func (a *Account) Lock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	common.WipeByteArray(a.privateKey)
	a.privateKey = nil
}

func (a *Account) Locked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.privateKey == nil
}

// PrivateKey returns a copy of the unlocked private key.
func (a *Account) PrivateKey() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.privateKey == nil {
		return nil, common.ErrLocked
	}
	return append([]byte(nil), a.privateKey...), nil
}

// ChangePassword re-encrypts the private key under newPassword. The
// account must unlock with oldPassword.
func (a *Account) ChangePassword(p cryptox.Provider, oldPassword, newPassword string) error {
	if err := a.Unlock(p, oldPassword); err != nil {
		return err
	}
	private, err := a.PrivateKey()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(private)
	return a.protect(p, private, newPassword)
}

// Identity is the public part used for memberships.
func (a *Account) Identity() vault.Identity {
	return vault.Identity{
		AccountID: a.ID,
		Email:     a.Email,
		Name:      a.Name,
		PublicKey: append([]byte(nil), a.PublicKey...),
	}
}

// Public returns a locked copy without the verifier.
func (a *Account) Public() *Account {
	c := a.Clone()
	c.Verifier = nil
	return c
}

// Clone returns a locked deep copy.
func (a *Account) Clone() *Account {
	return &Account{
		ID:                  a.ID,
		Email:               a.Email,
		Name:                a.Name,
		PublicKey:           append([]byte(nil), a.PublicKey...),
		EncryptedPrivateKey: append([]byte(nil), a.EncryptedPrivateKey...),
		KeySalt:             append([]byte(nil), a.KeySalt...),
		AuthSalt:            append([]byte(nil), a.AuthSalt...),
		Verifier:            append([]byte(nil), a.Verifier...),
		MainVault:           a.MainVault,
		Vaults:              append([]string(nil), a.Vaults...),
	}
}

// HasVault reports whether id is in the account's vault index.
func (a *Account) HasVault(id string) bool {
	for _, v := range a.Vaults {
		if v == id {
			return true
		}
	}
	return false
}
