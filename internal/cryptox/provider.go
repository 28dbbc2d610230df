// Package cryptox abstracts every cryptographic primitive vaultsync uses
// behind Provider. Callers receive a Provider explicitly; the process-wide
// registration exists for entry points that pick one from configuration.
//
// All decryption, opening and verification failures wrap
// common.ErrCryptoFailure so callers never learn which check failed.
package cryptox

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/vaultsync/internal/common"
)

// KeyPair is an encryption and signing key pair. Both halves are opaque
// byte strings whose layout belongs to the provider that generated them.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// Provider is the crypto capability set used by accounts, vaults and invites.
type Provider interface {
	// RandomBytes returns n bytes suitable for keys, salts and secrets.
	RandomBytes(n int) ([]byte, error)
	// DeriveKey stretches a password into a 32-byte key.
	DeriveKey(password, salt []byte) []byte
	GenerateKeyPair() (KeyPair, error)

	// Seal encrypts to a public key; only the matching private key opens it.
	Seal(public, plaintext []byte) ([]byte, error)
	Open(private, ciphertext []byte) ([]byte, error)

	// Encrypt and Decrypt use a 32-byte symmetric key with associated data.
	Encrypt(key, plaintext, aad []byte) ([]byte, error)
	Decrypt(key, ciphertext, aad []byte) ([]byte, error)

	Sign(private, data []byte) ([]byte, error)
	Verify(public, data, signature []byte) error

	MAC(key, data []byte) []byte
}

var (
	registryMu sync.RWMutex
	registered Provider
)

// ErrAlreadyRegistered is returned by Register when a provider is already bound.
var ErrAlreadyRegistered = errors.New("crypto provider already registered")

// Register binds p as the process-wide provider. It can be called once.
func Register(p Provider) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registered != nil {
		return ErrAlreadyRegistered
	}
	registered = p
	return nil
}

// Registered returns the bound provider, or Standard if none was registered.
func Registered() Provider {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if registered == nil {
		return Standard{}
	}
	return registered
}

// ByName returns the provider for a configuration value: "standard" or "stub".
func ByName(name string) (Provider, error) {
	switch name {
	case "", "standard":
		return Standard{}, nil
	case "stub":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown crypto provider %q", name)
	}
}

// MakeVerifier turns a login key into the value the server stores and
// compares at login. The server never sees the key itself.
func MakeVerifier(loginKey []byte) []byte {
	hash := sha256.Sum256(loginKey)
	return hash[:]
}

// EncryptJSON serializes v to JSON and encrypts it with key.
func EncryptJSON(p Provider, key []byte, v any, aad []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)
	return p.Encrypt(key, plaintext, aad)
}

// DecryptJSON reverses EncryptJSON into v.
func DecryptJSON(p Provider, key, ciphertext []byte, v any, aad []byte) error {
	plaintext, err := p.Decrypt(key, ciphertext, aad)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCryptoFailure, err)
	}
	return nil
}

func failure(op string) error {
	return fmt.Errorf("%s: %w", op, common.ErrCryptoFailure)
}
