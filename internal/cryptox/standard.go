package cryptox

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"
)

const (
	keySize = 32

	// public  = box public (32) || ed25519 public (32)
	// private = box private (32) || ed25519 seed (32)
	publicKeySize  = 64
	privateKeySize = 64
)

var aeadInfo = []byte("vaultsync aead v1")

// Standard is the production provider: argon2id, X25519 sealed boxes,
// Ed25519 signatures, XChaCha20-Poly1305 and HMAC-SHA256.
type Standard struct{}

var _ Provider = Standard{}

func (Standard) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (Standard) DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

func (Standard) GenerateKeyPair() (KeyPair, error) {
	boxPub, boxPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}

	pub := make([]byte, 0, publicKeySize)
	pub = append(pub, boxPub[:]...)
	pub = append(pub, edPub...)

	priv := make([]byte, 0, privateKeySize)
	priv = append(priv, boxPriv[:]...)
	priv = append(priv, edPriv.Seed()...)

	return KeyPair{Public: pub, Private: priv}, nil
}

func (Standard) Seal(public, plaintext []byte) ([]byte, error) {
	if len(public) != publicKeySize {
		return nil, failure("seal")
	}
	var pub [32]byte
	copy(pub[:], public[:32])
	return box.SealAnonymous(nil, plaintext, &pub, rand.Reader)
}

func (Standard) Open(private, ciphertext []byte) ([]byte, error) {
	if len(private) != privateKeySize {
		return nil, failure("open")
	}
	var priv, pub [32]byte
	copy(priv[:], private[:32])
	derived, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, failure("open")
	}
	copy(pub[:], derived)

	out, ok := box.OpenAnonymous(nil, ciphertext, &pub, &priv)
	if !ok {
		return nil, failure("open")
	}
	return out, nil
}

func aeadKey(key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, failure("key size")
	}
	sub := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, aeadInfo), sub); err != nil {
		return nil, failure("hkdf")
	}
	return sub, nil
}

func (Standard) Encrypt(key, plaintext, aad []byte) ([]byte, error) {
	sub, err := aeadKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sub)
	if err != nil {
		return nil, failure("encrypt")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (Standard) Decrypt(key, ciphertext, aad []byte) ([]byte, error) {
	sub, err := aeadKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sub)
	if err != nil {
		return nil, failure("decrypt")
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, failure("decrypt")
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	out, err := aead.Open(nil, nonce, body, aad)
	if err != nil {
		return nil, failure("decrypt")
	}
	return out, nil
}

func (Standard) Sign(private, data []byte) ([]byte, error) {
	if len(private) != privateKeySize {
		return nil, failure("sign")
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(private[32:]), data), nil
}

func (Standard) Verify(public, data, signature []byte) error {
	if len(public) != publicKeySize || !ed25519.Verify(ed25519.PublicKey(public[32:]), data, signature) {
		return failure("verify")
	}
	return nil
}

func (Standard) MAC(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}
