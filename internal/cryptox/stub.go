package cryptox

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// Stub is a deterministic, insecure provider for tests. Two Stubs created
// with NewStub produce the same sequence of keys and random bytes.
type Stub struct {
	mu      sync.Mutex
	counter uint64
}

var _ Provider = (*Stub)(nil)

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) next(label string) []byte {
	s.mu.Lock()
	s.counter++
	n := s.counter
	s.mu.Unlock()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	sum := sha256.Sum256(append([]byte(label), buf[:]...))
	return sum[:]
}

func stubPublic(private []byte) []byte {
	sum := sha256.Sum256(append([]byte("stub-pub"), private...))
	return sum[:]
}

func stubTag(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return h.Sum(nil)[:8]
}

func (s *Stub) RandomBytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s.next("stub-rand")...)
	}
	return out[:n], nil
}

func (s *Stub) DeriveKey(password, salt []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, password...), salt...))
	return sum[:]
}

func (s *Stub) GenerateKeyPair() (KeyPair, error) {
	priv := s.next("stub-priv")
	return KeyPair{Public: stubPublic(priv), Private: priv}, nil
}

// Seal prefixes the plaintext with the recipient's public key.
func (s *Stub) Seal(public, plaintext []byte) ([]byte, error) {
	return append(append([]byte{}, public...), plaintext...), nil
}

func (s *Stub) Open(private, ciphertext []byte) ([]byte, error) {
	pub := stubPublic(private)
	if !bytes.HasPrefix(ciphertext, pub) {
		return nil, failure("open")
	}
	return append([]byte{}, ciphertext[len(pub):]...), nil
}

// Encrypt prefixes the plaintext with a short tag over key and aad.
func (s *Stub) Encrypt(key, plaintext, aad []byte) ([]byte, error) {
	return append(stubTag(key, aad), plaintext...), nil
}

func (s *Stub) Decrypt(key, ciphertext, aad []byte) ([]byte, error) {
	tag := stubTag(key, aad)
	if !bytes.HasPrefix(ciphertext, tag) {
		return nil, failure("decrypt")
	}
	return append([]byte{}, ciphertext[len(tag):]...), nil
}

func (s *Stub) Sign(private, data []byte) ([]byte, error) {
	return stubTag(stubPublic(private), data), nil
}

func (s *Stub) Verify(public, data, signature []byte) error {
	if !bytes.Equal(stubTag(public, data), signature) {
		return failure("verify")
	}
	return nil
}

func (s *Stub) MAC(key, data []byte) []byte {
	sum := sha256.Sum256(append(append([]byte("stub-mac"), key...), data...))
	return sum[:]
}
