package cryptox

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers() map[string]Provider {
	return map[string]Provider{
		"standard": Standard{},
		"stub":     NewStub(),
	}
}

func TestProvider_SealOpen(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			alice, err := p.GenerateKeyPair()
			require.NoError(t, err)
			bob, err := p.GenerateKeyPair()
			require.NoError(t, err)

			ct, err := p.Seal(alice.Public, []byte("vault key"))
			require.NoError(t, err)

			pt, err := p.Open(alice.Private, ct)
			require.NoError(t, err)
			assert.Equal(t, []byte("vault key"), pt)

			_, err = p.Open(bob.Private, ct)
			assert.ErrorIs(t, err, common.ErrCryptoFailure)
		})
	}
}

func TestProvider_EncryptDecrypt(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			key, err := p.RandomBytes(32)
			require.NoError(t, err)
			other, err := p.RandomBytes(32)
			require.NoError(t, err)

			ct, err := p.Encrypt(key, []byte("secret"), []byte("item-1"))
			require.NoError(t, err)

			pt, err := p.Decrypt(key, ct, []byte("item-1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("secret"), pt)

			_, err = p.Decrypt(other, ct, []byte("item-1"))
			assert.ErrorIs(t, err, common.ErrCryptoFailure)

			_, err = p.Decrypt(key, ct, []byte("item-2"))
			assert.ErrorIs(t, err, common.ErrCryptoFailure)
		})
	}
}

func TestProvider_SignVerify(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			kp, err := p.GenerateKeyPair()
			require.NoError(t, err)
			other, err := p.GenerateKeyPair()
			require.NoError(t, err)

			sig, err := p.Sign(kp.Private, []byte("payload"))
			require.NoError(t, err)

			assert.NoError(t, p.Verify(kp.Public, []byte("payload"), sig))
			assert.ErrorIs(t, p.Verify(kp.Public, []byte("tampered"), sig), common.ErrCryptoFailure)
			assert.ErrorIs(t, p.Verify(other.Public, []byte("payload"), sig), common.ErrCryptoFailure)
		})
	}
}

func TestProvider_DeriveKeyAndMAC(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			k1 := p.DeriveKey([]byte("pw"), []byte("salt-1"))
			k2 := p.DeriveKey([]byte("pw"), []byte("salt-1"))
			k3 := p.DeriveKey([]byte("pw"), []byte("salt-2"))
			assert.Len(t, k1, 32)
			assert.Equal(t, k1, k2)
			assert.NotEqual(t, k1, k3)

			assert.Equal(t, p.MAC(k1, []byte("x")), p.MAC(k2, []byte("x")))
			assert.NotEqual(t, p.MAC(k1, []byte("x")), p.MAC(k3, []byte("x")))
		})
	}
}

func TestStandard_RejectsMalformedKeys(t *testing.T) {
	var s Standard
	_, err := s.Seal([]byte("short"), []byte("x"))
	assert.ErrorIs(t, err, common.ErrCryptoFailure)
	_, err = s.Encrypt([]byte("short"), []byte("x"), nil)
	assert.ErrorIs(t, err, common.ErrCryptoFailure)
	_, err = s.Decrypt(bytes.Repeat([]byte{1}, 32), []byte("tiny"), nil)
	assert.ErrorIs(t, err, common.ErrCryptoFailure)
}

func TestStub_Deterministic(t *testing.T) {
	a, b := NewStub(), NewStub()
	ka, _ := a.GenerateKeyPair()
	kb, _ := b.GenerateKeyPair()
	assert.Equal(t, ka, kb)

	ra, _ := a.RandomBytes(40)
	rb, _ := b.RandomBytes(40)
	assert.Equal(t, ra, rb)
	assert.Len(t, ra, 40)
}

func TestEncryptJSON(t *testing.T) {
	p := NewStub()
	key, _ := p.RandomBytes(32)

	type payload struct {
		Name string `json:"name"`
	}
	ct, err := EncryptJSON(p, key, payload{Name: "bank"}, nil)
	require.NoError(t, err)

	var got payload
	require.NoError(t, DecryptJSON(p, key, ct, &got, nil))
	assert.Equal(t, "bank", got.Name)

	assert.ErrorIs(t, DecryptJSON(p, key, ct, &got, []byte("aad")), common.ErrCryptoFailure)
}

func TestMakeVerifier(t *testing.T) {
	v1 := MakeVerifier([]byte("key"))
	assert.Len(t, v1, 32)
	assert.Equal(t, v1, MakeVerifier([]byte("key")))
	assert.NotEqual(t, v1, MakeVerifier([]byte("other")))
}

func TestRegistry(t *testing.T) {
	t.Cleanup(func() {
		registryMu.Lock()
		registered = nil
		registryMu.Unlock()
	})

	assert.IsType(t, Standard{}, Registered())

	stub := NewStub()
	require.NoError(t, Register(stub))
	assert.Same(t, stub, Registered())
	assert.ErrorIs(t, Register(Standard{}), ErrAlreadyRegistered)
}

func TestByName(t *testing.T) {
	p, err := ByName("standard")
	require.NoError(t, err)
	assert.IsType(t, Standard{}, p)

	p, err = ByName("stub")
	require.NoError(t, err)
	assert.IsType(t, &Stub{}, p)

	_, err = ByName("rot13")
	assert.Error(t, err)
}
