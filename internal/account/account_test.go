package account

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsUnlocked(t *testing.T) {
	p := cryptox.NewStub()
	a, err := New(p, " Alice@Example.COM ", "Alice", "pw")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", a.Email)
	assert.False(t, a.Locked())
	priv, err := a.PrivateKey()
	require.NoError(t, err)
	assert.NotEmpty(t, priv)
	assert.Equal(t, LoginVerifier(p, "pw", a.AuthSalt), a.Verifier)
}

func TestLockUnlock(t *testing.T) {
	p := cryptox.NewStub()
	a, err := New(p, "alice@example.com", "Alice", "pw")
	require.NoError(t, err)
	want, _ := a.PrivateKey()

	a.Lock()
	assert.True(t, a.Locked())
	_, err = a.PrivateKey()
	assert.ErrorIs(t, err, common.ErrLocked)

	assert.ErrorIs(t, a.Unlock(p, "wrong"), common.ErrInvalidCredentials)
	assert.True(t, a.Locked())

	require.NoError(t, a.Unlock(p, "pw"))
	got, err := a.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestChangePassword(t *testing.T) {
	p := cryptox.NewStub()
	a, err := New(p, "alice@example.com", "Alice", "old")
	require.NoError(t, err)
	oldVerifier := a.Verifier

	assert.ErrorIs(t, a.ChangePassword(p, "nope", "new"), common.ErrInvalidCredentials)
	require.NoError(t, a.ChangePassword(p, "old", "new"))
	assert.NotEqual(t, oldVerifier, a.Verifier)

	a.Lock()
	assert.ErrorIs(t, a.Unlock(p, "old"), common.ErrInvalidCredentials)
	assert.NoError(t, a.Unlock(p, "new"))
}

func TestUnlock_StandardProvider(t *testing.T) {
	p := cryptox.Standard{}
	a, err := New(p, "alice@example.com", "Alice", "correct horse")
	require.NoError(t, err)
	a.Lock()
	assert.ErrorIs(t, a.Unlock(p, "battery staple"), common.ErrInvalidCredentials)
	assert.NoError(t, a.Unlock(p, "correct horse"))
}

func TestPublicAndClone_AreLocked(t *testing.T) {
	p := cryptox.NewStub()
	a, err := New(p, "alice@example.com", "Alice", "pw")
	require.NoError(t, err)
	a.Vaults = []string{"v1"}

	pub := a.Public()
	assert.True(t, pub.Locked())
	assert.Nil(t, pub.Verifier)
	assert.True(t, pub.HasVault("v1"))
	assert.False(t, pub.HasVault("v2"))

	b, err := json.Marshal(a)
	require.NoError(t, err)
	var decoded Account
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, decoded.Locked())
	require.NoError(t, decoded.Unlock(p, "pw"))
}

func TestIdentity(t *testing.T) {
	p := cryptox.NewStub()
	a, err := New(p, "alice@example.com", "Alice", "pw")
	require.NoError(t, err)
	id := a.Identity()
	assert.Equal(t, a.ID, id.AccountID)
	assert.Equal(t, a.PublicKey, id.PublicKey)
}
