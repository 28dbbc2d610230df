package vault

import (
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Identity
	private []byte
}

func newUser(t *testing.T, p cryptox.Provider, id string) user {
	t.Helper()
	kp, err := p.GenerateKeyPair()
	require.NoError(t, err)
	return user{
		Identity: Identity{AccountID: id, Email: id + "@example.com", Name: id, PublicKey: kp.Public},
		private:  kp.Private,
	}
}

func TestRole_Allows(t *testing.T) {
	assert.True(t, RoleOwner.Allows(RoleAdmin))
	assert.True(t, RoleOwner.Allows(RoleMember))
	assert.True(t, RoleAdmin.Allows(RoleMember))
	assert.False(t, RoleMember.Allows(RoleAdmin))
	assert.False(t, RoleAdmin.Allows(RoleOwner))
	assert.False(t, Role("guest").Allows(RoleMember))
}

func TestNew_OwnerHoldsKey(t *testing.T) {
	p := cryptox.NewStub()
	alice := newUser(t, p, "alice")

	v, key, err := New(p, "Personal", alice.Identity)
	require.NoError(t, err)

	assert.Equal(t, "alice", v.Owner)
	assert.Equal(t, uint64(1), v.Revision)
	assert.True(t, v.HasRole("alice", RoleOwner))

	opened, err := v.OpenKey(p, "alice", alice.private)
	require.NoError(t, err)
	assert.Equal(t, key, opened)
}

func TestMembers_AddRemoveSetRole(t *testing.T) {
	p := cryptox.NewStub()
	alice, bob := newUser(t, p, "alice"), newUser(t, p, "bob")
	v, key, err := New(p, "Team", alice.Identity)
	require.NoError(t, err)

	require.NoError(t, v.AddMember(p, key, bob.Identity, RoleMember))
	assert.ErrorIs(t, v.AddMember(p, key, bob.Identity, RoleMember), common.ErrAlreadyExists)

	got, err := v.OpenKey(p, "bob", bob.private)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, v.SetRole("bob", RoleAdmin))
	assert.Len(t, v.Admins(), 2)
	assert.ErrorIs(t, v.SetRole("alice", RoleMember), common.ErrorUnauthorized)
	assert.ErrorIs(t, v.SetRole("bob", RoleOwner), common.ErrorUnauthorized)

	require.NoError(t, v.RemoveMember("bob"))
	_, ok := v.Member("bob")
	assert.False(t, ok)
	assert.True(t, v.Members["bob"].Removed)
	assert.Nil(t, v.Members["bob"].KeyShare)

	_, err = v.OpenKey(p, "bob", bob.private)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	assert.ErrorIs(t, v.RemoveMember("alice"), common.ErrorUnauthorized)
	assert.ErrorIs(t, v.RemoveMember("carol"), common.ErrorNotFound)

	// re-adding revives the tombstone with a newer revision
	removedAt := v.Members["bob"].Revision
	require.NoError(t, v.AddMember(p, key, bob.Identity, RoleMember))
	assert.Greater(t, v.Members["bob"].Revision, removedAt)
}

func TestItems_PutGetListDelete(t *testing.T) {
	p := cryptox.NewStub()
	alice := newUser(t, p, "alice")
	v, key, err := New(p, "Personal", alice.Identity)
	require.NoError(t, err)

	bank, err := v.PutItem(p, key, Item{Name: "bank", Fields: []Field{{Name: "password", Value: "hunter2", Masked: true}}})
	require.NoError(t, err)
	mail, err := v.PutItem(p, key, Item{Name: "mail", Tags: []string{"work"}})
	require.NoError(t, err)
	assert.NotEmpty(t, bank.ID)
	assert.Greater(t, mail.Revision, bank.Revision)

	got, err := v.Item(p, key, bank.ID)
	require.NoError(t, err)
	f, ok := got.Field("password")
	require.True(t, ok)
	assert.Equal(t, "hunter2", f.Value)
	assert.True(t, f.Masked)

	list, err := v.ListItems(p, key)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bank", list[0].Name)

	require.NoError(t, v.DeleteItems(bank.ID))
	_, err = v.Item(p, key, bank.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, v.DeleteItems(bank.ID), common.ErrorNotFound)
	assert.Equal(t, 1, v.LiveItemCount())

	// resurrect under the same id
	bank.Name = "bank (restored)"
	back, err := v.PutItem(p, key, bank)
	require.NoError(t, err)
	assert.Equal(t, bank.ID, back.ID)
	got, err = v.Item(p, key, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, "bank (restored)", got.Name)
}

func TestItems_WrongKeyFails(t *testing.T) {
	p := cryptox.NewStub()
	alice := newUser(t, p, "alice")
	v, key, err := New(p, "Personal", alice.Identity)
	require.NoError(t, err)
	it, err := v.PutItem(p, key, Item{Name: "x"})
	require.NoError(t, err)

	other, _ := p.RandomBytes(32)
	_, err = v.Item(p, other, it.ID)
	assert.ErrorIs(t, err, common.ErrCryptoFailure)
}

func TestClone_IsDeep(t *testing.T) {
	p := cryptox.NewStub()
	alice := newUser(t, p, "alice")
	v, key, err := New(p, "Personal", alice.Identity)
	require.NoError(t, err)
	it, err := v.PutItem(p, key, Item{Name: "x"})
	require.NoError(t, err)

	c := v.Clone()
	c.Items[it.ID].Data[0] ^= 0xff
	c.Members["alice"].Role = RoleMember

	_, err = v.Item(p, key, it.ID)
	assert.NoError(t, err)
	assert.Equal(t, RoleOwner, v.Members["alice"].Role)
}
