package client

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedTree gives ann V1 with sub-vault V2, each holding one item, and
// shares V1 with bob as role.
func sharedTree(t *testing.T, role vault.Role) (h *harness, ann, bob *device, v1, v2, i1, i2 string) {
	t.Helper()
	h = newHarness(t)
	ann = h.device(t)
	h.signup(t, ann, "ann@example.com")
	bob = h.device(t)
	h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	p, err := ann.CreateVault(ctx, "V1")
	require.NoError(t, err)
	c, err := ann.CreateSubVault(ctx, p.ID, "V2")
	require.NoError(t, err)
	it1, err := ann.CreateItem(ctx, p.ID, login("I1", "ann", "1"))
	require.NoError(t, err)
	it2, err := ann.CreateItem(ctx, c.ID, login("I2", "ann", "2"))
	require.NoError(t, err)
	require.NoError(t, ann.Synchronize(ctx))

	h.share(t, ann, bob, p.ID, role)
	require.ElementsMatch(t, []string{DefaultVaultName, "V1", "V2"}, vaultNames(t, bob))
	return h, ann, bob, p.ID, c.ID, it1.ID, it2.ID
}

func bobID(t *testing.T, bob *device) string {
	t.Helper()
	acct, err := bob.Account()
	require.NoError(t, err)
	return acct.ID
}

func TestRemoveMember_CascadesAndRevokesAccess(t *testing.T) {
	_, ann, bob, v1, v2, i1, i2 := sharedTree(t, vault.RoleMember)
	ctx := context.Background()
	id := bobID(t, bob)

	require.NoError(t, ann.RemoveMember(ctx, v1, id))
	for _, vid := range []string{v1, v2} {
		v, err := ann.Vault(vid)
		require.NoError(t, err)
		_, ok := v.Member(id)
		assert.False(t, ok, "vault %s", vid)
		assert.Contains(t, v.Members, id, "removal is kept as a tombstone")
	}

	require.NoError(t, ann.Synchronize(ctx))
	require.NoError(t, bob.Synchronize(ctx))

	assert.Equal(t, []string{DefaultVaultName}, vaultNames(t, bob))
	_, err := bob.GetItem(v1, i1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = bob.GetItem(v2, i2)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	ids, err := bob.local.List(ctx, "vault")
	require.NoError(t, err)
	assert.Len(t, ids, 1, "only the personal vault stays on disk")
}

func TestRemoveMember_ParentRemovalAloneLocksOutSubVault(t *testing.T) {
	_, ann, bob, v1, v2, _, i2 := sharedTree(t, vault.RoleMember)
	ctx := context.Background()

	require.NoError(t, ann.RemoveMember(ctx, v1, bobID(t, bob)))
	// only the parent reaches the server
	require.NoError(t, ann.SyncVault(ctx, v1))

	require.NoError(t, bob.SyncVault(ctx, v2))
	_, err := bob.GetItem(v2, i2)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = bob.Vault(v2)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemoveMember_RequiresAdmin(t *testing.T) {
	h, ann, bob, v1, _, _, _ := sharedTree(t, vault.RoleMember)
	annAcct, err := ann.Account()
	require.NoError(t, err)
	_ = h

	err = bob.RemoveMember(context.Background(), v1, annAcct.ID)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRemoveMember_OwnerStays(t *testing.T) {
	_, ann, _, v1, _, _, _ := sharedTree(t, vault.RoleMember)
	annAcct, err := ann.Account()
	require.NoError(t, err)

	err = ann.RemoveMember(context.Background(), v1, annAcct.ID)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	v, err := ann.Vault(v1)
	require.NoError(t, err)
	assert.True(t, v.HasRole(annAcct.ID, vault.RoleOwner))
}

func TestRemoveMember_SkipsSubVaultsNotAdministered(t *testing.T) {
	_, ann, bob, v1, _, _, _ := sharedTree(t, vault.RoleAdmin)
	ctx := context.Background()
	id := bobID(t, bob)

	// bob's own sub-vault, where ann is not a member
	sub, err := bob.CreateSubVault(ctx, v1, "Bob's")
	require.NoError(t, err)
	require.NoError(t, bob.Synchronize(ctx))

	require.NoError(t, ann.Synchronize(ctx))
	require.NoError(t, ann.RemoveMember(ctx, v1, id))
	require.NoError(t, ann.Synchronize(ctx))
	require.NoError(t, bob.Synchronize(ctx))

	assert.ElementsMatch(t, []string{DefaultVaultName}, vaultNames(t, bob),
		"membership of a sub-vault ends with the parent's")
	_, err = ann.Vault(sub.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateMemberRole_ResignsSubVaults(t *testing.T) {
	_, ann, bob, v1, v2, _, _ := sharedTree(t, vault.RoleMember)
	ctx := context.Background()
	id := bobID(t, bob)

	require.NoError(t, ann.UpdateMemberRole(ctx, v1, id, vault.RoleAdmin))
	parent, err := ann.Vault(v1)
	require.NoError(t, err)
	child, err := ann.Vault(v2)
	require.NoError(t, err)
	assert.True(t, parent.Trusts(ann.crypto, child))

	require.NoError(t, ann.Synchronize(ctx))
	require.NoError(t, bob.Synchronize(ctx))

	infos, err := bob.Vaults()
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Trusted, info.Name)
		if info.ID == v1 {
			assert.Equal(t, vault.RoleAdmin, info.Role)
		}
	}
}

func TestUpdateMemberRole_OwnershipIsFixed(t *testing.T) {
	_, ann, bob, v1, _, _, _ := sharedTree(t, vault.RoleMember)
	ctx := context.Background()
	annAcct, err := ann.Account()
	require.NoError(t, err)

	assert.ErrorIs(t, ann.UpdateMemberRole(ctx, v1, annAcct.ID, vault.RoleAdmin), common.ErrorUnauthorized)
	assert.ErrorIs(t, ann.UpdateMemberRole(ctx, v1, bobID(t, bob), vault.RoleOwner), common.ErrorUnauthorized)
	assert.ErrorIs(t, ann.UpdateMemberRole(ctx, v1, "nobody", vault.RoleAdmin), common.ErrorNotFound)
}

func TestAdminSetChangeInvalidatesDelegation(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	h.signup(t, ann, "ann@example.com")
	bobAcct := h.signup(t, h.device(t), "bob@example.com")
	ctx := context.Background()

	v1, err := ann.CreateVault(ctx, "V1")
	require.NoError(t, err)
	v2, err := ann.CreateSubVault(ctx, v1.ID, "V2")
	require.NoError(t, err)

	signedForAnn, err := ann.Vault(v2.ID)
	require.NoError(t, err)

	require.NoError(t, ann.AddMember(ctx, v1.ID, bobAcct.Identity(), vault.RoleAdmin))
	parent, err := ann.Vault(v1.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, parent.VerifySubVault(h.p, signedForAnn), vault.ErrUntrusted)

	signedForBoth, err := ann.Vault(v2.ID)
	require.NoError(t, err)
	require.NoError(t, parent.VerifySubVault(h.p, signedForBoth))

	require.NoError(t, ann.UpdateMemberRole(ctx, v1.ID, bobAcct.ID, vault.RoleMember))
	parent, err = ann.Vault(v1.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, parent.VerifySubVault(h.p, signedForBoth), vault.ErrUntrusted)

	current, err := ann.Vault(v2.ID)
	require.NoError(t, err)
	assert.NoError(t, parent.VerifySubVault(h.p, current))

	require.NoError(t, ann.Synchronize(ctx))
	infos, err := ann.Vaults()
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Trusted, info.Name)
	}
}

func TestAddMember_RequiresAdmin(t *testing.T) {
	h, _, bob, v1, _, _, _ := sharedTree(t, vault.RoleMember)
	carol := h.signup(t, h.device(t), "carol@example.com")

	err := bob.AddMember(context.Background(), v1, carol.Identity(), vault.RoleMember)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
