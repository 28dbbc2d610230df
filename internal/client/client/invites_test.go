package client

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteScenario(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	h.signup(t, ann, "ann@example.com")
	ctx := context.Background()

	v1, err := ann.CreateVault(ctx, "V1")
	require.NoError(t, err)
	v2, err := ann.CreateSubVault(ctx, v1.ID, "V2")
	require.NoError(t, err)
	i1, err := ann.CreateItem(ctx, v1.ID, login("I1", "ann", "pw"))
	require.NoError(t, err)

	ann.Lock()
	_, err = ann.GetItem(v1.ID, i1.ID)
	assert.ErrorIs(t, err, common.ErrLocked)
	_, err = ann.Account()
	assert.ErrorIs(t, err, common.ErrLocked)

	require.NoError(t, ann.Unlock(ctx, testPassword))
	_, err = ann.GetItem(v1.ID, i1.ID)
	require.NoError(t, err)
	require.NoError(t, ann.Synchronize(ctx))

	bob := h.device(t)
	bobAcct := h.signup(t, bob, "bob@example.com")

	created, err := ann.CreateInvite(ctx, v1.ID, "bob@example.com", InviteOptions{})
	require.NoError(t, err)
	assert.Equal(t, invite.StatusSent, created.Invite.Status)
	assert.Equal(t, []string{v2.ID}, created.Invite.Grants)
	assert.Len(t, created.Code, 6)

	link := h.lastInviteLink(t, "bob@example.com")
	assert.NotContains(t, link, created.Secret)
	assert.Contains(t, link, "https://vault.example/invite/"+v1.ID+"/"+created.Invite.ID)

	preview, err := bob.GetInvite(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "V1", preview.VaultName)
	assert.Empty(t, preview.EncryptedSecret)
	assert.Empty(t, preview.Grants)

	accepted, err := bob.AcceptInvite(ctx, link, created.Secret)
	require.NoError(t, err)
	assert.Equal(t, invite.StatusAccepted, accepted.Status)

	confirmed, err := ann.ConfirmInvite(ctx, v1.ID, created.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invite.StatusConfirmed, confirmed.Status)

	require.NoError(t, bob.Synchronize(ctx))
	assert.ElementsMatch(t, []string{DefaultVaultName, "V1", "V2"}, vaultNames(t, bob))

	got, err := bob.GetItem(v1.ID, i1.ID)
	require.NoError(t, err)
	assert.Equal(t, "I1", got.Name)

	infos, err := bob.Vaults()
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Trusted, info.Name)
		if info.ID == v1.ID || info.ID == v2.ID {
			assert.Equal(t, vault.RoleMember, info.Role)
		}
	}

	v, err := ann.Vault(v2.ID)
	require.NoError(t, err)
	_, ok := v.Member(bobAcct.ID)
	assert.True(t, ok, "grant reached the sub-vault")
}

func TestInvite_WithoutGrants(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	v1, err := ann.CreateVault(ctx, "V1")
	require.NoError(t, err)
	_, err = ann.CreateSubVault(ctx, v1.ID, "V2")
	require.NoError(t, err)
	require.NoError(t, ann.Synchronize(ctx))

	created, err := ann.CreateInvite(ctx, v1.ID, "bob@example.com", InviteOptions{NoGrants: true})
	require.NoError(t, err)
	assert.Empty(t, created.Invite.Grants)

	_, err = bob.AcceptInvite(ctx, h.lastInviteLink(t, "bob@example.com"), created.Secret)
	require.NoError(t, err)
	_, err = ann.ConfirmInvite(ctx, v1.ID, created.Invite.ID)
	require.NoError(t, err)

	require.NoError(t, bob.Synchronize(ctx))
	assert.ElementsMatch(t, []string{DefaultVaultName, "V1"}, vaultNames(t, bob))
}

func TestAcceptInvite_WrongSecret(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	acct := h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	created, err := ann.CreateInvite(ctx, acct.MainVault, "bob@example.com", InviteOptions{})
	require.NoError(t, err)

	wrong := invite.EncodeSecret([]byte("0123456789abcdefghij"))
	_, err = bob.AcceptInvite(ctx, h.lastInviteLink(t, "bob@example.com"), wrong)
	require.ErrorIs(t, err, common.ErrInvalidInvite)

	_, err = bob.AcceptInvite(ctx, h.lastInviteLink(t, "bob@example.com"), "not base32 !")
	require.ErrorIs(t, err, common.ErrInvalidInvite)

	invites, err := ann.ListInvites(ctx, acct.MainVault)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, created.Invite.ID, invites[0].ID)
	assert.Equal(t, invite.StatusSent, invites[0].Status)
}

func TestConfirmInvite_LinkTokenAloneIsNotEnough(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	acct := h.signup(t, ann, "ann@example.com")
	mallory := h.device(t)
	mal := h.signup(t, mallory, "mallory@example.com")
	ctx := context.Background()

	created, err := ann.CreateInvite(ctx, acct.MainVault, "mallory@example.com", InviteOptions{})
	require.NoError(t, err)
	l, err := invite.ParseLink(h.lastInviteLink(t, "mallory@example.com"))
	require.NoError(t, err)

	// the server cannot check the proof, so a guessed one is recorded
	_, err = mallory.transport.AcceptInvite(withAccessToken(ctx, mallory.sessionToken()), &api.AcceptInviteRequest{
		VaultID:  l.VaultID,
		InviteID: l.InviteID,
		Token:    l.Token,
		Invitee:  mal.Identity(),
		Proof:    []byte("guessed proof"),
	})
	require.NoError(t, err)

	_, err = ann.ConfirmInvite(ctx, acct.MainVault, created.Invite.ID)
	require.ErrorIs(t, err, common.ErrInvalidInvite)

	invites, err := ann.ListInvites(ctx, acct.MainVault)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, invite.StatusAccepted, invites[0].Status)

	v, err := ann.Vault(acct.MainVault)
	require.NoError(t, err)
	_, ok := v.Member(mal.ID)
	assert.False(t, ok)

	require.NoError(t, mallory.Synchronize(ctx))
	assert.Equal(t, []string{DefaultVaultName}, vaultNames(t, mallory))
}

func TestRevokeInvite(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	acct := h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	created, err := ann.CreateInvite(ctx, acct.MainVault, "bob@example.com", InviteOptions{})
	require.NoError(t, err)

	revoked, err := ann.RevokeInvite(ctx, acct.MainVault, created.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invite.StatusExpired, revoked.Status)

	_, err = bob.AcceptInvite(ctx, h.lastInviteLink(t, "bob@example.com"), created.Secret)
	assert.ErrorIs(t, err, common.ErrExpiredInvite)
	_, err = ann.ConfirmInvite(ctx, acct.MainVault, created.Invite.ID)
	assert.ErrorIs(t, err, common.ErrExpiredInvite)
}

func TestRevokeInvite_ConfirmedIsFinal(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	acct := h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	h.share(t, ann, bob, acct.MainVault, vault.RoleMember)
	invites, err := ann.ListInvites(ctx, acct.MainVault)
	require.NoError(t, err)
	require.Len(t, invites, 1)

	_, err = ann.RevokeInvite(ctx, acct.MainVault, invites[0].ID)
	assert.ErrorIs(t, err, common.ErrInvalidInvite)
}

func TestInvite_AdminRoleResignsSubVaults(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	bobAcct := h.signup(t, bob, "bob@example.com")
	ctx := context.Background()

	v1, err := ann.CreateVault(ctx, "V1")
	require.NoError(t, err)
	v2, err := ann.CreateSubVault(ctx, v1.ID, "V2")
	require.NoError(t, err)
	require.NoError(t, ann.Synchronize(ctx))

	h.share(t, ann, bob, v1.ID, vault.RoleAdmin)

	parent, err := ann.Vault(v1.ID)
	require.NoError(t, err)
	child, err := ann.Vault(v2.ID)
	require.NoError(t, err)
	assert.NoError(t, parent.VerifySubVault(h.p, child))
	assert.True(t, parent.HasRole(bobAcct.ID, vault.RoleAdmin))

	infos, err := bob.Vaults()
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Trusted, info.Name)
	}

	// the new admin can extend the tree and invite in turn
	sub, err := bob.CreateSubVault(ctx, v1.ID, "Bob's")
	require.NoError(t, err)
	require.NoError(t, bob.Synchronize(ctx))
	require.NoError(t, ann.Synchronize(ctx))
	_, err = ann.Vault(sub.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound, "ann is not a member of bob's sub-vault")
}

func TestCreateInvite_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	ann := h.device(t)
	acct := h.signup(t, ann, "ann@example.com")
	bob := h.device(t)
	h.signup(t, bob, "bob@example.com")
	h.signup(t, h.device(t), "carol@example.com")
	ctx := context.Background()

	h.share(t, ann, bob, acct.MainVault, vault.RoleMember)

	_, err := bob.CreateInvite(ctx, acct.MainVault, "carol@example.com", InviteOptions{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
