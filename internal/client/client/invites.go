package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

type InviteOptions struct {
	// Role defaults to member.
	Role vault.Role
	// TTL defaults to invite.DefaultTTL. The server may shorten it.
	TTL time.Duration
	// Grants lists the sub-vaults the membership extends to. When nil,
	// every trusted sub-vault the inviter administers is granted.
	Grants []string
	// NoGrants limits the invite to the vault itself.
	NoGrants bool
}

// CreatedInvite is what an inviter hands on. Secret and Code travel out
// of band, never with the link.
type CreatedInvite struct {
	Invite *invite.Invite
	Link   invite.Link
	Secret string
	Code   string
}

// CreateInvite syncs the vault, then registers an invite for email. The
// server mails the link.
func (a *App) CreateInvite(ctx context.Context, vaultID, email string, opts InviteOptions) (*CreatedInvite, error) {
	if err := a.SyncVault(ctx, vaultID); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if err := a.checkUnlocked(); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	v, err := a.replicaLocked(vaultID)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	if err := a.requireAdminLocked(v); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	key, err := a.keyLocked(v)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}

	grants := opts.Grants
	if grants == nil && !opts.NoGrants {
		for _, d := range vault.Descendants(a.crypto, v, a.allLocked()) {
			if d.HasRole(a.account.ID, vault.RoleAdmin) {
				grants = append(grants, d.ID)
			}
		}
	}
	if opts.NoGrants {
		grants = nil
	}

	inv, secret, err := invite.New(a.crypto, key, invite.Params{
		Email:     email,
		VaultID:   v.ID,
		VaultName: v.Name,
		Role:      opts.Role,
		InvitedBy: a.account.ID,
		Grants:    grants,
		TTL:       opts.TTL,
	}, a.now())
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	var created *invite.Invite
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.CreateInvite(ctx, &api.InviteRequest{Invite: inv})
		if err != nil {
			return err
		}
		created = resp.Invite
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "invite created", "invite", created.ID, "vault", vaultID)
	return &CreatedInvite{
		Invite: created,
		Link:   invite.Link{VaultID: created.VaultID, InviteID: created.ID, Token: created.Token},
		Secret: invite.EncodeSecret(secret),
		Code:   invite.Code(a.crypto, secret),
	}, nil
}

func (a *App) getInvite(ctx context.Context, vaultID, inviteID, token string) (*invite.Invite, error) {
	var inv *invite.Invite
	err := a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.GetInvite(ctx, &api.GetInviteRequest{VaultID: vaultID, InviteID: inviteID, Token: token})
		if err != nil {
			return err
		}
		inv = resp.Invite
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrorNotFound)
	}
	return inv, nil
}

// GetInvite resolves an invite link. Admins of the vault see the whole
// invite, everyone else its public part.
func (a *App) GetInvite(ctx context.Context, link string) (*invite.Invite, error) {
	l, err := invite.ParseLink(link)
	if err != nil {
		return nil, err
	}
	return a.getInvite(ctx, l.VaultID, l.InviteID, l.Token)
}

// ListInvites returns the invites of a vault the caller administers.
func (a *App) ListInvites(ctx context.Context, vaultID string) ([]*invite.Invite, error) {
	var out []*invite.Invite
	err := a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.ListInvites(ctx, &api.ListInvitesRequest{VaultID: vaultID})
		if err != nil {
			return err
		}
		out = resp.Invites
		return nil
	})
	return out, err
}

// AcceptInvite answers an invite with a proof derived from the secret
// received out of band. A secret that does not belong to the link fails
// with ErrInvalidInvite before anything is sent.
func (a *App) AcceptInvite(ctx context.Context, link, secret string) (*invite.Invite, error) {
	l, err := invite.ParseLink(link)
	if err != nil {
		return nil, err
	}
	raw, err := invite.DecodeSecret(secret)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(raw)

	a.mu.RLock()
	if err := a.checkUnlocked(); err != nil {
		a.mu.RUnlock()
		return nil, err
	}
	me := a.account.Identity()
	a.mu.RUnlock()

	inv, err := a.getInvite(ctx, l.VaultID, l.InviteID, l.Token)
	if err != nil {
		return nil, err
	}
	if err := inv.Accept(a.crypto, raw, me, l.Token, a.now()); err != nil {
		return nil, err
	}

	var accepted *invite.Invite
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.AcceptInvite(ctx, &api.AcceptInviteRequest{
			VaultID:  l.VaultID,
			InviteID: l.InviteID,
			Token:    l.Token,
			Invitee:  me,
			Proof:    inv.Proof,
		})
		if err != nil {
			return err
		}
		accepted = resp.Invite
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "invite accepted", "invite", l.InviteID)
	return accepted, nil
}

// ConfirmInvite checks an accepted invite's proof with the secret stored
// under the vault key. On success the invitee becomes a member of the
// vault and of the granted trusted sub-vaults, the changes are synced and
// the invite is marked confirmed. A bad proof leaves the invite accepted
// and fails with ErrInvalidInvite.
func (a *App) ConfirmInvite(ctx context.Context, vaultID, inviteID string) (*invite.Invite, error) {
	inv, err := a.getInvite(ctx, vaultID, inviteID, "")
	if err != nil {
		return nil, err
	}

	order, err := a.commitInvitee(ctx, inv)
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		if err := a.SyncVault(ctx, id); err != nil {
			return nil, err
		}
	}

	var confirmed *invite.Invite
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.UpdateInvite(ctx, &api.UpdateInviteRequest{
			VaultID:  vaultID,
			InviteID: inviteID,
			Status:   invite.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		confirmed = resp.Invite
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "invite confirmed", "invite", inviteID, "vaults", len(order))
	return confirmed, nil
}

// commitInvitee verifies inv and adds its invitee to the vault and the
// grants. It returns the touched vault ids, parents first.
func (a *App) commitInvitee(ctx context.Context, inv *invite.Invite) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.beginEdit()
	if err != nil {
		return nil, err
	}
	defer e.close()

	root, err := a.replicaLocked(inv.VaultID)
	if err != nil {
		return nil, err
	}
	if err := a.requireAdminLocked(root); err != nil {
		return nil, err
	}
	key, err := a.keyLocked(root)
	if err != nil {
		return nil, err
	}
	secret, err := inv.Secret(a.crypto, key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)
	if err := inv.Verify(a.crypto, secret, a.now()); err != nil {
		return nil, err
	}

	order := []string{root.ID}
	v, err := e.get(root.ID)
	if err != nil {
		return nil, err
	}
	if err := e.addMember(v, *inv.Invitee, inv.Role); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return nil, err
	}

	granted := make(map[string]bool, len(inv.Grants))
	for _, id := range inv.Grants {
		granted[id] = true
	}
	for _, d := range vault.Descendants(a.crypto, root, a.allLocked()) {
		if !granted[d.ID] {
			continue
		}
		if !d.HasRole(a.account.ID, vault.RoleAdmin) {
			a.logger.Warn(ctx, "grant skipped, not an admin", "vault", d.ID)
			continue
		}
		c, err := e.get(d.ID)
		if err != nil {
			return nil, err
		}
		if err := e.addMember(c, *inv.Invitee, inv.Role); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		order = append(order, d.ID)
	}
	if err := e.resign(ctx); err != nil {
		return nil, err
	}
	if err := e.commit(ctx); err != nil {
		return nil, err
	}
	for id := range e.edited {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	return order, nil
}

// RevokeInvite expires an invite that has not been confirmed.
func (a *App) RevokeInvite(ctx context.Context, vaultID, inviteID string) (*invite.Invite, error) {
	var out *invite.Invite
	err := a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.UpdateInvite(ctx, &api.UpdateInviteRequest{
			VaultID:  vaultID,
			InviteID: inviteID,
			Status:   invite.StatusExpired,
		})
		if err != nil {
			return err
		}
		out = resp.Invite
		return nil
	})
	return out, err
}
