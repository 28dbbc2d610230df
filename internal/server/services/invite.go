package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

func (s *Service) loadInvite(ctx context.Context, vaultID, inviteID string) (*invite.Invite, error) {
	inv, err := storage.Load[invite.Invite](ctx, s.store, inviteID)
	if err != nil {
		return nil, fmt.Errorf("invite %s: %w", inviteID, err)
	}
	if inv.VaultID != vaultID {
		return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrorNotFound)
	}
	return inv, nil
}

// expire persists the Expired status once an invite's TTL has passed.
func (s *Service) expire(ctx context.Context, inv *invite.Invite) error {
	if inv.Status == invite.StatusExpired || !inv.Expired(s.now()) {
		return nil
	}
	inv.Status = invite.StatusExpired
	return storage.Save(ctx, s.store, inv)
}

// CreateInvite stores an invite made by a vault admin, mails the link to
// the invitee and marks the invite Sent.
func (s *Service) CreateInvite(ctx context.Context, inv *invite.Invite) (*invite.Invite, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.ID == "" || inv.Token == "" || len(inv.EncryptedSecret) == 0 ||
		inv.Status != invite.StatusCreated || inv.Email == "" {
		return nil, fmt.Errorf("create invite: %w", common.ErrInvalidInvite)
	}
	if inv.Role == vault.RoleOwner || !inv.Role.Valid() {
		return nil, fmt.Errorf("invite role %q: %w", inv.Role, common.ErrInvalidInvite)
	}

	v, err := s.loadVault(ctx, inv.VaultID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, v, caller); err != nil {
		return nil, err
	}
	inviter, err := s.loadAccount(ctx, caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inviteLockKey(inv.ID))
	defer unlock()

	if _, err := s.store.Get(ctx, inv.Kind(), inv.ID); err == nil {
		return nil, fmt.Errorf("invite %s: %w", inv.ID, common.ErrAlreadyExists)
	}

	now := s.now()
	inv.Email = account.NormalizeEmail(inv.Email)
	inv.InvitedBy = caller
	inv.VaultName = v.Name
	inv.Invitee = nil
	inv.Proof = nil
	if s.cfg.MaxInviteTTL > 0 && inv.ExpiresAt.After(now.Add(s.cfg.MaxInviteTTL)) {
		inv.ExpiresAt = now.Add(s.cfg.MaxInviteTTL).UTC()
	}
	if err := storage.Save(ctx, s.store, inv); err != nil {
		return nil, err
	}

	msg := messenger.InviteCreatedMessage{
		VaultName: v.Name,
		InvitedBy: inviterName(inviter),
		Link:      invite.LinkFor(s.cfg.ClientURL, inv).String(),
	}
	if err := s.messenger.Send(ctx, inv.Email, msg); err != nil {
		s.logger.Error(ctx, "sending invite failed", "invite", inv.ID, "error", err)
		return nil, fmt.Errorf("send invite: %w", common.ErrUnavailable)
	}
	if err := inv.MarkSent(now); err != nil {
		return nil, err
	}
	if err := storage.Save(ctx, s.store, inv); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "invite sent", "invite", inv.ID, "vault", inv.VaultID)
	return inv, nil
}

func inviterName(a *account.Account) string {
	if a.Name != "" {
		return a.Name + " <" + a.Email + ">"
	}
	return a.Email
}

// GetInvite returns the full invite to vault admins. Anyone else must
// present the link token and gets the public view.
func (s *Service) GetInvite(ctx context.Context, vaultID, inviteID, token string) (*invite.Invite, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.loadInvite(ctx, vaultID, inviteID)
	if err != nil {
		return nil, err
	}
	if err := s.expire(ctx, inv); err != nil {
		return nil, err
	}

	if v, err := s.loadVault(ctx, vaultID); err == nil && s.requireAdmin(ctx, v, caller) == nil {
		return inv, nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(inv.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrorUnauthorized)
	}
	return inv.Public(), nil
}

// ListInvites returns the invites of a vault, oldest first. Admins only.
func (s *Service) ListInvites(ctx context.Context, vaultID string) ([]*invite.Invite, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.loadVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, v, caller); err != nil {
		return nil, err
	}

	ids, err := s.store.List(ctx, (&invite.Invite{}).Kind())
	if err != nil {
		return nil, err
	}
	var out []*invite.Invite
	for _, id := range ids {
		inv, err := storage.Load[invite.Invite](ctx, s.store, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		if inv.VaultID != vaultID {
			continue
		}
		if err := s.expire(ctx, inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AcceptInvite records the invitee's proof. The caller must be the
// invitee and the invite must have been sent to the caller's address.
func (s *Service) AcceptInvite(ctx context.Context, vaultID, inviteID, token string, invitee vault.Identity, proof []byte) (*invite.Invite, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if invitee.AccountID != caller {
		return nil, fmt.Errorf("accept invite: %w", common.ErrorUnauthorized)
	}
	a, err := s.loadAccount(ctx, caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inviteLockKey(inviteID))
	defer unlock()

	inv, err := s.loadInvite(ctx, vaultID, inviteID)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(invitee.PublicKey, a.PublicKey) ||
		account.NormalizeEmail(invitee.Email) != a.Email || inv.Email != a.Email {
		return nil, fmt.Errorf("invite %s: identity mismatch: %w", inviteID, common.ErrInvalidInvite)
	}
	invitee.Email = a.Email

	if err := inv.RecordAcceptance(token, invitee, proof, s.now()); err != nil {
		if errors.Is(err, common.ErrExpiredInvite) {
			if serr := storage.Save(ctx, s.store, inv); serr != nil {
				s.logger.Error(ctx, "saving expired invite failed", "invite", inv.ID, "error", serr)
			}
		}
		return nil, err
	}
	if err := storage.Save(ctx, s.store, inv); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "invite accepted", "invite", inv.ID, "account", caller)
	return inv.Public(), nil
}

// UpdateInvite moves an invite to status on behalf of a vault admin.
// Confirmation requires the invitee to already be a member.
func (s *Service) UpdateInvite(ctx context.Context, vaultID, inviteID string, status invite.Status) (*invite.Invite, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.loadVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, v, caller); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inviteLockKey(inviteID))
	defer unlock()

	inv, err := s.loadInvite(ctx, vaultID, inviteID)
	if err != nil {
		return nil, err
	}
	if status != invite.StatusExpired {
		if err := s.expire(ctx, inv); err != nil {
			return nil, err
		}
		if inv.Status == invite.StatusExpired {
			return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrExpiredInvite)
		}
	}
	if !invite.CanTransition(inv.Status, status) {
		return nil, fmt.Errorf("invite %s: %s -> %s: %w", inviteID, inv.Status, status, common.ErrInvalidInvite)
	}
	if status == invite.StatusConfirmed {
		if inv.Invitee == nil {
			return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrInvalidInvite)
		}
		if _, ok := v.Member(inv.Invitee.AccountID); !ok {
			return nil, fmt.Errorf("invite %s: invitee is not a member yet: %w", inviteID, common.ErrInvalidInvite)
		}
	}
	inv.Status = status
	if err := storage.Save(ctx, s.store, inv); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "invite updated", "invite", inv.ID, "status", status)
	return inv, nil
}

// PreviewInvite returns the public view of an invite to anyone holding
// its link token. It backs the HTTP landing page.
func (s *Service) PreviewInvite(ctx context.Context, vaultID, inviteID, token string) (*invite.Invite, error) {
	inv, err := s.loadInvite(ctx, vaultID, inviteID)
	if err != nil {
		return nil, err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(inv.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("invite %s: %w", inviteID, common.ErrorNotFound)
	}
	if err := s.expire(ctx, inv); err != nil {
		return nil, err
	}
	return inv.Public(), nil
}

// ClientURL is the base of the links sent in invite messages.
func (s *Service) ClientURL() string { return s.cfg.ClientURL }
