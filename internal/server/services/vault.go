package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

// ListVaults returns the ids of the vaults the caller belongs to.
func (s *Service) ListVaults(ctx context.Context) ([]string, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := append([]string(nil), a.Vaults...)
	sort.Strings(ids)
	return ids, nil
}

// PullVault returns the canonical snapshot of a vault.
func (s *Service) PullVault(ctx context.Context, vaultID string) (*vault.Vault, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.loadVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if _, err := s.effectiveMember(ctx, v, caller); err != nil {
		return nil, err
	}
	return v, nil
}

// PushVault merges a client snapshot into the canonical one and returns
// the result. The first push of an id creates the vault.
func (s *Service) PushVault(ctx context.Context, pushed *vault.Vault) (*vault.Vault, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if pushed == nil || pushed.ID == "" {
		return nil, fmt.Errorf("push: empty vault: %w", common.ErrorNotFound)
	}

	unlock := s.locks.Lock(vaultLockKey(pushed.ID))
	defer unlock()

	stored, err := s.loadVault(ctx, pushed.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return s.createVault(ctx, caller, pushed)
	}
	if err != nil {
		return nil, err
	}

	role, err := s.effectiveMember(ctx, stored, caller)
	if err != nil {
		return nil, err
	}

	merged := stored.Clone()
	res, err := merged.Merge(pushed)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return merged, nil
	}

	if len(res.AdoptedMembers) > 0 {
		if !role.Allows(vault.RoleAdmin) {
			return nil, fmt.Errorf("vault %s: membership change needs admin: %w", stored.ID, common.ErrorUnauthorized)
		}
		if err := checkOwnership(stored, merged, res.AdoptedMembers); err != nil {
			return nil, err
		}
	}
	if res.DelegationAdopted {
		parent, err := s.loadVault(ctx, merged.ParentID)
		if err != nil {
			return nil, fmt.Errorf("vault %s: delegation parent: %w", merged.ID, common.ErrorUnauthorized)
		}
		if err := parent.VerifySubVault(s.crypto, merged); err != nil {
			return nil, fmt.Errorf("vault %s: %w", merged.ID, err)
		}
	}

	if err := storage.Save(ctx, s.store, merged); err != nil {
		return nil, err
	}
	for _, id := range res.AdoptedMembers {
		_, live := merged.Member(id)
		if err := s.indexVault(ctx, id, merged.ID, live); err != nil {
			s.logger.Error(ctx, "updating vault index failed", "account", id, "vault", merged.ID, "error", err)
		}
	}
	s.logger.Debug(ctx, "vault merged", "vault", merged.ID, "revision", merged.Revision,
		"items", len(res.AdoptedItems), "members", len(res.AdoptedMembers))
	return merged, nil
}

// checkOwnership rejects merges that move or remove ownership.
func checkOwnership(stored, merged *vault.Vault, adopted []string) error {
	for _, id := range adopted {
		m := merged.Members[id]
		switch {
		case id == stored.Owner && (m.Removed || m.Role != vault.RoleOwner):
			return fmt.Errorf("vault %s: owner cannot be changed: %w", stored.ID, common.ErrorUnauthorized)
		case id != stored.Owner && m.Role == vault.RoleOwner:
			return fmt.Errorf("vault %s: second owner: %w", stored.ID, common.ErrorUnauthorized)
		}
	}
	return nil
}

func (s *Service) createVault(ctx context.Context, caller string, v *vault.Vault) (*vault.Vault, error) {
	if v.Owner != caller || !v.HasRole(caller, vault.RoleOwner) {
		return nil, fmt.Errorf("create vault %s: must be pushed by its owner: %w", v.ID, common.ErrorUnauthorized)
	}
	if v.ParentID != "" {
		parent, err := s.loadVault(ctx, v.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.requireAdmin(ctx, parent, caller); err != nil {
			return nil, err
		}
		if err := parent.VerifySubVault(s.crypto, v); err != nil {
			return nil, fmt.Errorf("create vault %s: %w", v.ID, err)
		}
	}
	if v.Members == nil {
		v.Members = map[string]*vault.Member{}
	}
	if v.Items == nil {
		v.Items = map[string]*vault.Record{}
	}

	if err := storage.Save(ctx, s.store, v); err != nil {
		return nil, err
	}
	for _, m := range v.LiveMembers() {
		if err := s.indexVault(ctx, m.AccountID, v.ID, true); err != nil {
			return nil, err
		}
	}
	s.logger.Info(ctx, "vault created", "vault", v.ID, "parent", v.ParentID)
	return v, nil
}
