package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

// memberEdit stages changes to several replicas so they are committed
// together or not at all.
type memberEdit struct {
	app     *App
	private []byte
	edited  map[string]*vault.Vault
}

// beginEdit must be called with mu held for writing.
func (a *App) beginEdit() (*memberEdit, error) {
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	private, err := a.account.PrivateKey()
	if err != nil {
		return nil, err
	}
	return &memberEdit{app: a, private: private, edited: make(map[string]*vault.Vault)}, nil
}

func (e *memberEdit) close() { common.WipeByteArray(e.private) }

// get returns the staged copy of a replica.
func (e *memberEdit) get(id string) (*vault.Vault, error) {
	if v, ok := e.edited[id]; ok {
		return v, nil
	}
	v, err := e.app.replicaLocked(id)
	if err != nil {
		return nil, err
	}
	c := v.Clone()
	e.edited[id] = c
	return c, nil
}

func sameAdmins(a, b *vault.Vault) bool {
	x, y := a.Admins(), b.Admins()
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i].AccountID != y[i].AccountID || !bytes.Equal(x[i].PublicKey, y[i].PublicKey) {
			return false
		}
	}
	return true
}

// resign re-signs the sub-vaults whose delegation from an edited parent
// verified before the edit and no longer does. Children the caller cannot
// sign for stay untrusted.
func (e *memberEdit) resign(ctx context.Context) error {
	a := e.app
	me := a.account.ID

	ids := make([]string, 0, len(e.edited))
	for id := range e.edited {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		orig, ok := a.vaults[id]
		edited := e.edited[id]
		if !ok || sameAdmins(orig, edited) {
			continue
		}
		for _, child := range a.allLocked() {
			if child.ParentID != id || !orig.Trusts(a.crypto, child) {
				continue
			}
			c, err := e.get(child.ID)
			if err != nil {
				return err
			}
			if edited.Trusts(a.crypto, c) {
				continue
			}
			if err := edited.SignSubVault(a.crypto, me, e.private, c); err != nil {
				if errors.Is(err, common.ErrorUnauthorized) {
					a.logger.Warn(ctx, "cannot re-sign sub-vault", "vault", c.ID, "parent", id)
					continue
				}
				return err
			}
		}
	}
	return nil
}

// commit replaces the replicas with the staged copies and persists them.
func (e *memberEdit) commit(ctx context.Context) error {
	a := e.app
	var errs []error
	for id, v := range e.edited {
		a.vaults[id] = v
		errs = append(errs, a.persistLocked(ctx, v))
	}
	return errors.Join(errs...)
}

func (a *App) requireAdminLocked(v *vault.Vault) error {
	if !v.HasRole(a.account.ID, vault.RoleAdmin) {
		return fmt.Errorf("vault %s: admin required: %w", v.ID, common.ErrorUnauthorized)
	}
	return nil
}

// addMember stages id with role in v.
func (e *memberEdit) addMember(v *vault.Vault, id vault.Identity, role vault.Role) error {
	key, err := e.app.keyLocked(e.app.vaults[v.ID])
	if err != nil {
		return err
	}
	return v.AddMember(e.app.crypto, key, id, role)
}

// AddMember gives an account access to a vault. The caller must
// administer it. Membership of sub-vaults is not changed.
func (a *App) AddMember(ctx context.Context, vaultID string, id vault.Identity, role vault.Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.beginEdit()
	if err != nil {
		return err
	}
	defer e.close()

	v, err := e.get(vaultID)
	if err != nil {
		return err
	}
	if err := a.requireAdminLocked(v); err != nil {
		return err
	}
	if err := e.addMember(v, id, role); err != nil {
		return err
	}
	if err := e.resign(ctx); err != nil {
		return err
	}
	return e.commit(ctx)
}

// RemoveMember removes an account from a vault and from every trusted
// sub-vault below it that the caller administers, in one step.
func (a *App) RemoveMember(ctx context.Context, vaultID, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.beginEdit()
	if err != nil {
		return err
	}
	defer e.close()

	root, err := a.replicaLocked(vaultID)
	if err != nil {
		return err
	}
	if err := a.requireAdminLocked(root); err != nil {
		return err
	}
	descendants := vault.Descendants(a.crypto, root, a.allLocked())

	v, err := e.get(vaultID)
	if err != nil {
		return err
	}
	if err := v.RemoveMember(accountID); err != nil {
		return err
	}
	for _, d := range descendants {
		m, live := d.Member(accountID)
		if !live || !d.HasRole(a.account.ID, vault.RoleAdmin) {
			continue
		}
		if m.Role == vault.RoleOwner {
			a.logger.Warn(ctx, "sub-vault owner kept", "vault", d.ID, "account", accountID)
			continue
		}
		c, err := e.get(d.ID)
		if err != nil {
			return err
		}
		if err := c.RemoveMember(accountID); err != nil {
			return err
		}
	}
	if err := e.resign(ctx); err != nil {
		return err
	}
	if err := e.commit(ctx); err != nil {
		return err
	}
	a.logger.Info(ctx, "member removed", "vault", vaultID, "account", accountID, "vaults", len(e.edited))
	return nil
}

// UpdateMemberRole changes a member's role. Sub-vault delegations broken
// by a change of the admin set are signed again.
func (a *App) UpdateMemberRole(ctx context.Context, vaultID, accountID string, role vault.Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.beginEdit()
	if err != nil {
		return err
	}
	defer e.close()

	v, err := e.get(vaultID)
	if err != nil {
		return err
	}
	if err := a.requireAdminLocked(v); err != nil {
		return err
	}
	if err := v.SetRole(accountID, role); err != nil {
		return err
	}
	if err := e.resign(ctx); err != nil {
		return err
	}
	return e.commit(ctx)
}
