package client

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

// VaultInfo summarizes a local replica.
type VaultInfo struct {
	ID       string
	Name     string
	ParentID string
	Role     vault.Role
	Revision uint64
	Items    int
	Members  int
	// Trusted is false for a sub-vault whose delegation chain does not
	// verify against the local parent replicas.
	Trusted bool
}

func (a *App) replicaLocked(id string) (*vault.Vault, error) {
	v, ok := a.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, common.ErrorNotFound)
	}
	return v, nil
}

// keyLocked returns the vault key, opening the caller's share on first
// use. mu must be held for writing.
func (a *App) keyLocked(v *vault.Vault) ([]byte, error) {
	if k, ok := a.keys[v.ID]; ok {
		return k, nil
	}
	private, err := a.account.PrivateKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(private)
	k, err := v.OpenKey(a.crypto, a.account.ID, private)
	if err != nil {
		return nil, err
	}
	a.keys[v.ID] = k
	return k, nil
}

func (a *App) persistLocked(ctx context.Context, v *vault.Vault) error {
	if err := storage.Save(ctx, a.local, v); err != nil {
		return fmt.Errorf("persist vault %s: %w", v.ID, err)
	}
	return nil
}

func (a *App) allLocked() []*vault.Vault {
	out := make([]*vault.Vault, 0, len(a.vaults))
	for _, v := range a.vaults {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trustedLocked walks v's parent chain through the local replicas.
func (a *App) trustedLocked(v *vault.Vault) bool {
	seen := map[string]bool{}
	for v.ParentID != "" {
		if seen[v.ID] {
			return false
		}
		seen[v.ID] = true
		parent, ok := a.vaults[v.ParentID]
		if !ok || !parent.Trusts(a.crypto, v) {
			return false
		}
		v = parent
	}
	return true
}

// depthLocked counts the local ancestors of v.
func (a *App) depthLocked(v *vault.Vault) int {
	d := 0
	seen := map[string]bool{v.ID: true}
	for v.ParentID != "" {
		parent, ok := a.vaults[v.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		d++
		v = parent
	}
	return d
}

// view runs fn against a replica and its key.
func (a *App) view(vaultID string, fn func(v *vault.Vault, key []byte) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkUnlocked(); err != nil {
		return err
	}
	v, err := a.replicaLocked(vaultID)
	if err != nil {
		return err
	}
	key, err := a.keyLocked(v)
	if err != nil {
		return err
	}
	return fn(v, key)
}

// mutate runs fn against a copy of a replica and keeps the copy only when
// fn succeeds.
func (a *App) mutate(ctx context.Context, vaultID string, fn func(v *vault.Vault, key []byte) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkUnlocked(); err != nil {
		return err
	}
	v, err := a.replicaLocked(vaultID)
	if err != nil {
		return err
	}
	key, err := a.keyLocked(v)
	if err != nil {
		return err
	}
	c := v.Clone()
	if err := fn(c, key); err != nil {
		return err
	}
	a.vaults[vaultID] = c
	return a.persistLocked(ctx, c)
}

// Vaults lists the local replicas by name.
func (a *App) Vaults() ([]VaultInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	out := make([]VaultInfo, 0, len(a.vaults))
	for _, v := range a.vaults {
		m, ok := v.Member(a.account.ID)
		if !ok {
			continue
		}
		out = append(out, VaultInfo{
			ID:       v.ID,
			Name:     v.Name,
			ParentID: v.ParentID,
			Role:     m.Role,
			Revision: v.Revision,
			Items:    v.LiveItemCount(),
			Members:  len(v.LiveMembers()),
			Trusted:  a.trustedLocked(v),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Vault returns a copy of a replica.
func (a *App) Vault(id string) (*vault.Vault, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	v, err := a.replicaLocked(id)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// CreateVault creates a root vault owned by the current account. It
// reaches the server on the next sync.
func (a *App) CreateVault(ctx context.Context, name string) (*vault.Vault, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	v, key, err := vault.New(a.crypto, name, a.account.Identity())
	if err != nil {
		return nil, err
	}
	a.vaults[v.ID] = v
	a.keys[v.ID] = key
	if err := a.persistLocked(ctx, v); err != nil {
		return nil, err
	}
	a.logger.Debug(ctx, "vault created", "vault", v.ID)
	return v.Clone(), nil
}

// CreateSubVault creates a vault under parentID and signs its delegation.
// The caller must administer the parent.
func (a *App) CreateSubVault(ctx context.Context, parentID, name string) (*vault.Vault, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	parent, err := a.replicaLocked(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.HasRole(a.account.ID, vault.RoleAdmin) {
		return nil, fmt.Errorf("vault %s: create sub-vault: %w", parentID, common.ErrorUnauthorized)
	}
	private, err := a.account.PrivateKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(private)

	v, key, err := vault.NewSub(a.crypto, parent, name, a.account.Identity())
	if err != nil {
		return nil, err
	}
	if err := parent.SignSubVault(a.crypto, a.account.ID, private, v); err != nil {
		return nil, err
	}
	a.vaults[v.ID] = v
	a.keys[v.ID] = key
	if err := a.persistLocked(ctx, v); err != nil {
		return nil, err
	}
	a.logger.Debug(ctx, "sub-vault created", "vault", v.ID, "parent", parentID)
	return v.Clone(), nil
}

// CreateItem adds a new item. Any id on it is replaced.
func (a *App) CreateItem(ctx context.Context, vaultID string, it vault.Item) (vault.Item, error) {
	it.ID = ""
	var out vault.Item
	err := a.mutate(ctx, vaultID, func(v *vault.Vault, key []byte) error {
		var err error
		out, err = v.PutItem(a.crypto, key, it)
		return err
	})
	return out, err
}

// UpdateItem replaces the name, fields and tags of a live item.
func (a *App) UpdateItem(ctx context.Context, vaultID string, it vault.Item) (vault.Item, error) {
	var out vault.Item
	err := a.mutate(ctx, vaultID, func(v *vault.Vault, key []byte) error {
		if r, ok := v.Items[it.ID]; !ok || r.Deleted {
			return fmt.Errorf("item %s: %w", it.ID, common.ErrorNotFound)
		}
		var err error
		out, err = v.PutItem(a.crypto, key, it)
		return err
	})
	return out, err
}

// DeleteItems tombstones the given items. Nothing is deleted if any of
// them is missing.
func (a *App) DeleteItems(ctx context.Context, vaultID string, ids ...string) error {
	return a.mutate(ctx, vaultID, func(v *vault.Vault, _ []byte) error {
		return v.DeleteItems(ids...)
	})
}

func (a *App) GetItem(vaultID, itemID string) (vault.Item, error) {
	var out vault.Item
	err := a.view(vaultID, func(v *vault.Vault, key []byte) error {
		var err error
		out, err = v.Item(a.crypto, key, itemID)
		return err
	})
	return out, err
}

func (a *App) ListItems(vaultID string) ([]vault.Item, error) {
	var out []vault.Item
	err := a.view(vaultID, func(v *vault.Vault, key []byte) error {
		var err error
		out, err = v.ListItems(a.crypto, key)
		return err
	})
	return out, err
}
