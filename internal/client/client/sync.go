package client

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"golang.org/x/sync/errgroup"
)

// syncConcurrency bounds parallel vault syncs within one tree level.
const syncConcurrency = 4

// errStaleSession marks a response that arrived after its session ended.
var errStaleSession = fmt.Errorf("session changed during sync: %w", ErrNoAccount)

// SyncVault pushes the local replica of vaultID, merges the server's
// answer back and persists it. A failed or cancelled sync leaves the
// replica as it was. When the server no longer counts the account as a
// member the replica is dropped. A sync that started before Lock
// completes.
func (a *App) SyncVault(ctx context.Context, vaultID string) error {
	ctx, p, err := a.pinSession(ctx)
	if err != nil {
		return err
	}
	unlock := a.syncLocks.Lock(vaultID)
	defer unlock()

	a.mu.RLock()
	if err := a.checkPinnedLocked(p); err != nil {
		a.mu.RUnlock()
		return err
	}
	v, err := a.replicaLocked(vaultID)
	if err != nil {
		a.mu.RUnlock()
		return err
	}
	snapshot := v.Clone()
	gen := p.gen
	a.mu.RUnlock()

	var merged *vault.Vault
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.PushVault(ctx, &api.VaultRequest{Vault: snapshot})
		if err != nil {
			return err
		}
		merged = resp.Vault
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) && a.revoked(ctx, vaultID) {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.gen != gen {
				return errStaleSession
			}
			a.logger.Info(ctx, "membership revoked, dropping replica", "vault", vaultID)
			return a.dropLocked(ctx, vaultID)
		}
		return err
	}
	if merged == nil {
		return fmt.Errorf("push vault %s: empty response: %w", vaultID, common.ErrorInternal)
	}
	return a.apply(ctx, gen, merged)
}

// revoked asks the server whether the caller can still read vaultID.
func (a *App) revoked(ctx context.Context, vaultID string) bool {
	err := a.withSession(ctx, func(ctx context.Context) error {
		_, err := a.transport.PullVault(ctx, &api.PullVaultRequest{VaultID: vaultID})
		return err
	})
	return errors.Is(err, common.ErrorUnauthorized)
}

// apply merges a server snapshot into the current replica unless the
// request was cancelled or the session changed while it was in flight.
func (a *App) apply(ctx context.Context, gen uint64, remote *vault.Vault) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen || a.account == nil {
		return errStaleSession
	}

	cur, ok := a.vaults[remote.ID]
	if !ok {
		cur = remote.Clone()
	} else {
		cur = cur.Clone()
		if _, err := cur.Merge(remote); err != nil {
			return err
		}
	}
	if _, live := cur.Member(a.account.ID); !live {
		a.logger.Info(ctx, "no longer a member, dropping replica", "vault", remote.ID)
		return a.dropLocked(ctx, remote.ID)
	}
	a.vaults[cur.ID] = cur
	return a.persistLocked(ctx, cur)
}

func (a *App) dropLocked(ctx context.Context, vaultID string) error {
	delete(a.vaults, vaultID)
	if k, ok := a.keys[vaultID]; ok {
		common.WipeByteArray(k)
		delete(a.keys, vaultID)
	}
	return a.local.Delete(ctx, (&vault.Vault{}).Kind(), vaultID)
}

// pull fetches a vault the device has no replica of yet.
func (a *App) pull(ctx context.Context, vaultID string) error {
	ctx, p, err := a.pinSession(ctx)
	if err != nil {
		return err
	}
	unlock := a.syncLocks.Lock(vaultID)
	defer unlock()

	var pulled *vault.Vault
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.PullVault(ctx, &api.PullVaultRequest{VaultID: vaultID})
		if err != nil {
			return err
		}
		pulled = resp.Vault
		return nil
	})
	if err != nil {
		return err
	}
	if pulled == nil || pulled.ID != vaultID {
		return fmt.Errorf("pull vault %s: unexpected response: %w", vaultID, common.ErrorInternal)
	}
	return a.apply(ctx, p.gen, pulled)
}

// Synchronize pulls vaults the server lists for the account that are not
// on the device yet, then syncs every replica. Parents are synced before
// their sub-vaults. Errors of single vaults are joined. The session is
// pinned once, so a Lock during the run does not stop it.
func (a *App) Synchronize(ctx context.Context) error {
	ctx, _, err := a.pinSession(ctx)
	if err != nil {
		return err
	}
	var remote []string
	err = a.withSession(ctx, func(ctx context.Context) error {
		resp, err := a.transport.ListVaults(ctx)
		if err != nil {
			return err
		}
		remote = resp.VaultIDs
		return nil
	})
	if err != nil {
		return err
	}

	a.mu.RLock()
	var missing []string
	for _, id := range remote {
		if _, ok := a.vaults[id]; !ok {
			missing = append(missing, id)
		}
	}
	a.mu.RUnlock()

	errs := make([]error, len(missing))
	g := new(errgroup.Group)
	g.SetLimit(syncConcurrency)
	for i, id := range missing {
		g.Go(func() error {
			if err := a.pull(ctx, id); err != nil && !errors.Is(err, common.ErrorUnauthorized) &&
				!errors.Is(err, common.ErrorNotFound) {
				errs[i] = fmt.Errorf("pull %s: %w", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, level := range a.syncLevels() {
		levelErrs := make([]error, len(level))
		g := new(errgroup.Group)
		g.SetLimit(syncConcurrency)
		for i, id := range level {
			g.Go(func() error {
				if err := a.SyncVault(ctx, id); err != nil {
					levelErrs[i] = fmt.Errorf("sync %s: %w", id, err)
				}
				return nil
			})
		}
		_ = g.Wait()
		errs = append(errs, levelErrs...)
	}
	return errors.Join(errs...)
}

// syncLevels groups the local replicas by depth in the vault tree.
func (a *App) syncLevels() [][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var levels [][]string
	for _, v := range a.vaults {
		d := a.depthLocked(v)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], v.ID)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}
