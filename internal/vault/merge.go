package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/common"
)

// Stamp is the part of an entry that decides merges.
type Stamp struct {
	Revision uint64
	Deleted  bool
}

// MergeResult describes what a merge did to the receiving replica.
type MergeResult struct {
	Changed bool
	// AdoptedItems and AdoptedMembers were taken from the remote side.
	AdoptedItems   []string
	AdoptedMembers []string
	// LocalItems and LocalMembers exist only here and still need a push.
	LocalItems        []string
	LocalMembers      []string
	DelegationAdopted bool
}

// remoteWins decides one entry. Higher revision wins. On equal revision a
// tombstone beats a live entry, and two live entries fall back to
// comparing their content so every replica picks the same one.
func remoteWins(local, remote Stamp, localDigest, remoteDigest []byte) bool {
	if remote.Revision != local.Revision {
		return remote.Revision > local.Revision
	}
	if remote.Deleted != local.Deleted {
		return remote.Deleted
	}
	return bytes.Compare(remoteDigest, localDigest) > 0
}

func mergeEntries[T any](
	local, remote map[string]T,
	stamp func(T) Stamp,
	digest func(T) []byte,
	clone func(T) T,
) (adopted, localOnly []string) {
	for id, r := range remote {
		l, ok := local[id]
		if !ok {
			local[id] = clone(r)
			adopted = append(adopted, id)
			continue
		}
		if remoteWins(stamp(l), stamp(r), digest(l), digest(r)) {
			local[id] = clone(r)
			adopted = append(adopted, id)
		}
	}
	for id := range local {
		if _, ok := remote[id]; !ok {
			localOnly = append(localOnly, id)
		}
	}
	sort.Strings(adopted)
	sort.Strings(localOnly)
	return adopted, localOnly
}

func recordStamp(r *Record) Stamp { return Stamp{Revision: r.Revision, Deleted: r.Deleted} }
func recordDigest(r *Record) []byte {
	return r.Data
}

func memberStamp(m *Member) Stamp { return Stamp{Revision: m.Revision, Deleted: m.Removed} }
func memberDigest(m *Member) []byte {
	b, _ := json.Marshal(m)
	return b
}

// Merge folds remote into v. Both must describe the same vault id. The
// vault revision moves to max(local, remote)+1 only when something was
// adopted, so merging the same snapshot twice is a no-op.
func (v *Vault) Merge(remote *Vault) (MergeResult, error) {
	var res MergeResult
	if remote == nil || remote.ID != v.ID {
		return res, fmt.Errorf("merge vault %s: %w", v.ID, common.ErrorInternal)
	}
	if v.Members == nil {
		v.Members = make(map[string]*Member)
	}
	if v.Items == nil {
		v.Items = make(map[string]*Record)
	}

	res.AdoptedItems, res.LocalItems = mergeEntries(v.Items, remote.Items, recordStamp, recordDigest, (*Record).clone)
	res.AdoptedMembers, res.LocalMembers = mergeEntries(v.Members, remote.Members, memberStamp, memberDigest, (*Member).clone)

	if remote.Delegation != nil && delegationWins(v.Delegation, remote.Delegation) {
		d := *remote.Delegation
		d.Signature = append([]byte(nil), remote.Delegation.Signature...)
		v.Delegation = &d
		res.DelegationAdopted = true
	}

	res.Changed = len(res.AdoptedItems) > 0 || len(res.AdoptedMembers) > 0 || res.DelegationAdopted
	if res.Changed {
		v.Revision = max(v.Revision, remote.Revision) + 1
	}
	return res, nil
}

func delegationWins(local, remote *Delegation) bool {
	if local == nil {
		return true
	}
	if remote.Revision != local.Revision {
		return remote.Revision > local.Revision
	}
	return bytes.Compare(remote.Signature, local.Signature) > 0
}
