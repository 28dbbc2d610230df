package vault

import (
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
)

// Descendants walks the trust chain below root through the vaults in all
// and returns every reachable sub-vault, parents before children.
// Children that do not verify are skipped together with their subtrees.
func Descendants(p cryptox.Provider, root *Vault, all []*Vault) []*Vault {
	children := make(map[string][]*Vault)
	for _, v := range all {
		if v.ParentID != "" {
			children[v.ParentID] = append(children[v.ParentID], v)
		}
	}
	for _, list := range children {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	var out []*Vault
	seen := map[string]bool{root.ID: true}
	queue := []*Vault{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent.ID] {
			if seen[child.ID] || !parent.Trusts(p, child) {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
