package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/common"
)

var errUsage = errors.New("usage")

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

// currentVault returns the selected vault, falling back to the personal
// one when the selection is gone.
func (a *App) currentVault() (client.VaultInfo, error) {
	infos, err := a.client.Vaults()
	if err != nil {
		return client.VaultInfo{}, err
	}
	acct, err := a.client.Account()
	if err != nil {
		return client.VaultInfo{}, err
	}

	var main *client.VaultInfo
	for i := range infos {
		if infos[i].ID == a.current {
			return infos[i], nil
		}
		if infos[i].ID == acct.MainVault {
			main = &infos[i]
		}
	}
	if main == nil {
		return client.VaultInfo{}, fmt.Errorf("no vault selected: %w", common.ErrorNotFound)
	}
	a.current = main.ID
	return *main, nil
}

// findVault matches ref against vault ids first, then names.
func findVault(infos []client.VaultInfo, ref string) (client.VaultInfo, error) {
	for _, v := range infos {
		if v.ID == ref {
			return v, nil
		}
	}
	var found []client.VaultInfo
	for _, v := range infos {
		if strings.EqualFold(v.Name, ref) {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return client.VaultInfo{}, fmt.Errorf("vault %q: %w", ref, common.ErrorNotFound)
	case 1:
		return found[0], nil
	default:
		return client.VaultInfo{}, fmt.Errorf("vault name %q is ambiguous, use the id", ref)
	}
}

// Vaults prints the vault tree. Sub-vaults whose parent is not on this
// device are listed at the top level.
func (a *App) Vaults(ctx context.Context) error {
	infos, err := a.client.Vaults()
	if err != nil {
		return err
	}
	cur, _ := a.currentVault()

	known := make(map[string]bool, len(infos))
	children := make(map[string][]client.VaultInfo)
	for _, v := range infos {
		known[v.ID] = true
	}
	for _, v := range infos {
		parent := v.ParentID
		if !known[parent] {
			parent = ""
		}
		children[parent] = append(children[parent], v)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tROLE\tITEMS\tMEMBERS\tID")
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		for _, v := range children[parent] {
			mark := ""
			if v.ID == cur.ID {
				mark = "*"
			}
			name := strings.Repeat("  ", depth) + v.Name
			if !v.Trusted {
				name += " (untrusted)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", mark, name, v.Role, v.Items, v.Members, v.ID)
			walk(v.ID, depth+1)
		}
	}
	walk("", 0)
	return w.Flush()
}

// Use selects the vault later commands act on.
func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("use <vault name or id>")
	}
	infos, err := a.client.Vaults()
	if err != nil {
		return err
	}
	v, err := findVault(infos, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.current = v.ID
	a.printf("Using %s\n", v.Name)
	return nil
}

func (a *App) vaultName(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	name, err := getSimpleText(a.reader, "Enter vault name", a.out)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return name, nil
}

// CreateVault creates a top-level vault and selects it.
func (a *App) CreateVault(ctx context.Context, args []string) error {
	name, err := a.vaultName(args)
	if err != nil {
		return err
	}
	v, err := a.client.CreateVault(ctx, name)
	if err != nil {
		return err
	}
	a.current = v.ID
	a.printf("Created %s (%s)\n", v.Name, v.ID)
	return nil
}

// CreateSubVault creates a sub-vault of the selected vault and selects it.
func (a *App) CreateSubVault(ctx context.Context, args []string) error {
	parent, err := a.currentVault()
	if err != nil {
		return err
	}
	name, err := a.vaultName(args)
	if err != nil {
		return err
	}
	v, err := a.client.CreateSubVault(ctx, parent.ID, name)
	if err != nil {
		return err
	}
	a.current = v.ID
	a.printf("Created %s under %s (%s)\n", v.Name, parent.Name, v.ID)
	return nil
}
