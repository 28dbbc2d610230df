package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

func parseRole(s string) (vault.Role, error) {
	r := vault.Role(strings.ToLower(s))
	if !r.Valid() || r == vault.RoleOwner {
		return "", fmt.Errorf("role %q: use member or admin", s)
	}
	return r, nil
}

// Invite invites an email address to the selected vault and the trusted
// sub-vaults the caller administers. The secret and code are printed for
// the admin to pass on out of band; the server only mails the link.
func (a *App) Invite(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("invite <email> [member|admin]")
	}
	role := vault.RoleMember
	if len(args) > 1 {
		if role, err = parseRole(args[1]); err != nil {
			return err
		}
	}

	created, err := a.client.CreateInvite(ctx, v.ID, args[0], client.InviteOptions{Role: role})
	if err != nil {
		return err
	}

	link := created.Link
	link.BaseURL = a.config.ClientURL
	a.printf("Invited %s to %s as %s (invite %s)\n", args[0], v.Name, role, created.Invite.ID)
	a.printf("Link:   %s\n", link)
	a.printf("Secret: %s\n", created.Secret)
	a.printf("Code:   %s\n", created.Code)
	if qr, err := link.QR(); err == nil {
		a.printf("%s", qr)
	} else {
		a.logger.Warn(ctx, "cannot render QR code", "error", err)
	}
	a.printf("Share the secret separately, then run: confirm %s\n", created.Invite.ID)
	return nil
}

// Invites lists the invites of the selected vault.
func (a *App) Invites(ctx context.Context) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	invites, err := a.client.ListInvites(ctx, v.ID)
	if err != nil {
		return err
	}
	if len(invites) == 0 {
		a.printf("No invites for %s\n", v.Name)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSTATUS\tEXPIRES")
	for _, inv := range invites {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.Email, inv.Role, inv.Status, inv.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// Accept answers an invite. The link may be given as an argument; the
// secret is always asked for.
func (a *App) Accept(ctx context.Context, args []string) error {
	var link string
	var err error
	if len(args) > 0 {
		link = args[0]
	} else if link, err = getSimpleText(a.reader, "Enter invite link", a.out); err != nil {
		return err
	}

	inv, err := a.client.GetInvite(ctx, link)
	if err != nil {
		return err
	}
	a.printf("Invite to %s as %s, expires %s\n", inv.VaultName, inv.Role, inv.ExpiresAt.Format("2006-01-02 15:04"))

	secret, err := getSimpleText(a.reader, "Enter the secret you received", a.out)
	if err != nil {
		return err
	}
	if _, err := a.client.AcceptInvite(ctx, link, secret); err != nil {
		return err
	}
	a.printf("Accepted. Access is granted once an admin of %s confirms.\n", inv.VaultName)
	return nil
}

// Confirm admits the invitee of an accepted invite to the selected vault.
func (a *App) Confirm(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("confirm <invite id>")
	}
	inv, err := a.client.ConfirmInvite(ctx, v.ID, args[0])
	if err != nil {
		return err
	}
	a.printf("%s is now a %s of %s\n", inv.Email, inv.Role, v.Name)
	return nil
}

func (a *App) Revoke(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("revoke <invite id>")
	}
	if _, err := a.client.RevokeInvite(ctx, v.ID, args[0]); err != nil {
		return err
	}
	a.printf("Invite %s revoked\n", args[0])
	return nil
}

// Members lists the live members of the selected vault.
func (a *App) Members(ctx context.Context) error {
	info, err := a.currentVault()
	if err != nil {
		return err
	}
	v, err := a.client.Vault(info.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tID")
	for _, m := range v.LiveMembers() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Email, m.Name, m.Role, m.AccountID)
	}
	return w.Flush()
}

// memberID resolves a member reference given as email or account id.
func (a *App) memberID(vaultID, ref string) (string, error) {
	v, err := a.client.Vault(vaultID)
	if err != nil {
		return "", err
	}
	for _, m := range v.LiveMembers() {
		if m.AccountID == ref || strings.EqualFold(m.Email, ref) {
			return m.AccountID, nil
		}
	}
	return "", fmt.Errorf("member %q: %w", ref, common.ErrorNotFound)
}

// RemoveMember removes a member from the selected vault and the sub-vaults
// below it, then syncs.
func (a *App) RemoveMember(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("remove <email or account id>")
	}
	id, err := a.memberID(v.ID, args[0])
	if err != nil {
		return err
	}
	if err := a.client.RemoveMember(ctx, v.ID, id); err != nil {
		return err
	}
	a.printf("Removed %s from %s\n", args[0], v.Name)
	return a.client.Synchronize(ctx)
}

// SetRole changes a member's role in the selected vault, then syncs.
func (a *App) SetRole(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return usage("role <email or account id> <member|admin>")
	}
	role, err := parseRole(args[1])
	if err != nil {
		return err
	}
	id, err := a.memberID(v.ID, args[0])
	if err != nil {
		return err
	}
	if err := a.client.UpdateMemberRole(ctx, v.ID, id, role); err != nil {
		return err
	}
	a.printf("%s is now a %s of %s\n", args[0], role, v.Name)
	return a.client.Synchronize(ctx)
}
