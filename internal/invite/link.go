package invite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/skip2/go-qrcode"
)

// Link is what the invitee receives: where to fetch the invite and the
// token that authorizes reading it.
type Link struct {
	BaseURL  string
	VaultID  string
	InviteID string
	Token    string
}

// LinkFor builds the link for inv under baseURL.
func LinkFor(baseURL string, inv *Invite) Link {
	return Link{BaseURL: baseURL, VaultID: inv.VaultID, InviteID: inv.ID, Token: inv.Token}
}

// String renders <base>/invite/<vaultID>/<inviteID>?verify=<token>.
func (l Link) String() string {
	return fmt.Sprintf("%s/invite/%s/%s?verify=%s",
		strings.TrimRight(l.BaseURL, "/"),
		url.PathEscape(l.VaultID),
		url.PathEscape(l.InviteID),
		url.QueryEscape(l.Token))
}

// ParseLink is the inverse of String.
func ParseLink(raw string) (Link, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Link{}, fmt.Errorf("parse link: %w", common.ErrInvalidInvite)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "invite" {
		return Link{}, fmt.Errorf("parse link %q: %w", raw, common.ErrInvalidInvite)
	}
	token := u.Query().Get("verify")
	vaultID, inviteID := parts[len(parts)-2], parts[len(parts)-1]
	if token == "" || vaultID == "" || inviteID == "" {
		return Link{}, fmt.Errorf("parse link %q: %w", raw, common.ErrInvalidInvite)
	}

	base := *u
	base.RawQuery = ""
	base.Fragment = ""
	base.Path = "/" + strings.Join(parts[:len(parts)-3], "/")
	base.RawPath = ""

	return Link{
		BaseURL:  strings.TrimRight(base.String(), "/"),
		VaultID:  vaultID,
		InviteID: inviteID,
		Token:    token,
	}, nil
}

// QR renders the link as a terminal QR code.
func (l Link) QR() (string, error) {
	qr, err := qrcode.New(l.String(), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// PNG renders the link as a PNG image of the given size in pixels.
func (l Link) PNG(size int) ([]byte, error) {
	return qrcode.Encode(l.String(), qrcode.Medium, size)
}
