// Package api holds the request and response types exchanged between the
// client transport and the server service.
package api

import (
	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

type Empty struct{}

type RequestEmailVerificationRequest struct {
	Email string `json:"email"`
}

// CreateAccountRequest carries a locally generated account and its root
// vault. Account.Verifier must be set.
type CreateAccountRequest struct {
	Account          *account.Account `json:"account"`
	VerificationCode string           `json:"verification_code"`
	MainVault        *vault.Vault     `json:"main_vault"`
}

type SessionResponse struct {
	Token   string           `json:"token"`
	Account *account.Account `json:"account"`
}

type GetAuthParamsRequest struct {
	Email string `json:"email"`
}

type GetAuthParamsResponse struct {
	AuthSalt []byte `json:"auth_salt"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Verifier []byte `json:"verifier"`
}

type AccountResponse struct {
	Account *account.Account `json:"account"`
}

// UpdateAccountRequest replaces the caller's key material and name.
// OldVerifier proves knowledge of the current password.
type UpdateAccountRequest struct {
	Account     *account.Account `json:"account"`
	OldVerifier []byte           `json:"old_verifier"`
}

type ListVaultsResponse struct {
	VaultIDs []string `json:"vault_ids"`
}

type VaultRequest struct {
	Vault *vault.Vault `json:"vault"`
}

type VaultResponse struct {
	Vault *vault.Vault `json:"vault"`
}

type PullVaultRequest struct {
	VaultID string `json:"vault_id"`
}

type InviteRequest struct {
	Invite *invite.Invite `json:"invite"`
}

type InviteResponse struct {
	Invite *invite.Invite `json:"invite"`
}

// GetInviteRequest fetches an invite. Token is required for callers who
// are not admins of the vault.
type GetInviteRequest struct {
	VaultID  string `json:"vault_id"`
	InviteID string `json:"invite_id"`
	Token    string `json:"token,omitempty"`
}

type ListInvitesRequest struct {
	VaultID string `json:"vault_id"`
}

type ListInvitesResponse struct {
	Invites []*invite.Invite `json:"invites"`
}

type AcceptInviteRequest struct {
	VaultID  string         `json:"vault_id"`
	InviteID string         `json:"invite_id"`
	Token    string         `json:"token"`
	Invitee  vault.Identity `json:"invitee"`
	Proof    []byte         `json:"proof"`
}

type UpdateInviteRequest struct {
	VaultID  string        `json:"vault_id"`
	InviteID string        `json:"invite_id"`
	Status   invite.Status `json:"status"`
}
