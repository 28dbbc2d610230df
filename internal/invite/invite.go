// Package invite implements the invitation handshake that admits a new
// member to a vault.
//
// The admin creates an invite with a random secret and hands the secret to
// the invitee out of band. The link only carries a token derived from the
// secret. The invitee answers with a proof keyed by the secret, which the
// admin checks before committing the membership. The server stores the
// secret only encrypted under the vault key.
package invite

import (
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
)

const (
	secretSize = 20
	tokenBytes = 16
)

// DefaultTTL applies when New is given a zero ttl.
const DefaultTTL = 7 * 24 * time.Hour

type Invite struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	VaultID   string     `json:"vault_id"`
	VaultName string     `json:"vault_name"`
	Role      vault.Role `json:"role"`
	Status    Status     `json:"status"`
	InvitedBy string     `json:"invited_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`

	Token           string `json:"token"`
	EncryptedSecret []byte `json:"encrypted_secret"`

	Invitee *vault.Identity `json:"invitee,omitempty"`
	Proof   []byte          `json:"proof,omitempty"`

	// Grants lists sub-vaults the membership is extended to on confirmation.
	Grants []string `json:"grants,omitempty"`
}

func (i *Invite) Kind() string     { return "invite" }
func (i *Invite) EntityID() string { return i.ID }

// Params describe a new invite.
type Params struct {
	Email     string
	VaultID   string
	VaultName string
	Role      vault.Role
	InvitedBy string
	Grants    []string
	TTL       time.Duration
}

// New creates an invite in Created state and returns it with its secret.
// vaultKey encrypts the stored copy of the secret.
func New(p cryptox.Provider, vaultKey []byte, params Params, now time.Time) (*Invite, []byte, error) {
	if params.Role == "" {
		params.Role = vault.RoleMember
	}
	if params.Role == vault.RoleOwner || !params.Role.Valid() {
		return nil, nil, fmt.Errorf("invite role %q: %w", params.Role, common.ErrInvalidInvite)
	}
	if params.TTL <= 0 {
		params.TTL = DefaultTTL
	}

	secret, err := p.RandomBytes(secretSize)
	if err != nil {
		return nil, nil, err
	}

	inv := &Invite{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(params.Email)),
		VaultID:   params.VaultID,
		VaultName: params.VaultName,
		Role:      params.Role,
		Status:    StatusCreated,
		InvitedBy: params.InvitedBy,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(params.TTL).UTC(),
		Grants:    append([]string(nil), params.Grants...),
	}
	inv.Token = Token(p, secret, inv.ID)
	inv.EncryptedSecret, err = p.Encrypt(vaultKey, secret, inv.aad())
	if err != nil {
		return nil, nil, err
	}
	return inv, secret, nil
}

func (i *Invite) aad() []byte {
	return []byte("invite/" + i.VaultID + "/" + i.ID)
}

// Secret decrypts the stored secret with the vault key.
func (i *Invite) Secret(p cryptox.Provider, vaultKey []byte) ([]byte, error) {
	return p.Decrypt(vaultKey, i.EncryptedSecret, i.aad())
}

// Token derives the link token for an invite id. It does not reveal secret.
func Token(p cryptox.Provider, secret []byte, inviteID string) string {
	return hex.EncodeToString(p.MAC(secret, []byte("invite-token:"+inviteID))[:tokenBytes])
}

// Code is a six digit code derived from the secret. Admin and invitee can
// read it to each other to check they hold the same secret.
func Code(p cryptox.Provider, secret []byte) string {
	mac := p.MAC(secret, []byte("invite-code"))
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(mac[:4])%1_000_000)
}

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeSecret renders a secret for out-of-band transfer.
func EncodeSecret(secret []byte) string {
	return secretEncoding.EncodeToString(secret)
}

// DecodeSecret accepts EncodeSecret output, ignoring case, spaces and dashes.
func DecodeSecret(s string) ([]byte, error) {
	s = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(s))
	b, err := secretEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", common.ErrInvalidInvite)
	}
	return b, nil
}

func proofPayload(inviteID string, invitee vault.Identity) []byte {
	return []byte("invite-proof:" + inviteID + "|" + invitee.AccountID + "|" + invitee.Email + "|" + hex.EncodeToString(invitee.PublicKey))
}

// Expired reports whether the invite can no longer progress at now.
func (i *Invite) Expired(now time.Time) bool {
	return i.Status == StatusExpired || (i.Status != StatusConfirmed && !now.Before(i.ExpiresAt))
}

// CheckExpiry moves the invite to Expired once its TTL has passed.
func (i *Invite) CheckExpiry(now time.Time) error {
	if i.Expired(now) {
		i.Status = StatusExpired
		return fmt.Errorf("invite %s: %w", i.ID, common.ErrExpiredInvite)
	}
	return nil
}

// MarkSent records that the link went out.
func (i *Invite) MarkSent(now time.Time) error {
	if err := i.CheckExpiry(now); err != nil {
		return err
	}
	if i.Status != StatusCreated {
		return fmt.Errorf("invite %s is %s: %w", i.ID, i.Status, common.ErrInvalidInvite)
	}
	i.Status = StatusSent
	return nil
}

// Accept runs on the invitee's side: it checks the secret against the
// link token and attaches the invitee's proof.
func (i *Invite) Accept(p cryptox.Provider, secret []byte, invitee vault.Identity, token string, now time.Time) error {
	if subtle.ConstantTimeCompare([]byte(Token(p, secret, i.ID)), []byte(token)) != 1 {
		return fmt.Errorf("invite %s: secret does not match link: %w", i.ID, common.ErrInvalidInvite)
	}
	return i.RecordAcceptance(token, invitee, p.MAC(secret, proofPayload(i.ID, invitee)), now)
}

// RecordAcceptance is the server side of Accept. Without the secret it
// can only check the token and the state.
func (i *Invite) RecordAcceptance(token string, invitee vault.Identity, proof []byte, now time.Time) error {
	if err := i.CheckExpiry(now); err != nil {
		return err
	}
	if i.Status != StatusSent {
		return fmt.Errorf("invite %s is %s: %w", i.ID, i.Status, common.ErrInvalidInvite)
	}
	if subtle.ConstantTimeCompare([]byte(i.Token), []byte(token)) != 1 || len(proof) == 0 {
		return fmt.Errorf("invite %s: %w", i.ID, common.ErrInvalidInvite)
	}
	id := invitee
	id.PublicKey = append([]byte(nil), invitee.PublicKey...)
	i.Invitee = &id
	i.Proof = append([]byte(nil), proof...)
	i.Status = StatusAccepted
	return nil
}

// Verify is the admin's check of the invitee's proof. On success the
// invite becomes Confirmed; on failure it stays Accepted.
func (i *Invite) Verify(p cryptox.Provider, secret []byte, now time.Time) error {
	if err := i.CheckExpiry(now); err != nil {
		return err
	}
	if i.Status != StatusAccepted || i.Invitee == nil {
		return fmt.Errorf("invite %s is %s: %w", i.ID, i.Status, common.ErrInvalidInvite)
	}
	expected := p.MAC(secret, proofPayload(i.ID, *i.Invitee))
	if subtle.ConstantTimeCompare(expected, i.Proof) != 1 {
		return fmt.Errorf("invite %s: proof mismatch: %w", i.ID, common.ErrInvalidInvite)
	}
	i.Status = StatusConfirmed
	return nil
}

// Revoke expires the invite. Confirmed invites are final.
func (i *Invite) Revoke() error {
	if i.Status == StatusConfirmed {
		return fmt.Errorf("invite %s is confirmed: %w", i.ID, common.ErrInvalidInvite)
	}
	i.Status = StatusExpired
	return nil
}

// CanTransition reports whether a stored invite may move from one status
// to another through an admin update.
func CanTransition(from, to Status) bool {
	switch {
	case from == to:
		return true
	case to == StatusExpired:
		return from != StatusConfirmed
	case from == StatusCreated && to == StatusSent:
		return true
	case from == StatusAccepted && to == StatusConfirmed:
		return true
	default:
		return false
	}
}

// Public strips the fields only vault members should see.
func (i *Invite) Public() *Invite {
	c := *i
	c.EncryptedSecret = nil
	c.Proof = nil
	c.Grants = nil
	return &c
}
