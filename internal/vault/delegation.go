package vault

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
)

// ErrUntrusted marks a sub-vault whose delegation does not verify.
var ErrUntrusted = fmt.Errorf("untrusted sub-vault: %w", common.ErrorUnauthorized)

// Delegation is a parent admin's signature over a child vault's identity
// and the parent's admin set at signing time.
type Delegation struct {
	ParentID  string `json:"parent_id"`
	SignedBy  string `json:"signed_by"`
	Signature []byte `json:"signature"`
	Revision  uint64 `json:"revision"`
}

func delegationPayload(parent *Vault, child *Vault) []byte {
	var b bytes.Buffer
	b.WriteString("vaultsync delegation v1\n")
	b.WriteString(parent.ID + "\n")
	b.WriteString(child.ID + "\n")
	b.WriteString(child.Name + "\n")
	b.WriteString(child.Owner + "\n")
	for _, a := range parent.Admins() {
		b.WriteString(a.AccountID + ":" + hex.EncodeToString(a.PublicKey) + "\n")
	}
	return b.Bytes()
}

// SignSubVault stores a delegation from v to child, signed by signer.
// The signer must be a current admin of v.
func (v *Vault) SignSubVault(p cryptox.Provider, signerID string, private []byte, child *Vault) error {
	if child.ParentID != v.ID {
		return fmt.Errorf("vault %s is not a child of %s: %w", child.ID, v.ID, common.ErrorUnauthorized)
	}
	if !v.HasRole(signerID, RoleAdmin) {
		return fmt.Errorf("sign sub-vault: %w", common.ErrorUnauthorized)
	}
	sig, err := p.Sign(private, delegationPayload(v, child))
	if err != nil {
		return err
	}
	child.Delegation = &Delegation{
		ParentID:  v.ID,
		SignedBy:  signerID,
		Signature: sig,
		Revision:  child.Tick(),
	}
	return nil
}

// VerifySubVault checks child's delegation against v's current admin set.
// Any change to that set invalidates signatures made before it.
func (v *Vault) VerifySubVault(p cryptox.Provider, child *Vault) error {
	d := child.Delegation
	if child.ParentID != v.ID || d == nil || d.ParentID != v.ID {
		return ErrUntrusted
	}
	signer, ok := v.Member(d.SignedBy)
	if !ok || !signer.Role.Allows(RoleAdmin) {
		return ErrUntrusted
	}
	if err := p.Verify(signer.PublicKey, delegationPayload(v, child), d.Signature); err != nil {
		return ErrUntrusted
	}
	return nil
}

// Trusts is VerifySubVault as a predicate.
func (v *Vault) Trusts(p cryptox.Provider, child *Vault) bool {
	return v.VerifySubVault(p, child) == nil
}
