// Package vault holds the replicated vault model: sealed item records,
// members with sealed key shares, the sub-vault delegation chain and the
// merge that lets replicas converge.
//
// Item contents never leave the package in cleartext form except through
// Item values returned to a caller holding the vault key. Record ids,
// revisions and tombstone flags stay readable so the server can merge
// without the key.
package vault

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/google/uuid"
)

const keySize = 32

// Role is a member's permission level. Every owner is an admin and every
// admin is a member.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Allows reports whether r carries at least the permissions of required.
func (r Role) Allows(required Role) bool {
	return r.rank() > 0 && r.rank() >= required.rank()
}

func (r Role) Valid() bool { return r.rank() > 0 }

// Member is one account's membership in a vault. A removed member stays
// in the map as a tombstone so the removal propagates.
type Member struct {
	AccountID    string `json:"account_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PublicKey    []byte `json:"public_key"`
	Role         Role   `json:"role"`
	JoinRevision uint64 `json:"join_revision"`
	Revision     uint64 `json:"revision"`
	Removed      bool   `json:"removed,omitempty"`
	// KeyShare is the vault key sealed to PublicKey.
	KeyShare []byte `json:"key_share,omitempty"`
}

func (m *Member) clone() *Member {
	c := *m
	c.PublicKey = append([]byte(nil), m.PublicKey...)
	c.KeyShare = append([]byte(nil), m.KeyShare...)
	return &c
}

// Identity is the public part of an account needed to add it to a vault.
type Identity struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	PublicKey []byte `json:"public_key"`
}

// Vault is one replica of a vault.
type Vault struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Owner      string             `json:"owner"`
	ParentID   string             `json:"parent_id,omitempty"`
	Delegation *Delegation        `json:"delegation,omitempty"`
	Revision   uint64             `json:"revision"`
	Members    map[string]*Member `json:"members"`
	Items      map[string]*Record `json:"items"`
}

// Kind and EntityID let a Vault be persisted through storage.Save.
func (v *Vault) Kind() string     { return "vault" }
func (v *Vault) EntityID() string { return v.ID }

// New creates a vault owned by owner together with a fresh vault key.
// The key is returned to the caller and sealed into the owner's share.
func New(p cryptox.Provider, name string, owner Identity) (*Vault, []byte, error) {
	key, err := p.RandomBytes(keySize)
	if err != nil {
		return nil, nil, err
	}
	v := &Vault{
		ID:       uuid.NewString(),
		Name:     name,
		Owner:    owner.AccountID,
		Members:  make(map[string]*Member),
		Items:    make(map[string]*Record),
		Revision: 0,
	}
	if err := v.putMember(p, key, owner, RoleOwner); err != nil {
		return nil, nil, err
	}
	return v, key, nil
}

// NewSub creates a vault whose parent is parent. The result is untrusted
// until a parent admin signs it with SignSubVault.
func NewSub(p cryptox.Provider, parent *Vault, name string, owner Identity) (*Vault, []byte, error) {
	v, key, err := New(p, name, owner)
	if err != nil {
		return nil, nil, err
	}
	v.ParentID = parent.ID
	return v, key, nil
}

// Tick advances the vault clock and returns the new revision.
func (v *Vault) Tick() uint64 {
	v.Revision++
	return v.Revision
}

// Clone returns a deep copy.
func (v *Vault) Clone() *Vault {
	c := *v
	if v.Delegation != nil {
		d := *v.Delegation
		d.Signature = append([]byte(nil), v.Delegation.Signature...)
		c.Delegation = &d
	}
	c.Members = make(map[string]*Member, len(v.Members))
	for id, m := range v.Members {
		c.Members[id] = m.clone()
	}
	c.Items = make(map[string]*Record, len(v.Items))
	for id, r := range v.Items {
		c.Items[id] = r.clone()
	}
	return &c
}

// Member returns the live membership of accountID.
func (v *Vault) Member(accountID string) (*Member, bool) {
	m, ok := v.Members[accountID]
	if !ok || m.Removed {
		return nil, false
	}
	return m, true
}

// HasRole reports whether accountID is a live member with at least role.
func (v *Vault) HasRole(accountID string, role Role) bool {
	m, ok := v.Member(accountID)
	return ok && m.Role.Allows(role)
}

// LiveMembers returns live members sorted by account id.
func (v *Vault) LiveMembers() []*Member {
	out := make([]*Member, 0, len(v.Members))
	for _, m := range v.Members {
		if !m.Removed {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Admins returns live members with admin rights sorted by account id.
func (v *Vault) Admins() []*Member {
	var out []*Member
	for _, m := range v.LiveMembers() {
		if m.Role.Allows(RoleAdmin) {
			out = append(out, m)
		}
	}
	return out
}

// OpenKey recovers the vault key from accountID's key share.
func (v *Vault) OpenKey(p cryptox.Provider, accountID string, private []byte) ([]byte, error) {
	m, ok := v.Member(accountID)
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", v.ID, common.ErrorUnauthorized)
	}
	key, err := p.Open(private, m.KeyShare)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (v *Vault) putMember(p cryptox.Provider, key []byte, id Identity, role Role) error {
	share, err := p.Seal(id.PublicKey, key)
	if err != nil {
		return err
	}
	rev := v.Tick()
	v.Members[id.AccountID] = &Member{
		AccountID:    id.AccountID,
		Email:        id.Email,
		Name:         id.Name,
		PublicKey:    append([]byte(nil), id.PublicKey...),
		Role:         role,
		JoinRevision: rev,
		Revision:     rev,
		KeyShare:     share,
	}
	return nil
}

// AddMember grants id the given role and seals key to it. Re-adding a
// removed member revives the same entry with a newer revision.
func (v *Vault) AddMember(p cryptox.Provider, key []byte, id Identity, role Role) error {
	if role == RoleOwner || !role.Valid() {
		return fmt.Errorf("role %q: %w", role, common.ErrorUnauthorized)
	}
	if _, ok := v.Member(id.AccountID); ok {
		return fmt.Errorf("member %s: %w", id.AccountID, common.ErrAlreadyExists)
	}
	return v.putMember(p, key, id, role)
}

// RemoveMember tombstones accountID. The owner cannot be removed.
func (v *Vault) RemoveMember(accountID string) error {
	m, ok := v.Member(accountID)
	if !ok {
		return fmt.Errorf("member %s: %w", accountID, common.ErrorNotFound)
	}
	if m.Role == RoleOwner {
		return fmt.Errorf("remove owner: %w", common.ErrorUnauthorized)
	}
	m.Removed = true
	m.KeyShare = nil
	m.Revision = v.Tick()
	return nil
}

// SetRole changes a member's role. Ownership cannot be granted or revoked.
func (v *Vault) SetRole(accountID string, role Role) error {
	m, ok := v.Member(accountID)
	if !ok {
		return fmt.Errorf("member %s: %w", accountID, common.ErrorNotFound)
	}
	if m.Role == RoleOwner || role == RoleOwner || !role.Valid() {
		return fmt.Errorf("set role %q: %w", role, common.ErrorUnauthorized)
	}
	if m.Role == role {
		return nil
	}
	m.Role = role
	m.Revision = v.Tick()
	return nil
}
