package vault

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/google/uuid"
)

// Record is an item as stored and synced: the content is sealed with the
// vault key, the stamp is not.
type Record struct {
	ID       string `json:"id"`
	Revision uint64 `json:"revision"`
	Deleted  bool   `json:"deleted,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

func (r *Record) clone() *Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

// Field is a single name/value pair of an item. Masked only affects display.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Masked bool   `json:"masked,omitempty"`
}

// Item is the decrypted view of a Record.
type Item struct {
	ID       string
	Name     string
	Fields   []Field
	Tags     []string
	Revision uint64
}

// Field returns the first field called name.
func (it Item) Field(name string) (Field, bool) {
	for _, f := range it.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type itemPayload struct {
	Name   string   `json:"name"`
	Fields []Field  `json:"fields"`
	Tags   []string `json:"tags,omitempty"`
}

func (v *Vault) aad(itemID string) []byte {
	return []byte(v.ID + "/" + itemID)
}

// PutItem seals it into a record and stamps it with the next revision.
// An empty id creates a new item. Writing to a tombstoned id brings the
// item back under the same id.
func (v *Vault) PutItem(p cryptox.Provider, key []byte, it Item) (Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	data, err := cryptox.EncryptJSON(p, key, itemPayload{Name: it.Name, Fields: it.Fields, Tags: it.Tags}, v.aad(it.ID))
	if err != nil {
		return Item{}, err
	}
	if v.Items == nil {
		v.Items = make(map[string]*Record)
	}
	it.Revision = v.Tick()
	v.Items[it.ID] = &Record{ID: it.ID, Revision: it.Revision, Data: data}
	return it, nil
}

// DeleteItems tombstones every id. It fails without changes if any id is
// not a live item.
func (v *Vault) DeleteItems(ids ...string) error {
	for _, id := range ids {
		if r, ok := v.Items[id]; !ok || r.Deleted {
			return fmt.Errorf("item %s: %w", id, common.ErrorNotFound)
		}
	}
	for _, id := range ids {
		v.Items[id] = &Record{ID: id, Revision: v.Tick(), Deleted: true}
	}
	return nil
}

// Item decrypts a live item.
func (v *Vault) Item(p cryptox.Provider, key []byte, id string) (Item, error) {
	r, ok := v.Items[id]
	if !ok || r.Deleted {
		return Item{}, fmt.Errorf("item %s: %w", id, common.ErrorNotFound)
	}
	return v.openRecord(p, key, r)
}

func (v *Vault) openRecord(p cryptox.Provider, key []byte, r *Record) (Item, error) {
	var payload itemPayload
	if err := cryptox.DecryptJSON(p, key, r.Data, &payload, v.aad(r.ID)); err != nil {
		return Item{}, err
	}
	return Item{
		ID:       r.ID,
		Name:     payload.Name,
		Fields:   payload.Fields,
		Tags:     payload.Tags,
		Revision: r.Revision,
	}, nil
}

// ListItems decrypts all live items, sorted by name then id.
func (v *Vault) ListItems(p cryptox.Provider, key []byte) ([]Item, error) {
	out := make([]Item, 0, len(v.Items))
	for _, r := range v.Items {
		if r.Deleted {
			continue
		}
		it, err := v.openRecord(p, key, r)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LiveItemCount counts records that are not tombstones.
func (v *Vault) LiveItemCount() int {
	n := 0
	for _, r := range v.Items {
		if !r.Deleted {
			n++
		}
	}
	return n
}
