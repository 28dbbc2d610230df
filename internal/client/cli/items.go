package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

const hidden = "********"

// fieldPrompt describes one field an item kind asks for.
type fieldPrompt struct {
	name      string
	prompt    string
	masked    bool
	multiline bool
}

var (
	loginFields = []fieldPrompt{
		{name: "username", prompt: "Enter username"},
		{name: "password", prompt: "Enter password", masked: true},
		{name: "url", prompt: "Enter URL"},
	}
	noteFields = []fieldPrompt{
		{name: "text", prompt: "Enter note text", multiline: true},
	}
	cardFields = []fieldPrompt{
		{name: "number", prompt: "Enter card number", masked: true},
		{name: "expiration", prompt: "Enter expiration"},
		{name: "cvv", prompt: "Enter CVV", masked: true},
		{name: "holder", prompt: "Enter card holder"},
	}
)

// inputItem prompts for a name, the kind's fields and any extra fields.
// Empty answers leave a field out.
func (a *App) inputItem(kind string, prompts []fieldPrompt) (vault.Item, error) {
	name, err := getSimpleText(a.reader, "Enter title", a.out)
	if err != nil {
		return vault.Item{}, fmt.Errorf("get title: %w", err)
	}
	if name == "" {
		return vault.Item{}, fmt.Errorf("title is required")
	}

	it := vault.Item{Name: name, Tags: []string{kind}}
	for _, p := range prompts {
		var value string
		if p.multiline {
			value, err = GetMultiline(a.reader, p.prompt, a.out)
		} else {
			value, err = getSimpleText(a.reader, p.prompt, a.out)
		}
		if err != nil {
			return vault.Item{}, err
		}
		if value != "" {
			it.Fields = append(it.Fields, vault.Field{Name: p.name, Value: value, Masked: p.masked})
		}
	}

	extra, err := GetFields(a.reader, a.out)
	if err != nil {
		return vault.Item{}, err
	}
	it.Fields = append(it.Fields, extra...)
	return it, nil
}

func (a *App) addItem(ctx context.Context, kind string, prompts []fieldPrompt) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	it, err := a.inputItem(kind, prompts)
	if err != nil {
		return err
	}
	created, err := a.client.CreateItem(ctx, v.ID, it)
	if err != nil {
		return err
	}
	a.printf("Added %s to %s (%s)\n", created.Name, v.Name, created.ID)
	return nil
}

// AddLogin collects login credentials and stores them as a new item.
func (a *App) AddLogin(ctx context.Context) error {
	return a.addItem(ctx, "login", loginFields)
}

// AddNote collects a note body and stores it as a new item.
func (a *App) AddNote(ctx context.Context) error {
	return a.addItem(ctx, "note", noteFields)
}

// AddCreditCard collects credit-card fields and stores them as a new item.
func (a *App) AddCreditCard(ctx context.Context) error {
	return a.addItem(ctx, "card", cardFields)
}

// List prints the live items of the selected vault.
func (a *App) List(ctx context.Context) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	items, err := a.client.ListItems(v.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("%s is empty\n", v.Name)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.Name, strings.Join(it.Tags, ","))
	}
	return w.Flush()
}

func (a *App) itemID(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// Show prints an item. Hidden fields are masked unless -r is given.
func (a *App) Show(ctx context.Context, args []string) error {
	reveal := false
	var rest []string
	for _, arg := range args {
		if arg == "-r" {
			reveal = true
			continue
		}
		rest = append(rest, arg)
	}

	v, err := a.currentVault()
	if err != nil {
		return err
	}
	id, err := a.itemID(rest, "Enter item id to show")
	if err != nil {
		return err
	}
	it, err := a.client.GetItem(v.ID, id)
	if err != nil {
		return err
	}

	a.printf("%s\n", it.Name)
	for _, f := range it.Fields {
		value := f.Value
		if f.Masked && !reveal {
			value = hidden
		}
		a.printf("  %s: %s\n", f.Name, value)
	}
	return nil
}

// Edit asks for a new value of every field; empty answers keep the old
// one. Extra fields entered afterwards are appended.
func (a *App) Edit(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	id, err := a.itemID(args, "Enter item id to edit")
	if err != nil {
		return err
	}
	it, err := a.client.GetItem(v.ID, id)
	if err != nil {
		return err
	}

	if it.Name, err = GetDefaultText(a.reader, "Title", it.Name, a.out); err != nil {
		return err
	}
	for i, f := range it.Fields {
		def := f.Value
		if f.Masked {
			def = hidden
		}
		value, err := GetDefaultText(a.reader, f.Name, def, a.out)
		if err != nil {
			return err
		}
		if value != hidden {
			it.Fields[i].Value = value
		}
	}
	extra, err := GetFields(a.reader, a.out)
	if err != nil {
		return err
	}
	it.Fields = append(it.Fields, extra...)

	if _, err := a.client.UpdateItem(ctx, v.ID, it); err != nil {
		return err
	}
	a.printf("Updated %s\n", it.Name)
	return nil
}

// Delete removes items from the selected vault.
func (a *App) Delete(ctx context.Context, args []string) error {
	v, err := a.currentVault()
	if err != nil {
		return err
	}
	ids := args
	if len(ids) == 0 {
		id, err := getSimpleText(a.reader, "Enter item id to delete", a.out)
		if err != nil {
			return err
		}
		ids = []string{id}
	}
	if err := a.client.DeleteItems(ctx, v.ID, ids...); err != nil {
		return err
	}
	a.printf("Deleted %d item(s)\n", len(ids))
	return nil
}

// Sync synchronizes every vault now.
func (a *App) Sync(ctx context.Context) error {
	if err := a.sched.RunOnce(ctx); err != nil {
		return err
	}
	a.printf("Synchronized\n")
	return nil
}
