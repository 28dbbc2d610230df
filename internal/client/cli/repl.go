package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	state() sessionState

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error

	Vaults(ctx context.Context) error
	Use(ctx context.Context, args []string) error
	CreateVault(ctx context.Context, args []string) error
	CreateSubVault(ctx context.Context, args []string) error

	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	AddLogin(ctx context.Context) error
	AddNote(ctx context.Context) error
	AddCreditCard(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Sync(ctx context.Context) error

	Invite(ctx context.Context, args []string) error
	Invites(ctx context.Context) error
	Accept(ctx context.Context, args []string) error
	Confirm(ctx context.Context, args []string) error
	Revoke(ctx context.Context, args []string) error
	Members(ctx context.Context) error
	RemoveMember(ctx context.Context, args []string) error
	SetRole(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLocked    = "Available commands: unlock, logout, exit"
	helpUnlocked  = "Available commands: vaults, use, mkvault, mksub, (l)ist, show, addlogin, addnote, addcard, " +
		"edit, delete, sync, invite, invites, accept, confirm, revoke, members, remove, role, passwd, lock, logout, exit"
)

// runREPL starts a simple read-eval-print loop for the vaultsync CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' with the remaining tokens as arguments.
// Commands that need an unlocked account are refused otherwise. The loop
// exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts:
//
//	Any state:
//	  - help                  show available commands
//	  - exit | quit           leave the program
//
//	Logged out:
//	  - register              create an account
//	  - login                 authenticate, offline when the server is down
//
//	Locked:
//	  - unlock                unlock with the master password
//	  - logout                forget the account on this device
//
//	Unlocked:
//	  - vaults                list vaults as a tree
//	  - use <vault>           select a vault by name or id
//	  - mkvault <name>        create a vault
//	  - mksub <name>          create a sub-vault of the selected vault
//	  - list | l              list items of the selected vault
//	  - show <id> [-r]        show an item, -r reveals hidden fields
//	  - addlogin, addnote, addcard
//	  - edit <id>             change an item's fields
//	  - delete <id>...        delete items
//	  - sync                  synchronize with the server
//	  - invite <email> [role] invite someone to the selected vault
//	  - invites               list invites of the selected vault
//	  - accept                accept an invite with its link and secret
//	  - confirm <invite-id>   admit an accepted invitee
//	  - revoke <invite-id>    expire an invite
//	  - members               list members of the selected vault
//	  - remove <member>       remove a member, by email or id
//	  - role <member> <role>  change a member's role
//	  - passwd                change the master password
//	  - lock, logout
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("vs %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "help":
			switch a.state() {
			case stateUnlocked:
				printlnFn(helpUnlocked)
			case stateLocked:
				printlnFn(helpLocked)
			default:
				printlnFn(helpLoggedOut)
			}
			continue
		}

		report(dispatch(ctx, a, cmd, args))
	}
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string { return "Unknown command: " + string(e) }

type errNotAvailable string

func (e errNotAvailable) Error() string { return string(e) }

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	st := a.state()

	switch cmd {
	case "register", "login":
		if st != stateLoggedOut {
			return errNotAvailable("log out first")
		}
		if cmd == "register" {
			return a.Register(ctx)
		}
		return a.Login(ctx)
	case "unlock":
		if st != stateLocked {
			return errNotAvailable("nothing to unlock")
		}
		return a.Unlock(ctx)
	case "logout":
		if st == stateLoggedOut {
			return errNotAvailable("not logged in")
		}
		return a.Logout(ctx)
	}

	if st != stateUnlocked {
		switch cmd {
		case "vaults", "use", "mkvault", "mksub", "l", "list", "show", "addlogin", "addnote", "addcard",
			"edit", "delete", "sync", "invite", "invites", "accept", "confirm", "revoke",
			"members", "remove", "role", "passwd", "lock":
			if st == stateLocked {
				return errNotAvailable("account is locked, use unlock")
			}
			return errNotAvailable("log in first")
		}
	}

	switch cmd {
	case "lock":
		return a.Lock(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "vaults":
		return a.Vaults(ctx)
	case "use":
		return a.Use(ctx, args)
	case "mkvault":
		return a.CreateVault(ctx, args)
	case "mksub":
		return a.CreateSubVault(ctx, args)
	case "l", "list":
		return a.List(ctx)
	case "show":
		return a.Show(ctx, args)
	case "addlogin":
		return a.AddLogin(ctx)
	case "addnote":
		return a.AddNote(ctx)
	case "addcard":
		return a.AddCreditCard(ctx)
	case "edit":
		return a.Edit(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "sync":
		return a.Sync(ctx)
	case "invite":
		return a.Invite(ctx, args)
	case "invites":
		return a.Invites(ctx)
	case "accept":
		return a.Accept(ctx, args)
	case "confirm":
		return a.Confirm(ctx, args)
	case "revoke":
		return a.Revoke(ctx, args)
	case "members":
		return a.Members(ctx)
	case "remove":
		return a.RemoveMember(ctx, args)
	case "role":
		return a.SetRole(ctx, args)
	default:
		return errUnknownCommand(cmd)
	}
}
