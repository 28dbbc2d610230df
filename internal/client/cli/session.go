package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText  = GetSimpleText
	getPassword    = GetPassword
	getNewPassword = GetNewPassword
)

// Register verifies an email address with a mailed code and creates the
// account with its personal vault.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.client.RequestEmailVerification(ctx, email); err != nil {
		return err
	}

	code, err := getSimpleText(a.reader, "Enter the code sent to "+email, a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter your name", a.out)
	if err != nil {
		return err
	}
	password, err := getNewPassword(a.out, "Choose a master password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	acct, err := a.client.Signup(ctx, client.SignupParams{
		Email:    email,
		Name:     name,
		Password: string(password),
		Code:     code,
	})
	if err != nil {
		return err
	}

	a.current = acct.MainVault
	a.remember(ctx, acct.Email)
	a.printf("Account created, %s is ready\n", client.DefaultVaultName)
	return nil
}

// Login asks for credentials and logs in. When the server cannot be
// reached, the account stored on this device is unlocked instead.
func (a *App) Login(ctx context.Context) error {
	last, _ := a.keys.LastEmail(a.config.ServerEndpointAddr)
	email, err := GetDefaultText(a.reader, "Enter email", last, a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Master password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	acct, err := a.client.Login(ctx, email, string(password))
	if errors.Is(err, client.ErrLocalDataNotAvailable) {
		a.printf("Server unavailable and no local data for %s\n", email)
		return err
	}
	if err != nil {
		return err
	}

	a.current = acct.MainVault
	a.remember(ctx, acct.Email)
	_ = a.sched.RunOnce(ctx)
	a.printf("Logged in as %s (%s)\n", acct.Email, a.sched.Mode())
	return nil
}

func (a *App) remember(ctx context.Context, email string) {
	if err := a.keys.RememberEmail(a.config.ServerEndpointAddr, email); err != nil {
		a.logger.Warn(ctx, "cannot remember account", "error", err)
	}
}

func (a *App) Unlock(ctx context.Context) error {
	password, err := getPassword(a.out, "Master password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Unlock(ctx, string(password)); err != nil {
		return err
	}
	a.printf("Unlocked\n")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	a.client.Lock()
	a.printf("Locked\n")
	return nil
}

// Logout ends the session and removes the account's data from this device.
func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	a.current = ""
	if err := a.keys.Forget(a.config.ServerEndpointAddr); err != nil {
		a.logger.Warn(ctx, "cannot forget account", "error", err)
	}
	a.printf("Logged out\n")
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	old, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(old)

	next, err := getNewPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.client.ChangePassword(ctx, string(old), string(next)); err != nil {
		return err
	}
	a.printf("Password changed\n")
	return nil
}
