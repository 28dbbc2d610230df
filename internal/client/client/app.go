package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/keylock"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/storage/memory"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
)

// DefaultVaultName names the root vault created at signup.
const DefaultVaultName = "Personal"

const (
	sessionKind = "session"
	sessionID   = "current"
)

// session remembers which account the local replicas belong to.
type session struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

func (s *session) Kind() string     { return sessionKind }
func (s *session) EntityID() string { return sessionID }

// Options configure an App. Transport and Crypto are required.
type Options struct {
	Transport Transport
	Crypto    cryptox.Provider
	// Local holds the device replicas. An in-memory store is used when nil.
	Local  storage.Store
	Logger logging.Logger
	Now    func() time.Time
}

// App is one device's view of one account. It owns the local replicas,
// the unlocked key material and the session token.
type App struct {
	transport Transport
	crypto    cryptox.Provider
	local     storage.Store
	logger    logging.Logger
	now       func() time.Time

	// syncLocks orders network operations per vault id.
	syncLocks keylock.Locker

	mu       sync.RWMutex
	account  *account.Account
	verifier []byte
	token    string
	// gen changes whenever the account is discarded, so responses to
	// requests made for an earlier session are dropped.
	gen    uint64
	vaults map[string]*vault.Vault
	keys   map[string][]byte
}

func NewApp(o Options) *App {
	if o.Local == nil {
		o.Local = memory.New()
	}
	if o.Logger == nil {
		o.Logger = logging.Nop{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &App{
		transport: o.Transport,
		crypto:    o.Crypto,
		local:     o.Local,
		logger:    o.Logger.With("module", "client"),
		now:       o.Now,
		vaults:    make(map[string]*vault.Vault),
		keys:      make(map[string][]byte),
	}
}

// Close releases the transport and the local store.
func (a *App) Close() error {
	return errors.Join(a.transport.Close(), a.local.Close())
}

// Ping reports whether the server answers.
func (a *App) Ping(ctx context.Context) error {
	_, err := a.transport.Ping(ctx)
	return err
}

// checkUnlocked must be called with mu held.
func (a *App) checkUnlocked() error {
	if a.account == nil {
		return ErrNoAccount
	}
	if a.account.Locked() {
		return common.ErrLocked
	}
	return nil
}

// Locked reports whether there is no usable key material. An App without
// an account is locked too.
func (a *App) Locked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.account == nil || a.account.Locked()
}

// Account returns a locked copy of the current account.
func (a *App) Account() (*account.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkUnlocked(); err != nil {
		return nil, err
	}
	return a.account.Public(), nil
}

func (a *App) RequestEmailVerification(ctx context.Context, email string) error {
	_, err := a.transport.RequestEmailVerification(ctx, &api.RequestEmailVerificationRequest{Email: email})
	return err
}

type SignupParams struct {
	Email    string
	Name     string
	Password string
	// Code is the e-mail verification code.
	Code string
	// VaultName names the root vault. DefaultVaultName is used when empty.
	VaultName string
}

// Signup creates an account together with its root vault and leaves the
// App unlocked.
func (a *App) Signup(ctx context.Context, p SignupParams) (*account.Account, error) {
	acct, err := account.New(a.crypto, p.Email, p.Name, p.Password)
	if err != nil {
		return nil, err
	}
	name := p.VaultName
	if name == "" {
		name = DefaultVaultName
	}
	main, key, err := vault.New(a.crypto, name, acct.Identity())
	if err != nil {
		acct.Lock()
		return nil, err
	}

	resp, err := a.transport.CreateAccount(ctx, &api.CreateAccountRequest{
		Account:          acct,
		VerificationCode: p.Code,
		MainVault:        main,
	})
	if err != nil {
		acct.Lock()
		common.WipeByteArray(key)
		return nil, err
	}
	acct.MainVault = main.ID
	acct.Vaults = []string{main.ID}
	verifier := acct.Verifier
	acct.Verifier = nil

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.replaceSessionLocked(ctx, acct); err != nil {
		return nil, err
	}
	a.verifier = verifier
	a.setTokenLocked(resp.Token)
	a.vaults[main.ID] = main
	a.keys[main.ID] = key
	if err := a.persistLocked(ctx, main); err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "signed up", "account", acct.ID)
	return acct.Public(), nil
}

// Login authenticates against the server, unlocks the account and
// synchronizes its vaults. When the server is unreachable it falls back
// to the replicas stored on this device.
func (a *App) Login(ctx context.Context, email, password string) (*account.Account, error) {
	email = account.NormalizeEmail(email)
	params, err := a.transport.GetAuthParams(ctx, &api.GetAuthParamsRequest{Email: email})
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			a.logger.Warn(ctx, "server unavailable, trying offline login", "error", err)
			return a.offlineLogin(ctx, email, password)
		}
		return nil, err
	}

	verifier := account.LoginVerifier(a.crypto, password, params.AuthSalt)
	resp, err := a.transport.Login(ctx, &api.LoginRequest{Email: email, Verifier: verifier})
	if err != nil {
		return nil, err
	}
	acct := resp.Account
	if acct == nil {
		return nil, fmt.Errorf("login: empty account: %w", common.ErrorInternal)
	}
	if err := acct.Unlock(a.crypto, password); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if err := a.replaceSessionLocked(ctx, acct); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	a.verifier = verifier
	a.setTokenLocked(resp.Token)
	if err := a.loadLocalLocked(ctx); err != nil {
		a.logger.Warn(ctx, "loading local replicas failed", "error", err)
	}
	a.mu.Unlock()

	if err := a.Synchronize(ctx); err != nil {
		a.logger.Warn(ctx, "initial synchronization incomplete", "error", err)
	}
	a.logger.Info(ctx, "logged in", "account", acct.ID)
	return acct.Public(), nil
}

func (a *App) offlineLogin(ctx context.Context, email, password string) (*account.Account, error) {
	s, err := storage.Load[session](ctx, a.local, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrLocalDataNotAvailable
		}
		return nil, err
	}
	if s.Email != email {
		return nil, ErrLocalDataNotAvailable
	}
	acct, err := storage.Load[account.Account](ctx, a.local, s.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrLocalDataNotAvailable
		}
		return nil, err
	}
	if err := acct.Unlock(a.crypto, password); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.wipeLocked()
	a.account = acct
	a.verifier = account.LoginVerifier(a.crypto, password, acct.AuthSalt)
	if err := a.loadLocalLocked(ctx); err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "logged in offline", "account", acct.ID)
	return acct.Public(), nil
}

// replaceSessionLocked makes acct the current account. Replicas left on
// the device by a different account are deleted first.
func (a *App) replaceSessionLocked(ctx context.Context, acct *account.Account) error {
	prev, err := storage.Load[session](ctx, a.local, sessionID)
	switch {
	case err == nil && prev.AccountID != acct.ID:
		if err := a.clearLocalLocked(ctx); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return err
	}
	if a.account != nil && a.account.ID != acct.ID {
		a.gen++
	}

	a.wipeLocked()
	a.account = acct
	if err := storage.Save(ctx, a.local, acct.Public()); err != nil {
		return err
	}
	return storage.Save(ctx, a.local, &session{AccountID: acct.ID, Email: acct.Email})
}

func (a *App) loadLocalLocked(ctx context.Context) error {
	ids, err := a.local.List(ctx, (&vault.Vault{}).Kind())
	if err != nil {
		return err
	}
	for _, id := range ids {
		v, err := storage.Load[vault.Vault](ctx, a.local, id)
		if err != nil {
			return err
		}
		if cur, ok := a.vaults[id]; ok {
			if _, err := cur.Merge(v); err != nil {
				return err
			}
			continue
		}
		a.vaults[id] = v
	}
	return nil
}

func (a *App) setTokenLocked(token string) {
	a.token = token
}

// wipeLocked drops every secret held in memory.
func (a *App) wipeLocked() {
	if a.account != nil {
		a.account.Lock()
	}
	for id, k := range a.keys {
		common.WipeByteArray(k)
		delete(a.keys, id)
	}
	common.WipeByteArray(a.verifier)
	a.verifier = nil
	a.setTokenLocked("")
}

// Lock wipes the private key, the vault keys and the session token. It
// never touches the network. Operations started before Lock keep the
// session they pinned and run to completion; new ones fail with
// common.ErrLocked.
func (a *App) Lock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account == nil {
		return
	}
	a.wipeLocked()
	a.logger.Debug(context.Background(), "locked", "account", a.account.ID)
}

// Unlock re-derives the private key from password. A new session token
// is requested on the next network call.
func (a *App) Unlock(ctx context.Context, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account == nil {
		return ErrNoAccount
	}
	if err := a.account.Unlock(a.crypto, password); err != nil {
		return err
	}
	common.WipeByteArray(a.verifier)
	a.verifier = account.LoginVerifier(a.crypto, password, a.account.AuthSalt)
	a.logger.Debug(ctx, "unlocked", "account", a.account.ID)
	return nil
}

// Logout revokes the session token when there is one, deletes the local
// replicas and forgets the account.
func (a *App) Logout(ctx context.Context) error {
	a.mu.RLock()
	if a.account == nil {
		a.mu.RUnlock()
		return ErrNoAccount
	}
	token := a.token
	a.mu.RUnlock()

	if token != "" {
		if err := a.transport.Logout(withAccessToken(ctx, token)); err != nil {
			a.logger.Warn(ctx, "server logout failed", "error", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account == nil {
		return nil
	}
	id := a.account.ID
	err := a.clearLocalLocked(ctx)
	a.wipeLocked()
	a.account = nil
	a.vaults = make(map[string]*vault.Vault)
	a.gen++
	a.logger.Info(ctx, "logged out", "account", id)
	return err
}

// clearLocalLocked deletes the session, accounts and vault replicas kept
// on this device.
func (a *App) clearLocalLocked(ctx context.Context) error {
	for id := range a.vaults {
		delete(a.vaults, id)
	}
	return storage.Atomically(ctx, a.local, func(ctx context.Context, st storage.Store) error {
		for _, kind := range []string{(&vault.Vault{}).Kind(), (&account.Account{}).Kind()} {
			ids, err := st.List(ctx, kind)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := st.Delete(ctx, kind, id); err != nil {
					return err
				}
			}
		}
		return st.Delete(ctx, sessionKind, sessionID)
	})
}

// ChangePassword re-encrypts the private key under newPassword and
// updates the server's login verifier.
func (a *App) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	a.mu.RLock()
	if err := a.checkUnlocked(); err != nil {
		a.mu.RUnlock()
		return err
	}
	current := a.account
	oldVerifier := append([]byte(nil), a.verifier...)
	a.mu.RUnlock()

	updated := current.Clone()
	defer updated.Lock()
	if err := updated.ChangePassword(a.crypto, oldPassword, newPassword); err != nil {
		return err
	}

	err := a.withSession(ctx, func(ctx context.Context) error {
		_, err := a.transport.UpdateAccount(ctx, &api.UpdateAccountRequest{Account: updated, OldVerifier: oldVerifier})
		return err
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account != current {
		return ErrNoAccount
	}
	current.EncryptedPrivateKey = updated.EncryptedPrivateKey
	current.KeySalt = updated.KeySalt
	current.AuthSalt = updated.AuthSalt
	common.WipeByteArray(a.verifier)
	a.verifier = append([]byte(nil), updated.Verifier...)
	a.logger.Info(ctx, "password changed", "account", current.ID)
	return storage.Save(ctx, a.local, current.Public())
}

// pinnedSession is the session an operation started under. Calls made
// with it keep their token after Lock wipes the App's copy.
type pinnedSession struct {
	gen uint64

	mu    sync.Mutex
	token string
}

func (p *pinnedSession) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *pinnedSession) set(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

type pinnedSessionKey struct{}

func pinnedFrom(ctx context.Context) (*pinnedSession, bool) {
	p, ok := ctx.Value(pinnedSessionKey{}).(*pinnedSession)
	return p, ok
}

// pinSession requires an unlocked account and returns ctx carrying the
// current session. A ctx that already carries one is returned unchanged,
// so nested operations share the outer pin.
func (a *App) pinSession(ctx context.Context) (context.Context, *pinnedSession, error) {
	if p, ok := pinnedFrom(ctx); ok {
		return ctx, p, nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkUnlocked(); err != nil {
		return ctx, nil, err
	}
	p := &pinnedSession{gen: a.gen, token: a.token}
	return context.WithValue(ctx, pinnedSessionKey{}, p), p, nil
}

// checkPinnedLocked reports whether work pinned to p may still change
// the App. Locking does not end a pinned session; logging out or
// switching accounts does.
func (a *App) checkPinnedLocked(p *pinnedSession) error {
	if a.account == nil || a.gen != p.gen {
		return errStaleSession
	}
	return nil
}

// withSession runs call with a valid session token, logging in again with
// the cached verifier when the token is missing or rejected. The token
// is sent in the call's metadata.
func (a *App) withSession(ctx context.Context, call func(context.Context) error) error {
	ctx, p, err := a.pinSession(ctx)
	if err != nil {
		return err
	}
	a.mu.RLock()
	err = a.checkPinnedLocked(p)
	a.mu.RUnlock()
	if err != nil {
		return err
	}

	token := p.get()
	if token == "" {
		if token, err = a.relogin(ctx, p); err != nil {
			return err
		}
	}
	err = call(withAccessToken(ctx, token))
	if errors.Is(err, common.ErrTokenExpired) || errors.Is(err, common.ErrInvalidToken) {
		if token, err = a.relogin(ctx, p); err != nil {
			return err
		}
		err = call(withAccessToken(ctx, token))
	}
	return err
}

// relogin needs the verifier, so it fails with common.ErrLocked once the
// App is locked even for a pinned session.
func (a *App) relogin(ctx context.Context, p *pinnedSession) (string, error) {
	a.mu.RLock()
	if err := a.checkUnlocked(); err != nil {
		a.mu.RUnlock()
		return "", err
	}
	if a.gen != p.gen {
		a.mu.RUnlock()
		return "", errStaleSession
	}
	acct := a.account
	email := acct.Email
	verifier := append([]byte(nil), a.verifier...)
	a.mu.RUnlock()

	resp, err := a.transport.Login(ctx, &api.LoginRequest{Email: email, Verifier: verifier})
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account != acct || a.gen != p.gen || acct.Locked() {
		return "", common.ErrLocked
	}
	a.setTokenLocked(resp.Token)
	p.set(resp.Token)
	return resp.Token, nil
}
