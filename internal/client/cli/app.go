package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/client/client"
	"github.com/dmitrijs2005/vaultsync/internal/client/config"
	"github.com/dmitrijs2005/vaultsync/internal/client/keyring"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
)

type sessionState int

const (
	stateLoggedOut sessionState = iota
	stateLocked
	stateUnlocked
)

type App struct {
	config *config.Config
	client *client.App
	sched  *client.SyncScheduler
	keys   *keyring.Store
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer

	// current is the vault item and sharing commands act on.
	current string
}

// NewApp opens the local database, connects to the server and builds the
// client described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewDevelopmentZapLogger(c.LogLevel)
	if err != nil {
		return nil, err
	}

	provider, err := cryptox.ByName(c.CryptoProvider)
	if err != nil {
		return nil, err
	}
	if err := cryptox.Register(provider); err != nil && !errors.Is(err, cryptox.ErrAlreadyRegistered) {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.LocalDBPath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	transport, err := client.NewGRPCClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := client.NewApp(client.Options{
		Transport: transport,
		Crypto:    cryptox.Registered(),
		Local:     db,
		Logger:    logger,
	})
	return newApp(c, app, keyring.New(c.KeyringService), logger, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, app *client.App, keys *keyring.Store, logger logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		client: app,
		sched:  client.NewSyncScheduler(app, c.SyncInterval, logger),
		keys:   keys,
		logger: logger,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run starts background synchronization and the REPL. It returns when the
// user exits or the input ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("Welcome to vaultsync (type 'help' for commands)")

	if a.config.SyncInterval > 0 {
		go a.sched.Run(ctx)
	}

	runREPL(ctx, a, a.status, a.reader)
	if z, ok := a.logger.(*logging.ZapLogger); ok {
		// syncing a terminal stderr can fail with EINVAL
		_ = z.Sync()
	}
	return a.client.Close()
}

func (a *App) state() sessionState {
	if !a.client.Locked() {
		return stateUnlocked
	}
	if _, err := a.client.Account(); errors.Is(err, common.ErrLocked) {
		return stateLocked
	}
	return stateLoggedOut
}

func (a *App) status() string {
	var parts []string
	switch a.state() {
	case stateUnlocked:
		acct, err := a.client.Account()
		if err == nil {
			parts = append(parts, acct.Email)
		}
		if v, err := a.currentVault(); err == nil {
			parts = append(parts, v.Name)
		}
	case stateLocked:
		parts = append(parts, "locked")
	}
	parts = append(parts, string(a.sched.Mode()))
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
