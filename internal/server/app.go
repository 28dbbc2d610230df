// Package server wires storage, mail, crypto and the two network
// endpoints (gRPC API and HTTP invite gateway) into a runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/server/httpapi"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/storage/bolt"
	"github.com/dmitrijs2005/vaultsync/internal/storage/memory"
	"github.com/dmitrijs2005/vaultsync/internal/storage/postgres"
	"github.com/dmitrijs2005/vaultsync/internal/storage/s3store"
	"github.com/dmitrijs2005/vaultsync/internal/storage/sqlite"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/vaultsync/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   storage.Store
	service *services.Service
	grpc    *gs.GRPCServer
	http    *httpapi.Server
}

// openStore is replaced in tests.
var openStore = OpenStorage

// OpenStorage opens the backend named by c.StorageDriver.
func OpenStorage(ctx context.Context, c *config.Config) (storage.Store, error) {
	switch c.StorageDriver {
	case "postgres":
		return postgres.Open(ctx, c.DatabaseDSN)
	case "sqlite":
		return sqlite.Open(ctx, c.DatabaseDSN)
	case "bolt":
		return bolt.Open(c.BoltPath)
	case "s3":
		return s3store.Open(ctx, s3store.Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
			Prefix:       c.S3Prefix,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}

// NewLogger builds the logger selected by format: "json" (slog) or "zap".
func NewLogger(format, level string) (logging.Logger, error) {
	switch format {
	case "", "json":
		return logging.NewJSONSlogLogger(level), nil
	case "zap":
		return logging.NewDevelopmentZapLogger(level)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func newMessenger(c *config.Config, l logging.Logger) messenger.Messenger {
	if c.SMTPHost == "" {
		return messenger.NewLog(l)
	}
	return messenger.NewSMTP(messenger.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := NewLogger(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	p, err := cryptox.ByName(c.CryptoProvider)
	if err != nil {
		return nil, err
	}
	if err := cryptox.Register(p); err != nil {
		if !errors.Is(err, cryptox.ErrAlreadyRegistered) {
			return nil, err
		}
		logger.Warn(ctx, "crypto provider already registered")
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	svc := services.New(store, p, newMessenger(c, logger), logger, services.Config{
		SecretKey:           []byte(c.SecretKey),
		AccessTokenValidity: c.AccessTokenValidityDuration,
		MaxInviteTTL:        c.InviteTTL,
		ClientURL:           c.ClientURL,
	})

	return &App{
		config:  c,
		logger:  logger,
		store:   store,
		service: svc,
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc),
		http:    httpapi.NewServer(c.EndpointAddrHTTP, svc, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves both endpoints until ctx is cancelled, a signal arrives or
// either endpoint fails. The store is closed on the way out.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.http.Run(gctx) })

	err := g.Wait()
	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage failed", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, err.Error())
	}
	app.logger.Info(ctx, "App stopped")
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	return err
}
