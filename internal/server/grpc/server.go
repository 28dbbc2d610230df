// Package grpc exposes the server services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"google.golang.org/grpc"
)

// Service is the business logic behind the handlers; *services.Service
// implements it.
type Service interface {
	Authenticate(ctx context.Context, token string) (string, error)

	RequestEmailVerification(ctx context.Context, email string) error
	CreateAccount(ctx context.Context, a *account.Account, code string, mainVault *vault.Vault) (*services.Session, error)
	GetAuthParams(ctx context.Context, email string) ([]byte, error)
	Login(ctx context.Context, email string, verifier []byte) (*services.Session, error)
	Logout(ctx context.Context, token string) error
	GetAccount(ctx context.Context) (*account.Account, error)
	UpdateAccount(ctx context.Context, a *account.Account, oldVerifier []byte) (*account.Account, error)

	ListVaults(ctx context.Context) ([]string, error)
	PushVault(ctx context.Context, v *vault.Vault) (*vault.Vault, error)
	PullVault(ctx context.Context, vaultID string) (*vault.Vault, error)

	CreateInvite(ctx context.Context, inv *invite.Invite) (*invite.Invite, error)
	GetInvite(ctx context.Context, vaultID, inviteID, token string) (*invite.Invite, error)
	ListInvites(ctx context.Context, vaultID string) ([]*invite.Invite, error)
	AcceptInvite(ctx context.Context, vaultID, inviteID, token string, invitee vault.Identity, proof []byte) (*invite.Invite, error)
	UpdateInvite(ctx context.Context, vaultID, inviteID string, status invite.Status) (*invite.Invite, error)
}

var _ Service = (*services.Service)(nil)

type GRPCServer struct {
	address string
	svc     Service
	logger  logging.Logger
}

var _ rpc.Server = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, svc Service) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		svc:     svc,
	}
}

// UnaryInterceptor returns the authentication interceptor, for callers
// that dispatch to the server without a listener.
func (s *GRPCServer) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return s.accessTokenInterceptor
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs the server on an existing listener until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	rpc.Register(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
