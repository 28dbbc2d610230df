package client

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/api"
)

// Transport is what App needs from the server. GRPCClient implements it.
type Transport interface {
	Close() error

	Ping(ctx context.Context) (string, error)

	RequestEmailVerification(ctx context.Context, in *api.RequestEmailVerificationRequest) (*api.Empty, error)
	CreateAccount(ctx context.Context, in *api.CreateAccountRequest) (*api.SessionResponse, error)
	GetAuthParams(ctx context.Context, in *api.GetAuthParamsRequest) (*api.GetAuthParamsResponse, error)
	Login(ctx context.Context, in *api.LoginRequest) (*api.SessionResponse, error)
	Logout(ctx context.Context) error
	GetAccount(ctx context.Context) (*api.AccountResponse, error)
	UpdateAccount(ctx context.Context, in *api.UpdateAccountRequest) (*api.AccountResponse, error)

	ListVaults(ctx context.Context) (*api.ListVaultsResponse, error)
	PushVault(ctx context.Context, in *api.VaultRequest) (*api.VaultResponse, error)
	PullVault(ctx context.Context, in *api.PullVaultRequest) (*api.VaultResponse, error)

	CreateInvite(ctx context.Context, in *api.InviteRequest) (*api.InviteResponse, error)
	GetInvite(ctx context.Context, in *api.GetInviteRequest) (*api.InviteResponse, error)
	ListInvites(ctx context.Context, in *api.ListInvitesRequest) (*api.ListInvitesResponse, error)
	AcceptInvite(ctx context.Context, in *api.AcceptInviteRequest) (*api.InviteResponse, error)
	UpdateInvite(ctx context.Context, in *api.UpdateInviteRequest) (*api.InviteResponse, error)
}

var _ Transport = (*GRPCClient)(nil)
