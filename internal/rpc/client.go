package rpc

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a typed VaultSync client. Errors are converted with FromStatus.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CallOptions must be passed to every call; Client adds them itself.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, in *Req) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, CallOptions()...); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	out, err := invoke[emptypb.Empty, wrapperspb.StringValue](ctx, c, "Ping", &emptypb.Empty{})
	if err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) RequestEmailVerification(ctx context.Context, in *api.RequestEmailVerificationRequest) (*api.Empty, error) {
	return invoke[api.RequestEmailVerificationRequest, api.Empty](ctx, c, "RequestEmailVerification", in)
}

func (c *Client) CreateAccount(ctx context.Context, in *api.CreateAccountRequest) (*api.SessionResponse, error) {
	return invoke[api.CreateAccountRequest, api.SessionResponse](ctx, c, "CreateAccount", in)
}

func (c *Client) GetAuthParams(ctx context.Context, in *api.GetAuthParamsRequest) (*api.GetAuthParamsResponse, error) {
	return invoke[api.GetAuthParamsRequest, api.GetAuthParamsResponse](ctx, c, "GetAuthParams", in)
}

func (c *Client) Login(ctx context.Context, in *api.LoginRequest) (*api.SessionResponse, error) {
	return invoke[api.LoginRequest, api.SessionResponse](ctx, c, "Login", in)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := invoke[api.Empty, api.Empty](ctx, c, "Logout", &api.Empty{})
	return err
}

func (c *Client) GetAccount(ctx context.Context) (*api.AccountResponse, error) {
	return invoke[api.Empty, api.AccountResponse](ctx, c, "GetAccount", &api.Empty{})
}

func (c *Client) UpdateAccount(ctx context.Context, in *api.UpdateAccountRequest) (*api.AccountResponse, error) {
	return invoke[api.UpdateAccountRequest, api.AccountResponse](ctx, c, "UpdateAccount", in)
}

func (c *Client) ListVaults(ctx context.Context) (*api.ListVaultsResponse, error) {
	return invoke[api.Empty, api.ListVaultsResponse](ctx, c, "ListVaults", &api.Empty{})
}

func (c *Client) PushVault(ctx context.Context, in *api.VaultRequest) (*api.VaultResponse, error) {
	return invoke[api.VaultRequest, api.VaultResponse](ctx, c, "PushVault", in)
}

func (c *Client) PullVault(ctx context.Context, in *api.PullVaultRequest) (*api.VaultResponse, error) {
	return invoke[api.PullVaultRequest, api.VaultResponse](ctx, c, "PullVault", in)
}

func (c *Client) CreateInvite(ctx context.Context, in *api.InviteRequest) (*api.InviteResponse, error) {
	return invoke[api.InviteRequest, api.InviteResponse](ctx, c, "CreateInvite", in)
}

func (c *Client) GetInvite(ctx context.Context, in *api.GetInviteRequest) (*api.InviteResponse, error) {
	return invoke[api.GetInviteRequest, api.InviteResponse](ctx, c, "GetInvite", in)
}

func (c *Client) ListInvites(ctx context.Context, in *api.ListInvitesRequest) (*api.ListInvitesResponse, error) {
	return invoke[api.ListInvitesRequest, api.ListInvitesResponse](ctx, c, "ListInvites", in)
}

func (c *Client) AcceptInvite(ctx context.Context, in *api.AcceptInviteRequest) (*api.InviteResponse, error) {
	return invoke[api.AcceptInviteRequest, api.InviteResponse](ctx, c, "AcceptInvite", in)
}

func (c *Client) UpdateInvite(ctx context.Context, in *api.UpdateInviteRequest) (*api.InviteResponse, error) {
	return invoke[api.UpdateInviteRequest, api.InviteResponse](ctx, c, "UpdateInvite", in)
}
