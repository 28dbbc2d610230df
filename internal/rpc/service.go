// Package rpc defines the VaultSync gRPC service without generated code:
// a JSON codec, the service descriptor, a typed client and the mapping
// between sentinel errors and gRPC statuses.
package rpc

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "vaultsync.v1.VaultSync"

// FullMethod returns the gRPC method path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// PublicMethods do not require an access token.
var PublicMethods = map[string]bool{
	FullMethod("Ping"):                     true,
	FullMethod("RequestEmailVerification"): true,
	FullMethod("CreateAccount"):            true,
	FullMethod("GetAuthParams"):            true,
	FullMethod("Login"):                    true,
}

// Server is implemented by the gRPC handler.
type Server interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	RequestEmailVerification(context.Context, *api.RequestEmailVerificationRequest) (*api.Empty, error)
	CreateAccount(context.Context, *api.CreateAccountRequest) (*api.SessionResponse, error)
	GetAuthParams(context.Context, *api.GetAuthParamsRequest) (*api.GetAuthParamsResponse, error)
	Login(context.Context, *api.LoginRequest) (*api.SessionResponse, error)
	Logout(context.Context, *api.Empty) (*api.Empty, error)
	GetAccount(context.Context, *api.Empty) (*api.AccountResponse, error)
	UpdateAccount(context.Context, *api.UpdateAccountRequest) (*api.AccountResponse, error)
	ListVaults(context.Context, *api.Empty) (*api.ListVaultsResponse, error)
	PushVault(context.Context, *api.VaultRequest) (*api.VaultResponse, error)
	PullVault(context.Context, *api.PullVaultRequest) (*api.VaultResponse, error)
	CreateInvite(context.Context, *api.InviteRequest) (*api.InviteResponse, error)
	GetInvite(context.Context, *api.GetInviteRequest) (*api.InviteResponse, error)
	ListInvites(context.Context, *api.ListInvitesRequest) (*api.ListInvitesResponse, error)
	AcceptInvite(context.Context, *api.AcceptInviteRequest) (*api.InviteResponse, error)
	UpdateInvite(context.Context, *api.UpdateInviteRequest) (*api.InviteResponse, error)
}

func unary[Req, Resp any](name string, call func(Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes VaultSync for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", Server.Ping),
		unary("RequestEmailVerification", Server.RequestEmailVerification),
		unary("CreateAccount", Server.CreateAccount),
		unary("GetAuthParams", Server.GetAuthParams),
		unary("Login", Server.Login),
		unary("Logout", Server.Logout),
		unary("GetAccount", Server.GetAccount),
		unary("UpdateAccount", Server.UpdateAccount),
		unary("ListVaults", Server.ListVaults),
		unary("PushVault", Server.PushVault),
		unary("PullVault", Server.PullVault),
		unary("CreateInvite", Server.CreateInvite),
		unary("GetInvite", Server.GetInvite),
		unary("ListInvites", Server.ListInvites),
		unary("AcceptInvite", Server.AcceptInvite),
		unary("UpdateInvite", Server.UpdateInvite),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vaultsync/v1/vaultsync.json",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}
