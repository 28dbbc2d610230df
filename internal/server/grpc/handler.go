package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fail logs err and converts it to a gRPC status. Expected client errors
// are logged at debug level.
func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	if common.Code(err) == "INTERNAL" && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	} else {
		s.logger.Debug(ctx, "request rejected", "method", method, "error", err)
	}
	return rpc.ToStatus(err)
}

func (s *GRPCServer) Ping(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {

	return wrapperspb.String("OK"), nil

}

func (s *GRPCServer) RequestEmailVerification(ctx context.Context, req *api.RequestEmailVerificationRequest) (*api.Empty, error) {
	if err := s.svc.RequestEmailVerification(ctx, req.Email); err != nil {
		return nil, s.fail(ctx, "RequestEmailVerification", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) CreateAccount(ctx context.Context, req *api.CreateAccountRequest) (*api.SessionResponse, error) {

	s.logger.Info(ctx, "Registration request")

	sess, err := s.svc.CreateAccount(ctx, req.Account, req.VerificationCode, req.MainVault)
	if err != nil {
		return nil, s.fail(ctx, "CreateAccount", err)
	}

	return &api.SessionResponse{Token: sess.Token, Account: sess.Account}, nil
}

func (s *GRPCServer) GetAuthParams(ctx context.Context, req *api.GetAuthParamsRequest) (*api.GetAuthParamsResponse, error) {
	salt, err := s.svc.GetAuthParams(ctx, req.Email)
	if err != nil {
		return nil, s.fail(ctx, "GetAuthParams", err)
	}
	return &api.GetAuthParamsResponse{AuthSalt: salt}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.SessionResponse, error) {
	sess, err := s.svc.Login(ctx, req.Email, req.Verifier)
	if err != nil {
		return nil, s.fail(ctx, "Login", err)
	}
	return &api.SessionResponse{Token: sess.Token, Account: sess.Account}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	if err := s.svc.Logout(ctx, accessToken(ctx)); err != nil {
		return nil, s.fail(ctx, "Logout", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) GetAccount(ctx context.Context, _ *api.Empty) (*api.AccountResponse, error) {
	a, err := s.svc.GetAccount(ctx)
	if err != nil {
		return nil, s.fail(ctx, "GetAccount", err)
	}
	return &api.AccountResponse{Account: a}, nil
}

func (s *GRPCServer) UpdateAccount(ctx context.Context, req *api.UpdateAccountRequest) (*api.AccountResponse, error) {
	a, err := s.svc.UpdateAccount(ctx, req.Account, req.OldVerifier)
	if err != nil {
		return nil, s.fail(ctx, "UpdateAccount", err)
	}
	return &api.AccountResponse{Account: a}, nil
}

func (s *GRPCServer) ListVaults(ctx context.Context, _ *api.Empty) (*api.ListVaultsResponse, error) {
	ids, err := s.svc.ListVaults(ctx)
	if err != nil {
		return nil, s.fail(ctx, "ListVaults", err)
	}
	return &api.ListVaultsResponse{VaultIDs: ids}, nil
}

func (s *GRPCServer) PushVault(ctx context.Context, req *api.VaultRequest) (*api.VaultResponse, error) {
	v, err := s.svc.PushVault(ctx, req.Vault)
	if err != nil {
		return nil, s.fail(ctx, "PushVault", err)
	}
	return &api.VaultResponse{Vault: v}, nil
}

func (s *GRPCServer) PullVault(ctx context.Context, req *api.PullVaultRequest) (*api.VaultResponse, error) {
	v, err := s.svc.PullVault(ctx, req.VaultID)
	if err != nil {
		return nil, s.fail(ctx, "PullVault", err)
	}
	return &api.VaultResponse{Vault: v}, nil
}

func (s *GRPCServer) CreateInvite(ctx context.Context, req *api.InviteRequest) (*api.InviteResponse, error) {
	inv, err := s.svc.CreateInvite(ctx, req.Invite)
	if err != nil {
		return nil, s.fail(ctx, "CreateInvite", err)
	}
	return &api.InviteResponse{Invite: inv}, nil
}

func (s *GRPCServer) GetInvite(ctx context.Context, req *api.GetInviteRequest) (*api.InviteResponse, error) {
	inv, err := s.svc.GetInvite(ctx, req.VaultID, req.InviteID, req.Token)
	if err != nil {
		return nil, s.fail(ctx, "GetInvite", err)
	}
	return &api.InviteResponse{Invite: inv}, nil
}

func (s *GRPCServer) ListInvites(ctx context.Context, req *api.ListInvitesRequest) (*api.ListInvitesResponse, error) {
	list, err := s.svc.ListInvites(ctx, req.VaultID)
	if err != nil {
		return nil, s.fail(ctx, "ListInvites", err)
	}
	return &api.ListInvitesResponse{Invites: list}, nil
}

func (s *GRPCServer) AcceptInvite(ctx context.Context, req *api.AcceptInviteRequest) (*api.InviteResponse, error) {
	inv, err := s.svc.AcceptInvite(ctx, req.VaultID, req.InviteID, req.Token, req.Invitee, req.Proof)
	if err != nil {
		return nil, s.fail(ctx, "AcceptInvite", err)
	}
	return &api.InviteResponse{Invite: inv}, nil
}

func (s *GRPCServer) UpdateInvite(ctx context.Context, req *api.UpdateInviteRequest) (*api.InviteResponse, error) {
	inv, err := s.svc.UpdateInvite(ctx, req.VaultID, req.InviteID, req.Status)
	if err != nil {
		return nil, s.fail(ctx, "UpdateInvite", err)
	}
	return &api.InviteResponse{Invite: inv}, nil
}
