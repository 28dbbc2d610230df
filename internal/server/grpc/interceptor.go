package grpc

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func accessToken(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// accessTokenInterceptor authenticates every non-public method and puts
// the account id on the context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if rpc.PublicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := accessToken(ctx)
	if len(token) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	accountID, err := s.svc.Authenticate(ctx, token)
	if err != nil {
		s.logger.Warn(ctx, "rejected token", "method", info.FullMethod, "error", err)
		return nil, rpc.ToStatus(err)
	}

	return handler(auth.WithAccountID(ctx, accountID), req)
}
