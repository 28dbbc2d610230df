package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// DefaultRequestTimeout applies when a client is built with a zero timeout.
const DefaultRequestTimeout = 10 * time.Second

// GRPCClient is a Transport over a grpc.ClientConnInterface. It holds no
// session state: the access token travels in the outgoing metadata of
// each call's context.
type GRPCClient struct {
	*rpc.Client

	conn    *grpc.ClientConn
	timeout time.Duration
}

// withAccessToken returns ctx with token as the only access token header.
func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// timeoutInterceptor gives calls without a deadline the client timeout.
func (s *GRPCClient) timeoutInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func newGRPCClient(timeout time.Duration) *GRPCClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &GRPCClient{timeout: timeout}
}

// NewGRPCClient connects to a server at endpointURL. The connection is
// established lazily on the first call.
func NewGRPCClient(endpointURL string, timeout time.Duration) (*GRPCClient, error) {
	c := newGRPCClient(timeout)

	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.timeoutInterceptor))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.Client = rpc.NewClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
