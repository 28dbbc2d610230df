package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"google.golang.org/grpc"
)

// intercepted applies a client interceptor to calls on a connection that
// is not a *grpc.ClientConn.
type intercepted struct {
	inner       grpc.ClientConnInterface
	interceptor grpc.UnaryClientInterceptor
}

func (c intercepted) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	invoker := func(ctx context.Context, method string, req, reply any, _ *grpc.ClientConn, opts ...grpc.CallOption) error {
		return c.inner.Invoke(ctx, method, req, reply, opts...)
	}
	return c.interceptor(ctx, method, args, reply, nil, invoker, opts...)
}

func (c intercepted) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.inner.NewStream(ctx, desc, method, opts...)
}

// NewDirectClient returns a Transport that calls srv in process. Messages
// still go through the wire codec and interceptor runs as the server's
// authentication step, so behaviour matches a network client.
func NewDirectClient(srv rpc.Server, interceptor grpc.UnaryServerInterceptor, timeout time.Duration) *GRPCClient {
	c := newGRPCClient(timeout)
	conn := intercepted{
		inner:       rpc.NewInProcess(srv, interceptor),
		interceptor: c.timeoutInterceptor,
	}
	c.Client = rpc.NewClient(conn)
	return c
}
