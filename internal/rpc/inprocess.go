package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// InProcess is a grpc.ClientConnInterface that dispatches unary calls
// straight to a Server. Requests and replies are encoded with the JSON
// codec on the way, so caller and server never share memory. Outgoing
// metadata becomes incoming metadata and the server interceptor runs as
// it would over the network.
type InProcess struct {
	srv         Server
	interceptor grpc.UnaryServerInterceptor
	methods     map[string]grpc.MethodDesc
}

var _ grpc.ClientConnInterface = (*InProcess)(nil)

func NewInProcess(srv Server, interceptor grpc.UnaryServerInterceptor) *InProcess {
	methods := make(map[string]grpc.MethodDesc, len(ServiceDesc.Methods))
	for _, m := range ServiceDesc.Methods {
		methods[FullMethod(m.MethodName)] = m
	}
	return &InProcess{srv: srv, interceptor: interceptor, methods: methods}
}

func (c *InProcess) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	desc, ok := c.methods[method]
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}

	codec := jsonCodec{}
	payload, err := codec.Marshal(args)
	if err != nil {
		return status.Errorf(codes.Internal, "marshal request: %v", err)
	}

	md, _ := metadata.FromOutgoingContext(ctx)
	sctx := metadata.NewIncomingContext(ctx, md.Copy())
	dec := func(v any) error { return codec.Unmarshal(payload, v) }

	out, err := desc.Handler(c.srv, sctx, dec, c.interceptor)
	if err != nil {
		if _, ok := status.FromError(err); !ok {
			err = ToStatus(err)
		}
		return err
	}

	b, err := codec.Marshal(out)
	if err != nil {
		return status.Errorf(codes.Internal, "marshal reply: %v", err)
	}
	if err := codec.Unmarshal(b, reply); err != nil {
		return status.Errorf(codes.Internal, "unmarshal reply: %v", err)
	}
	return nil
}

func (c *InProcess) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Error(codes.Unimplemented, "streams are not supported")
}
