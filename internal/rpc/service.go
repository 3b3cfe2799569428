package rpc

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"google.golang.org/grpc"
)

const (
	ServiceName = "authgate.v1.AuthGate"

	ExchangeMethod = "/" + ServiceName + "/Exchange"
	SessionMethod  = "/" + ServiceName + "/Session"
)

// AuthGateServer is the server-side contract behind the service
// descriptor. Exchange carries one datagram-style request; Session is a
// bidirectional stream where the stream lifetime is the session lifetime.
type AuthGateServer interface {
	Exchange(ctx context.Context, req *auth.Request) (*auth.Response, error)
	Session(stream SessionStream) error
}

// SessionStream is the server view of one session stream.
type SessionStream interface {
	Send(*auth.Response) error
	Recv() (*auth.Request, error)
	Context() context.Context
}

type sessionStream struct {
	grpc.ServerStream
}

func (s *sessionStream) Send(resp *auth.Response) error {
	return s.ServerStream.SendMsg(resp)
}

func (s *sessionStream) Recv() (*auth.Request, error) {
	req := new(auth.Request)
	if err := s.ServerStream.RecvMsg(req); err != nil {
		return nil, err
	}
	return req, nil
}

func exchangeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(auth.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthGateServer).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthGateServer).Exchange(ctx, req.(*auth.Request))
	}
	return interceptor(ctx, in, info, handler)
}

func sessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(AuthGateServer).Session(&sessionStream{stream})
}

// ServiceDesc is registered on the grpc server in place of generated code.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthGateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Exchange", Handler: exchangeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Session", Handler: sessionHandler, ServerStreams: true, ClientStreams: true},
	},
}
