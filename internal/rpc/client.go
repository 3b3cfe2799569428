package rpc

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"google.golang.org/grpc"
)

// Client is a thin typed wrapper over a grpc connection. Every call pins
// the JSON codec via the content-subtype option.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Exchange(ctx context.Context, req *auth.Request, opts ...grpc.CallOption) (*auth.Response, error) {
	out := new(auth.Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ExchangeMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionClient is the client view of one session stream.
type SessionClient interface {
	Send(*auth.Request) error
	Recv() (*auth.Response, error)
	CloseSend() error
}

var sessionStreamDesc = &grpc.StreamDesc{
	StreamName:    "Session",
	ServerStreams: true,
	ClientStreams: true,
}

func (c *Client) Session(ctx context.Context, opts ...grpc.CallOption) (SessionClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, sessionStreamDesc, SessionMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &sessionClient{stream}, nil
}

type sessionClient struct {
	grpc.ClientStream
}

func (s *sessionClient) Send(req *auth.Request) error {
	return s.ClientStream.SendMsg(req)
}

func (s *sessionClient) Recv() (*auth.Response, error) {
	resp := new(auth.Response)
	if err := s.ClientStream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
