// Package grpc is the server shell: one grpc service carrying both
// transports. The Session bidi stream is the connection-oriented
// transport (one stream is one session); the Exchange unary call is the
// datagram transport, where the session travels as a signed token in the
// call metadata instead of riding a connection.
package grpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/rpc"
	"github.com/dmitrijs2005/authgate/internal/server/audit"
	"github.com/dmitrijs2005/authgate/internal/server/gate"
	"github.com/dmitrijs2005/authgate/internal/server/sessions"
	"github.com/dmitrijs2005/authgate/internal/server/token"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

type GRPCServer struct {
	address       string
	authority     sessions.Authority
	handler       gate.Handler
	sink          *audit.Sink
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration

	// datagram session table: unary calls for one session may arrive
	// concurrently, so gates in here are only driven under mu.
	mu    sync.Mutex
	gates map[string]*gate.Gate
}

var _ rpc.AuthGateServer = (*GRPCServer)(nil)

func NewGRPCServer(address string, authority sessions.Authority, handler gate.Handler, sink *audit.Sink, secretKey string, tokenValidity time.Duration, logger logging.Logger) *GRPCServer {
	return &GRPCServer{
		address:       address,
		authority:     authority,
		handler:       handler,
		sink:          sink,
		logger:        logger.With("module", "grpc_server"),
		jwtSecret:     []byte(secretKey),
		tokenValidity: tokenValidity,
		gates:         make(map[string]*gate.Gate),
	}
}

// Run serves until the context is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.sessionTokenInterceptor))
	srv.RegisterService(&rpc.ServiceDesc, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// Session drives one connection-oriented session. The stream lifetime is
// the session lifetime: a stream that ends without a clean logout gets a
// forced logout so the identity does not stay online.
func (s *GRPCServer) Session(stream rpc.SessionStream) error {
	ctx := stream.Context()
	sessionID := uuid.NewString()

	g := gate.New(sessionID, peerAddr(ctx), s.authority, s.handler, s.sink, s.logger)
	s.logger.Debug(ctx, "session stream opened", "session_id", sessionID)

	clean := false
	defer func() {
		if !clean {
			s.authority.LogoutBySessionID(context.WithoutCancel(ctx), sessionID)
		}
		s.logger.Debug(ctx, "session stream closed", "session_id", sessionID, "clean", clean)
	}()

	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		resp, done := g.Perform(ctx, req)
		if err := stream.Send(resp); err != nil {
			return err
		}
		if done {
			clean = true
			return nil
		}
	}
}

// Exchange handles one datagram. A login mints a session and returns its
// signed token; every other request is routed to the gate of the session
// named in the verified token.
func (s *GRPCServer) Exchange(ctx context.Context, req *auth.Request) (*auth.Response, error) {
	if req.IsLogin() {
		return s.exchangeLogin(ctx, req), nil
	}

	sessionID, ok := sessionIDFromContext(ctx)
	if !ok {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthenticated}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gates[sessionID]
	if !ok {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthenticated}, nil
	}

	resp, done := g.Perform(ctx, req)
	if done || !s.authority.SessionValid(ctx, sessionID) {
		delete(s.gates, sessionID)
	}

	return resp, nil
}

func (s *GRPCServer) exchangeLogin(ctx context.Context, req *auth.Request) *auth.Response {
	sessionID := uuid.NewString()
	g := gate.New(sessionID, peerAddr(ctx), s.authority, s.handler, s.sink, s.logger)

	resp, _ := g.Perform(ctx, req)
	if !resp.OK {
		return resp
	}

	tok, err := token.Generate(sessionID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		s.logger.Error(ctx, "session token generation failed", "error", err)
		s.authority.LogoutBySessionID(ctx, sessionID)
		return &auth.Response{ID: req.ID, Explanation: auth.LoginFailed}
	}

	s.mu.Lock()
	s.reapDeadGatesLocked(ctx)
	s.gates[sessionID] = g
	s.mu.Unlock()

	resp.SessionToken = tok
	return resp
}

// reapDeadGatesLocked drops gates whose sessions the authority no longer
// recognizes (forced logouts, last-login-wins evictions).
func (s *GRPCServer) reapDeadGatesLocked(ctx context.Context) {
	for id := range s.gates {
		if !s.authority.SessionValid(ctx, id) {
			delete(s.gates, id)
		}
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
