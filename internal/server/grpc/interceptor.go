package grpc

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/rpc"
	"github.com/dmitrijs2005/authgate/internal/server/token"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const sessionIDKey ctxKey = "sessionID"

// sessionTokenInterceptor verifies the session token on Exchange calls and
// puts the session id it names into the context. A call without a token
// passes through: login needs none, and everything else is refused further
// down without a session id.
func (s *GRPCServer) sessionTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if info.FullMethod == rpc.ExchangeMethod {

		var sessionToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.SessionTokenHeaderName)
			if len(values) > 0 {
				sessionToken = values[0]
			}
		}

		if len(sessionToken) > 0 {
			sessionID, err := token.SessionIDFromToken(sessionToken, s.jwtSecret)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, "invalid session token")
			}
			ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		}
	}

	return handler(ctx, req)
}

func sessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	return sessionID, ok
}
