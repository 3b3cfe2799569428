// Package gate holds the per-connection authentication state machine.
// A Gate sits between a transport endpoint and the service handler: until
// a login succeeds, only login requests reach the handler; everything else
// is refused at the gate. A gate is owned by a single connection and is
// not safe for concurrent use.
package gate

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/audit"
	"github.com/dmitrijs2005/authgate/internal/server/sessions"
)

// Handler is the service layer behind the gate. The session id identifies
// the connection the request arrived on.
type Handler interface {
	Handle(ctx context.Context, req *auth.Request, sessionID string) *auth.Response
}

// Gate tracks whether its connection has authenticated and filters
// requests accordingly. Authentication is re-checked against the session
// authority on every request, so an out-of-band invalidation (an admin
// forcing the session out) takes effect on the next message.
type Gate struct {
	sessionID     string
	addr          string
	authority     sessions.Authority
	handler       Handler
	sink          *audit.Sink
	logger        logging.Logger
	authenticated bool
	userKey       string
}

// New builds a gate for one connection. The address is recorded in audit
// ops for every attempt made through this gate.
func New(sessionID, addr string, authority sessions.Authority, handler Handler, sink *audit.Sink, logger logging.Logger) *Gate {
	return &Gate{
		sessionID: sessionID,
		addr:      addr,
		authority: authority,
		handler:   handler,
		sink:      sink,
		logger:    logger.With("module", "gate", "session_id", sessionID),
	}
}

// SessionID returns the session id this gate was minted for.
func (g *Gate) SessionID() string {
	return g.sessionID
}

// Authenticated reports whether the last Perform left the gate open.
func (g *Gate) Authenticated() bool {
	return g.authenticated
}

// Perform routes one request. The returned done flag tells the transport
// the connection finished cleanly (a successful logout) and should be
// closed without a forced logout.
func (g *Gate) Perform(ctx context.Context, req *auth.Request) (*auth.Response, bool) {
	if g.authenticated && g.authority.SessionValid(ctx, g.sessionID) {
		return g.performAuthenticated(ctx, req)
	}

	// An invalidated session is indistinguishable from one that never
	// logged in: drop the flag and require a fresh login.
	g.authenticated = false

	if !req.IsLogin() {
		g.logger.Debug(ctx, "request refused", "kind", string(req.Kind))
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthenticated}, false
	}

	resp := g.handler.Handle(ctx, req, g.sessionID)
	if resp.OK {
		g.authenticated = true
		if req.Entry != nil {
			g.userKey = req.Entry.UserKey
		}
	}

	g.audit(ctx, req, audit.ActionLogin, resp.Explanation)
	return resp, false
}

func (g *Gate) performAuthenticated(ctx context.Context, req *auth.Request) (*auth.Response, bool) {
	resp := g.handler.Handle(ctx, req, g.sessionID)

	if !req.IsLogout() {
		return resp, false
	}

	g.audit(ctx, req, audit.ActionLogout, resp.Explanation)
	if !resp.OK {
		return resp, false
	}

	g.authenticated = false
	return resp, true
}

func (g *Gate) audit(ctx context.Context, req *auth.Request, action audit.Action, response string) {
	key := g.userKey
	if req.Entry != nil {
		key = req.Entry.UserKey
	}
	g.sink.Log(ctx, audit.Op{
		UserKey:   key,
		Action:    action,
		Response:  response,
		IPAddress: g.addr,
	})
}
