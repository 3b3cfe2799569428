// Package dispatch implements the service handling behind the connection
// gate: the built-in operations a client can submit once the gate lets its
// requests through (plus login, which the gate forwards from the
// unauthenticated state).
package dispatch

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/credstore"
	"github.com/dmitrijs2005/authgate/internal/server/gate"
	"github.com/dmitrijs2005/authgate/internal/server/sessions"
)

// Dispatcher routes requests to the session authority and the credential
// store. Administrative operations (add_user, remove_user, set_password)
// are gated on the requesting session belonging to an administrator.
type Dispatcher struct {
	authority sessions.Authority
	store     credstore.Store
	logger    logging.Logger
}

var _ gate.Handler = (*Dispatcher)(nil)

func New(authority sessions.Authority, store credstore.Store, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		authority: authority,
		store:     store,
		logger:    logger.With("module", "dispatch"),
	}
}

// Handle executes one request on behalf of the given session and always
// returns a response carrying the request id.
func (d *Dispatcher) Handle(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	switch req.Kind {
	case auth.KindLogin:
		return d.login(ctx, req, sessionID)
	case auth.KindLogout:
		return d.logout(ctx, req, sessionID)
	case auth.KindWho:
		return d.who(ctx, req)
	case auth.KindLevel:
		return d.level(ctx, req)
	case auth.KindAddUser:
		return d.addUser(ctx, req, sessionID)
	case auth.KindRemoveUser:
		return d.removeUser(ctx, req, sessionID)
	case auth.KindSetPass:
		return d.setPassword(ctx, req, sessionID)
	default:
		d.logger.Warn(ctx, "unknown request kind", "kind", string(req.Kind))
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}
}

func (d *Dispatcher) login(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	if req.Entry == nil || !d.authority.Login(ctx, req.Entry, sessionID) {
		return &auth.Response{ID: req.ID, Explanation: auth.LoginFailed}
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.LoginSuccessful}
}

func (d *Dispatcher) logout(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	if req.Entry == nil || !d.authority.Logout(ctx, req.Entry, sessionID) {
		return &auth.Response{ID: req.ID, Explanation: auth.LogoutFailed}
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.LogoutSuccessful}
}

// who returns the online set. The authority itself gates it: the entry must
// revalidate and hold administrator level, otherwise the set is withheld.
func (d *Dispatcher) who(ctx context.Context, req *auth.Request) *auth.Response {
	if req.Entry == nil {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}
	users := d.authority.UsersLoggedIn(ctx, req.Entry)
	if users == nil {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.OKResponse, Users: users}
}

func (d *Dispatcher) level(ctx context.Context, req *auth.Request) *auth.Response {
	return &auth.Response{
		ID:          req.ID,
		OK:          true,
		Explanation: auth.OKResponse,
		Level:       d.authority.AccessLevel(ctx, req.TargetKey),
	}
}

func (d *Dispatcher) addUser(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	if req.Entry == nil || !d.requesterIsAdmin(ctx, sessionID) {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}

	added, err := d.authority.AddUser(ctx, req.Entry)
	if err != nil {
		d.logger.Error(ctx, "add user failed", "user_key", req.Entry.UserKey, "error", err)
		return &auth.Response{ID: req.ID, Explanation: auth.SaveFailed}
	}
	if !added {
		return &auth.Response{ID: req.ID, Explanation: auth.UserExists}
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.OKResponse}
}

// removeUser deletes the target entry and, once removal succeeded, forces
// its session out so a removed identity cannot keep an authenticated
// connection alive. A request that fails to validate leaves the target's
// session untouched.
func (d *Dispatcher) removeUser(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	if req.Entry == nil || !d.requesterIsAdmin(ctx, sessionID) {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}

	// Capture the session id first; removal wipes it along with the entry.
	sid := d.authority.SessionID(ctx, req.Entry)

	removed, err := d.authority.RemoveUser(ctx, req.Entry)
	if err != nil {
		d.logger.Error(ctx, "remove user failed", "user_key", req.Entry.UserKey, "error", err)
		return &auth.Response{ID: req.ID, Explanation: auth.SaveFailed}
	}
	if !removed {
		return &auth.Response{ID: req.ID, Explanation: auth.LoginFailed}
	}
	if sid != "" {
		d.authority.LogoutBySessionID(ctx, sid)
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.OKResponse}
}

func (d *Dispatcher) setPassword(ctx context.Context, req *auth.Request, sessionID string) *auth.Response {
	if req.Entry == nil || !d.requesterIsAdmin(ctx, sessionID) {
		return &auth.Response{ID: req.ID, Explanation: auth.NotAuthorized}
	}

	if err := d.store.UpdatePassword(ctx, req.Entry.UserKey, req.Entry.PasswordHash); err != nil {
		d.logger.Error(ctx, "set password failed", "user_key", req.Entry.UserKey, "error", err)
		return &auth.Response{ID: req.ID, Explanation: auth.SaveFailed}
	}
	return &auth.Response{ID: req.ID, OK: true, Explanation: auth.OKResponse}
}

func (d *Dispatcher) requesterIsAdmin(ctx context.Context, sessionID string) bool {
	key, ok := d.authority.UserKeyForSession(ctx, sessionID)
	if !ok {
		return false
	}
	return d.authority.AccessLevel(ctx, key) >= auth.Administrator
}
