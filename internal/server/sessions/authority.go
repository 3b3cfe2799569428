// Package sessions layers online/session semantics over a credential store:
// which identities are currently bound to a live session, and under which
// session id. Two implementations mirror the store split (Postgres persists
// the online state in the same table; Memory keeps it in process), sharing
// one contract.
//
// An authority composes a store by reference; it never duplicates it.
// Mutating operations hold a per-authority lock for their full duration, so
// login and logout are atomic with respect to each other for a given store.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/auth"
)

// Authority tracks the sessionID ↔ identityKey association for online
// identities. A session id is valid iff it currently maps to exactly one
// online identity. Logging the same identity in twice with different
// session ids is permitted: the last login wins.
type Authority interface {
	// Login authenticates the entry against the store and, on success,
	// marks the identity online, binds sessionID (overwriting any earlier
	// binding for the identity), and reconciles the entry's UID. Fails
	// closed: false unless the store validates the credential. Login never
	// creates identities.
	Login(ctx context.Context, entry *auth.User, sessionID string) bool

	// Logout clears the online state only when sessionID matches the
	// identity's currently bound session; one session cannot log out
	// another's.
	Logout(ctx context.Context, entry *auth.User, sessionID string) bool

	// LogoutBySessionID unconditionally clears whatever identity owns the
	// session id. The forced-cleanup path for dropped connections;
	// idempotent.
	LogoutBySessionID(ctx context.Context, sessionID string)

	// IsLoggedIn reports whether the identity key is currently online.
	IsLoggedIn(ctx context.Context, userKey string) bool

	// SessionValid reports whether some identity is bound to the session id.
	SessionValid(ctx context.Context, sessionID string) bool

	// SessionID returns the entry's bound session id, or "" when offline.
	SessionID(ctx context.Context, entry *auth.User) string

	// UserKeyForSession resolves a session id back to its identity key.
	UserKeyForSession(ctx context.Context, sessionID string) (string, bool)

	// UsersLoggedIn returns the sorted online set, but only when the
	// requester is a valid credential at or above the administrator level.
	// Returns nil otherwise: an authorization gate, not an error.
	UsersLoggedIn(ctx context.Context, requester *auth.User) []string

	// AddUser delegates to the underlying store.
	AddUser(ctx context.Context, entry *auth.User) (bool, error)

	// RemoveUser delegates to the underlying store. Callers should log the
	// identity out at or before removal; this layer does not enforce it.
	RemoveUser(ctx context.Context, entry *auth.User) (bool, error)

	// AccessLevel delegates to the underlying store.
	AccessLevel(ctx context.Context, userKey string) int
}
