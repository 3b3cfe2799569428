package sessions

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/credstore"
)

// Postgres persists the online flag, bound session id and last-online
// timestamp in the study_user table, alongside the credentials themselves.
// It composes the relational store for validation and delegation; session
// updates go through its own handle.
type Postgres struct {
	mu     sync.Mutex
	db     dbx.DBTX
	store  credstore.Store
	logger logging.Logger
}

var _ Authority = (*Postgres)(nil)

// NewPostgres builds a database-backed authority over the given store.
func NewPostgres(db dbx.DBTX, store credstore.Store, logger logging.Logger) *Postgres {
	return &Postgres{db: db, store: store, logger: logger.With("module", "sessions")}
}

func (a *Postgres) Login(ctx context.Context, entry *auth.User, sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.store.IsValid(ctx, entry) {
		a.logger.Debug(ctx, "login rejected", "user_key", entry.UserKey)
		return false
	}

	query :=
		`UPDATE study_user SET online = TRUE, last_online = now(), session_id = $1
		 WHERE user_key = $2
		 `

	if _, err := a.db.ExecContext(ctx, query, sessionID, entry.UserKey); err != nil {
		a.logger.Error(ctx, "login update failed", "user_key", entry.UserKey, "error", err)
		return false
	}

	a.store.SetUID(ctx, entry)
	entry.BindSession(sessionID)

	return true
}

func (a *Postgres) Logout(ctx context.Context, entry *auth.User, sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, ok := a.userKeyForSession(ctx, sessionID)
	if !ok || owner != entry.UserKey {
		return false
	}

	query :=
		`UPDATE study_user SET online = FALSE, session_id = NULL
		 WHERE user_key = $1
		 `

	if _, err := a.db.ExecContext(ctx, query, entry.UserKey); err != nil {
		a.logger.Error(ctx, "logout update failed", "user_key", entry.UserKey, "error", err)
		return false
	}

	entry.ClearSession()
	return true
}

func (a *Postgres) LogoutBySessionID(ctx context.Context, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	query :=
		`UPDATE study_user SET online = FALSE, session_id = NULL
		 WHERE session_id = $1
		 `

	if _, err := a.db.ExecContext(ctx, query, sessionID); err != nil {
		a.logger.Error(ctx, "forced logout failed", "session_id", sessionID, "error", err)
	}
}

func (a *Postgres) IsLoggedIn(ctx context.Context, userKey string) bool {
	query := `SELECT online FROM study_user WHERE user_key = $1`

	var online bool
	err := a.db.QueryRowContext(ctx, query, strings.ToLower(userKey)).Scan(&online)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			a.logger.Warn(ctx, "online lookup failed", "user_key", userKey, "error", err)
		}
		return false
	}

	return online
}

func (a *Postgres) SessionValid(ctx context.Context, sessionID string) bool {
	_, ok := a.userKeyForSession(ctx, sessionID)
	return ok
}

func (a *Postgres) SessionID(ctx context.Context, entry *auth.User) string {
	query := `SELECT session_id FROM study_user WHERE user_key = $1`

	var sessionID sql.NullString
	err := a.db.QueryRowContext(ctx, query, entry.UserKey).Scan(&sessionID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			a.logger.Warn(ctx, "session lookup failed", "user_key", entry.UserKey, "error", err)
		}
		return ""
	}

	return sessionID.String
}

func (a *Postgres) UserKeyForSession(ctx context.Context, sessionID string) (string, bool) {
	return a.userKeyForSession(ctx, sessionID)
}

func (a *Postgres) userKeyForSession(ctx context.Context, sessionID string) (string, bool) {
	query := `SELECT user_key FROM study_user WHERE session_id = $1`

	var key string
	err := a.db.QueryRowContext(ctx, query, sessionID).Scan(&key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			a.logger.Warn(ctx, "session owner lookup failed", "error", err)
		}
		return "", false
	}

	return key, true
}

func (a *Postgres) UsersLoggedIn(ctx context.Context, requester *auth.User) []string {
	if a.lookupUserLevel(ctx, requester) < auth.Administrator {
		return nil
	}

	query := `SELECT user_key FROM study_user WHERE online = TRUE`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		a.logger.Warn(ctx, "online set lookup failed", "error", err)
		return []string{}
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			a.logger.Warn(ctx, "online set scan failed", "error", err)
			return []string{}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		a.logger.Warn(ctx, "online set iteration failed", "error", err)
	}

	sort.Strings(keys)
	return keys
}

func (a *Postgres) lookupUserLevel(ctx context.Context, requester *auth.User) int {
	if !a.store.IsValid(ctx, requester) {
		return credstore.UnknownLevel
	}
	return a.store.AccessLevel(ctx, requester.UserKey)
}

func (a *Postgres) AddUser(ctx context.Context, entry *auth.User) (bool, error) {
	return a.store.AddUser(ctx, entry)
}

func (a *Postgres) RemoveUser(ctx context.Context, entry *auth.User) (bool, error) {
	return a.store.RemoveUser(ctx, entry)
}

func (a *Postgres) AccessLevel(ctx context.Context, userKey string) int {
	return a.store.AccessLevel(ctx, strings.ToLower(userKey))
}
