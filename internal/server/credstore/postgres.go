package credstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
)

// Postgres stores credentials in the study_user table. Operations hold the
// store mutex for their full duration, including the database round trip, so
// callers get the same single-writer discipline the in-memory backend gives.
// Calls block for the round trip; do not invoke them on a thread that must
// stay responsive to unrelated connections.
type Postgres struct {
	mu     sync.Mutex
	db     dbx.DB
	logger logging.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres builds a Postgres store over the given handle.
func NewPostgres(db dbx.DB, logger logging.Logger) *Postgres {
	return &Postgres{db: db, logger: logger.With("module", "credstore")}
}

func (s *Postgres) AddUser(ctx context.Context, entry *auth.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retrieveUserLocked(ctx, entry.UserKey) != nil {
		return false, nil
	}

	query :=
		`INSERT INTO study_user (user_key, password, aux_user_data, level)
         VALUES ($1, $2, $3, $4)
		 RETURNING user_id
		 `

	var uid int64
	err := s.db.QueryRowContext(ctx, query,
		entry.UserKey, entry.PasswordHash, entry.AuxData, entry.Level).Scan(&uid)

	if err != nil {
		s.logger.Error(ctx, "insert user failed", "user_key", entry.UserKey, "error", err)
		return false, &SaveError{Op: "add user", Err: err}
	}

	entry.UID = uid
	return true, nil
}

func (s *Postgres) Contains(ctx context.Context, entry *auth.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retrieveUserLocked(ctx, entry.UserKey) != nil
}

func (s *Postgres) IsValid(ctx context.Context, entry *auth.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isValidLocked(ctx, s.db, entry)
}

// isValidLocked fetches the stored hash and compares the entry's current
// hash against it.
func (s *Postgres) isValidLocked(ctx context.Context, q dbx.DBTX, entry *auth.User) bool {
	if entry.PasswordHash == "" {
		return false
	}

	stored, ok := s.retrieveHashLocked(ctx, q, entry.UserKey)
	if !ok {
		return false
	}

	return entry.CompareHash(stored)
}

func (s *Postgres) AccessLevel(ctx context.Context, userKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.retrieveUserLocked(ctx, userKey)
	if found == nil {
		return UnknownLevel
	}
	return found.Level
}

// RemoveUser checks the entry's credentials and deletes the row. Both run
// in one transaction: the mutex only serializes this process, and another
// server instance on the same database could change the password between
// the check and the delete.
func (s *Postgres) RemoveUser(ctx context.Context, entry *auth.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if !s.isValidLocked(ctx, tx, entry) {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM study_user WHERE user_key = $1`, entry.UserKey); err != nil {
			return err
		}

		removed = true
		return nil
	})

	if err != nil {
		s.logger.Error(ctx, "delete user failed", "user_key", entry.UserKey, "error", err)
		return false, &SaveError{Op: "remove user", Err: err}
	}

	return removed, nil
}

func (s *Postgres) SetUID(ctx context.Context, entry *auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.retrieveUserLocked(ctx, entry.UserKey)
	if found != nil {
		entry.UID = found.UID
	}
}

func (s *Postgres) UpdatePassword(ctx context.Context, userKey string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(userKey)

	query := `UPDATE study_user SET password = $1 WHERE user_key = $2`

	res, err := s.db.ExecContext(ctx, query, strings.TrimSpace(newHash), key)
	if err != nil {
		s.logger.Error(ctx, "update password failed", "user_key", key, "error", err)
		return &SaveError{Op: "update password", Err: err}
	}

	// An update matching zero rows means the key is absent; report it the
	// same way the in-memory backend does.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &SaveError{Op: "update password", Err: common.ErrorNotFound}
	}

	return nil
}

// Save is a no-op: every mutation is written to the database immediately.
func (s *Postgres) Save(ctx context.Context) error {
	return nil
}

// retrieveUserLocked looks up a row by key and builds a User from it. The
// password hash is deliberately not populated; use retrieveHashLocked for
// validity checks. Read faults degrade to nil, since absence is a valid
// outcome for lookups.
func (s *Postgres) retrieveUserLocked(ctx context.Context, userKey string) *auth.User {
	query :=
		`SELECT user_id, user_key, aux_user_data, level FROM study_user
		 WHERE user_key = $1
		 `

	found := &auth.User{}
	err := s.db.QueryRowContext(ctx, query, userKey).
		Scan(&found.UID, &found.UserKey, &found.AuxData, &found.Level)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn(ctx, "user lookup failed", "user_key", userKey, "error", err)
		}
		return nil
	}

	return found
}

func (s *Postgres) retrieveHashLocked(ctx context.Context, q dbx.DBTX, userKey string) (string, bool) {
	query :=
		`SELECT password FROM study_user
		 WHERE user_key = $1
		 `

	var hash string
	err := q.QueryRowContext(ctx, query, userKey).Scan(&hash)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn(ctx, "hash lookup failed", "user_key", userKey, "error", err)
		}
		return "", false
	}

	return hash, true
}
