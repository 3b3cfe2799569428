// Package credstore abstracts durable credential storage as a keyed list of
// users. Two interchangeable backends exist: Postgres (a single relational
// table) and Memory (a process-local map, optionally seeded from and flushed
// to a serialized snapshot). Both present identical behavior to callers.
//
// Stores must never be duplicated; that is a security policy, not a style
// preference. Neither backend has a clone operation and both embed a mutex,
// so copying a store value is rejected by go vet's copylocks check.
package credstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/auth"
)

// UnknownLevel is returned by AccessLevel when the identity key is absent
// or the backend cannot be read; the read path does not distinguish the
// two.
const UnknownLevel = -1

// Store is the capability interface over a credential backend. Every
// operation runs in its own critical section per store instance: at most
// one proceeds at a time, so read-modify-write sequences never interleave.
type Store interface {
	// AddUser inserts the entry and assigns its UID from the backend.
	// Returns false without mutating anything when the key already exists.
	// Persistence faults surface as *SaveError.
	AddUser(ctx context.Context, entry *auth.User) (bool, error)

	// Contains reports whether an entry with the same identity key exists.
	Contains(ctx context.Context, entry *auth.User) bool

	// IsValid reports whether the key exists and the stored hash matches
	// the entry's current hash. The comparison is hash-to-hash; stored
	// values are never re-hashed.
	IsValid(ctx context.Context, entry *auth.User) bool

	// AccessLevel returns the stored level for the key, or UnknownLevel.
	AccessLevel(ctx context.Context, userKey string) int

	// RemoveUser deletes the entry only if IsValid holds for it (callers
	// must authenticate to delete). Returns false without mutation
	// otherwise. Persistence faults surface as *SaveError.
	RemoveUser(ctx context.Context, entry *auth.User) (bool, error)

	// SetUID copies the backend-assigned uid for the entry's key onto the
	// entry. A no-op when the key is absent.
	SetUID(ctx context.Context, entry *auth.User)

	// UpdatePassword writes a new password hash for the given key. An
	// administrative reset: no prior validation required. The caller
	// supplies the hash; plaintext never reaches the store.
	UpdatePassword(ctx context.Context, userKey string, newHash string) error

	// Save flushes buffered state to the backing form. A no-op for
	// backends that write immediately.
	Save(ctx context.Context) error
}

// SaveError is the typed failure raised by mutating store operations when
// the persistence layer rejects a write or is unreachable. Read-path faults
// degrade to negative results instead.
type SaveError struct {
	Op  string
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed: %s: %v", e.Op, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
