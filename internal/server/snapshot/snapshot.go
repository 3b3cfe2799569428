// Package snapshot persists the in-memory backend's serialized credential
// list. A Store reads the list at load time and writes it back at save
// boundaries; the encoding of the list itself is owned by the caller.
package snapshot

import "context"

// Store loads and saves one opaque snapshot blob.
type Store interface {
	// Load returns the current snapshot, or common.ErrorNotFound when no
	// snapshot has been written yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the snapshot.
	Save(ctx context.Context, data []byte) error
}
