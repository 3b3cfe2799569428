package snapshot

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/cryptox"
)

// Snapshot files can end up on shared volumes or in object storage, so the
// blob is never written in the clear.
var sealSalt = []byte("authgate.snapshot.v1")

// Sealed wraps another Store and encrypts every snapshot at rest. The key
// is derived from the server secret, so changing the secret invalidates
// previously written snapshots.
type Sealed struct {
	inner Store
	key   []byte
}

var _ Store = (*Sealed)(nil)

func NewSealed(inner Store, secret []byte) *Sealed {
	return &Sealed{inner: inner, key: cryptox.DeriveKey(secret, sealSalt)}
}

func (s *Sealed) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	data, err := cryptox.Open(blob, s.key)
	if err != nil {
		return nil, fmt.Errorf("unseal snapshot: %w", err)
	}
	return data, nil
}

func (s *Sealed) Save(ctx context.Context, data []byte) error {
	blob, err := cryptox.Seal(data, s.key)
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	return s.inner.Save(ctx, blob)
}
