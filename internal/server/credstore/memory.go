package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/snapshot"
)

// Memory stores credentials in a process-local map keyed by identity key.
// It can be seeded from a serialized list at construction and flushed back
// on Save. The mutex gives the same single-writer-at-a-time discipline as
// the relational backend, so higher layers cannot depend on a specific
// backend.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]*auth.User
	nextUID int64
	snap    snapshot.Store
	logger  logging.Logger
}

var _ Store = (*Memory)(nil)

// NewMemory builds an in-memory store. When snap is non-nil the store seeds
// itself from the snapshot's serialized user list; an absent snapshot just
// means an empty store.
func NewMemory(ctx context.Context, snap snapshot.Store, logger logging.Logger) (*Memory, error) {
	s := &Memory{
		users:   make(map[string]*auth.User),
		nextUID: 1,
		snap:    snap,
		logger:  logger.With("module", "credstore"),
	}

	if snap == nil {
		return s, nil
	}

	data, err := snap.Load(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("load credential snapshot: %w", err)
	}

	var list []*auth.User
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode credential snapshot: %w", err)
	}

	for _, u := range list {
		u.SetUserKey(u.UserKey)
		s.users[u.UserKey] = u
		if u.UID >= s.nextUID {
			s.nextUID = u.UID + 1
		}
	}

	return s, nil
}

func (s *Memory) AddUser(ctx context.Context, entry *auth.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[entry.UserKey]; ok {
		return false, nil
	}

	entry.UID = s.nextUID
	s.nextUID++

	stored := *entry
	stored.ClearSession()
	s.users[entry.UserKey] = &stored

	return true, nil
}

func (s *Memory) Contains(ctx context.Context, entry *auth.User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[entry.UserKey]
	return ok
}

func (s *Memory) IsValid(ctx context.Context, entry *auth.User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isValidLocked(entry)
}

// isValidLocked fetches the stored hash and compares the entry's current
// hash against it, mirroring the relational backend's comparison order.
func (s *Memory) isValidLocked(entry *auth.User) bool {
	if entry.PasswordHash == "" {
		return false
	}

	stored, ok := s.users[entry.UserKey]
	if !ok {
		return false
	}

	return entry.CompareHash(stored.PasswordHash)
}

func (s *Memory) AccessLevel(ctx context.Context, userKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.users[userKey]
	if !ok {
		return UnknownLevel
	}
	return stored.Level
}

func (s *Memory) RemoveUser(ctx context.Context, entry *auth.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isValidLocked(entry) {
		return false, nil
	}

	delete(s.users, entry.UserKey)
	return true, nil
}

func (s *Memory) SetUID(ctx context.Context, entry *auth.User) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.users[entry.UserKey]; ok {
		entry.UID = stored.UID
	}
}

func (s *Memory) UpdatePassword(ctx context.Context, userKey string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[strings.ToLower(userKey)]
	if !ok {
		return &SaveError{Op: "update password", Err: common.ErrorNotFound}
	}

	stored.PasswordHash = strings.TrimSpace(newHash)
	return nil
}

// Save serializes the user list (sorted by key) back to the snapshot store.
// A no-op when the store was built without one.
func (s *Memory) Save(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}

	// Snapshot a copy of each entry while holding the lock; marshaling the
	// live pointers would race with UpdatePassword.
	s.mu.RLock()
	list := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		list = append(list, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })

	data, err := json.Marshal(list)
	if err != nil {
		return &SaveError{Op: "encode snapshot", Err: err}
	}

	if err := s.snap.Save(ctx, data); err != nil {
		s.logger.Error(ctx, "snapshot save failed", "error", err)
		return &SaveError{Op: "save snapshot", Err: err}
	}

	return nil
}
