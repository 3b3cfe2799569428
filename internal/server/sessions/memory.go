package sessions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/credstore"
)

type sessionRecord struct {
	sessionID string
	lastSeen  time.Time
}

// Memory keeps the online set in process, layered over any credential
// store (in practice the in-memory one).
type Memory struct {
	mu     sync.RWMutex
	store  credstore.Store
	online map[string]sessionRecord // identity key -> bound session
	byID   map[string]string        // session id -> identity key
	logger logging.Logger
}

var _ Authority = (*Memory)(nil)

// NewMemory builds an in-process authority over the given store.
func NewMemory(store credstore.Store, logger logging.Logger) *Memory {
	return &Memory{
		store:  store,
		online: make(map[string]sessionRecord),
		byID:   make(map[string]string),
		logger: logger.With("module", "sessions"),
	}
}

func (a *Memory) Login(ctx context.Context, entry *auth.User, sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.store.IsValid(ctx, entry) {
		a.logger.Debug(ctx, "login rejected", "user_key", entry.UserKey)
		return false
	}

	// last login wins: drop any earlier binding for this identity
	if prev, ok := a.online[entry.UserKey]; ok {
		delete(a.byID, prev.sessionID)
	}

	a.online[entry.UserKey] = sessionRecord{sessionID: sessionID, lastSeen: time.Now()}
	a.byID[sessionID] = entry.UserKey

	a.store.SetUID(ctx, entry)
	entry.BindSession(sessionID)

	return true
}

func (a *Memory) Logout(ctx context.Context, entry *auth.User, sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.online[entry.UserKey]
	if !ok || rec.sessionID != sessionID {
		return false
	}

	delete(a.online, entry.UserKey)
	delete(a.byID, sessionID)
	entry.ClearSession()

	return true
}

func (a *Memory) LogoutBySessionID(ctx context.Context, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key, ok := a.byID[sessionID]
	if !ok {
		return
	}

	delete(a.online, key)
	delete(a.byID, sessionID)
}

func (a *Memory) IsLoggedIn(ctx context.Context, userKey string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.online[strings.ToLower(userKey)]
	return ok
}

func (a *Memory) SessionValid(ctx context.Context, sessionID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.byID[sessionID]
	return ok
}

func (a *Memory) SessionID(ctx context.Context, entry *auth.User) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.online[entry.UserKey].sessionID
}

func (a *Memory) UserKeyForSession(ctx context.Context, sessionID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	key, ok := a.byID[sessionID]
	return key, ok
}

func (a *Memory) UsersLoggedIn(ctx context.Context, requester *auth.User) []string {
	if a.lookupUserLevel(ctx, requester) < auth.Administrator {
		return nil
	}

	a.mu.RLock()
	keys := make([]string, 0, len(a.online))
	for key := range a.online {
		keys = append(keys, key)
	}
	a.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// lookupUserLevel returns the requester's access level only when the
// credential itself validates; an unauthenticated requester has no level.
func (a *Memory) lookupUserLevel(ctx context.Context, requester *auth.User) int {
	if !a.store.IsValid(ctx, requester) {
		return credstore.UnknownLevel
	}
	return a.store.AccessLevel(ctx, requester.UserKey)
}

func (a *Memory) AddUser(ctx context.Context, entry *auth.User) (bool, error) {
	return a.store.AddUser(ctx, entry)
}

func (a *Memory) RemoveUser(ctx context.Context, entry *auth.User) (bool, error) {
	return a.store.RemoveUser(ctx, entry)
}

func (a *Memory) AccessLevel(ctx context.Context, userKey string) int {
	return a.store.AccessLevel(ctx, strings.ToLower(userKey))
}
