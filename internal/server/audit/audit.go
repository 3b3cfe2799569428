// Package audit records authentication activity. Every login and logout
// attempt, successful or not, produces an Op that is fanned out to the
// registered listeners in registration order.
package audit

import (
	"context"
	"sync"
	"time"
)

// Action identifies the kind of authentication event.
type Action string

const (
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
)

// Op is a single authentication event.
type Op struct {
	UserKey         string `json:"user_key"`
	Action          Action `json:"action"`
	Response        string `json:"response"`
	IPAddress       string `json:"ip_address"`
	TimestampMillis int64  `json:"timestamp_millis"`
}

// Succeeded reports whether the attempt the op describes was accepted.
func (op Op) Succeeded(successResponse string) bool {
	return op.Response == successResponse
}

// Listener receives ops as they happen. Implementations must not block.
type Listener interface {
	AuthOp(ctx context.Context, op Op)
}

// Sink fans ops out to listeners. The zero value is usable.
type Sink struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewSink(listeners ...Listener) *Sink {
	return &Sink{listeners: listeners}
}

// Register appends a listener. Listeners are invoked in registration order.
func (s *Sink) Register(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Log stamps the op with the current time if unset and delivers it.
func (s *Sink) Log(ctx context.Context, op Op) {
	if op.TimestampMillis == 0 {
		op.TimestampMillis = time.Now().UnixMilli()
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, l := range listeners {
		l.AuthOp(ctx, op)
	}
}
