// Package session supplies the bearer credential and reports when the admin
// session starts and ends. The sync layer only reacts to transitions.
package session

import (
	"strings"
	"sync"
)

// Provider is the external collaborator that owns the authenticated state.
type Provider interface {
	// IsAuthenticated reports whether a credential is currently available.
	IsAuthenticated() bool
	// Token returns the current bearer token, empty when unauthenticated.
	Token() string
	// Changes delivers the authenticated flag after each transition. Only the
	// latest value is kept for a slow reader.
	Changes() <-chan bool
	// Invalidate discards the credential, e.g. after the server answered 401.
	Invalidate()
	Close() error
}

// state holds the token and coalesces transitions into a one-slot channel.
type state struct {
	mu      sync.RWMutex
	token   string
	changes chan bool
}

func (s *state) init(token string) {
	s.token = strings.TrimSpace(token)
	s.changes = make(chan bool, 1)
}

func (s *state) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *state) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *state) Changes() <-chan bool {
	return s.changes
}

// set stores token and reports whether the authenticated flag flipped.
func (s *state) set(token string) bool {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.token != ""
	s.token = token
	now := token != ""
	if was == now {
		return false
	}
	// Replace any unread value so the reader always sees the latest flag
	select {
	case <-s.changes:
	default:
	}
	s.changes <- now
	return true
}

// Static is a Provider whose token is set programmatically.
type Static struct {
	state
}

// NewStatic creates a Static provider, authenticated when token is non-empty.
func NewStatic(token string) *Static {
	s := &Static{}
	s.init(token)
	return s
}

// SetToken replaces the token. An empty token logs the session out.
func (s *Static) SetToken(token string) {
	s.set(token)
}

// Invalidate clears the token.
func (s *Static) Invalidate() {
	s.set("")
}

// Close implements Provider.
func (s *Static) Close() error {
	return nil
}
