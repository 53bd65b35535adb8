package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired tokens.
var ErrSessionNotFound = errors.New("session not found or expired")

// Session is an authenticated dashboard session.
type Session struct {
	Token     string    `json:"token"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions is an in-memory session table. Expired sessions are removed
// lazily on Create and Lookup.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
	m  map[string]Session
}

// NewSessions creates a table whose sessions live for ttl (default 12h).
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Sessions{ttl: ttl, now: time.Now, m: make(map[string]Session)}
}

// Create starts a session for login.
func (s *Sessions) Create(login string) Session {
	now := s.now()
	sess := Session{
		Token:     uuid.NewString(),
		Login:     login,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.prune(now)
	s.m[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Lookup returns the live session for token.
func (s *Sessions) Lookup(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !now.Before(sess.ExpiresAt) {
		delete(s.m, token)
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Revoke ends the session for token. Unknown tokens are ignored.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.m, token)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included until
// they are pruned.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Sessions) prune(now time.Time) {
	for k, v := range s.m {
		if !now.Before(v.ExpiresAt) {
			delete(s.m, k)
		}
	}
}
