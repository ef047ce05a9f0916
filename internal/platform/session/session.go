// Package session holds the authenticated operator and bearer token. A single
// Session is created at start-up and handed to both the HTTP client (which
// reads the token and clears it on 401) and the terminal layer (which sets it
// on login). There is no package-level instance.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// User is the operator returned by the login endpoint.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Store persists the token between runs.
type Store interface {
	Load() (*Snapshot, error)
	Save(s *Snapshot) error
	Clear() error
}

type Session struct {
	mu        sync.RWMutex
	token     string
	user      *User
	store     Store
	now       func() time.Time
	listeners []func(authenticated bool)
}

// New creates an empty session backed by store. A nil store keeps the
// session in memory only.
func New(store Store) *Session {
	return &Session{store: store, now: time.Now}
}

// Restore loads a previously persisted token, if any.
func (s *Session) Restore() error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if snap == nil || snap.Token == "" {
		return nil
	}
	s.mu.Lock()
	s.token = snap.Token
	s.user = snap.User
	s.mu.Unlock()
	return nil
}

// SetAuth stores the token and user after a successful login.
func (s *Session) SetAuth(token string, user *User) error {
	if token == "" {
		return errors.New("set auth: empty token")
	}
	s.mu.Lock()
	s.token = token
	s.user = user
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(&Snapshot{Token: token, User: user}); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	for _, fn := range listeners {
		fn(true)
	}
	return nil
}

// ClearAuth forgets the token in memory and on disk. Clearing an empty
// session is not an error.
func (s *Session) ClearAuth() error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.user = nil
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}
	if had {
		for _, fn := range listeners {
			fn(false)
		}
	}
	return nil
}

// OnChange registers fn to be called after SetAuth and after a ClearAuth
// that actually dropped a token.
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether a token is present and, for JWTs, not yet
// expired. Opaque tokens are trusted until the server answers 401.
func (s *Session) Authenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return s.now().Before(exp)
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key; the server remains the authority.
func ExpiresAt(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
