package auth

import (
	"sync"
	"time"
)

// TokenRevocationStore remembers the jti of every token signed out before
// its expiry. An entry is useless once its token has expired, so entries
// are swept on a timer.
type TokenRevocationStore struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// NewTokenRevocationStore sweeps expired entries every interval until Close.
func NewTokenRevocationStore(interval time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		revoked: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-t.C:
				s.cleanup(now)
			}
		}
	}()
	return s
}

// Revoke ignores tokens without a jti.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	s.mu.Lock()
	s.revoked[jti] = expiresAt
	s.mu.Unlock()
}

func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	s.mu.Lock()
	_, ok := s.revoked[jti]
	s.mu.Unlock()
	return ok
}

func (s *TokenRevocationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revoked)
}

func (s *TokenRevocationStore) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

func (s *TokenRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
}
