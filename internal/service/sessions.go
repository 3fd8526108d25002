package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// SessionService issues and checks opaque admin session tokens. Sessions
// live in process memory and are lost on restart.
type SessionService struct {
	password []byte
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time

	now func() time.Time
}

// NewSessionService creates a session service for the configured admin
// password. An empty password disables admin login. A ttl of zero keeps
// sessions for the life of the process.
func NewSessionService(password string, ttl time.Duration) *SessionService {
	return &SessionService{
		password: []byte(password),
		ttl:      ttl,
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// LoginEnabled reports whether an admin password is configured.
func (s *SessionService) LoginEnabled() bool { return len(s.password) > 0 }

// VerifyAdminPassword compares password with the configured secret in
// constant time.
func (s *SessionService) VerifyAdminPassword(password string) bool {
	if len(s.password) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), s.password) == 1
}

// CreateAdminSession issues a new 64-character hex token.
func (s *SessionService) CreateAdminSession() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.sessions[token] = s.now()
	s.mu.Unlock()
	return token, nil
}

// VerifyAdminToken reports whether token is a live session. Expired
// sessions are evicted on sight.
func (s *SessionService) VerifyAdminToken(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.expired(created, s.now()) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// RevokeAdminSession ends a session and reports whether it existed.
func (s *SessionService) RevokeAdminSession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// Sweep evicts every session that has expired by now and returns how many
// were removed.
func (s *SessionService) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, created := range s.sessions {
		if s.expired(created, now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// Len returns the number of tracked sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) expired(created, now time.Time) bool {
	return s.ttl > 0 && now.Sub(created) >= s.ttl
}
