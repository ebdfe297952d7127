// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an admin session lasts.
const DefaultSessionTTL = 24 * time.Hour

// ErrSessionNotFound is returned for unknown or expired tokens.
var ErrSessionNotFound = errors.New("session not found")

// Session is an authenticated admin session.
type Session struct {
	Token     string
	User      string
	ExpiresAt time.Time
}

// SessionStore keeps admin sessions.
type SessionStore interface {
	Create(ctx context.Context, user string) (Session, error)
	// Lookup returns the user of a live session or ErrSessionNotFound.
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// NewToken returns a random URL-safe session token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SessionID derives a stable, loggable identifier from a token.
func SessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "s_" + hex.EncodeToString(sum[:])[:16]
}

type memorySession struct {
	user      string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired sessions are
// removed when looked up.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{sessions: make(map[string]memorySession), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, user string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	exp := s.now().Add(s.ttl)
	s.mu.Lock()
	s.sessions[token] = memorySession{user: user, expiresAt: exp}
	s.mu.Unlock()
	return Session{Token: token, User: user, ExpiresAt: exp}, nil
}

func (s *MemoryStore) Lookup(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", ErrSessionNotFound
	}
	return sess.user, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
