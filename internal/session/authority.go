package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gatekeep/internal/auth"
)

// sessionIDBytes is the number of random bytes backing a session ID.
const sessionIDBytes = 32

// DefaultIdleTTL bounds session lifetime when no TTL is configured.
const DefaultIdleTTL = 30 * time.Minute

// Authority owns the in-memory session table.
//
// Sessions expire after the idle TTL; any successful Get extends the
// deadline. The sweeper only reclaims memory, expiry itself is enforced
// on access.
//
// Thread Safety: all methods are safe for concurrent use.
type Authority struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time // overridable in tests
}

// NewAuthority creates a session authority with the given idle TTL.
// A non-positive TTL falls back to DefaultIdleTTL.
func NewAuthority(idleTTL time.Duration) *Authority {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Authority{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Create starts a session for an authenticated principal, snapshotting
// its authorisation info.
func (a *Authority) Create(principal *auth.Principal, info *auth.AuthzInfo) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := a.now()
	s := &Session{
		ID:         id,
		Username:   principal.Username,
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now.Add(a.idleTTL),
	}
	if info != nil {
		s.Roles = append([]auth.Role(nil), info.Roles...)
		s.Permissions = append([]auth.Permission(nil), info.Permissions...)
	}

	a.mu.Lock()
	a.sessions[id] = s
	a.mu.Unlock()

	return s.clone(), nil
}

// Get resolves a live session by ID and extends its idle deadline.
// An expired session is removed and reported as absent.
func (a *Authority) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[id]
	if !ok {
		return nil, false
	}

	now := a.now()
	if now.After(s.ExpiresAt) {
		delete(a.sessions, id)
		return nil, false
	}

	s.LastAccess = now
	s.ExpiresAt = now.Add(a.idleTTL)

	return s.clone(), true
}

// Destroy removes a session. Destroying an absent session is a no-op.
func (a *Authority) Destroy(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

// DestroyByUsername removes every session the username holds and returns
// how many were removed. Used when an account is disabled.
func (a *Authority) DestroyByUsername(username string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for id, s := range a.sessions {
		if s.Username == username {
			delete(a.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of sessions currently in the table,
// expired-but-unswept ones included.
func (a *Authority) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// Sweep removes expired sessions from the table.
func (a *Authority) Sweep() {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	for id, s := range a.sessions {
		if now.After(s.ExpiresAt) {
			delete(a.sessions, id)
		}
	}
}

// RunSweeper runs Sweep periodically until the context is cancelled.
func (a *Authority) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep()
		}
	}
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
