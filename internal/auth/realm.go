package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Realm decides authentication outcomes and resolves authorisation info
// for authenticated principals.
//
// Authentication always goes through the enabled-only credential lookup:
// disabled accounts fail as ErrUnknownAccount, and the locked-account
// branch below it is kept for the administrative lookup paths that can
// still observe a disabled row.
//
// Authorize results are cached per username. The cache is only a
// memoisation of the static resolver output plus the enablement check;
// it must be invalidated with InvalidateAuthz when an account's enabled
// flag or role assignment changes.
//
// Thread Safety: all methods are safe for concurrent use.
type Realm struct {
	store    CredentialStore
	hasher   *Hasher
	resolver RoleResolver
	limiter  *AttemptLimiter // nil when attempt limiting is disabled

	mu    sync.RWMutex
	authz map[string]*AuthzInfo
}

// NewRealm creates a Realm over the given store, hasher, and resolver.
// A nil limiter disables login attempt limiting.
func NewRealm(store CredentialStore, hasher *Hasher, resolver RoleResolver, limiter *AttemptLimiter) *Realm {
	return &Realm{
		store:    store,
		hasher:   hasher,
		resolver: resolver,
		limiter:  limiter,
		authz:    make(map[string]*AuthzInfo),
	}
}

// Authenticate verifies a username/password pair against the credential store.
//
// Outcomes:
//   - ErrUnknownAccount: no enabled account for the username (a disabled
//     account is deliberately reported the same way)
//   - ErrIncorrectCredentials: account exists and is enabled, password wrong
//   - ErrAuthenticationFailure: store unreachable, context cancelled, or
//     the attempt budget for this username is exhausted
//
// Failures count against the username's attempt budget; a success resets it.
// No outcome is retried automatically.
func (r *Realm) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	if username == "" {
		return nil, ErrUnknownAccount
	}

	if r.limiter != nil && !r.limiter.Allow(username) {
		return nil, fmt.Errorf("%w: too many failed attempts", ErrAuthenticationFailure)
	}

	cred, err := r.store.GetEnabledByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		r.recordFailure(username)
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	// Unreachable through the enabled-only lookup above; retained so the
	// outcome is still correct if the store is ever swapped for one whose
	// enabled filtering differs.
	if !cred.Enabled {
		return nil, ErrLockedAccount
	}

	if password == "" {
		r.recordFailure(username)
		return nil, ErrIncorrectCredentials
	}

	ok, err := r.hasher.Verify(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	if !ok {
		r.recordFailure(username)
		return nil, ErrIncorrectCredentials
	}

	if r.limiter != nil {
		r.limiter.Reset(username)
	}

	return &Principal{Username: cred.Username}, nil
}

// Authorize resolves the roles and permissions for a username.
//
// It fails with ErrUnknownAccount when the username does not correspond to
// an enabled account. Results are cached; the cache entry stands until
// InvalidateAuthz or ClearAuthzCache is called.
func (r *Realm) Authorize(ctx context.Context, username string) (*AuthzInfo, error) {
	r.mu.RLock()
	info, ok := r.authz[username]
	r.mu.RUnlock()
	if ok {
		return info, nil
	}

	cred, err := r.store.GetEnabledByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	info = r.resolver.Resolve(cred.Username)

	r.mu.Lock()
	r.authz[username] = info
	r.mu.Unlock()

	return info, nil
}

// InvalidateAuthz removes the cached authorisation info for a username.
// Must be called whenever the account's enabled flag or roles change;
// the next Authorize call re-resolves from the store.
func (r *Realm) InvalidateAuthz(username string) {
	r.mu.Lock()
	delete(r.authz, username)
	r.mu.Unlock()
}

// ClearAuthzCache drops all cached authorisation info.
func (r *Realm) ClearAuthzCache() {
	r.mu.Lock()
	r.authz = make(map[string]*AuthzInfo)
	r.mu.Unlock()
}

// recordFailure counts a failed attempt against the username's budget.
func (r *Realm) recordFailure(username string) {
	if r.limiter != nil {
		r.limiter.RecordFailure(username)
	}
}
