// Package auth provides credential verification and authorisation for gatekeep.
//
// It implements a 2-tier role model (user → admin) with:
//   - PBKDF2-SHA256 password hashing with per-account random salts and
//     constant-time digest comparison
//   - A Realm that decides authentication outcomes against the credential
//     store and resolves role/permission sets through a pluggable resolver
//   - A per-username authorisation cache with explicit invalidation
//   - A sliding-window login attempt limiter
//   - Signed bearer tokens that carry a server-side session ID for
//     non-cookie API clients
//
// Disabled accounts are deliberately indistinguishable from nonexistent
// ones at the authentication boundary: the Realm only ever consults the
// enabled-account lookup, so both cases surface as ErrUnknownAccount and
// enablement state never leaks to callers.
package auth
