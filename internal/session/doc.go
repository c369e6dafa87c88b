// Package session provides the server-side session table.
//
// Sessions are the unit of authentication state: logging in creates one,
// logging out destroys it, and every protected request resolves its
// session before anything else. The table is held in memory, so a process
// restart signs everyone out.
//
// Each session carries a snapshot of the principal's roles and permissions
// taken at login. Role checks against a session do not consult the realm
// again; an account change becomes visible at the next login.
package session
