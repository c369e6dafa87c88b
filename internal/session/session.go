package session

import (
	"time"

	"github.com/nerrad567/gatekeep/internal/auth"
)

// Session is an authenticated principal's server-side state.
//
// Roles and Permissions are a snapshot taken at login; they are not
// re-resolved while the session lives.
type Session struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Roles       []auth.Role       `json:"roles"`
	Permissions []auth.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	LastAccess  time.Time         `json:"last_access"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// HasRole reports whether the session's principal holds the role.
func (s *Session) HasRole(role auth.Role) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the session's principal holds the permission.
func (s *Session) HasPermission(perm auth.Permission) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the session's principal holds the admin role.
func (s *Session) IsAdmin() bool {
	return s.HasRole(auth.RoleAdmin)
}

// clone returns a copy the caller may read without holding the
// authority's lock.
func (s *Session) clone() *Session {
	c := *s
	c.Roles = append([]auth.Role(nil), s.Roles...)
	c.Permissions = append([]auth.Permission(nil), s.Permissions...)
	return &c
}
