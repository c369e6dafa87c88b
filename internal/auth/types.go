package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 2-50 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,50}$`)

// Username length bounds, inherited from the users table schema.
const (
	minUsernameLength = 2
	maxUsernameLength = 50
)

// minPasswordLength is the minimum accepted password length at registration.
const minPasswordLength = 6

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 2-50 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser is the baseline tier every authenticated account holds.
	RoleUser Role = "user"

	// RoleAdmin grants account management and audit access.
	// Admins also hold RoleUser.
	RoleAdmin Role = "admin"
)

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermUserRead   Permission = "user:read"
	PermUserWrite  Permission = "user:write"
	PermUserDelete Permission = "user:delete"
)

// Credential represents a stored account credential record.
// The password hash is always a PBKDF2 digest over the raw password and
// the per-account salt; the raw password is never stored.
type Credential struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	Salt         string    `json:"-"` // never serialised
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is an authenticated identity.
type Principal struct {
	Username string `json:"username"`
}

// AuthzInfo holds the resolved roles and permissions for a principal.
type AuthzInfo struct {
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// HasRole returns true if the role is present in the resolved set.
func (a *AuthzInfo) HasRole(role Role) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission returns true if the permission is present in the resolved set.
func (a *AuthzInfo) HasPermission(perm Permission) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	// ErrUnknownAccount means no enabled account exists for the username.
	// Disabled accounts surface as this error, never as ErrLockedAccount,
	// so enablement state does not leak to login callers.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrIncorrectCredentials means the account exists and is enabled but
	// the supplied password does not match.
	ErrIncorrectCredentials = errors.New("incorrect credentials")

	// ErrLockedAccount means the account exists but is disabled.
	ErrLockedAccount = errors.New("account is locked")

	// ErrAuthenticationFailure is the catch-all for infrastructure
	// failures during authentication (store unreachable, timeout,
	// exceeded attempt budget).
	ErrAuthenticationFailure = errors.New("authentication failed")

	// ErrAccountNotFound is returned by the credential store when a row
	// does not exist, regardless of enablement.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUsernameExists is returned when creating an account whose
	// username is already taken.
	ErrUsernameExists = errors.New("username already exists")

	// ErrInvalidInput is returned by the hasher for unusable input,
	// such as an empty password.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenInvalid is returned for malformed, expired, or otherwise
	// unverifiable bearer session tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// ValidationError describes a rejected registration or account change field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validationErr is a shorthand constructor for ValidationError.
func validationErr(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
