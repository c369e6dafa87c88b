package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service provides account lifecycle operations: registration, password
// changes, and enable/disable. It owns the write path to the credential
// store; the Realm only reads.
type Service struct {
	store  CredentialStore
	hasher *Hasher
	realm  *Realm
}

// NewService creates an account service. The realm is used to invalidate
// cached authorisation info when an account's status changes.
func NewService(store CredentialStore, hasher *Hasher, realm *Realm) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		realm:  realm,
	}
}

// Register validates and creates a new enabled account.
//
// Validation failures return *ValidationError; a taken username returns
// ErrUsernameExists. The username is trimmed before any check.
func (s *Service) Register(ctx context.Context, username, password, confirmPassword string) (string, error) {
	username = strings.TrimSpace(username)

	if username == "" {
		return "", validationErr("username", "username must not be empty")
	}
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return "", validationErr("username", fmt.Sprintf("username must be %d-%d characters", minUsernameLength, maxUsernameLength))
	}
	if !IsValidUsername(username) {
		return "", validationErr("username", "username may only contain letters, digits, dots, hyphens, underscores")
	}

	if strings.TrimSpace(password) == "" {
		return "", validationErr("password", "password must not be empty")
	}
	if len(password) < minPasswordLength {
		return "", validationErr("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	if strings.TrimSpace(confirmPassword) == "" {
		return "", validationErr("confirmPassword", "password confirmation must not be empty")
	}
	if password != confirmPassword {
		return "", validationErr("confirmPassword", "passwords do not match")
	}

	taken, err := s.store.Exists(ctx, username)
	if err != nil {
		return "", fmt.Errorf("checking username availability: %w", err)
	}
	if taken {
		return "", ErrUsernameExists
	}

	if err := s.createAccount(ctx, username, password, true); err != nil {
		return "", err
	}

	return username, nil
}

// ChangePassword verifies the current password and replaces it with a new
// one under a fresh salt. The account must be enabled.
func (s *Service) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return validationErr("newPassword", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	cred, err := s.store.GetEnabledByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrUnknownAccount
	}
	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, cred.Salt, cred.PasswordHash)
	if err != nil || !ok {
		return ErrIncorrectCredentials
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword, salt)
	if err != nil {
		return err
	}

	return s.store.UpdatePassword(ctx, username, hash, salt)
}

// SetStatus enables or disables an account and invalidates its cached
// authorisation info so the change is visible to the next Authorize call.
func (s *Service) SetStatus(ctx context.Context, username string, enabled bool) error {
	if err := s.store.SetEnabled(ctx, username, enabled); err != nil {
		return err
	}

	if s.realm != nil {
		s.realm.InvalidateAuthz(username)
	}

	return nil
}

// ListEnabled returns all enabled accounts.
func (s *Service) ListEnabled(ctx context.Context) ([]Credential, error) {
	return s.store.ListEnabled(ctx)
}

// Count returns the total number of accounts.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// CreateAccount creates an account without registration validation.
// Used by seeding and administrative tooling.
func (s *Service) CreateAccount(ctx context.Context, username, password string, enabled bool) error {
	return s.createAccount(ctx, username, password, enabled)
}

// createAccount hashes the password under a fresh salt and inserts the row.
func (s *Service) createAccount(ctx context.Context, username, password string, enabled bool) error {
	salt, err := NewSalt()
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password, salt)
	if err != nil {
		return err
	}

	cred := &Credential{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Enabled:      enabled,
	}

	return s.store.Create(ctx, cred)
}
