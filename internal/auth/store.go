package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// CredentialStore defines the interface for credential persistence.
//
// GetEnabledByUsername is the lookup the Realm authenticates against;
// GetByUsername sees disabled rows too and exists for administrative
// operations only.
type CredentialStore interface {
	Create(ctx context.Context, cred *Credential) error
	GetByUsername(ctx context.Context, username string) (*Credential, error)
	GetEnabledByUsername(ctx context.Context, username string) (*Credential, error)
	Exists(ctx context.Context, username string) (bool, error)
	UpdatePassword(ctx context.Context, username, passwordHash, salt string) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	ListEnabled(ctx context.Context) ([]Credential, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteCredentialStore implements CredentialStore using SQLite.
type SQLiteCredentialStore struct {
	db *sql.DB
}

// NewCredentialStore creates a new SQLite-backed credential store.
func NewCredentialStore(db *sql.DB) *SQLiteCredentialStore {
	return &SQLiteCredentialStore{db: db}
}

// Create inserts a new credential record.
func (s *SQLiteCredentialStore) Create(ctx context.Context, cred *Credential) error {
	now := time.Now().UTC().Format(time.RFC3339)
	cred.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	cred.UpdatedAt = cred.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, salt, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cred.Username, cred.PasswordHash, cred.Salt, boolToInt(cred.Enabled), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating credential: %w", err)
	}

	return nil
}

// GetByUsername retrieves a credential regardless of enablement.
func (s *SQLiteCredentialStore) GetByUsername(ctx context.Context, username string) (*Credential, error) {
	return s.getCredential(ctx,
		"SELECT username, password_hash, salt, enabled, created_at, updated_at FROM users WHERE username = ?",
		username)
}

// GetEnabledByUsername retrieves a credential only if the account is enabled.
// Disabled accounts are indistinguishable from missing ones through this path.
func (s *SQLiteCredentialStore) GetEnabledByUsername(ctx context.Context, username string) (*Credential, error) {
	return s.getCredential(ctx,
		"SELECT username, password_hash, salt, enabled, created_at, updated_at FROM users WHERE username = ? AND enabled = 1",
		username)
}

// Exists checks whether a username is taken, enabled or not.
func (s *SQLiteCredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username = ?", username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return true, nil
}

// UpdatePassword replaces the password hash and salt for an account.
func (s *SQLiteCredentialStore) UpdatePassword(ctx context.Context, username, passwordHash, salt string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, salt = ?, updated_at = ? WHERE username = ?`,
		passwordHash, salt, now, username,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag for an account.
func (s *SQLiteCredentialStore) SetEnabled(ctx context.Context, username string, enabled bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET enabled = ?, updated_at = ? WHERE username = ?`,
		boolToInt(enabled), now, username,
	)
	if err != nil {
		return fmt.Errorf("updating enabled flag: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListEnabled returns all enabled credentials ordered by username.
func (s *SQLiteCredentialStore) ListEnabled(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT username, password_hash, salt, enabled, created_at, updated_at FROM users WHERE enabled = 1 ORDER BY username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}

	if creds == nil {
		creds = []Credential{}
	}
	return creds, nil
}

// Count returns the total number of accounts, enabled or not.
func (s *SQLiteCredentialStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// getCredential executes a query and scans a single credential result.
func (s *SQLiteCredentialStore) getCredential(ctx context.Context, query string, args ...any) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	c, err := scanCredential(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanCredential scans a credential from any scanner (Row or Rows).
func scanCredential(s scanner) (*Credential, error) {
	var c Credential
	var enabled int
	var createdAt, updatedAt string

	err := s.Scan(&c.Username, &c.PasswordHash, &c.Salt, &enabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	c.Enabled = enabled != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &c, nil
}

// boolToInt converts a bool to the 0/1 form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether the error is a SQLite unique or
// primary key constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
