package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the users schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_users_enabled ON users(enabled);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating users table: %v", err)
	}

	return db
}

// testHasher uses the minimum iteration count to keep tests fast.
func testHasher() *Hasher {
	return NewHasher(minIterations)
}

// createTestAccount inserts an account with the given password directly
// through the store.
func createTestAccount(t *testing.T, store CredentialStore, username, password string, enabled bool) {
	t.Helper()

	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	hash, err := testHasher().Hash(password, salt)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	cred := &Credential{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Enabled:      enabled,
	}
	if err := store.Create(context.Background(), cred); err != nil {
		t.Fatalf("Create(%q) error = %v", username, err)
	}
}
