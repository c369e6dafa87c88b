package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gatekeep/internal/audit"
	"github.com/nerrad567/gatekeep/internal/auth"
	"github.com/nerrad567/gatekeep/internal/infrastructure/config"
	"github.com/nerrad567/gatekeep/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeep/internal/session"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// testServer creates a Server backed by in-memory SQLite with the demo
// accounts seeded.
func testServer(t *testing.T) *Server {
	t.Helper()

	db := setupTestDB(t)
	store := auth.NewCredentialStore(db)
	hasher := auth.NewHasher(1000)
	realm := auth.NewRealm(store, hasher, auth.NewStaticRoleResolver(), nil)
	accounts := auth.NewService(store, hasher, realm)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if err := auth.SeedDemoAccounts(context.Background(), accounts, log.Logger); err != nil {
		t.Fatalf("seeding demo accounts: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Security: config.SecurityConfig{
			Session: config.SessionConfig{
				TTLMinutes:      30,
				CookieName:      "gatekeep_session",
				TokenSecret:     testSecret,
				TokenTTLMinutes: 30,
			},
		},
		Logger:    log,
		Realm:     realm,
		Accounts:  accounts,
		Sessions:  session.NewAuthority(30 * time.Minute),
		AuditRepo: audit.NewSQLiteRepository(db),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return srv
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A second pool connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)

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

		CREATE TABLE audit_events (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			username TEXT,
			outcome TEXT NOT NULL,
			source TEXT,
			details TEXT,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_audit_events_action ON audit_events(action);
		CREATE INDEX idx_audit_events_username ON audit_events(username);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response.
func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
		}
	}

	return w, resp
}

// login authenticates the username and returns the session cookie.
func login(t *testing.T, router http.Handler, username, password string) *http.Cookie {
	t.Helper()

	w, resp := doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": username, "password": password}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}
	if resp["success"] != true {
		t.Fatalf("login failed: %v", resp["message"])
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == "gatekeep_session" && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// ─── Health & Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/health", nil, nil)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, _ := doJSON(t, router, http.MethodGet, "/health", nil, nil)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

// ─── Login ─────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "123456"}, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	if resp["username"] != "user" {
		t.Errorf("username = %v, want user", resp["username"])
	}
	if token, _ := resp["session_token"].(string); token == "" {
		t.Error("expected a session_token in the response")
	}
}

func TestLogin_Failures(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name     string
		username string
		password string
		message  string
	}{
		{"unknown username", "ghost", "123456", "unknown account"},
		{"wrong password", "user", "wrongpass", "incorrect credentials"},
		// Disabled accounts are reported as unknown, not locked.
		{"disabled account", "disabled_user", "123456", "unknown account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, http.MethodPost, "/login",
				map[string]string{"username": tt.username, "password": tt.password}, nil)

			// Auth failures still answer 200; the envelope carries the outcome.
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			if resp["success"] != false {
				t.Errorf("success = %v, want false", resp["success"])
			}
			if resp["message"] != tt.message {
				t.Errorf("message = %v, want %q", resp["message"], tt.message)
			}
		})
	}
}

func TestLogin_GETWithQueryParams(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/login?username=user&password=123456", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("GET login failed: %v", resp["message"])
	}
}

func TestLogin_IdempotentWhenAuthenticated(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	cookie := login(t, router, "user", "123456")

	// Second login with wrong credentials but a live session: the session
	// short-circuits, credentials are not re-verified.
	w, resp := doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "totally-wrong"}, cookie)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp["success"] != true {
		t.Errorf("success = %v, want true (idempotent re-login)", resp["success"])
	}
	if resp["message"] != "already logged in" {
		t.Errorf("message = %v, want already logged in", resp["message"])
	}
}

func TestLogin_BearerToken(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	_, resp := doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "123456"}, nil)
	token, _ := resp["session_token"].(string)
	if token == "" {
		t.Fatal("no session token returned")
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status with bearer token = %d, want 200", w.Code)
	}
}

func TestLogin_TokenForDestroyedSession(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	_, resp := doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "123456"}, nil)
	token, _ := resp["session_token"].(string)

	// Destroy every session; the still-valid token now references nothing.
	srv.sessions.DestroyByUsername("user")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 (token without a session grants nothing)", w.Code)
	}
}

// ─── Logout ────────────────────────────────────────────────────────

func TestLogout(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	cookie := login(t, router, "user", "123456")

	w, resp := doJSON(t, router, http.MethodPost, "/logout", nil, cookie)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Errorf("logout status = %d, success = %v", w.Code, resp["success"])
	}

	// The session is gone.
	w, _ = doJSON(t, router, http.MethodGet, "/protected", nil, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("protected after logout = %d, want 401", w.Code)
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Logging out twice, or never having logged in, still succeeds.
	for i := 0; i < 2; i++ {
		w, resp := doJSON(t, router, http.MethodPost, "/logout", nil, nil)
		if w.Code != http.StatusOK || resp["success"] != true {
			t.Errorf("anonymous logout #%d: status = %d, success = %v", i+1, w.Code, resp["success"])
		}
	}
}

// ─── Register ──────────────────────────────────────────────────────

func TestRegister_Success(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"username":        "newuser",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)

	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("register status = %d, resp = %v", w.Code, resp)
	}
	if resp["username"] != "newuser" {
		t.Errorf("username = %v, want newuser", resp["username"])
	}
	if ts, _ := resp["timestamp"].(string); ts == "" {
		t.Error("expected a timestamp in the response")
	}

	// The new account can log in.
	login(t, router, "newuser", "secret1")
}

func TestRegister_Duplicate(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	payload := map[string]string{
		"username":        "newuser",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}

	if _, resp := doJSON(t, router, http.MethodPost, "/register", payload, nil); resp["success"] != true {
		t.Fatalf("first register failed: %v", resp["message"])
	}

	w, resp := doJSON(t, router, http.MethodPost, "/register", payload, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
	if resp["message"] != "username already exists" {
		t.Errorf("message = %v, want username already exists", resp["message"])
	}
}

func TestRegister_ValidationFailures(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"empty username", map[string]string{"username": "", "password": "secret1", "confirmPassword": "secret1"}},
		{"short password", map[string]string{"username": "someone", "password": "abc", "confirmPassword": "abc"}},
		{"confirmation mismatch", map[string]string{"username": "someone", "password": "secret1", "confirmPassword": "secret2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, http.MethodPost, "/register", tt.payload, nil)
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			if resp["success"] != false {
				t.Errorf("success = %v, want false", resp["success"])
			}
			if msg, _ := resp["message"].(string); msg == "" {
				t.Error("expected a validation message")
			}
		})
	}
}

// ─── Guarded Endpoints ─────────────────────────────────────────────

func TestPublic_NoAuthRequired(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/public", nil, nil)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Errorf("public status = %d, success = %v", w.Code, resp["success"])
	}
	if ts, _ := resp["timestamp"].(string); ts == "" {
		t.Error("expected a timestamp")
	}
}

func TestProtected(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Anonymous: 401 with a JSON body.
	w, resp := doJSON(t, router, http.MethodGet, "/protected", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("anonymous success = %v, want false", resp["success"])
	}

	// Authenticated: 200 with the username.
	cookie := login(t, router, "user", "123456")
	w, resp = doJSON(t, router, http.MethodGet, "/protected", nil, cookie)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}
	if resp["username"] != "user" || resp["authenticated"] != true {
		t.Errorf("resp = %v", resp)
	}
}

func TestAdmin(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Admin role: success.
	adminCookie := login(t, router, "admin", "123456")
	w, resp := doJSON(t, router, http.MethodGet, "/admin", nil, adminCookie)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Errorf("admin: status = %d, resp = %v", w.Code, resp)
	}
	if resp["username"] != "admin" {
		t.Errorf("username = %v, want admin", resp["username"])
	}

	// Regular user: still 200, but success:false.
	userCookie := login(t, router, "user", "123456")
	w, resp = doJSON(t, router, http.MethodGet, "/admin", nil, userCookie)
	if w.Code != http.StatusOK {
		t.Errorf("non-admin status = %d, want 200", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("non-admin success = %v, want false", resp["success"])
	}

	// Anonymous: 401.
	w, _ = doJSON(t, router, http.MethodGet, "/admin", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestUserInfo(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Anonymous.
	w, resp := doJSON(t, router, http.MethodGet, "/user-info", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", w.Code)
	}
	if resp["authenticated"] != false {
		t.Errorf("anonymous authenticated = %v, want false", resp["authenticated"])
	}

	// Admin.
	adminCookie := login(t, router, "admin", "123456")
	_, resp = doJSON(t, router, http.MethodGet, "/user-info", nil, adminCookie)
	if resp["authenticated"] != true || resp["hasAdminRole"] != true || resp["hasUserRole"] != true {
		t.Errorf("admin user-info = %v", resp)
	}

	// Regular user.
	userCookie := login(t, router, "user", "123456")
	_, resp = doJSON(t, router, http.MethodGet, "/user-info", nil, userCookie)
	if resp["authenticated"] != true || resp["hasAdminRole"] != false || resp["hasUserRole"] != true {
		t.Errorf("user user-info = %v", resp)
	}
}

// ─── Account Administration ────────────────────────────────────────

func TestListUsers(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	adminCookie := login(t, router, "admin", "123456")
	w, resp := doJSON(t, router, http.MethodGet, "/users", nil, adminCookie)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("list users: status = %d, resp = %v", w.Code, resp)
	}

	// Seeded enabled accounts: admin, user, test.
	users, _ := resp["users"].([]any)
	if len(users) != 3 {
		t.Errorf("len(users) = %d, want 3", len(users))
	}

	// Regular users are forbidden outright.
	userCookie := login(t, router, "user", "123456")
	w, _ = doJSON(t, router, http.MethodGet, "/users", nil, userCookie)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin list users status = %d, want 403", w.Code)
	}
}

func TestSetUserStatus(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	adminCookie := login(t, router, "admin", "123456")
	testCookie := login(t, router, "test", "123456")

	w, resp := doJSON(t, router, http.MethodPut, "/users/test/status",
		map[string]bool{"enabled": false}, adminCookie)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("disable: status = %d, resp = %v", w.Code, resp)
	}

	// The disabled account's live session is destroyed.
	w, _ = doJSON(t, router, http.MethodGet, "/protected", nil, testCookie)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("disabled account session still live: status = %d, want 401", w.Code)
	}

	// And it can no longer log in.
	_, resp = doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "test", "password": "123456"}, nil)
	if resp["success"] != false {
		t.Error("disabled account logged in")
	}

	// Unknown account: 404.
	w, _ = doJSON(t, router, http.MethodPut, "/users/ghost/status",
		map[string]bool{"enabled": true}, adminCookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", w.Code)
	}
}

func TestChangePassword(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	cookie := login(t, router, "user", "123456")

	w, resp := doJSON(t, router, http.MethodPut, "/password", map[string]string{
		"currentPassword": "123456",
		"newPassword":     "fresh-secret",
	}, cookie)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("change password: status = %d, resp = %v", w.Code, resp)
	}

	// Old password rejected, new one accepted.
	_, resp = doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "123456"}, nil)
	if resp["success"] != false {
		t.Error("old password still accepted")
	}
	login(t, router, "user", "fresh-secret")
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	cookie := login(t, router, "user", "123456")

	w, resp := doJSON(t, router, http.MethodPut, "/password", map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "fresh-secret",
	}, cookie)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
}

// ─── Audit Trail ───────────────────────────────────────────────────

func TestAuditTrail(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Generate some events.
	doJSON(t, router, http.MethodPost, "/login",
		map[string]string{"username": "user", "password": "wrong"}, nil)
	login(t, router, "user", "123456")

	adminCookie := login(t, router, "admin", "123456")
	w, resp := doJSON(t, router, http.MethodGet, "/audit?action=login", nil, adminCookie)
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d, want 200", w.Code)
	}

	total, _ := resp["total"].(float64)
	// Failed login, successful user login, successful admin login.
	if int(total) != 3 {
		t.Errorf("total login events = %d, want 3", int(total))
	}

	// Outcome filter narrows to the failure.
	_, resp = doJSON(t, router, http.MethodGet, "/audit?action=login&outcome=failure", nil, adminCookie)
	if total, _ := resp["total"].(float64); int(total) != 1 {
		t.Errorf("failed login events = %d, want 1", int(total))
	}

	// Non-admins cannot read the trail.
	userCookie := login(t, router, "user", "123456")
	w, _ = doJSON(t, router, http.MethodGet, "/audit", nil, userCookie)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin audit status = %d, want 403", w.Code)
	}
}

// ─── Server Lifecycle ──────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	srv := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on unstarted server should fail")
	}
}

func TestNew_MissingDeps(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{}},
		{"no realm", Deps{Logger: log}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail with missing dependencies")
			}
		})
	}
}
