package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/gatekeep/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.sessionMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Anonymous endpoints
	r.Get("/login", s.handleLogin)
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/logout", s.handleLogout)
	r.Get("/public", s.handlePublic)

	// user-info answers for anonymous callers too, so it sits outside
	// the session-required group.
	r.Get("/user-info", s.handleUserInfo)

	// Session-required endpoints
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/protected", s.handleProtected)
		r.Get("/admin", s.handleAdmin)
		r.Put("/password", s.handleChangePassword)
	})

	// Administrative endpoints
	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))

		r.Get("/users", s.handleListUsers)
		r.Put("/users/{username}/status", s.handleSetUserStatus)
		r.Get("/audit", s.handleListAuditEvents)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handlePublic is the unauthenticated demo endpoint.
func (s *Server) handlePublic(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "public endpoint, no login required",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
