package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/gatekeep/internal/audit"
	"github.com/nerrad567/gatekeep/internal/auth"
)

// userSummary is the account shape exposed to administrators. Password
// material never leaves the store layer.
type userSummary struct {
	Username  string `json:"username"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// handleListUsers returns all enabled accounts. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	creds, err := s.accounts.ListEnabled(r.Context())
	if err != nil {
		s.logger.Error("listing accounts failed", "error", err)
		writeInternalError(w, "listing accounts failed")
		return
	}

	users := make([]userSummary, 0, len(creds))
	for _, c := range creds {
		users = append(users, userSummary{
			Username:  c.Username,
			Enabled:   c.Enabled,
			CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt: c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   users,
		"count":   len(users),
	})
}

// statusRequest is the payload for /users/{username}/status.
type statusRequest struct {
	Enabled bool `json:"enabled"`
}

// handleSetUserStatus enables or disables an account. Admin only.
//
// Disabling destroys the account's live sessions so the change takes
// effect immediately, not at next login.
func (s *Server) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	actor := sessionFromContext(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.accounts.SetStatus(r.Context(), username, req.Enabled); err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeNotFound(w, "account not found")
			return
		}
		s.logger.Error("status change failed", "username", username, "error", err)
		writeInternalError(w, "status change failed")
		return
	}

	if !req.Enabled {
		removed := s.sessions.DestroyByUsername(username)
		if removed > 0 {
			s.logger.Info("sessions destroyed for disabled account",
				"username", username, "sessions", removed)
		}
	}

	s.recorder.Record(&audit.Event{
		Action:   audit.ActionStatusChange,
		Username: username,
		Outcome:  audit.OutcomeSuccess,
		Source:   r.RemoteAddr,
		Details: map[string]any{
			"enabled":    req.Enabled,
			"changed_by": actor.Username,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"username": username,
		"enabled":  req.Enabled,
	})
}

// passwordRequest is the payload for /password.
type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleChangePassword replaces the caller's own password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	err := s.accounts.ChangePassword(r.Context(), sess.Username, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.recorder.Record(&audit.Event{
			Action:   audit.ActionPasswordChange,
			Username: sess.Username,
			Outcome:  audit.OutcomeFailure,
			Source:   r.RemoteAddr,
		})

		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"message": verr.Message,
			})
		case errors.Is(err, auth.ErrIncorrectCredentials):
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"message": "current password is incorrect",
			})
		default:
			s.logger.Error("password change failed", "username", sess.Username, "error", err)
			writeInternalError(w, "password change failed")
		}
		return
	}

	s.recorder.Record(&audit.Event{
		Action:   audit.ActionPasswordChange,
		Username: sess.Username,
		Outcome:  audit.OutcomeSuccess,
		Source:   r.RemoteAddr,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "password changed",
	})
}

// handleListAuditEvents returns the audit trail, filtered and paginated
// via query parameters. Admin only.
func (s *Server) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit trail disabled")
		return
	}

	filter := audit.Filter{
		Action:   r.URL.Query().Get("action"),
		Username: r.URL.Query().Get("username"),
		Outcome:  r.URL.Query().Get("outcome"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit events failed", "error", err)
		writeInternalError(w, "listing audit events failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
