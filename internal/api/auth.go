package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gatekeep/internal/audit"
	"github.com/nerrad567/gatekeep/internal/auth"
	"github.com/nerrad567/gatekeep/internal/session"
)

// loginRequest is the credential payload for /login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerRequest is the payload for /register.
type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// handleLogin authenticates a username/password pair and establishes a
// session.
//
// A caller that already holds a live session gets it back unchanged,
// without credential re-verification. Authentication failures are reported
// with HTTP 200 and success:false; the message distinguishes the failure
// kind.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// Idempotent re-login: an authenticated caller short-circuits.
	if sess := sessionFromContext(r.Context()); sess != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"message":  "already logged in",
			"username": sess.Username,
		})
		return
	}

	req, ok := s.decodeLoginRequest(w, r)
	if !ok {
		return
	}

	principal, err := s.realm.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.recorder.Record(&audit.Event{
			Action:   audit.ActionLogin,
			Username: req.Username,
			Outcome:  audit.OutcomeFailure,
			Source:   r.RemoteAddr,
			Details:  map[string]any{"reason": loginFailureMessage(err)},
		})
		// Failure kinds surface in the message, not the status code.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": loginFailureMessage(err),
		})
		return
	}

	info, err := s.realm.Authorize(r.Context(), principal.Username)
	if err != nil {
		s.logger.Error("authorization after login failed", "username", principal.Username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	sess, err := s.sessions.Create(principal, info)
	if err != nil {
		s.logger.Error("session creation failed", "username", principal.Username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	token, err := auth.GenerateSessionToken(sess.ID, sess.Username,
		s.secCfg.Session.TokenSecret, s.secCfg.Session.TokenTTLMinutes)
	if err != nil {
		s.logger.Error("session token generation failed", "username", principal.Username, "error", err)
		s.sessions.Destroy(sess.ID)
		writeInternalError(w, "login failed")
		return
	}

	s.setSessionCookie(w, sess)
	s.recorder.Record(&audit.Event{
		Action:   audit.ActionLogin,
		Username: sess.Username,
		Outcome:  audit.OutcomeSuccess,
		Source:   r.RemoteAddr,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "login successful",
		"username":      sess.Username,
		"session_token": token,
	})
}

// decodeLoginRequest reads credentials from a JSON body, or from form/query
// values so GET /login works too.
func (s *Server) decodeLoginRequest(w http.ResponseWriter, r *http.Request) (*loginRequest, bool) {
	var req loginRequest

	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return nil, false
		}
		return &req, true
	}

	req.Username = r.FormValue("username")
	req.Password = r.FormValue("password")
	return &req, true
}

// loginFailureMessage maps an authentication error to its response message.
func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnknownAccount):
		return "unknown account"
	case errors.Is(err, auth.ErrIncorrectCredentials):
		return "incorrect credentials"
	case errors.Is(err, auth.ErrLockedAccount):
		return "account locked"
	default:
		return "authentication failed"
	}
}

// handleRegister validates and creates a new account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	username, err := s.accounts.Register(r.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		s.recorder.Record(&audit.Event{
			Action:   audit.ActionRegister,
			Username: req.Username,
			Outcome:  audit.OutcomeFailure,
			Source:   r.RemoteAddr,
			Details:  map[string]any{"reason": registerFailureMessage(err)},
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": registerFailureMessage(err),
		})
		return
	}

	s.recorder.Record(&audit.Event{
		Action:   audit.ActionRegister,
		Username: username,
		Outcome:  audit.OutcomeSuccess,
		Source:   r.RemoteAddr,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "registration successful",
		"username":  username,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// registerFailureMessage maps a registration error to its response message.
func registerFailureMessage(err error) string {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, auth.ErrUsernameExists) {
		return "username already exists"
	}
	return "registration failed"
}

// handleLogout destroys the caller's session.
//
// Logging out without a session is a no-op that still reports success.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess != nil {
		s.sessions.Destroy(sess.ID)
		s.recorder.Record(&audit.Event{
			Action:   audit.ActionLogout,
			Username: sess.Username,
			Outcome:  audit.OutcomeSuccess,
			Source:   r.RemoteAddr,
		})
	}

	s.clearSessionCookie(w)

	message := "logout successful"
	if sess == nil {
		message = "not logged in"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

// handleProtected is the session-guarded demo endpoint.
func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"username":      sess.Username,
		"authenticated": true,
	})
}

// handleAdmin is the role-guarded demo endpoint.
//
// A non-admin caller gets HTTP 200 with success:false rather than 403;
// clients branch on the envelope, not the status code.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	if !sess.IsAdmin() {
		s.recorder.Record(&audit.Event{
			Action:   "admin_access",
			Username: sess.Username,
			Outcome:  audit.OutcomeDenied,
			Source:   r.RemoteAddr,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "admin role required",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "welcome, administrator",
		"username": sess.Username,
	})
}

// handleUserInfo reports the caller's authentication and role state.
// Anonymous callers get authenticated:false instead of an error.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      sess.Username,
		"hasAdminRole":  sess.HasRole(auth.RoleAdmin),
		"hasUserRole":   sess.HasRole(auth.RoleUser),
	})
}

// setSessionCookie binds the session to the client.
func (s *Server) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.secCfg.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.TLS.Enabled,
		MaxAge:   s.secCfg.Session.TTLMinutes * 60,
	})
}

// clearSessionCookie expires the session cookie on the client.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.secCfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.TLS.Enabled,
		MaxAge:   -1,
	})
}
