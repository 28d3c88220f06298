package server

import (
	"net/http"

	"jobboard/internal/auth"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword answers 404 for unknown addresses. Registered emails
// are therefore discoverable here, unlike at login.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}
	email := auth.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT")
		return
	}

	ctx := r.Context()
	if wait := s.RateLimiter.Cooldown(ctx, "forgot:"+email, auth.EmailCooldown); wait > 0 {
		writeCooldown(w, "COOLDOWN", wait)
		return
	}
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterForgotAttempt(ctx, email, ip); err != nil {
		s.log.Warn("forgot-password rate limit unavailable", "error", err)
	} else if locked {
		writeCooldown(w, "TOO_MANY_ATTEMPTS", ttl)
		return
	}

	if err := s.Service.ForgotPassword(ctx, email); err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditResetRequested, "", map[string]any{"email": email})
	writeJSON(w, http.StatusOK, map[string]string{"message": "RESET_LINK_SENT"})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}

	acct, err := s.Service.ResetPassword(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditResetCompleted, acct.ID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "PASSWORD_RESET"})
}
