package server

import (
	"net/http"

	"jobboard/internal/auth"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	acct, err := s.Service.Account(r.Context(), p.AccountID)
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAccount(acct))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}

	err := s.Service.ChangePassword(r.Context(), p.AccountID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditPasswordChanged, p.AccountID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "PASSWORD_CHANGED"})
}

type twoFactorRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req twoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}

	acct, err := s.Service.SetTwoFactor(r.Context(), p.AccountID, req.Enabled)
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditTwoFactorToggled, acct.ID, map[string]any{"enabled": acct.TwoFactorEnabled})
	writeJSON(w, http.StatusOK, viewAccount(acct))
}
