package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobboard/internal/auth"
)

func (s *Server) handlePendingRecruiters(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.Service.ListPendingRecruiters(r.Context())
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, viewAccount(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApproveRecruiter(w http.ResponseWriter, r *http.Request) {
	s.adminAction(w, r, "approve_recruiter", s.Service.ApproveRecruiter)
}

func (s *Server) handleRejectRecruiter(w http.ResponseWriter, r *http.Request) {
	s.adminAction(w, r, "reject_recruiter", s.Service.RejectRecruiter)
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	action := "deactivate"
	if active {
		action = "activate"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.adminAction(w, r, action, func(ctx context.Context, id string) (*auth.Account, error) {
			return s.Service.SetActive(ctx, id, active)
		})
	}
}

// adminAction runs op on the {id} account and records who did it.
func (s *Server) adminAction(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, string) (*auth.Account, error)) {
	admin, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	target := chi.URLParam(r, "id")

	acct, err := op(r.Context(), target)
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.log.Info("admin action", "action", action, "admin_id", admin.AccountID, "account_id", acct.ID)
	s.audit(r, auth.AuditAdminAction, acct.ID, map[string]any{"action": action, "adminId": admin.AccountID})
	writeJSON(w, http.StatusOK, viewAccount(acct))
}
