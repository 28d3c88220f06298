package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"jobboard/internal/auth"
	"jobboard/internal/oauth"
)

const (
	oauthSuccessPath   = "/oauth/callback"
	oauthTwoFactorPath = "/verify-otp"
	oauthErrorPath     = "/login"
)

func (s *Server) provider(r *http.Request) (oauth.Provider, bool) {
	p, ok := s.providers[chi.URLParam(r, "provider")]
	return p, ok
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER")
		return
	}

	state, err := s.States.Issue(r.Context(), p.Name())
	if err != nil {
		s.log.Error("oauth state issue failed", "provider", p.Name(), "error", err)
		writeError(w, http.StatusInternalServerError, "OAUTH_UNAVAILABLE")
		return
	}
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback finishes the authorization-code flow and hands the
// browser back to the frontend with either a token or an error code.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := s.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER")
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	if q.Get("error") != "" {
		s.oauthErrorRedirect(w, r, "access_denied")
		return
	}

	valid, err := s.States.Consume(ctx, q.Get("state"), p.Name())
	if err != nil {
		s.log.Error("oauth state lookup failed", "provider", p.Name(), "error", err)
		s.oauthErrorRedirect(w, r, "oauth_failed")
		return
	}
	if !valid {
		s.oauthErrorRedirect(w, r, "invalid_state")
		return
	}

	identity, err := p.Identity(ctx, q.Get("code"))
	if err != nil {
		if errors.Is(err, oauth.ErrUnverifiedEmail) {
			s.oauthErrorRedirect(w, r, "unverified_email")
			return
		}
		s.log.Warn("oauth identity fetch failed", "provider", p.Name(), "error", err)
		s.oauthErrorRedirect(w, r, "oauth_failed")
		return
	}

	res, err := s.Service.ReconcileOAuth(ctx, identity)
	if err != nil {
		status, message := statusForError(err)
		if status == http.StatusInternalServerError {
			s.log.Error("oauth reconcile failed", "provider", p.Name(), "error", err)
		}
		s.oauthErrorRedirect(w, r, strings.ToLower(message))
		return
	}

	s.audit(r, auth.AuditOAuthLogin, res.Account.ID, map[string]any{"provider": p.Name()})
	if res.RequiresTwoFactor {
		s.recordAdmission(r, res, p.Name())
		http.Redirect(w, r, s.frontendURL(oauthTwoFactorPath, map[string]string{"email": res.Account.Email}), http.StatusFound)
		return
	}
	http.Redirect(w, r, s.frontendURL(oauthSuccessPath, map[string]string{"token": res.Token}), http.StatusFound)
}

func (s *Server) oauthErrorRedirect(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, s.frontendURL(oauthErrorPath, map[string]string{"error": reason}), http.StatusFound)
}

// frontendURL joins path onto the configured frontend origin.
func (s *Server) frontendURL(path string, params map[string]string) string {
	return appendQueryParams(strings.TrimRight(s.Config.BaseURL, "/")+path, params)
}

func appendQueryParams(raw string, params map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
