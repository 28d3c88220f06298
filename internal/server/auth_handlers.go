package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"jobboard/internal/auth"
)

type accountView struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Role             auth.Role `json:"role"`
	Active           bool      `json:"active"`
	Approved         bool      `json:"approved"`
	Provider         string    `json:"provider"`
	AvatarURL        *string   `json:"avatarUrl,omitempty"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	HasPassword      bool      `json:"hasPassword"`
	CreatedAt        time.Time `json:"createdAt"`
}

func viewAccount(a *auth.Account) accountView {
	return accountView{
		ID:               a.ID,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Role:             a.Role,
		Active:           a.Active,
		Approved:         a.Approved,
		Provider:         a.Provider,
		AvatarURL:        a.AvatarURL,
		TwoFactorEnabled: a.TwoFactorEnabled,
		HasPassword:      a.HasPassword(),
		CreatedAt:        a.CreatedAt,
	}
}

type authResponse struct {
	Token             string       `json:"token,omitempty"`
	TokenType         string       `json:"tokenType,omitempty"`
	ExpiresIn         int64        `json:"expiresIn,omitempty"`
	RequiresTwoFactor bool         `json:"requiresTwoFactor"`
	RequiresApproval  bool         `json:"requiresApproval"`
	User              *accountView `json:"user,omitempty"`
}

func (s *Server) authResponse(res *auth.Result) authResponse {
	out := authResponse{
		RequiresTwoFactor: res.RequiresTwoFactor,
		RequiresApproval:  res.RequiresApproval,
	}
	if res.Token != "" {
		out.Token = res.Token
		out.TokenType = "Bearer"
		out.ExpiresIn = int64(s.Config.JWT.TTL.Seconds())
	}
	// A pending second factor reveals nothing about the account yet.
	if res.Account != nil && !res.RequiresTwoFactor {
		v := viewAccount(res.Account)
		out.User = &v
	}
	return out
}

func (s *Server) audit(r *http.Request, event, accountID string, meta map[string]any) {
	if err := s.Audit.Log(r.Context(), auth.AuditEvent{
		EventType: event,
		AccountID: accountID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
		Meta:      meta,
	}); err != nil {
		s.log.Warn("audit write failed", "event", event, "error", err)
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip); err != nil {
		s.log.Warn("register rate limit unavailable", "error", err)
	} else if locked {
		writeCooldown(w, "TOO_MANY_ATTEMPTS", ttl)
		return
	}

	res, err := s.Service.Register(ctx, auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditRegister, res.Account.ID, map[string]any{"role": res.Account.Role})
	writeJSON(w, http.StatusCreated, s.authResponse(res))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if s.RateLimiter.IsIPBanned(ctx, ip) {
		writeError(w, http.StatusTooManyRequests, "IP_BANNED")
		return
	}

	res, err := s.Service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if rerr := s.RateLimiter.RegisterLoginFailure(ctx, ip); rerr != nil {
				s.log.Warn("login rate limit unavailable", "error", rerr)
			}
			s.audit(r, auth.AuditLoginFailure, "", map[string]any{"email": auth.NormalizeEmail(req.Email)})
		}
		writeServiceError(w, s.log, r, err)
		return
	}

	s.RateLimiter.ResetLogin(ctx, ip)
	s.recordAdmission(r, res, "password")
	writeJSON(w, http.StatusOK, s.authResponse(res))
}

// recordAdmission audits the outcome of a successful credential check.
func (s *Server) recordAdmission(r *http.Request, res *auth.Result, method string) {
	event := auth.AuditLoginSuccess
	if res.RequiresTwoFactor {
		event = auth.AuditTwoFactorSent
	}
	s.audit(r, event, res.Account.ID, map[string]any{"method": method})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_OR_EXPIRED_OTP")
		return
	}

	res, err := s.Service.CompleteTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredOTP) || errors.Is(err, auth.ErrOTPLocked) {
			s.audit(r, auth.AuditTwoFactorFailure, "", map[string]any{"email": auth.NormalizeEmail(req.Email)})
		}
		writeServiceError(w, s.log, r, err)
		return
	}

	s.audit(r, auth.AuditTwoFactorSuccess, res.Account.ID, nil)
	writeJSON(w, http.StatusOK, s.authResponse(res))
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
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
	if wait := s.RateLimiter.Cooldown(ctx, "otp:"+email, auth.EmailCooldown); wait > 0 {
		writeCooldown(w, "COOLDOWN", wait)
		return
	}

	if err := s.Service.ResendOTP(ctx, email); err != nil {
		writeServiceError(w, s.log, r, err)
		return
	}
	// Same answer whether or not a code went out.
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "OTP_SENT_IF_ELIGIBLE"})
}
