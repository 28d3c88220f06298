package server

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jobboard/internal/auth"
	"jobboard/internal/config"
	"jobboard/internal/logging"
	"jobboard/internal/oauth"
)

type Options struct {
	Config      config.Config
	Service     *auth.Service
	RateLimiter *auth.RateLimiter
	Audit       *auth.AuditLogger
	// Providers are registered only when OAuth is enabled in Config.
	Providers []oauth.Provider
	States    *oauth.StateStore
	Policy    *Policy
	Logger    *slog.Logger
}

type Server struct {
	Service        *auth.Service
	RateLimiter    *auth.RateLimiter
	Audit          *auth.AuditLogger
	States         *oauth.StateStore
	Config         config.Config
	providers      map[string]oauth.Provider
	policy         *Policy
	trustedProxies []net.IPNet
	log            *slog.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	providers := make(map[string]oauth.Provider)
	if opts.Config.OAuth.Enabled {
		for _, p := range opts.Providers {
			providers[p.Name()] = p
		}
	}

	return &Server{
		Service:        opts.Service,
		RateLimiter:    opts.RateLimiter,
		Audit:          opts.Audit,
		States:         opts.States,
		Config:         opts.Config,
		providers:      providers,
		policy:         policy,
		trustedProxies: parseProxyCIDRs(opts.Config.TrustedProxies),
		log:            log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logging.StdLogger(s.log),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(withLocale)
	r.Use(s.authenticate)
	r.Use(s.authorize(s.policy))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Post("/register", s.handleRegister)
		ar.Post("/login", s.handleLogin)
		ar.Post("/verify-otp", s.handleVerifyOTP)
		ar.Post("/resend-otp", s.handleResendOTP)
		ar.Post("/forgot-password", s.handleForgotPassword)
		ar.Post("/reset-password", s.handleResetPassword)
	})

	if len(s.providers) > 0 {
		r.Get("/oauth2/authorization/{provider}", s.handleOAuthStart)
		r.Get("/login/oauth2/code/{provider}", s.handleOAuthCallback)
	}

	r.Route("/api/users/me", func(ur chi.Router) {
		ur.Get("/", s.handleMe)
		ur.Post("/password", s.handleChangePassword)
		ur.Post("/two-factor", s.handleTwoFactor)
	})

	r.Route("/api/admin", func(ad chi.Router) {
		ad.Get("/recruiters/pending", s.handlePendingRecruiters)
		ad.Patch("/recruiters/{id}/approve", s.handleApproveRecruiter)
		ad.Patch("/recruiters/{id}/reject", s.handleRejectRecruiter)
		ad.Patch("/users/{id}/activate", s.handleSetActive(true))
		ad.Patch("/users/{id}/deactivate", s.handleSetActive(false))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
