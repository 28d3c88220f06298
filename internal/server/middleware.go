package server

import (
	"context"
	"net/http"
	"strings"

	"jobboard/internal/auth"
	"jobboard/internal/i18n"
)

type ctxKey string

const principalContextKey ctxKey = "principal"

// authenticate attaches the bearer token's principal to the request. Missing
// or bad tokens leave the request anonymous; the policy decides what that
// means for the route.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := s.Service.Authenticate(r.Context(), token)
		if err != nil {
			level := s.log.Debug
			if !auth.IsClientError(err) {
				level = s.log.Error
			}
			level("bearer token rejected", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authorize(policy *Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := policy.Match(r.Method, r.URL.Path)
			principal := PrincipalFromContext(r.Context())
			if access.allows(principal) {
				next.ServeHTTP(w, r)
				return
			}
			err := auth.ErrForbidden
			if principal == nil {
				err = auth.ErrUnauthenticated
			}
			status, message := statusForError(err)
			writeError(w, status, message)
		})
	}
}

// withLocale carries the Accept-Language choice to code that renders emails.
func withLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := i18n.WithLocale(r.Context(), i18n.LocaleFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func PrincipalFromContext(ctx context.Context) *auth.Principal {
	if val, ok := ctx.Value(principalContextKey).(*auth.Principal); ok {
		return val
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requirePrincipal fetches the caller for handlers behind an authenticated
// rule. It writes 401 itself when the principal is missing.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		status, message := statusForError(auth.ErrUnauthenticated)
		writeError(w, status, message)
		return nil, false
	}
	return p, true
}
