package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"jobboard/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeCooldown(w http.ResponseWriter, message string, wait time.Duration) {
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"message":  message,
		"cooldown": int64(wait.Seconds()),
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorStatuses is checked in order; wrapped sentinels resolve through
// errors.Is, so the reset-token variants land on the generic entry.
var errorStatuses = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{auth.ErrDeactivated, http.StatusForbidden, "ACCOUNT_DEACTIVATED"},
	{auth.ErrPendingApproval, http.StatusForbidden, "PENDING_APPROVAL"},
	{auth.ErrDuplicateEmail, http.StatusConflict, "EMAIL_TAKEN"},
	{auth.ErrIdentityLinked, http.StatusConflict, "IDENTITY_LINKED"},
	{auth.ErrInvalidOrExpiredOTP, http.StatusBadRequest, "INVALID_OR_EXPIRED_OTP"},
	{auth.ErrOTPLocked, http.StatusTooManyRequests, "OTP_LOCKED"},
	{auth.ErrInvalidOrExpiredResetToken, http.StatusBadRequest, "INVALID_OR_EXPIRED_RESET_TOKEN"},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, "PASSWORD_MISMATCH"},
	{auth.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
	{auth.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
	{auth.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
	{auth.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{auth.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
}

func statusForError(err error) (int, string) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeServiceError maps err onto the response. Unclassified errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, message)
}

func clientIP(r *http.Request, trusted []net.IPNet) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || remoteHost == "" {
		remoteHost = r.RemoteAddr
	}

	// Forwarded headers count only when the peer itself is a trusted proxy.
	if remoteHost != "" && isTrustedProxy(remoteHost, trusted) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}

	return remoteHost
}

func parseProxyCIDRs(values []string) []net.IPNet {
	var nets []net.IPNet
	for _, v := range values {
		val := strings.TrimSpace(v)
		if val == "" {
			continue
		}
		if ip := net.ParseIP(val); ip != nil {
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, cidr, err := net.ParseCIDR(val); err == nil {
			nets = append(nets, *cidr)
		}
	}
	return nets
}

func isTrustedProxy(ipStr string, proxies []net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
