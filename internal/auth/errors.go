package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials         = errors.New("invalid email or password")
	ErrDeactivated                = errors.New("account is deactivated")
	ErrPendingApproval            = errors.New("account is pending approval")
	ErrDuplicateEmail             = errors.New("email already registered")
	ErrIdentityLinked             = errors.New("federated identity already linked to another account")
	ErrInvalidOrExpiredOTP        = errors.New("invalid or expired otp code")
	ErrOTPLocked                  = errors.New("too many invalid otp attempts")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrPasswordMismatch           = errors.New("passwords do not match")
	ErrUnauthenticated            = errors.New("authentication required")
	ErrForbidden                  = errors.New("access denied")
	ErrNotFound                   = errors.New("not found")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidRole                = errors.New("role cannot be registered")
	ErrWeakPassword               = errors.New("password must be at least 6 characters")
	ErrTransportFailure           = errors.New("email transport failure")
	ErrInvalidToken               = errors.New("invalid bearer token")
)

// Reset-ledger causes; each also matches ErrInvalidOrExpiredResetToken.
var (
	ErrResetTokenNotFound = fmt.Errorf("%w: not found", ErrInvalidOrExpiredResetToken)
	ErrResetTokenExpired  = fmt.Errorf("%w: expired", ErrInvalidOrExpiredResetToken)
	ErrResetTokenUsed     = fmt.Errorf("%w: already used", ErrInvalidOrExpiredResetToken)
)
