package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"jobboard/internal/logging"
)

const (
	minNameLength = 2
	maxNameLength = 50
)

// Result is the outcome of a login-like operation. Token is empty when
// RequiresTwoFactor or RequiresApproval is set.
type Result struct {
	Token             string
	Account           *Account
	RequiresTwoFactor bool
	RequiresApproval  bool
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// OTPAttempts bounds wrong second-factor codes per account.
type OTPAttempts interface {
	RegisterOTPFailure(ctx context.Context, accountID string) (bool, error)
	ResetOTP(ctx context.Context, accountID string)
}

type Options struct {
	Store    Store
	Hasher   PasswordHasher
	Tokens   *TokenCodec
	Notifier Notifier
	Attempts OTPAttempts
	// BaseURL is the frontend origin used in reset links.
	BaseURL string
	Logger  *slog.Logger
}

// Service orchestrates registration, login and credential recovery.
type Service struct {
	store    Store
	hasher   PasswordHasher
	tokens   *TokenCodec
	notifier Notifier
	attempts OTPAttempts
	otp      *OTPEngine
	resets   *ResetLedger
	linker   *IdentityLinker
	baseURL  string
	log      *slog.Logger
	now      func() time.Time
}

func NewService(opts Options) *Service {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		store:    opts.Store,
		hasher:   opts.Hasher,
		tokens:   opts.Tokens,
		notifier: notifier,
		attempts: opts.Attempts,
		otp:      NewOTPEngine(opts.Store, notifier),
		resets:   NewResetLedger(opts.Store, opts.Hasher),
		linker:   NewIdentityLinker(opts.Store),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if !validName(first) || !validName(last) {
		return nil, fmt.Errorf("%w: names must be %d-%d characters", ErrInvalidInput, minNameLength, maxNameLength)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	role, ok := ParseRole(in.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}
	if role == RoleAdmin {
		return nil, ErrInvalidRole
	}

	exists, err := s.store.Accounts().ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: &hash,
		Role:         role,
		Active:       true,
		Approved:     !role.RequiresApproval(),
		Provider:     ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Accounts().Create(ctx, acct); err != nil {
		return nil, err
	}
	s.log.Info("account registered", "account_id", acct.ID, "role", acct.Role)
	s.notifier.Welcome(ctx, acct)

	if acct.AwaitingApproval() {
		return &Result{Account: acct, RequiresApproval: true}, nil
	}
	return s.issue(acct)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	acct, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil || !acct.HasPassword() || !s.hasher.Compare(*acct.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.admit(ctx, acct)
}

// admit applies the post-credential gates shared by every login path.
func (s *Service) admit(ctx context.Context, acct *Account) (*Result, error) {
	if err := checkStanding(acct); err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		if err := s.challenge(ctx, acct.ID); err != nil {
			return nil, err
		}
		return &Result{Account: acct, RequiresTwoFactor: true}, nil
	}
	return s.issue(acct)
}

func checkStanding(acct *Account) error {
	if !acct.Active {
		return ErrDeactivated
	}
	if acct.AwaitingApproval() {
		return ErrPendingApproval
	}
	return nil
}

func (s *Service) CompleteTwoFactor(ctx context.Context, email, code string) (*Result, error) {
	acct, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidOrExpiredOTP
	}
	if err := checkStanding(acct); err != nil {
		return nil, err
	}

	ok, err := s.otp.Verify(ctx, acct.ID, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.otpFailure(ctx, acct.ID)
	}
	if s.attempts != nil {
		s.attempts.ResetOTP(ctx, acct.ID)
	}
	return s.issue(acct)
}

func (s *Service) otpFailure(ctx context.Context, accountID string) error {
	if s.attempts == nil {
		return ErrInvalidOrExpiredOTP
	}
	locked, err := s.attempts.RegisterOTPFailure(ctx, accountID)
	if err != nil {
		s.log.Warn("otp attempt counter unavailable", "account_id", accountID, "error", err)
		return ErrInvalidOrExpiredOTP
	}
	if !locked {
		return ErrInvalidOrExpiredOTP
	}
	if err := s.otp.Clear(ctx, accountID); err != nil {
		return err
	}
	s.attempts.ResetOTP(ctx, accountID)
	s.log.Warn("otp challenge invalidated after repeated failures", "account_id", accountID)
	return ErrOTPLocked
}

// ResendOTP issues a fresh challenge when the account has two-factor enabled.
// Unknown or ineligible emails are ignored.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	acct, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil || !acct.TwoFactorEnabled || checkStanding(acct) != nil {
		return nil
	}
	return s.challenge(ctx, acct.ID)
}

// challenge replaces the outstanding code. Wrong guesses count against a
// single challenge, so the counter starts over with each new one.
func (s *Service) challenge(ctx context.Context, accountID string) error {
	if s.attempts != nil {
		s.attempts.ResetOTP(ctx, accountID)
	}
	return s.otp.GenerateAndSend(ctx, accountID)
}

// ForgotPassword mails a reset link. Unknown emails yield ErrNotFound, so
// this call reveals whether an address is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	token, err := s.resets.Issue(ctx, acct.ID)
	if err != nil {
		return err
	}
	s.notifier.PasswordReset(ctx, acct, s.baseURL+"/reset-password?token="+token)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*Account, error) {
	if newPassword != confirmPassword {
		return nil, ErrPasswordMismatch
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrResetTokenNotFound
	}
	acct, err := s.resets.Redeem(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}
	s.log.Info("password reset", "account_id", acct.ID)
	return acct, nil
}

// ReconcileOAuth links the identity and runs the same standing and
// two-factor gates as a password login.
func (s *Service) ReconcileOAuth(ctx context.Context, id Identity) (*Result, error) {
	acct, created, err := s.linker.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	if created {
		s.log.Info("account created from federated identity", "account_id", acct.ID, "provider", id.Provider)
		s.notifier.Welcome(ctx, acct)
	}
	return s.admit(ctx, acct)
}

// Authenticate resolves a bearer token to its principal. The account must
// still exist and be active.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	acct, err := s.store.Accounts().FindByEmail(ctx, subject)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrUnauthenticated
	}
	if !acct.Active {
		return nil, ErrDeactivated
	}
	return PrincipalFor(acct), nil
}

func (s *Service) Account(ctx context.Context, id string) (*Account, error) {
	acct, err := s.store.Accounts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	return acct, nil
}

func (s *Service) ChangePassword(ctx context.Context, accountID, current, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	_, err = s.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		if !a.HasPassword() || !s.hasher.Compare(*a.PasswordHash, current) {
			return ErrInvalidCredentials
		}
		a.PasswordHash = &hash
		return nil
	})
	return err
}

// SetTwoFactor toggles email second factor. Disabling drops any
// outstanding challenge.
func (s *Service) SetTwoFactor(ctx context.Context, accountID string, enabled bool) (*Account, error) {
	return s.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		a.TwoFactorEnabled = enabled
		if !enabled {
			a.clearOTP()
		}
		return nil
	})
}

// ListPendingRecruiters returns active recruiters awaiting approval.
func (s *Service) ListPendingRecruiters(ctx context.Context) ([]*Account, error) {
	all, err := s.store.Accounts().FindByRoleUnapproved(ctx, RoleRecruiter)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, a := range all {
		if a.Active {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

func (s *Service) ApproveRecruiter(ctx context.Context, accountID string) (*Account, error) {
	acct, err := s.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		if a.Role != RoleRecruiter {
			return fmt.Errorf("%w: account is not a recruiter", ErrInvalidRole)
		}
		a.Approved = true
		a.Active = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.RecruiterApproved(ctx, acct)
	return acct, nil
}

// RejectRecruiter deactivates the account; records are never deleted here.
func (s *Service) RejectRecruiter(ctx context.Context, accountID string) (*Account, error) {
	acct, err := s.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		if a.Role != RoleRecruiter {
			return fmt.Errorf("%w: account is not a recruiter", ErrInvalidRole)
		}
		a.Approved = false
		a.Active = false
		a.clearOTP()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.RecruiterRejected(ctx, acct)
	return acct, nil
}

func (s *Service) SetActive(ctx context.Context, accountID string, active bool) (*Account, error) {
	return s.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		a.Active = active
		if !active {
			a.clearOTP()
		}
		return nil
	})
}

func (s *Service) issue(acct *Account) (*Result, error) {
	token, err := s.tokens.Issue(acct.Email, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, Account: acct}, nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return email, nil
}

func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= minNameLength && n <= maxNameLength
}

// IsClientError reports whether err is one of the user-safe sentinels.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrDeactivated, ErrPendingApproval, ErrDuplicateEmail,
		ErrInvalidOrExpiredOTP, ErrOTPLocked, ErrInvalidOrExpiredResetToken, ErrPasswordMismatch,
		ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrInvalidInput, ErrInvalidRole,
		ErrWeakPassword, ErrInvalidToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
