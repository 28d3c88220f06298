package auth

import (
	"context"
	"errors"
	"time"
)

const OTPTTL = 5 * time.Minute

// OTPEngine issues and checks emailed second-factor codes. Only the SHA-256
// of a code is stored on the account.
type OTPEngine struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewOTPEngine(store Store, notifier Notifier) *OTPEngine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &OTPEngine{store: store, notifier: notifier, now: time.Now}
}

// GenerateAndSend replaces any outstanding challenge for the account and
// hands the code to the notifier. Only storage failures are returned.
func (e *OTPEngine) GenerateAndSend(ctx context.Context, accountID string) error {
	code, err := randomOTPCode()
	if err != nil {
		return err
	}
	expiry := e.now().Add(OTPTTL).UTC()

	acct, err := e.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		a.OTPCode = stringPtr(HashString(code))
		a.OTPExpiry = &expiry
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.OTP(ctx, acct, code)
	return nil
}

// Verify consumes the outstanding challenge when code matches. An expired
// challenge is cleared and fails; a wrong code fails and leaves it in place.
func (e *OTPEngine) Verify(ctx context.Context, accountID, code string) (bool, error) {
	matched := false
	_, err := e.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		matched = false
		if a.OTPCode == nil || a.OTPExpiry == nil {
			return errNoChange
		}
		if !e.now().Before(*a.OTPExpiry) {
			a.clearOTP()
			return nil
		}
		if !hashMatches(*a.OTPCode, code) {
			return errNoChange
		}
		a.clearOTP()
		matched = true
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return matched, nil
}

func (e *OTPEngine) Clear(ctx context.Context, accountID string) error {
	_, err := e.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		if a.OTPCode == nil && a.OTPExpiry == nil {
			return errNoChange
		}
		a.clearOTP()
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}
