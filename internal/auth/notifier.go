package auth

import "context"

// Notifier delivers account emails. Implementations must not block the
// caller on delivery; failures are theirs to log.
type Notifier interface {
	Welcome(ctx context.Context, a *Account)
	OTP(ctx context.Context, a *Account, code string)
	PasswordReset(ctx context.Context, a *Account, link string)
	RecruiterApproved(ctx context.Context, a *Account)
	RecruiterRejected(ctx context.Context, a *Account)
}

type nopNotifier struct{}

func (nopNotifier) Welcome(context.Context, *Account)               {}
func (nopNotifier) OTP(context.Context, *Account, string)           {}
func (nopNotifier) PasswordReset(context.Context, *Account, string) {}
func (nopNotifier) RecruiterApproved(context.Context, *Account)     {}
func (nopNotifier) RecruiterRejected(context.Context, *Account)     {}
