package email

import (
	"context"
	"strings"
	"time"

	"jobboard/internal/auth"
	"jobboard/internal/i18n"
)

var _ auth.Notifier = (*Notifier)(nil)

// Notifier renders account emails in the caller's locale and queues them.
type Notifier struct {
	dispatcher *Dispatcher
	baseURL    string
}

func NewNotifier(d *Dispatcher, baseURL string) *Notifier {
	return &Notifier{dispatcher: d, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *Notifier) Welcome(ctx context.Context, a *auth.Account) {
	n.send(a, i18n.WelcomeEmail(i18n.LocaleFromContext(ctx), displayName(a), string(a.Role), a.AwaitingApproval()))
}

func (n *Notifier) OTP(ctx context.Context, a *auth.Account, code string) {
	n.send(a, i18n.TwoFactorEmail(i18n.LocaleFromContext(ctx), displayName(a), code, int(auth.OTPTTL/time.Minute)))
}

func (n *Notifier) PasswordReset(ctx context.Context, a *auth.Account, link string) {
	n.send(a, i18n.PasswordResetEmail(i18n.LocaleFromContext(ctx), displayName(a), link, int(auth.ResetTokenTTL/time.Minute)))
}

func (n *Notifier) RecruiterApproved(ctx context.Context, a *auth.Account) {
	n.send(a, i18n.RecruiterApprovedEmail(i18n.LocaleFromContext(ctx), displayName(a), n.baseURL+"/login"))
}

func (n *Notifier) RecruiterRejected(ctx context.Context, a *auth.Account) {
	n.send(a, i18n.RecruiterRejectedEmail(i18n.LocaleFromContext(ctx), displayName(a)))
}

func (n *Notifier) send(a *auth.Account, content i18n.EmailContent) {
	n.dispatcher.Enqueue(Message{
		To:      a.Email,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	})
}

func displayName(a *auth.Account) string {
	if a.FirstName != "" {
		return a.FirstName
	}
	return a.Email
}
