package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg := env.register(t, "A@x.com", "secret1", RoleSeeker)
	require.NotEmpty(t, reg.Token)
	assert.False(t, reg.RequiresApproval)
	assert.Equal(t, []string{"a@x.com"}, env.notifier.welcomed)

	res, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	subject, err := env.codec.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)
}

func TestService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	valid := RegisterInput{Email: "a@x.com", Password: "secret1", FirstName: "Ann", LastName: "Lee", Role: "SEEKER"}

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidInput},
		{"short first name", func(in *RegisterInput) { in.FirstName = "A" }, ErrInvalidInput},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }, ErrWeakPassword},
		{"unknown role", func(in *RegisterInput) { in.Role = "OWNER" }, ErrInvalidInput},
		{"admin role", func(in *RegisterInput) { in.Role = "ADMIN" }, ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := env.svc.Register(ctx, in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "secret1", RoleSeeker)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Email: "A@X.COM", Password: "secret2", FirstName: "Bob", LastName: "Ray", Role: "SEEKER",
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestService_InvalidCredentialsDoNotEnumerate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", RoleSeeker)

	_, errWrong := env.svc.Login(ctx, "a@x.com", "wrong-pass")
	_, errMissing := env.svc.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errMissing, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errMissing.Error())
}

func TestService_RecruiterApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg := env.register(t, "rec@x.com", "secret1", RoleRecruiter)
	assert.True(t, reg.RequiresApproval)
	assert.Empty(t, reg.Token)

	_, err := env.svc.Login(ctx, "rec@x.com", "secret1")
	assert.ErrorIs(t, err, ErrPendingApproval)

	pending, err := env.svc.ListPendingRecruiters(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = env.svc.ApproveRecruiter(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec@x.com"}, env.notifier.approved)

	res, err := env.svc.Login(ctx, "rec@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	pending, err = env.svc.ListPendingRecruiters(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_RejectRecruiterDeactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "rec@x.com", "secret1", RoleRecruiter)

	_, err := env.svc.RejectRecruiter(ctx, reg.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec@x.com"}, env.notifier.rejected)

	_, err = env.svc.Login(ctx, "rec@x.com", "secret1")
	assert.ErrorIs(t, err, ErrDeactivated)

	pending, err := env.svc.ListPendingRecruiters(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	seeker := env.register(t, "s@x.com", "secret1", RoleSeeker)
	_, err = env.svc.ApproveRecruiter(ctx, seeker.Account.ID)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_TwoFactorLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)
	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)

	res, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
	assert.Empty(t, res.Token)

	code := env.notifier.lastOTP("a@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)

	res, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	subject, err := env.codec.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)

	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestService_TwoFactorAttemptsAreBounded(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t)
	env.svc.attempts = &RateLimiter{Redis: rdb}
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)
	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	code := env.notifier.lastOTP("a@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < otpMaxAttempts-1; i++ {
		_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", wrong)
		require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	}
	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", wrong)
	require.ErrorIs(t, err, ErrOTPLocked)

	// The challenge is gone, so even the right code fails now.
	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestService_NewLoginChallengeStartsFreshCount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t)
	env.svc.attempts = &RateLimiter{Redis: rdb}
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)
	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	for i := 0; i < otpMaxAttempts-1; i++ {
		_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", wrongCode(env.notifier.lastOTP("a@x.com")))
		require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	}

	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	code := env.notifier.lastOTP("a@x.com")

	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", wrongCode(code))
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	assert.NotErrorIs(t, err, ErrOTPLocked)

	res, err := env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestService_ResendOTPReplacesChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)

	require.NoError(t, env.svc.ResendOTP(ctx, "a@x.com"))
	assert.Empty(t, env.notifier.lastOTP("a@x.com"), "no challenge without two-factor")

	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)
	require.NoError(t, env.svc.ResendOTP(ctx, "a@x.com"))
	code := env.notifier.lastOTP("a@x.com")
	require.NotEmpty(t, code)

	res, err := env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	assert.NoError(t, env.svc.ResendOTP(ctx, "nobody@x.com"))
}

func TestService_DisablingTwoFactorClearsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)
	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)
	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	acct, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, false)
	require.NoError(t, err)
	assert.Nil(t, acct.OTPCode)
	assert.Nil(t, acct.OTPExpiry)
}

func TestService_DeactivatedAccountGetsNoToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)

	_, err := env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)
	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	code := env.notifier.lastOTP("a@x.com")

	_, err = env.svc.SetActive(ctx, reg.Account.ID, false)
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrDeactivated)
	_, err = env.svc.CompleteTwoFactor(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, ErrDeactivated)
	_, err = env.svc.ReconcileOAuth(ctx, Identity{Provider: "google", Subject: "g-1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDeactivated)

	_, err = env.svc.Authenticate(ctx, reg.Token)
	assert.ErrorIs(t, err, ErrDeactivated)

	_, err = env.svc.SetActive(ctx, reg.Account.ID, true)
	require.NoError(t, err)
	principal, err := env.svc.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Account.ID, principal.AccountID)
	assert.Equal(t, RoleSeeker, principal.Role)
}

func TestService_ForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", RoleSeeker)

	require.NoError(t, env.svc.ForgotPassword(ctx, "a@x.com"))
	t1 := env.notifier.lastResetToken(t, "a@x.com")
	require.NoError(t, env.svc.ForgotPassword(ctx, "A@x.com"))
	t2 := env.notifier.lastResetToken(t, "a@x.com")
	assert.NotEqual(t, t1, t2)
	assert.Contains(t, env.notifier.resetLinks["a@x.com"][1], "http://frontend.test/reset-password?token=")

	_, err := env.svc.ResetPassword(ctx, t2, "newpass1", "different")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = env.svc.ResetPassword(ctx, t1, "newpass1", "newpass1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)

	_, err = env.svc.ResetPassword(ctx, t2, "newpass1", "newpass1")
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)
	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.ResetPassword(ctx, t2, "another1", "another1")
	assert.ErrorIs(t, err, ErrResetTokenUsed)
}

func TestService_ForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)

	err := env.svc.ChangePassword(ctx, reg.Account.ID, "wrong", "newpass1", "newpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	err = env.svc.ChangePassword(ctx, reg.Account.ID, "secret1", "newpass1", "newpass2")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	require.NoError(t, env.svc.ChangePassword(ctx, reg.Account.ID, "secret1", "newpass1", "newpass1"))

	_, err = env.svc.Login(ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)
}

func TestService_ReconcileOAuth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.ReconcileOAuth(ctx, Identity{Provider: "google", Subject: "g-1", Email: "new@x.com", Name: "New Person"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, []string{"new@x.com"}, env.notifier.welcomed)

	_, err = env.svc.Login(ctx, "new@x.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "federated-only accounts have no password")

	_, err = env.svc.ReconcileOAuth(ctx, Identity{Provider: "google", Subject: "g-1", Email: "new@x.com"})
	require.NoError(t, err)
	assert.Len(t, env.notifier.welcomed, 1)
}

func TestService_ReconcileOAuthHonorsApprovalAndTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "rec@x.com", "secret1", RoleRecruiter)
	_, err := env.svc.ReconcileOAuth(ctx, Identity{Provider: "google", Subject: "g-r", Email: "rec@x.com"})
	assert.ErrorIs(t, err, ErrPendingApproval)

	reg := env.register(t, "a@x.com", "secret1", RoleSeeker)
	_, err = env.svc.SetTwoFactor(ctx, reg.Account.ID, true)
	require.NoError(t, err)
	res, err := env.svc.ReconcileOAuth(ctx, Identity{Provider: "google", Subject: "g-a", Email: "a@x.com"})
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
	assert.Empty(t, res.Token)
	assert.NotEmpty(t, env.notifier.lastOTP("a@x.com"))
}

func TestService_AuthenticateRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := env.codec.Issue("ghost@x.com", nil)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrResetTokenExpired))
	assert.True(t, IsClientError(ErrDuplicateEmail))
	assert.False(t, IsClientError(assert.AnError))
}
