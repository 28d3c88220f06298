package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter keeps attempt counters in redis. A nil limiter or one without
// a client never limits.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts         = 5
	loginAttemptTTL          = 10 * time.Minute
	loginBanTTL              = 1 * time.Hour
	otpMaxAttempts           = 5
	otpAttemptTTL            = OTPTTL
	EmailCooldown            = 60 * time.Second
	forgotMaxAttempts        = 5
	forgotAttemptTTL         = 15 * time.Minute
	registerMaxAttemptsIP    = 10
	registerAttemptTTLIP     = 30 * time.Minute
	registerMaxAttemptsEmail = 3
	registerAttemptTTLEmail  = 30 * time.Minute
)

func (r *RateLimiter) enabled() bool {
	return r != nil && r.Redis != nil
}

func loginAttemptKey(ip string) string      { return "login_attempts:" + ip }
func loginBanKey(ip string) string          { return "login_ban:" + ip }
func otpAttemptKey(accountID string) string { return "otp_attempts:" + accountID }

func keyOrEmpty(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	if !r.enabled() {
		return false
	}
	exists, _ := r.Redis.Exists(ctx, loginBanKey(ip)).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	if !r.enabled() {
		return nil
	}
	key := loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	if !r.enabled() {
		return
	}
	r.Redis.Del(ctx, loginAttemptKey(ip))
}

// RegisterOTPFailure counts a wrong code for the account's outstanding
// challenge and reports whether the bound has been reached.
func (r *RateLimiter) RegisterOTPFailure(ctx context.Context, accountID string) (bool, error) {
	if !r.enabled() {
		return false, nil
	}
	key := otpAttemptKey(accountID)
	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, otpAttemptTTL)
	}
	return attempts >= otpMaxAttempts, nil
}

func (r *RateLimiter) ResetOTP(ctx context.Context, accountID string) {
	if !r.enabled() {
		return
	}
	r.Redis.Del(ctx, otpAttemptKey(accountID))
}

type attemptKey struct {
	key string
	max int64
	ttl time.Duration
}

// register increments every non-empty key and reports whether any of them
// hit its maximum, with the longest remaining window.
func (r *RateLimiter) register(ctx context.Context, keys []attemptKey) (bool, time.Duration, error) {
	if !r.enabled() {
		return false, 0, nil
	}
	locked := false
	var ttlMax time.Duration

	for _, k := range keys {
		if k.key == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, k.key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, k.key, k.ttl)
		}
		if attempts >= k.max {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, k.key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}
	return locked, ttlMax, nil
}

func (r *RateLimiter) RegisterForgotAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.register(ctx, []attemptKey{
		{keyOrEmpty("forgot_attempts:", NormalizeEmail(email)), forgotMaxAttempts, forgotAttemptTTL},
		{keyOrEmpty("forgot_attempts_ip:", ip), forgotMaxAttempts, forgotAttemptTTL},
	})
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.register(ctx, []attemptKey{
		{keyOrEmpty("register_attempts_ip:", ip), registerMaxAttemptsIP, registerAttemptTTLIP},
		{keyOrEmpty("register_attempts_email:", NormalizeEmail(email)), registerMaxAttemptsEmail, registerAttemptTTLEmail},
	})
}

// Cooldown reports the remaining cooldown for key, starting one when none
// is running.
func (r *RateLimiter) Cooldown(ctx context.Context, key string, ttl time.Duration) time.Duration {
	if !r.enabled() {
		return 0
	}
	ok, err := r.Redis.SetNX(ctx, "cooldown:"+key, "1", ttl).Result()
	if err != nil || ok {
		return 0
	}
	remaining, err := r.Redis.TTL(ctx, "cooldown:"+key).Result()
	if err != nil || remaining < 0 {
		return 0
	}
	return remaining
}
