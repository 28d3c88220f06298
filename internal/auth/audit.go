package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditLoginSuccess     = "login_success"
	AuditLoginFailure     = "login_failure"
	AuditTwoFactorSent    = "two_factor_sent"
	AuditTwoFactorSuccess = "two_factor_success"
	AuditTwoFactorFailure = "two_factor_failure"
	AuditRegister         = "register"
	AuditResetRequested   = "password_reset_requested"
	AuditResetCompleted   = "password_reset_completed"
	AuditPasswordChanged  = "password_changed"
	AuditOAuthLogin       = "oauth_login"
	AuditTwoFactorToggled = "two_factor_toggled"
	AuditAdminAction      = "admin_action"
)

type AuditEvent struct {
	EventType string         `json:"eventType"`
	AccountID string         `json:"accountId,omitempty"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"userAgent"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// AuditLogger appends events to a capped redis list per account.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func auditKey(accountID string) string {
	if accountID == "" {
		return "audit"
	}
	return "audit:" + accountID
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	if a == nil || a.Redis == nil {
		return nil
	}
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := auditKey(e.AccountID)
	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n of the newest events for the account, oldest first.
func (a *AuditLogger) Recent(ctx context.Context, accountID string, n int64) ([]AuditEvent, error) {
	if a == nil || a.Redis == nil || n <= 0 {
		return nil, nil
	}
	raw, err := a.Redis.LRange(ctx, auditKey(accountID), -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
