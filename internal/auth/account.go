package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleRecruiter Role = "RECRUITER"
	RoleSeeker    Role = "SEEKER"
)

// ProviderLocal marks an account that has never been linked to a federated
// identity.
const ProviderLocal = "local"

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleRecruiter:
		return RoleRecruiter, true
	case RoleSeeker:
		return RoleSeeker, true
	default:
		return "", false
	}
}

// RequiresApproval reports whether accounts with this role are held until an
// administrator approves them.
func (r Role) RequiresApproval() bool {
	return r == RoleRecruiter
}

type Account struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	PasswordHash     *string
	Role             Role
	Active           bool
	Approved         bool
	Provider         string
	ProviderID       *string
	AvatarURL        *string
	TwoFactorEnabled bool
	OTPCode          *string
	OTPExpiry        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// AwaitingApproval is true for an approval-gated role that has not been
// approved yet.
func (a *Account) AwaitingApproval() bool {
	return a.Role.RequiresApproval() && !a.Approved
}

func (a *Account) clearOTP() {
	a.OTPCode = nil
	a.OTPExpiry = nil
}

func (a *Account) clone() *Account {
	cp := *a
	cp.PasswordHash = cloneString(a.PasswordHash)
	cp.ProviderID = cloneString(a.ProviderID)
	cp.AvatarURL = cloneString(a.AvatarURL)
	cp.OTPCode = cloneString(a.OTPCode)
	if a.OTPExpiry != nil {
		t := *a.OTPExpiry
		cp.OTPExpiry = &t
	}
	return &cp
}

type ResetToken struct {
	ID        string
	TokenHash string
	AccountID string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Valid reports !used && now < expiry.
func (t *ResetToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

// Principal is the per-request view of an authenticated account.
type Principal struct {
	AccountID string
	Email     string
	Role      Role
	Active    bool
}

func PrincipalFor(a *Account) *Principal {
	return &Principal{AccountID: a.ID, Email: a.Email, Role: a.Role, Active: a.Active}
}

func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func stringPtr(s string) *string {
	return &s
}
