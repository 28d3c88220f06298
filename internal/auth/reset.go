package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const ResetTokenTTL = 30 * time.Minute

// ResetLedger issues single-use password-reset tokens. At most one unused
// token per account is live; issuing a new one marks the others used.
type ResetLedger struct {
	store  Store
	hasher PasswordHasher
	now    func() time.Time
}

func NewResetLedger(store Store, hasher PasswordHasher) *ResetLedger {
	return &ResetLedger{store: store, hasher: hasher, now: time.Now}
}

// Issue returns the plaintext token for the reset link.
func (l *ResetLedger) Issue(ctx context.Context, accountID string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	now := l.now().UTC()

	err = l.store.InTx(ctx, func(tx Store) error {
		// Locking the account row serializes concurrent issuances.
		acct, err := tx.Accounts().FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ErrNotFound
		}

		prior, err := tx.ResetTokens().FindUnusedByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		for _, p := range prior {
			p.Used = true
			if err := tx.ResetTokens().Save(ctx, p); err != nil {
				return err
			}
		}

		return tx.ResetTokens().Save(ctx, &ResetToken{
			ID:        uuid.NewString(),
			TokenHash: HashString(token),
			AccountID: accountID,
			ExpiresAt: now.Add(ResetTokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Redeem sets the new password and consumes the token in one transaction.
func (l *ResetLedger) Redeem(ctx context.Context, token, newPassword string) (*Account, error) {
	hash, err := l.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	var acct *Account
	err = l.store.InTx(ctx, func(tx Store) error {
		rt, err := tx.ResetTokens().FindByToken(ctx, HashString(token))
		if err != nil {
			return err
		}
		if rt == nil {
			return ErrResetTokenNotFound
		}
		if !rt.Valid(l.now()) {
			if rt.Used {
				return ErrResetTokenUsed
			}
			return ErrResetTokenExpired
		}

		acct, err = tx.Accounts().Update(ctx, rt.AccountID, func(a *Account) error {
			a.PasswordHash = &hash
			return nil
		})
		if err != nil {
			return err
		}

		rt.Used = true
		return tx.ResetTokens().Save(ctx, rt)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}
