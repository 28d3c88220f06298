package auth

import (
	"context"
	"errors"
	"time"
)

// AccountStore is the credential store. Lookups return (nil, nil) when no
// account matches.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByProvider(ctx context.Context, provider, subject string) (*Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, a *Account) error
	Save(ctx context.Context, a *Account) error
	// Update loads the account under a row lock, applies fn and persists the
	// result atomically. If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(*Account) error) (*Account, error)
	FindByRoleUnapproved(ctx context.Context, role Role) ([]*Account, error)
}

// ResetTokenStore keeps password-reset grants. Tokens are looked up by the
// SHA-256 of their plaintext; the plaintext is never stored.
type ResetTokenStore interface {
	FindByToken(ctx context.Context, tokenHash string) (*ResetToken, error)
	FindUnusedByAccount(ctx context.Context, accountID string) ([]*ResetToken, error)
	Save(ctx context.Context, t *ResetToken) error
}

type Store interface {
	Accounts() AccountStore
	ResetTokens() ResetTokenStore
	// InTx runs fn against a store bound to one transaction. Reads made
	// through tx lock what they return until fn completes. Nested calls
	// reuse the outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// errNoChange aborts an Update without writing and without surfacing an
// error to the caller.
var errNoChange = errors.New("no change")

func updateAccount(ctx context.Context, s Store, id string, fn func(*Account) error) (*Account, error) {
	var out *Account
	err := s.InTx(ctx, func(tx Store) error {
		acct, err := tx.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if acct == nil {
			return ErrNotFound
		}
		if err := fn(acct); err != nil {
			return err
		}
		acct.UpdatedAt = time.Now().UTC()
		if err := tx.Accounts().Save(ctx, acct); err != nil {
			return err
		}
		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
