package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const placeholderFirstName = "User"

// Identity is a verified assertion from a federated identity provider.
type Identity struct {
	Provider   string
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Name       string
	AvatarURL  string
}

// IdentityLinker maps federated identities onto local accounts.
//
// An existing local-password account with the asserted email is linked
// without asking for its password. The provider's email assertion is the
// only proof of ownership.
type IdentityLinker struct {
	store Store
	now   func() time.Time
}

func NewIdentityLinker(store Store) *IdentityLinker {
	return &IdentityLinker{store: store, now: time.Now}
}

// Reconcile returns the account for the identity, creating it when absent.
// created reports whether a new account was made.
func (l *IdentityLinker) Reconcile(ctx context.Context, id Identity) (acct *Account, created bool, err error) {
	id.Email = NormalizeEmail(id.Email)
	if id.Email == "" || id.Provider == "" || id.Subject == "" {
		return nil, false, fmt.Errorf("%w: identity needs provider, subject and email", ErrInvalidInput)
	}

	for attempt := 0; attempt < 2; attempt++ {
		// The provider subject is authoritative; an email change at the
		// provider must not move the identity onto another account.
		owner, err := l.store.Accounts().FindByProvider(ctx, id.Provider, id.Subject)
		if err != nil {
			return nil, false, err
		}
		if owner == nil {
			owner, err = l.store.Accounts().FindByEmail(ctx, id.Email)
			if err != nil {
				return nil, false, err
			}
		}
		if owner != nil {
			acct, err := l.link(ctx, owner.ID, id)
			return acct, false, err
		}

		acct, err := l.create(ctx, id)
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrIdentityLinked) {
			// Lost a race with a concurrent registration or link; look again.
			continue
		}
		return acct, err == nil, err
	}
	return nil, false, ErrDuplicateEmail
}

func (l *IdentityLinker) create(ctx context.Context, id Identity) (*Account, error) {
	now := l.now().UTC()
	first, last := deriveNames(id)
	acct := &Account{
		ID:         uuid.NewString(),
		Email:      id.Email,
		FirstName:  first,
		LastName:   last,
		Role:       RoleSeeker,
		Active:     true,
		Approved:   true,
		Provider:   id.Provider,
		ProviderID: stringPtr(id.Subject),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if id.AvatarURL != "" {
		acct.AvatarURL = stringPtr(id.AvatarURL)
	}
	if err := l.store.Accounts().Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (l *IdentityLinker) link(ctx context.Context, accountID string, id Identity) (*Account, error) {
	acct, err := l.store.Accounts().Update(ctx, accountID, func(a *Account) error {
		switch a.Provider {
		case "", ProviderLocal, id.Provider:
		default:
			// Already federated elsewhere; leave it as is.
			return errNoChange
		}
		a.Provider = id.Provider
		a.ProviderID = stringPtr(id.Subject)
		if id.AvatarURL != "" {
			a.AvatarURL = stringPtr(id.AvatarURL)
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return l.store.Accounts().FindByID(ctx, accountID)
	}
	return acct, err
}

// deriveNames prefers given/family names, then splits a display name on the
// first space.
func deriveNames(id Identity) (first, last string) {
	given := strings.TrimSpace(id.GivenName)
	family := strings.TrimSpace(id.FamilyName)
	if given != "" {
		return given, family
	}
	if name := strings.TrimSpace(id.Name); name != "" {
		first, last, _ = strings.Cut(name, " ")
		return first, strings.TrimSpace(last)
	}
	return placeholderFirstName, family
}
