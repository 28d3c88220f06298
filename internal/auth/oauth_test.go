package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityLinker_CreatesSeeker(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	linker := NewIdentityLinker(store)

	acct, created, err := linker.Reconcile(ctx, Identity{
		Provider:   "google",
		Subject:    "g-123",
		Email:      "New@X.com",
		GivenName:  "Grace",
		FamilyName: "Hopper",
		AvatarURL:  "https://img.test/g.png",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new@x.com", acct.Email)
	assert.Equal(t, RoleSeeker, acct.Role)
	assert.True(t, acct.Active)
	assert.True(t, acct.Approved)
	assert.Equal(t, "google", acct.Provider)
	assert.Equal(t, "g-123", *acct.ProviderID)
	assert.Equal(t, "Grace", acct.FirstName)
	assert.Equal(t, "Hopper", acct.LastName)
	assert.False(t, acct.HasPassword())

	byProvider, err := store.Accounts().FindByProvider(ctx, "google", "g-123")
	require.NoError(t, err)
	require.NotNil(t, byProvider)
	assert.Equal(t, acct.ID, byProvider.ID)
}

func TestIdentityLinker_AdoptsLocalAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	linker := NewIdentityLinker(store)
	local := seedAccount(t, store, "ann@x.com")

	acct, created, err := linker.Reconcile(ctx, Identity{Provider: "google", Subject: "g-1", Email: "ann@x.com", Name: "Someone Else"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, local.ID, acct.ID)
	assert.Equal(t, "google", acct.Provider)
	assert.Equal(t, "g-1", *acct.ProviderID)
	assert.Equal(t, "Ann", acct.FirstName, "names are not overwritten")

	again, _, err := linker.Reconcile(ctx, Identity{Provider: "google", Subject: "g-1", Email: "ann@x.com", AvatarURL: "https://img.test/new.png"})
	require.NoError(t, err)
	assert.Equal(t, local.ID, again.ID)
	require.NotNil(t, again.AvatarURL)
	assert.Equal(t, "https://img.test/new.png", *again.AvatarURL)
}

func TestIdentityLinker_SubjectStaysWithOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	linker := NewIdentityLinker(store)

	first, created, err := linker.Reconcile(ctx, Identity{Provider: "google", Subject: "g-1", Email: "a@x.com"})
	require.NoError(t, err)
	require.True(t, created)
	other := seedAccount(t, store, "b@x.com")

	// The provider now asserts b@x.com for the same subject.
	again, created, err := linker.Reconcile(ctx, Identity{Provider: "google", Subject: "g-1", Email: "b@x.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "a@x.com", again.Email)

	untouched, err := store.Accounts().FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, untouched.Provider)
	assert.Nil(t, untouched.ProviderID)

	owner, err := store.Accounts().FindByProvider(ctx, "google", "g-1")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, first.ID, owner.ID)
}

func TestIdentityLinker_LeavesOtherProviderAlone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	linker := NewIdentityLinker(store)
	seeded := seedAccount(t, store, "ann@x.com")
	_, err := store.Accounts().Update(ctx, seeded.ID, func(a *Account) error {
		a.Provider = "github"
		a.ProviderID = stringPtr("gh-9")
		return nil
	})
	require.NoError(t, err)

	acct, created, err := linker.Reconcile(ctx, Identity{Provider: "google", Subject: "g-1", Email: "ann@x.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "github", acct.Provider)
	assert.Equal(t, "gh-9", *acct.ProviderID)
}

func TestIdentityLinker_RequiresEmailAndSubject(t *testing.T) {
	linker := NewIdentityLinker(NewMemoryStore())
	_, _, err := linker.Reconcile(context.Background(), Identity{Provider: "google", Subject: "g-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = linker.Reconcile(context.Background(), Identity{Provider: "google", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeriveNames(t *testing.T) {
	cases := []struct {
		id          Identity
		first, last string
	}{
		{Identity{GivenName: "Grace", FamilyName: "Hopper", Name: "ignored"}, "Grace", "Hopper"},
		{Identity{Name: "Ada King Lovelace"}, "Ada", "King Lovelace"},
		{Identity{Name: "Cher"}, "Cher", ""},
		{Identity{}, "User", ""},
	}
	for _, tc := range cases {
		first, last := deriveNames(tc.id)
		assert.Equal(t, tc.first, first)
		assert.Equal(t, tc.last, last)
	}
}
