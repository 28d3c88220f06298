package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestLedger(t *testing.T) (*ResetLedger, *MemoryStore, *BcryptHasher) {
	t.Helper()
	store := NewMemoryStore()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	return NewResetLedger(store, hasher), store, hasher
}

func TestResetLedger_SingleUse(t *testing.T) {
	ctx := context.Background()
	ledger, store, hasher := newTestLedger(t)
	acct := seedAccount(t, store, "r@x.com")

	token, err := ledger.Issue(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	updated, err := ledger.Redeem(ctx, token, "newpass1")
	require.NoError(t, err)
	assert.True(t, hasher.Compare(*updated.PasswordHash, "newpass1"))

	_, err = ledger.Redeem(ctx, token, "newpass2")
	assert.ErrorIs(t, err, ErrResetTokenUsed)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)

	stored, _ := store.Accounts().FindByID(ctx, acct.ID)
	assert.True(t, hasher.Compare(*stored.PasswordHash, "newpass1"))
}

func TestResetLedger_NewTokenSupersedesOld(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t)
	acct := seedAccount(t, store, "r@x.com")

	t1, err := ledger.Issue(ctx, acct.ID)
	require.NoError(t, err)
	t2, err := ledger.Issue(ctx, acct.ID)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	unused, err := store.ResetTokens().FindUnusedByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, HashString(t2), unused[0].TokenHash)

	_, err = ledger.Redeem(ctx, t1, "newpass1")
	assert.ErrorIs(t, err, ErrResetTokenUsed)
	_, err = ledger.Redeem(ctx, t2, "newpass1")
	assert.NoError(t, err)
}

func TestResetLedger_Expiry(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ledger.now = fixedClock(start)
	acct := seedAccount(t, store, "r@x.com")

	token, err := ledger.Issue(ctx, acct.ID)
	require.NoError(t, err)

	ledger.now = fixedClock(start.Add(ResetTokenTTL))
	_, err = ledger.Redeem(ctx, token, "newpass1")
	assert.ErrorIs(t, err, ErrResetTokenExpired)

	ledger.now = fixedClock(start.Add(ResetTokenTTL - time.Second))
	_, err = ledger.Redeem(ctx, token, "newpass1")
	assert.NoError(t, err)
}

func TestResetToken_Valid(t *testing.T) {
	exp := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	rt := &ResetToken{ExpiresAt: exp}

	assert.True(t, rt.Valid(exp.Add(-time.Second)))
	assert.False(t, rt.Valid(exp), "expiry is exclusive")

	rt.Used = true
	assert.False(t, rt.Valid(exp.Add(-time.Second)))
}

func TestResetLedger_UnknownToken(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.Redeem(context.Background(), "deadbeef", "newpass1")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetLedger_StoresOnlyHash(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t)
	acct := seedAccount(t, store, "r@x.com")

	token, err := ledger.Issue(ctx, acct.ID)
	require.NoError(t, err)

	found, err := store.ResetTokens().FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, found)
	found, err = store.ResetTokens().FindByToken(ctx, HashString(token))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acct.ID, found.AccountID)
}

func TestResetLedger_ConcurrentIssueLeavesOneLive(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t)
	acct := seedAccount(t, store, "r@x.com")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Issue(ctx, acct.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	unused, err := store.ResetTokens().FindUnusedByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, unused, 1)
}

func TestResetLedger_IssueForUnknownAccount(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.Issue(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
