package auth

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte(strings.Repeat("s", 32))

type recordingNotifier struct {
	mu         sync.Mutex
	welcomed   []string
	otps       map[string]string
	resetLinks map[string][]string
	approved   []string
	rejected   []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{otps: map[string]string{}, resetLinks: map[string][]string{}}
}

func (n *recordingNotifier) Welcome(_ context.Context, a *Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, a.Email)
}

func (n *recordingNotifier) OTP(_ context.Context, a *Account, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.otps[a.Email] = code
}

func (n *recordingNotifier) PasswordReset(_ context.Context, a *Account, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLinks[a.Email] = append(n.resetLinks[a.Email], link)
}

func (n *recordingNotifier) RecruiterApproved(_ context.Context, a *Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, a.Email)
}

func (n *recordingNotifier) RecruiterRejected(_ context.Context, a *Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, a.Email)
}

func (n *recordingNotifier) lastOTP(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.otps[email]
}

var resetTokenRe = regexp.MustCompile(`token=([0-9a-f]+)`)

func (n *recordingNotifier) lastResetToken(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	links := n.resetLinks[email]
	require.NotEmpty(t, links, "no reset link sent to %s", email)
	m := resetTokenRe.FindStringSubmatch(links[len(links)-1])
	require.Len(t, m, 2)
	return m[1]
}

type testEnv struct {
	svc      *Service
	store    *MemoryStore
	notifier *recordingNotifier
	hasher   *BcryptHasher
	codec    *TokenCodec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	notifier := newRecordingNotifier()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	codec, err := NewTokenCodec(testSecret, time.Hour, "jobboard")
	require.NoError(t, err)

	svc := NewService(Options{
		Store:    store,
		Hasher:   hasher,
		Tokens:   codec,
		Notifier: notifier,
		BaseURL:  "http://frontend.test/",
	})
	return &testEnv{svc: svc, store: store, notifier: notifier, hasher: hasher, codec: codec}
}

func (e *testEnv) register(t *testing.T, email, password string, role Role) *Result {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Ann",
		LastName:  "Lee",
		Role:      string(role),
	})
	require.NoError(t, err)
	return res
}
