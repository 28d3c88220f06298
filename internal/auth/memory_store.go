package auth

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps accounts and reset tokens in process memory. A single
// mutex serializes every operation; InTx holds it for the whole callback and
// restores the previous state when the callback fails.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	mu       sync.Mutex
	accounts map[string]*Account
	tokens   map[string]*ResetToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		accounts: make(map[string]*Account),
		tokens:   make(map[string]*ResetToken),
	}}
}

func (s *MemoryStore) Accounts() AccountStore       { return &memAccounts{s: s} }
func (s *MemoryStore) ResetTokens() ResetTokenStore { return &memResetTokens{s: s} }

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	accounts, tokens := s.state.snapshot()
	ok := false
	defer func() {
		if !ok {
			s.state.accounts, s.state.tokens = accounts, tokens
		}
	}()

	if err := fn(&MemoryStore{state: s.state, inTx: true}); err != nil {
		return err
	}
	ok = true
	return nil
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.state.mu.Lock()
	return s.state.mu.Unlock
}

func (st *memoryState) snapshot() (map[string]*Account, map[string]*ResetToken) {
	accounts := make(map[string]*Account, len(st.accounts))
	for id, a := range st.accounts {
		accounts[id] = a.clone()
	}
	tokens := make(map[string]*ResetToken, len(st.tokens))
	for id, t := range st.tokens {
		cp := *t
		tokens[id] = &cp
	}
	return accounts, tokens
}

type memAccounts struct {
	s *MemoryStore
}

func (r *memAccounts) find(match func(*Account) bool) *Account {
	for _, a := range r.s.state.accounts {
		if match(a) {
			return a.clone()
		}
	}
	return nil
}

func (r *memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	defer r.s.lock()()
	email = NormalizeEmail(email)
	return r.find(func(a *Account) bool { return NormalizeEmail(a.Email) == email }), nil
}

func (r *memAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	defer r.s.lock()()
	if a, ok := r.s.state.accounts[id]; ok {
		return a.clone(), nil
	}
	return nil, nil
}

func (r *memAccounts) FindByProvider(_ context.Context, provider, subject string) (*Account, error) {
	defer r.s.lock()()
	return r.find(func(a *Account) bool {
		return a.Provider == provider && a.ProviderID != nil && *a.ProviderID == subject
	}), nil
}

func (r *memAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	a, err := r.FindByEmail(ctx, email)
	return a != nil, err
}

func (r *memAccounts) Create(_ context.Context, a *Account) error {
	defer r.s.lock()()
	if r.emailTaken(a.Email, "") {
		return ErrDuplicateEmail
	}
	if r.identityTaken(a, "") {
		return ErrIdentityLinked
	}
	r.s.state.accounts[a.ID] = a.clone()
	return nil
}

func (r *memAccounts) Save(_ context.Context, a *Account) error {
	defer r.s.lock()()
	if r.emailTaken(a.Email, a.ID) {
		return ErrDuplicateEmail
	}
	if r.identityTaken(a, a.ID) {
		return ErrIdentityLinked
	}
	r.s.state.accounts[a.ID] = a.clone()
	return nil
}

func (r *memAccounts) emailTaken(email, exceptID string) bool {
	email = NormalizeEmail(email)
	for id, other := range r.s.state.accounts {
		if id != exceptID && NormalizeEmail(other.Email) == email {
			return true
		}
	}
	return false
}

// identityTaken mirrors the unique (provider, providerId) index.
func (r *memAccounts) identityTaken(a *Account, exceptID string) bool {
	if a.ProviderID == nil {
		return false
	}
	for id, other := range r.s.state.accounts {
		if id != exceptID && other.Provider == a.Provider && other.ProviderID != nil && *other.ProviderID == *a.ProviderID {
			return true
		}
	}
	return false
}

func (r *memAccounts) Update(ctx context.Context, id string, fn func(*Account) error) (*Account, error) {
	return updateAccount(ctx, r.s, id, fn)
}

func (r *memAccounts) FindByRoleUnapproved(_ context.Context, role Role) ([]*Account, error) {
	defer r.s.lock()()
	var out []*Account
	for _, a := range r.s.state.accounts {
		if a.Role == role && !a.Approved {
			out = append(out, a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memResetTokens struct {
	s *MemoryStore
}

func (r *memResetTokens) FindByToken(_ context.Context, tokenHash string) (*ResetToken, error) {
	defer r.s.lock()()
	for _, t := range r.s.state.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memResetTokens) FindUnusedByAccount(_ context.Context, accountID string) ([]*ResetToken, error) {
	defer r.s.lock()()
	var out []*ResetToken
	for _, t := range r.s.state.tokens {
		if t.AccountID == accountID && !t.Used {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memResetTokens) Save(_ context.Context, t *ResetToken) error {
	defer r.s.lock()()
	cp := *t
	r.s.state.tokens[t.ID] = &cp
	return nil
}
