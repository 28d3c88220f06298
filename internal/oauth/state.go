package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const StateTTL = 10 * time.Minute

// StateStore issues single-use state nonces bound to a provider.
type StateStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func stateKey(state string) string {
	return "oauth_state:" + state
}

func (s *StateStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return StateTTL
}

func (s *StateStore) Issue(ctx context.Context, provider string) (string, error) {
	state := uuid.NewString()
	if err := s.Redis.Set(ctx, stateKey(state), provider, s.ttl()).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume reports whether state was issued for provider and not yet used.
func (s *StateStore) Consume(ctx context.Context, state, provider string) (bool, error) {
	if state == "" {
		return false, nil
	}
	stored, err := s.Redis.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == provider, nil
}
