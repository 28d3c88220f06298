package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const MinSecretBytes = 32

// reservedClaims cannot be overridden through extra claims.
var reservedClaims = map[string]struct{}{
	"sub": {}, "iat": {}, "exp": {}, "nbf": {}, "iss": {},
}

// TokenCodec signs and verifies HS256 bearer tokens. No other algorithm is
// ever accepted.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenCodec(secret []byte, ttl time.Duration, issuer string) (*TokenCodec, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretBytes)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, ttl: ttl, issuer: issuer, now: time.Now}, nil
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject with expiry now+TTL.
func (c *TokenCodec) Issue(subject string, extra map[string]any) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := c.now()

	claims := jwt.MapClaims{}
	for k, v := range extra {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(c.ttl).Unix()
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the token subject. Every failure wraps ErrInvalidToken.
func (c *TokenCodec) Validate(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
