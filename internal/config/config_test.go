package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestLoad_MemoryDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_EXPIRATION", "")
	t.Setenv("OAUTH2_ENABLED", "")
	t.Setenv("BCRYPT_COST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Len(t, cfg.JWT.Secret, 32)
	assert.False(t, cfg.OAuth.Enabled)
}

func TestLoad_RequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret())
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", base64.StdEncoding.EncodeToString([]byte("short")))
	t.Setenv("STORE_DRIVER", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonBase64Secret(t *testing.T) {
	t.Setenv("JWT_SECRET", "not base64 !!")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_OAuthNeedsClientCredentials(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("OAUTH2_ENABLED", "true")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_REDIRECT_URL", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/login/oauth2/code/google", cfg.OAuth.Google.RedirectURL)
}

func TestParseTTL(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: time.Hour},
		{in: "86400000", want: 24 * time.Hour},
		{in: "15m", want: 15 * time.Minute},
		{in: "0", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseTTL(tc.in, time.Hour)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseBoolAndList(t *testing.T) {
	assert.True(t, parseBool("TRUE"))
	assert.True(t, parseBool("'1'"))
	assert.False(t, parseBool("no"))
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, parseList(" 10.0.0.0/8, ,127.0.0.1 "))
}
