package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	minJWTSecretBytes = 32
)

type Config struct {
	Port           string
	BaseURL        string
	DatabaseURL    string
	DBMaxConns     int32
	StoreDriver    string
	RedisURL       string
	LogFile        string
	LogLevel       string
	LogMaxSizeMB   int
	LogMaxBackups  int
	BcryptCost     int
	TrustedProxies []string
	JWT            JWTConfig
	Email          EmailConfig
	OAuth          OAuthConfig
}

type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

type EmailConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	Secure        bool
	RatePerSecond float64
	QueueSize     int
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type OAuthConfig struct {
	Enabled bool
	Google  OAuthProvider
}

func Load() (Config, error) {
	clean := func(val string) string {
		return strings.Trim(val, "\"' \t\r\n")
	}

	cfg := Config{
		Port:           getenvDefault("PORT", "8080"),
		BaseURL:        strings.TrimRight(firstNonEmpty(os.Getenv("APP_BASE_URL"), os.Getenv("FRONTEND_URL"), "http://localhost:5173"), "/"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxConns:     int32(parseInt(os.Getenv("DB_MAX_CONNS"), 0)),
		StoreDriver:    strings.ToLower(getenvDefault("STORE_DRIVER", StoreDriverPostgres)),
		RedisURL:       getenvDefault("REDIS_URL", "redis://localhost:6379"),
		LogFile:        os.Getenv("LOG_FILE"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		LogMaxSizeMB:   parseInt(os.Getenv("LOG_MAX_SIZE_MB"), 50),
		LogMaxBackups:  parseInt(os.Getenv("LOG_MAX_BACKUPS"), 5),
		BcryptCost:     parseInt(os.Getenv("BCRYPT_COST"), bcrypt.DefaultCost),
		TrustedProxies: parseList(os.Getenv("TRUSTED_PROXIES")),
	}

	cfg.Email = EmailConfig{
		Host:          clean(os.Getenv("EMAIL_SERVER_HOST")),
		Port:          parseInt(clean(getenvDefault("EMAIL_SERVER_PORT", "587")), 587),
		Username:      clean(os.Getenv("EMAIL_SERVER_USER")),
		Password:      clean(os.Getenv("EMAIL_SERVER_PASSWORD")),
		From:          clean(os.Getenv("EMAIL_FROM")),
		Secure:        parseBool(os.Getenv("EMAIL_SERVER_SECURE")),
		RatePerSecond: parseFloat(os.Getenv("EMAIL_RATE_PER_SECOND"), 5),
		QueueSize:     parseInt(os.Getenv("EMAIL_QUEUE_SIZE"), 256),
	}

	cfg.OAuth = OAuthConfig{
		Enabled: parseBool(os.Getenv("OAUTH2_ENABLED")),
		Google: OAuthProvider{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
	}

	jwtCfg, err := loadJWT(os.Getenv("JWT_SECRET"), os.Getenv("JWT_EXPIRATION"), getenvDefault("JWT_ISSUER", "jobboard"))
	if err != nil {
		return Config{}, err
	}
	cfg.JWT = jwtCfg

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.OAuth.Enabled {
		if cfg.OAuth.Google.ClientID == "" || cfg.OAuth.Google.ClientSecret == "" {
			return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required when OAUTH2_ENABLED is set")
		}
		if cfg.OAuth.Google.RedirectURL == "" {
			cfg.OAuth.Google.RedirectURL = "http://localhost:" + cfg.Port + "/login/oauth2/code/google"
		}
	}

	return cfg, nil
}

func loadJWT(rawSecret, rawTTL, issuer string) (JWTConfig, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" {
		return JWTConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	secret, err := base64.StdEncoding.DecodeString(rawSecret)
	if err != nil {
		return JWTConfig{}, fmt.Errorf("JWT_SECRET must be base64: %w", err)
	}
	if len(secret) < minJWTSecretBytes {
		return JWTConfig{}, fmt.Errorf("JWT_SECRET must decode to at least %d bytes", minJWTSecretBytes)
	}

	ttl, err := parseTTL(rawTTL, 24*time.Hour)
	if err != nil {
		return JWTConfig{}, err
	}

	return JWTConfig{Secret: secret, TTL: ttl, Issuer: issuer}, nil
}

// parseTTL accepts a Go duration ("15m") or a plain integer in milliseconds.
func parseTTL(val string, def time.Duration) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("JWT_EXPIRATION must be positive")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("JWT_EXPIRATION: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	return d, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(strings.Trim(val, "\"' "))
	return val == "1" || val == "true" || val == "yes"
}

func parseInt(val string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	return n
}

func parseFloat(val string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
