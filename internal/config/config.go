// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds runtime configuration for the web server.
type Config struct {
	Environment string
	Addr        string
	WebDir      string
	LogLevel    string

	DatabaseURL    string
	DatabaseDriver string
	AutoMigrate    bool

	JWTSecret string

	TailorAPIURL     string
	TailorAPITimeout time.Duration
	GrantTTL         time.Duration

	AuthRateLimit      int
	AuthRateWindow     time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// ErrMissingSecret is returned when no token signing secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Load reads an optional .env file and builds a Config from the environment.
func Load(envFiles ...string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		Environment:        GetString("APP_ENV", GetString("NODE_ENV", "development")),
		Addr:               GetString("ADDR", ":3000"),
		WebDir:             GetString("WEB_DIR", "web"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		DatabaseURL:        GetString("DATABASE_URL", ""),
		DatabaseDriver:     GetString("DB_DRIVER", "postgres"),
		AutoMigrate:        GetBool("DB_AUTO_MIGRATE", true),
		JWTSecret:          GetString("JWT_SECRET", ""),
		TailorAPIURL:       GetString("TAILOR_API_URL", GetString("NEXT_PUBLIC_API_URL", "http://localhost:8000")),
		TailorAPITimeout:   GetDuration("TAILOR_API_TIMEOUT", 2*time.Minute),
		GrantTTL:           GetDuration("DOWNLOAD_GRANT_TTL", time.Hour),
		AuthRateLimit:      GetInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:     GetDuration("AUTH_RATE_WINDOW", time.Minute),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		OIDCIssuer:         GetString("OIDC_ISSUER", ""),
		OIDCClientID:       GetString("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:   GetString("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:    GetString("OIDC_REDIRECT_URL", ""),
		S3Bucket:           GetString("S3_BUCKET", ""),
		S3Region:           GetString("S3_REGION", "auto"),
		S3Endpoint:         GetString("S3_ENDPOINT", ""),
		S3AccessKey:        GetString("S3_ACCESS_KEY", ""),
		S3SecretKey:        GetString("S3_SECRET_KEY", ""),
	}
	if cfg.JWTSecret == "" {
		return cfg, ErrMissingSecret
	}
	return cfg, nil
}

// Production reports whether secure cookies and JSON logs should be used.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// SSOEnabled reports whether every OIDC setting is present.
func (c Config) SSOEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != "" && c.OIDCClientSecret != "" && c.OIDCRedirectURL != ""
}

// ArchiveEnabled reports whether uploads should be copied to object storage.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("invalid config value, using default")
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("invalid config value, using default")
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetDuration retrieves an environment variable as a Go duration ("90s",
// "5m") or returns fallback.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("invalid config value, using default")
			return fallback
		}
		return parsed
	}
	return fallback
}
