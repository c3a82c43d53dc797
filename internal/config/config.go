// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN for sessions and users.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port for verification codes. Empty selects the in-memory store (dev only).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis database number.
	RedisDB int `mapstructure:"REDIS_DB"`
	// JWTSecret is the HMAC key for access token signing. Required; minimum 32 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h" for 30 days).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// RequireMatchingFingerprint enforces that refresh requests present the same
	// network address and client agent the session was created with.
	RequireMatchingFingerprint bool `mapstructure:"REQUIRE_MATCHING_FINGERPRINT"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// CodeLength is the number of digits in a verification code.
	CodeLength int `mapstructure:"VERIFICATION_CODE_LENGTH"`
	// VerificationCodeTTL is the verification code lifetime (e.g. "5m").
	VerificationCodeTTL string `mapstructure:"VERIFICATION_CODE_TTL"`
	// VerificationMaxAttempts is the number of wrong submissions before the code is invalidated.
	VerificationMaxAttempts int `mapstructure:"VERIFICATION_MAX_ATTEMPTS"`
	// VerificationResendCooldown is the minimum interval between sends to one destination (e.g. "60s").
	VerificationResendCooldown string `mapstructure:"VERIFICATION_RESEND_COOLDOWN"`
	// VerifiedStatusTTL is how long a successful verification is remembered for registration (e.g. "30m").
	VerifiedStatusTTL string `mapstructure:"VERIFIED_STATUS_TTL"`

	// SMTPHost, SMTPPort, SMTPUsername, SMTPPassword, SMTPFrom configure the email notifier.
	// Empty SMTPHost selects the log-only mock notifier for the email channel.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// SMSAPIKey is the API key for the SMS gateway. Empty selects the log-only mock notifier for the SMS channel.
	SMSAPIKey string `mapstructure:"SMS_API_KEY"`
	// SMSSender is the optional sender ID for the SMS gateway.
	SMSSender string `mapstructure:"SMS_SENDER"`
	// SMSBaseURL is the SMS gateway endpoint.
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`

	// SweepInterval is how often expired sessions are purged (e.g. "10m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// OTLPEndpoint is the OTLP gRPC collector for metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("REQUIRE_MATCHING_FINGERPRINT", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("VERIFICATION_CODE_LENGTH", 6)
	v.SetDefault("VERIFICATION_CODE_TTL", "5m")
	v.SetDefault("VERIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("VERIFICATION_RESEND_COOLDOWN", "60s")
	v.SetDefault("VERIFIED_STATUS_TTL", "30m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("SMS_BASE_URL", "")
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return nil, errors.New("config: VERIFICATION_CODE_LENGTH must be between 4 and 10")
	}
	if cfg.VerificationMaxAttempts < 1 {
		return nil, errors.New("config: VERIFICATION_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.RedisAddr == "" && cfg.Env == "production" {
		return nil, errors.New("config: REDIS_ADDR must be set when APP_ENV=production")
	}

	return &cfg, nil
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return duration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return duration(c.JWTRefreshTTL, 720*time.Hour)
}

// CodeTTL parses VerificationCodeTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	return duration(c.VerificationCodeTTL, 5*time.Minute)
}

// ResendCooldown parses VerificationResendCooldown as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	return duration(c.VerificationResendCooldown, time.Minute)
}

// VerifiedTTL parses VerifiedStatusTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) VerifiedTTL() time.Duration {
	return duration(c.VerifiedStatusTTL, 30*time.Minute)
}

// SweepEvery parses SweepInterval as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	return duration(c.SweepInterval, 10*time.Minute)
}
