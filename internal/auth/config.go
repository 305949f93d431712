package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the auth subsystem. Overridable via environment.
const (
	defaultBcryptCost       = 10
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultResetTokenTTL    = time.Hour

	minSecretLength = 32
)

// Config carries process-wide auth configuration. One instance is built at
// startup and injected into the service; nothing here mutates per request.
type Config struct {
	AccessSecret  string
	RefreshSecret string

	BcryptCost       int
	LockoutThreshold int
	LockoutDuration  time.Duration

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	// RotateRefreshTokens controls whether a successful refresh also issues
	// and persists a new refresh token, invalidating the presented one.
	RotateRefreshTokens bool
}

var (
	ErrSecretMissing  = errors.New("token secret is not configured")
	ErrSecretTooShort = fmt.Errorf("token secret must be at least %d characters", minSecretLength)
	ErrSecretsEqual   = errors.New("access and refresh token secrets must differ")
)

// ConfigFromEnv reads auth config from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		AccessSecret:        os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret:       os.Getenv("AUTH_REFRESH_SECRET"),
		BcryptCost:          envInt("AUTH_BCRYPT_COST", defaultBcryptCost),
		LockoutThreshold:    envInt("AUTH_LOCKOUT_THRESHOLD", defaultLockoutThreshold),
		LockoutDuration:     envDuration("AUTH_LOCKOUT_DURATION", defaultLockoutDuration),
		AccessTokenTTL:      envDuration("AUTH_ACCESS_TTL", defaultAccessTokenTTL),
		RefreshTokenTTL:     envDuration("AUTH_REFRESH_TTL", defaultRefreshTokenTTL),
		ResetTokenTTL:       envDuration("AUTH_RESET_TTL", defaultResetTokenTTL),
		RotateRefreshTokens: os.Getenv("AUTH_REFRESH_ROTATION") != "0",
	}
	return cfg
}

// Validate enforces startup invariants. Misconfiguration here must abort
// the process rather than degrade token security silently.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return ErrSecretMissing
	}
	if len(c.AccessSecret) < minSecretLength || len(c.RefreshSecret) < minSecretLength {
		return ErrSecretTooShort
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrSecretsEqual
	}
	if c.LockoutThreshold < 1 {
		return errors.New("lockout threshold must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
