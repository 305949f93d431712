package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		AccessSecret:     strings.Repeat("a", 32),
		RefreshSecret:    strings.Repeat("r", 32),
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validConfig().Validate())

	c := validConfig()
	c.AccessSecret = ""
	assert.ErrorIs(t, c.Validate(), ErrSecretMissing)

	c = validConfig()
	c.RefreshSecret = "short"
	assert.ErrorIs(t, c.Validate(), ErrSecretTooShort)

	c = validConfig()
	c.RefreshSecret = c.AccessSecret
	assert.ErrorIs(t, c.Validate(), ErrSecretsEqual)

	c = validConfig()
	c.LockoutThreshold = 0
	assert.Error(t, c.Validate())

	c = validConfig()
	c.LockoutDuration = 0
	assert.Error(t, c.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("AUTH_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTH_LOCKOUT_DURATION", "5m")
	t.Setenv("AUTH_REFRESH_ROTATION", "0")

	cfg := ConfigFromEnv()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 5*time.Minute, cfg.LockoutDuration)
	assert.False(t, cfg.RotateRefreshTokens)
	assert.Equal(t, defaultAccessTokenTTL, cfg.AccessTokenTTL)
	assert.Equal(t, defaultBcryptCost, cfg.BcryptCost)
}

func TestConfigFromEnv_RotationDefaultsOn(t *testing.T) {
	t.Setenv("AUTH_REFRESH_ROTATION", "")
	cfg := ConfigFromEnv()
	assert.True(t, cfg.RotateRefreshTokens)
}
