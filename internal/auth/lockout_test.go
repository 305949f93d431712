package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutPolicy_CountsUpToThreshold(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(5, 15*time.Minute)
	now := time.Now()

	s := LockoutState{}
	for i := 1; i <= 4; i++ {
		s = p.OnFailure(s, now)
		assert.Equal(t, i, s.FailedAttempts)
		assert.Nil(t, s.LockedUntil)
		assert.False(t, p.IsLocked(s, now))
	}

	// fifth failure trips the lock and zeroes the counter
	s = p.OnFailure(s, now)
	require.NotNil(t, s.LockedUntil)
	assert.Equal(t, 0, s.FailedAttempts)
	assert.True(t, p.IsLocked(s, now))
	assert.False(t, s.LockedUntil.Before(now.Add(15*time.Minute)))
}

func TestLockoutPolicy_ActiveLockIsNotWeakened(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(5, 15*time.Minute)
	now := time.Now()
	until := now.Add(10 * time.Minute)

	s := LockoutState{LockedUntil: &until}
	next := p.OnFailure(s, now)
	assert.Equal(t, s, next)
	assert.True(t, p.IsLocked(next, now))
}

func TestLockoutPolicy_ExpiredLockStartsFreshWindow(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(5, 15*time.Minute)
	now := time.Now()
	past := now.Add(-time.Minute)

	s := LockoutState{LockedUntil: &past}
	assert.False(t, p.IsLocked(s, now))

	next := p.OnFailure(s, now)
	assert.Equal(t, 1, next.FailedAttempts)
	assert.Nil(t, next.LockedUntil)
}

func TestLockoutPolicy_SuccessClearsEverything(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(5, 15*time.Minute)
	s := p.OnSuccess()
	assert.Equal(t, 0, s.FailedAttempts)
	assert.Nil(t, s.LockedUntil)
}

func TestLockoutPolicy_ThresholdOne(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(1, time.Minute)
	now := time.Now()

	s := p.OnFailure(LockoutState{}, now)
	require.NotNil(t, s.LockedUntil)
	assert.Equal(t, 0, s.FailedAttempts)
}

func TestNewLockoutPolicy_Defaults(t *testing.T) {
	t.Parallel()

	p := NewLockoutPolicy(0, 0)
	assert.Equal(t, defaultLockoutThreshold, p.Threshold)
	assert.Equal(t, defaultLockoutDuration, p.Duration)
}
