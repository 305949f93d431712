package auth

import "time"

// LockoutPolicy is the pure state-transition logic over a credential's
// failed-attempt counter and lock timestamp. The credential store applies
// the same transitions as single atomic conditional updates; this form is
// the reference the SQL must agree with, and what the tests exercise.
//
// Invariant: the counter and the lock are mutually exclusive phases; the
// counter resets to 0 whenever the lock is set.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockoutState is the portion of a credential the policy operates on.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// NewLockoutPolicy returns a policy with defaults filled in.
func NewLockoutPolicy(threshold int, duration time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}
	if duration <= 0 {
		duration = defaultLockoutDuration
	}
	return LockoutPolicy{Threshold: threshold, Duration: duration}
}

// IsLocked reports whether the state is Locked at the given instant.
// An elapsed lock timestamp means Normal; expiry is lazy, there is no sweep.
func (p LockoutPolicy) IsLocked(s LockoutState, now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// OnFailure returns the state after one failed attempt at the given instant.
// A failure against an already-expired lock starts a fresh window rather
// than continuing the stale counter. Reaching the threshold sets the lock
// and zeroes the counter.
func (p LockoutPolicy) OnFailure(s LockoutState, now time.Time) LockoutState {
	if p.IsLocked(s, now) {
		// Callers check IsLocked before attempting verification; an
		// active lock is never weakened by further failures.
		return s
	}
	next := LockoutState{FailedAttempts: s.FailedAttempts + 1}
	if s.LockedUntil != nil && !s.LockedUntil.After(now) {
		next.FailedAttempts = 1
	}
	if next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		return LockoutState{FailedAttempts: 0, LockedUntil: &until}
	}
	return next
}

// OnSuccess returns the cleared state after a successful authentication.
func (p LockoutPolicy) OnSuccess() LockoutState {
	return LockoutState{}
}
