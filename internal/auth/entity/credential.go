package entity

import "time"

// MinHashLength is the shortest well-formed hash the store accepts; bcrypt
// output is always 60 characters.
const MinHashLength = 60

// Credential is the auth-owned record paired one-to-one with a user.
// The user profile never holds a password; this row does, exclusively.
type Credential struct {
	UserID              string     `db:"user_id"`
	PasswordHash        string     `db:"password_hash"`
	RefreshToken        *string    `db:"refresh_token"`
	IsActive            bool       `db:"is_active"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	AccountLockedUntil  *time.Time `db:"account_locked_until"`
	LastLogin           *time.Time `db:"last_login"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// PasswordResetToken is a single-use, expiring reset grant. Only a SHA-256
// fingerprint of the issued token is stored.
type PasswordResetToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}
