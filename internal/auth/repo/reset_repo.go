package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apprentix/service-core/internal/auth/entity"
)

// ErrResetTokenInvalid covers unknown, expired and already-used tokens
// alike; the caller never learns which.
var ErrResetTokenInvalid = errors.New("reset token is invalid")

// PasswordResetRepo persists single-use password-reset grants. Only token
// fingerprints are stored; the raw token exists client-side only.
type PasswordResetRepo struct {
	db *sqlx.DB
}

func NewPasswordResetRepo(db *sqlx.DB) *PasswordResetRepo { return &PasswordResetRepo{db: db} }

// EnsureTable creates the password_reset_tokens table if not exists.
func (r *PasswordResetRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS password_reset_tokens (
  id varchar(64) PRIMARY KEY,
  user_id varchar(32) NOT NULL REFERENCES users(id),
  token_hash TEXT NOT NULL UNIQUE,
  expires_at TIMESTAMPTZ NOT NULL,
  used_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_user_id ON password_reset_tokens (user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create stores a fresh reset grant and retires any still-unused grants
// for the same user, so at most one token is redeemable at a time.
func (r *PasswordResetRepo) Create(ctx context.Context, t *entity.PasswordResetToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const retire = `UPDATE password_reset_tokens SET used_at=NOW()
	                WHERE user_id=$1 AND used_at IS NULL`
	if _, err := tx.ExecContext(ctx, retire, t.UserID); err != nil {
		return err
	}
	const insert = `INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
	                VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.UserID, t.TokenHash, t.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Consume redeems a grant by fingerprint. The conditional update makes the
// token single-use even under concurrent redemption attempts: only one
// statement can flip used_at from NULL.
func (r *PasswordResetRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (userID string, err error) {
	const q = `UPDATE password_reset_tokens SET used_at=NOW()
	           WHERE token_hash=$1 AND used_at IS NULL AND expires_at > $2
	           RETURNING user_id`
	if err := r.db.GetContext(ctx, &userID, q, tokenHash, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetTokenInvalid
		}
		return "", err
	}
	return userID, nil
}
