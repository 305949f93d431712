package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/apprentix/service-core/internal/auth/entity"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExists   = errors.New("credential already exists for user")
	ErrHashNotPersistable = errors.New("refusing to persist malformed password hash")
	ErrRefreshTokenStale  = errors.New("stored refresh token changed since read")
)

const pqUniqueViolation = "23505"

const credentialColumns = `user_id, password_hash, refresh_token, is_active,
	failed_login_attempts, account_locked_until, last_login, created_at, updated_at`

// CredentialRepo persists credential records keyed by user_id. Lockout and
// refresh-token mutations are single conditional statements so that two
// concurrent requests against the same record cannot lose an update.
type CredentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepo(db *sqlx.DB) *CredentialRepo { return &CredentialRepo{db: db} }

// EnsureTable creates the credentials table if not exists (idempotent).
func (r *CredentialRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
  user_id varchar(32) PRIMARY KEY REFERENCES users(id),
  password_hash TEXT NOT NULL,
  refresh_token TEXT,
  is_active BOOLEAN NOT NULL DEFAULT true,
  failed_login_attempts INT NOT NULL DEFAULT 0,
  account_locked_until TIMESTAMPTZ,
  last_login TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credentials_refresh_token
  ON credentials (refresh_token) WHERE refresh_token IS NOT NULL;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a credential for a user. A duplicate maps to
// ErrCredentialExists; a hash shorter than the fixed format allows is
// rejected before touching the store.
func (r *CredentialRepo) Create(ctx context.Context, c *entity.Credential) error {
	if len(c.PasswordHash) < entity.MinHashLength {
		return ErrHashNotPersistable
	}
	const q = `INSERT INTO credentials (user_id, password_hash, is_active)
	           VALUES ($1, $2, true)`
	if _, err := r.db.ExecContext(ctx, q, c.UserID, c.PasswordHash); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrCredentialExists
		}
		return err
	}
	return nil
}

// GetByUserID fetches a credential regardless of activity state.
func (r *CredentialRepo) GetByUserID(ctx context.Context, userID string) (*entity.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id=$1`
	return r.getOne(ctx, q, userID)
}

// GetByEmail joins through the users table (email lives on the profile,
// not the credential) and only returns active credentials: a deactivated
// account authenticates exactly like a nonexistent one.
func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*entity.Credential, error) {
	const q = `SELECT c.user_id, c.password_hash, c.refresh_token, c.is_active,
	                  c.failed_login_attempts, c.account_locked_until, c.last_login,
	                  c.created_at, c.updated_at
	           FROM credentials c
	           JOIN users u ON u.id = c.user_id
	           WHERE u.email = $1 AND c.is_active`
	return r.getOne(ctx, q, email)
}

// GetByRefreshToken finds the active credential whose stored refresh token
// byte-matches the presented one. This lookup is how revocation works: a
// rotated-away or cleared token finds nothing even if signature-valid.
func (r *CredentialRepo) GetByRefreshToken(ctx context.Context, token string) (*entity.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM credentials
	           WHERE refresh_token=$1 AND is_active`
	return r.getOne(ctx, q, token)
}

func (r *CredentialRepo) getOne(ctx context.Context, q string, arg any) (*entity.Credential, error) {
	var row entity.Credential
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &row, nil
}

// RecordFailure applies the whole failed-attempt transition as one atomic
// update: an expired lock starts a fresh counting window, reaching the
// threshold sets the lock and zeroes the counter. Returns the resulting
// state so the caller can report a freshly locked account.
func (r *CredentialRepo) RecordFailure(ctx context.Context, userID string, threshold int, lockSeconds int) (attempts int, lockedUntil *time.Time, err error) {
	const q = `
UPDATE credentials SET
  failed_login_attempts = CASE
    WHEN account_locked_until IS NOT NULL AND account_locked_until > NOW()
    THEN failed_login_attempts
    WHEN (CASE WHEN account_locked_until IS NOT NULL AND account_locked_until <= NOW()
               THEN 1 ELSE failed_login_attempts + 1 END) >= $2
    THEN 0
    ELSE (CASE WHEN account_locked_until IS NOT NULL AND account_locked_until <= NOW()
               THEN 1 ELSE failed_login_attempts + 1 END)
  END,
  account_locked_until = CASE
    WHEN account_locked_until IS NOT NULL AND account_locked_until > NOW()
    THEN account_locked_until
    WHEN (CASE WHEN account_locked_until IS NOT NULL AND account_locked_until <= NOW()
               THEN 1 ELSE failed_login_attempts + 1 END) >= $2
    THEN NOW() + ($3 || ' seconds')::interval
    ELSE NULL
  END,
  updated_at = NOW()
WHERE user_id=$1 AND is_active
RETURNING failed_login_attempts, account_locked_until`
	var row struct {
		FailedLoginAttempts int        `db:"failed_login_attempts"`
		AccountLockedUntil  *time.Time `db:"account_locked_until"`
	}
	if err := r.db.GetContext(ctx, &row, q, userID, threshold, lockSeconds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrCredentialNotFound
		}
		return 0, nil, err
	}
	return row.FailedLoginAttempts, row.AccountLockedUntil, nil
}

// RecordSuccess resets failure state and stamps last_login atomically.
func (r *CredentialRepo) RecordSuccess(ctx context.Context, userID string) error {
	const q = `UPDATE credentials SET failed_login_attempts=0, account_locked_until=NULL,
	           last_login=NOW(), updated_at=NOW() WHERE user_id=$1 AND is_active`
	return r.execExpectingRow(ctx, q, userID)
}

// SetRefreshToken stores (or clears, with nil) the single refresh token for
// the user unconditionally. Used on login and logout.
func (r *CredentialRepo) SetRefreshToken(ctx context.Context, userID string, token *string) error {
	const q = `UPDATE credentials SET refresh_token=$2, updated_at=NOW() WHERE user_id=$1 AND is_active`
	return r.execExpectingRow(ctx, q, userID, token)
}

// RotateRefreshToken swaps old for new only if old is still the stored
// value at write time. Zero affected rows means a concurrent rotation won;
// the caller must fail rather than hand out a second divergent token.
func (r *CredentialRepo) RotateRefreshToken(ctx context.Context, userID string, old string, renewed string) error {
	const q = `UPDATE credentials SET refresh_token=$3, updated_at=NOW()
	           WHERE user_id=$1 AND refresh_token=$2 AND is_active`
	res, err := r.db.ExecContext(ctx, q, userID, old, renewed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRefreshTokenStale
	}
	return nil
}

// UpdatePassword replaces the hash and, as a side effect, clears the
// refresh token and any lock state: a password change forces re-login.
func (r *CredentialRepo) UpdatePassword(ctx context.Context, userID string, hash string) error {
	if len(hash) < entity.MinHashLength {
		return ErrHashNotPersistable
	}
	const q = `UPDATE credentials SET password_hash=$2, refresh_token=NULL,
	           failed_login_attempts=0, account_locked_until=NULL, updated_at=NOW()
	           WHERE user_id=$1 AND is_active`
	return r.execExpectingRow(ctx, q, userID, hash)
}

// Deactivate soft-deletes the credential and revokes the session.
func (r *CredentialRepo) Deactivate(ctx context.Context, userID string) error {
	const q = `UPDATE credentials SET is_active=false, refresh_token=NULL, updated_at=NOW()
	           WHERE user_id=$1 AND is_active`
	return r.execExpectingRow(ctx, q, userID)
}

// Delete hard-removes a credential. Only used as registration compensation.
func (r *CredentialRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE user_id=$1`, userID)
	return err
}

func (r *CredentialRepo) execExpectingRow(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
