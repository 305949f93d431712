package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/auth/entity"
	"github.com/apprentix/service-core/internal/auth/repo"
	userentity "github.com/apprentix/service-core/internal/user/entity"
	userrepo "github.com/apprentix/service-core/internal/user/repo"
)

// Sentinel errors for session flows. The handler layer maps these onto
// HTTP statuses and machine codes; nothing below leaks which factor failed.
var (
	ErrMissingCredentials     = errors.New("email and password are required")
	ErrInvalidEmail           = errors.New("email format is invalid")
	ErrBadCredentials         = errors.New("invalid credentials")
	ErrAccountLocked          = errors.New("account is temporarily locked")
	ErrRefreshTokenInvalid    = errors.New("refresh token is invalid")
	ErrRefreshTokenRevoked    = errors.New("refresh token has been revoked")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrSamePassword           = errors.New("new password must differ from the current one")
	ErrEmailExists            = errors.New("email already registered")
	ErrUsernameExists         = errors.New("username already taken")
	ErrCompensationFailed     = errors.New("registration rollback failed")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CredentialStore is the persistence surface the session flows need.
// Implemented by repo.CredentialRepo; tests substitute fakes.
type CredentialStore interface {
	Create(ctx context.Context, c *entity.Credential) error
	GetByUserID(ctx context.Context, userID string) (*entity.Credential, error)
	GetByEmail(ctx context.Context, email string) (*entity.Credential, error)
	GetByRefreshToken(ctx context.Context, token string) (*entity.Credential, error)
	RecordFailure(ctx context.Context, userID string, threshold int, lockSeconds int) (int, *time.Time, error)
	RecordSuccess(ctx context.Context, userID string) error
	SetRefreshToken(ctx context.Context, userID string, token *string) error
	RotateRefreshToken(ctx context.Context, userID string, old string, renewed string) error
	UpdatePassword(ctx context.Context, userID string, hash string) error
	Deactivate(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

// UserStore is the narrow view of the profile subsystem the auth core uses.
type UserStore interface {
	Create(ctx context.Context, u *userentity.User) error
	GetByID(ctx context.Context, id string) (*userentity.User, error)
	GetByEmail(ctx context.Context, email string) (*userentity.User, error)
	GetByUsername(ctx context.Context, username string) (*userentity.User, error)
	Delete(ctx context.Context, id string) error
}

// ResetStore persists single-use password-reset grants.
type ResetStore interface {
	Create(ctx context.Context, t *entity.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// TokenPair is the issue result for login and refresh responses.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// LoginResult bundles the authenticated user summary with its tokens.
type LoginResult struct {
	User   userentity.Summary `json:"user"`
	Tokens TokenPair          `json:"tokens"`
}

// RegisterInput is the payload for two-phase account creation.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      userentity.Role
}

// Service orchestrates session flows over hasher, tokens, lockout policy
// and the credential store. One instance lives for the whole process.
type Service struct {
	logger *zap.SugaredLogger
	users  UserStore
	creds  CredentialStore
	resets ResetStore
	tokens *TokenService
	hasher BcryptHasher
	policy LockoutPolicy
	cfg    Config

	newID func() string
}

// NewService wires a Service from its collaborators.
func NewService(logger *zap.SugaredLogger, cfg Config, users UserStore, creds CredentialStore, resets ResetStore, tokens *TokenService, newID func() string) *Service {
	return &Service{
		logger: logger,
		users:  users,
		creds:  creds,
		resets: resets,
		tokens: tokens,
		hasher: BcryptHasher{Cost: cfg.BcryptCost},
		policy: NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
		cfg:    cfg,
		newID:  newID,
	}
}

// Login authenticates email+password and issues a token pair. Responses
// never distinguish unknown account from wrong password; a deactivated
// credential behaves as if no account existed.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrCredentialNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	now := time.Now()
	state := LockoutState{FailedAttempts: cred.FailedLoginAttempts, LockedUntil: cred.AccountLockedUntil}
	if s.policy.IsLocked(state, now) {
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		s.logger.Errorw("password verification failed", "user_id", cred.UserID, "err", err)
		return nil, err
	}
	if !ok {
		attempts, lockedUntil, ferr := s.creds.RecordFailure(ctx, cred.UserID, s.policy.Threshold, int(s.policy.Duration.Seconds()))
		if ferr != nil {
			s.logger.Errorw("recording failed login attempt", "user_id", cred.UserID, "err", ferr)
		} else if lockedUntil != nil {
			s.logger.Infow("account locked after repeated failures",
				"user_id", cred.UserID, "locked_until", lockedUntil)
		} else {
			s.logger.Debugw("failed login attempt", "user_id", cred.UserID, "attempts", attempts)
		}
		return nil, ErrBadCredentials
	}

	if err := s.creds.RecordSuccess(ctx, cred.UserID); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	pair, refresh, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SetRefreshToken(ctx, u.ID, &refresh); err != nil {
		return nil, err
	}
	return &LoginResult{User: u.Summary(), Tokens: pair}, nil
}

// Logout clears the stored refresh token for the subject. Idempotent: a
// missing or already-cleared credential is not an error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	err := s.creds.SetRefreshToken(ctx, userID, nil)
	if errors.Is(err, repo.ErrCredentialNotFound) {
		return nil
	}
	return err
}

// Refresh exchanges a refresh token for a new access token. The lookup is
// by the *stored* token value, so a rotated-away or logged-out token is
// rejected even though its signature still verifies. Claims are hydrated
// from the current user row, never from the presented token.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(rawToken, TokenKindRefresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	cred, err := s.creds.GetByRefreshToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repo.ErrCredentialNotFound) {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, err
	}
	if cred.UserID != claims.Subject {
		return nil, ErrRefreshTokenRevoked
	}

	u, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}

	refresh := rawToken
	if s.cfg.RotateRefreshTokens {
		renewed, err := s.tokens.IssueRefresh(u.ID)
		if err != nil {
			return nil, err
		}
		if err := s.creds.RotateRefreshToken(ctx, u.ID, rawToken, renewed); err != nil {
			if errors.Is(err, repo.ErrRefreshTokenStale) {
				return nil, ErrRefreshTokenRevoked
			}
			return nil, err
		}
		refresh = renewed
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// ChangePassword verifies the current password, enforces the strength
// policy, and persists the new hash. The store clears the refresh token
// and any lock as part of the same update, forcing re-login everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	cred, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !cred.IsActive {
		return repo.ErrCredentialNotFound
	}

	ok, err := s.hasher.Verify(current, cred.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}
	if err := ValidateStrength(next); err != nil {
		return err
	}
	if next == current {
		return ErrSamePassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.creds.UpdatePassword(ctx, userID, hash)
}

// Register performs the two-phase create: user profile first, then the
// credential. If the credential phase fails the profile row is deleted as
// best-effort compensation; a failed compensation is logged and surfaced
// as a distinct server error so the half-created state is never silent.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*userentity.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, ErrInvalidEmail
	}
	if !userentity.IsValidRole(in.Role) {
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}
	if err := ValidateStrength(in.Password); err != nil {
		return nil, err
	}

	// Pre-checks narrow the duplicate race window; the unique indexes in
	// the store remain the source of truth.
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, userrepo.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, userrepo.ErrUserNotFound) {
		return nil, err
	}

	u := &userentity.User{
		ID:        s.newID(),
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrDuplicateEmail):
			return nil, ErrEmailExists
		case errors.Is(err, userrepo.ErrDuplicateUsername):
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err == nil {
		err = s.creds.Create(ctx, &entity.Credential{UserID: u.ID, PasswordHash: hash, IsActive: true})
	}
	if err != nil {
		if delErr := s.users.Delete(ctx, u.ID); delErr != nil {
			s.logger.Errorw("registration compensation failed; user row orphaned",
				"user_id", u.ID, "create_err", err, "delete_err", delErr)
			return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		}
		return nil, err
	}
	return u, nil
}

// Deactivate soft-deletes the credential and revokes its session.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	return s.creds.Deactivate(ctx, userID)
}

// RequestPasswordReset issues a reset grant if the email belongs to an
// account, and reports nothing either way. The raw token would go out via
// a mail transport; without one it is logged at debug level only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return nil
		}
		return err
	}

	raw, hash, err := newResetToken()
	if err != nil {
		return err
	}
	t := &entity.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.cfg.ResetTokenTTL),
	}
	if err := s.resets.Create(ctx, t); err != nil {
		return err
	}
	s.logger.Debugw("password reset token issued", "user_id", u.ID, "token", raw)
	return nil
}

// ResetPassword redeems a single-use reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, next string) error {
	if rawToken == "" {
		return repo.ErrResetTokenInvalid
	}
	if err := ValidateStrength(next); err != nil {
		return err
	}
	userID, err := s.resets.Consume(ctx, hashResetToken(rawToken), time.Now())
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.creds.UpdatePassword(ctx, userID, hash)
}

// newResetToken creates a 256-bit random token and its stored fingerprint.
func newResetToken() (raw string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating reset token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Service) issuePair(u *userentity.User) (TokenPair, string, error) {
	access, err := s.tokens.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, "", err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, "", err
	}
	pair := TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}
	return pair, refresh, nil
}
