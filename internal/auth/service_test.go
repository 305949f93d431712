package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/apprentix/service-core/internal/auth/entity"
	"github.com/apprentix/service-core/internal/auth/repo"
	userentity "github.com/apprentix/service-core/internal/user/entity"
	userrepo "github.com/apprentix/service-core/internal/user/repo"
)

// --- fakes ---

type fakeUserStore struct {
	byID map[string]*userentity.User

	deleteErr error
	deleted   []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: map[string]*userentity.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u *userentity.User) error {
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return userrepo.ErrDuplicateEmail
		}
		if existing.Username == u.Username {
			return userrepo.ErrDuplicateUsername
		}
	}
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*userentity.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, userrepo.ErrUserNotFound
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*userentity.User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, userrepo.ErrUserNotFound
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*userentity.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, userrepo.ErrUserNotFound
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeCredStore mirrors the SQL repo's atomic semantics in memory, reusing
// the pure lockout policy for the failure transition.
type fakeCredStore struct {
	byUser map[string]*entity.Credential
	emails map[string]string // email -> userID
	policy LockoutPolicy

	createErr       error
	lastLockSeconds int
}

func newFakeCredStore(policy LockoutPolicy) *fakeCredStore {
	return &fakeCredStore{
		byUser: map[string]*entity.Credential{},
		emails: map[string]string{},
		policy: policy,
	}
}

func (f *fakeCredStore) Create(_ context.Context, c *entity.Credential) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUser[c.UserID]; ok {
		return repo.ErrCredentialExists
	}
	cc := *c
	f.byUser[c.UserID] = &cc
	return nil
}

func (f *fakeCredStore) GetByUserID(_ context.Context, userID string) (*entity.Credential, error) {
	if c, ok := f.byUser[userID]; ok {
		return c, nil
	}
	return nil, repo.ErrCredentialNotFound
}

func (f *fakeCredStore) GetByEmail(_ context.Context, email string) (*entity.Credential, error) {
	userID, ok := f.emails[strings.ToLower(email)]
	if !ok {
		return nil, repo.ErrCredentialNotFound
	}
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return nil, repo.ErrCredentialNotFound
	}
	return c, nil
}

func (f *fakeCredStore) GetByRefreshToken(_ context.Context, token string) (*entity.Credential, error) {
	for _, c := range f.byUser {
		if c.IsActive && c.RefreshToken != nil && *c.RefreshToken == token {
			return c, nil
		}
	}
	return nil, repo.ErrCredentialNotFound
}

func (f *fakeCredStore) RecordFailure(_ context.Context, userID string, _ int, lockSeconds int) (int, *time.Time, error) {
	f.lastLockSeconds = lockSeconds
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return 0, nil, repo.ErrCredentialNotFound
	}
	state := f.policy.OnFailure(LockoutState{
		FailedAttempts: c.FailedLoginAttempts,
		LockedUntil:    c.AccountLockedUntil,
	}, time.Now())
	c.FailedLoginAttempts = state.FailedAttempts
	c.AccountLockedUntil = state.LockedUntil
	return c.FailedLoginAttempts, c.AccountLockedUntil, nil
}

func (f *fakeCredStore) RecordSuccess(_ context.Context, userID string) error {
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return repo.ErrCredentialNotFound
	}
	now := time.Now()
	c.FailedLoginAttempts = 0
	c.AccountLockedUntil = nil
	c.LastLogin = &now
	return nil
}

func (f *fakeCredStore) SetRefreshToken(_ context.Context, userID string, token *string) error {
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return repo.ErrCredentialNotFound
	}
	c.RefreshToken = token
	return nil
}

func (f *fakeCredStore) RotateRefreshToken(_ context.Context, userID string, old string, renewed string) error {
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive || c.RefreshToken == nil || *c.RefreshToken != old {
		return repo.ErrRefreshTokenStale
	}
	c.RefreshToken = &renewed
	return nil
}

func (f *fakeCredStore) UpdatePassword(_ context.Context, userID string, hash string) error {
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return repo.ErrCredentialNotFound
	}
	c.PasswordHash = hash
	c.RefreshToken = nil
	c.FailedLoginAttempts = 0
	c.AccountLockedUntil = nil
	return nil
}

func (f *fakeCredStore) Deactivate(_ context.Context, userID string) error {
	c, ok := f.byUser[userID]
	if !ok || !c.IsActive {
		return repo.ErrCredentialNotFound
	}
	c.IsActive = false
	c.RefreshToken = nil
	return nil
}

func (f *fakeCredStore) Delete(_ context.Context, userID string) error {
	delete(f.byUser, userID)
	return nil
}

type fakeResetStore struct {
	byHash map[string]*entity.PasswordResetToken
}

func newFakeResetStore() *fakeResetStore {
	return &fakeResetStore{byHash: map[string]*entity.PasswordResetToken{}}
}

func (f *fakeResetStore) Create(_ context.Context, t *entity.PasswordResetToken) error {
	now := time.Now()
	for _, existing := range f.byHash {
		if existing.UserID == t.UserID && existing.UsedAt == nil {
			existing.UsedAt = &now
		}
	}
	tt := *t
	f.byHash[t.TokenHash] = &tt
	return nil
}

func (f *fakeResetStore) Consume(_ context.Context, tokenHash string, now time.Time) (string, error) {
	t, ok := f.byHash[tokenHash]
	if !ok || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return "", repo.ErrResetTokenInvalid
	}
	t.UsedAt = &now
	return t.UserID, nil
}

// --- helpers ---

func testServiceConfig() Config {
	return Config{
		AccessSecret:        strings.Repeat("a", 32),
		RefreshSecret:       strings.Repeat("r", 32),
		BcryptCost:          bcrypt.MinCost,
		LockoutThreshold:    5,
		LockoutDuration:     15 * time.Minute,
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		ResetTokenTTL:       time.Hour,
		RotateRefreshTokens: true,
	}
}

type testEnv struct {
	svc    *Service
	users  *fakeUserStore
	creds  *fakeCredStore
	resets *fakeResetStore
	tokens *TokenService
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	tokens, err := NewTokenService(cfg)
	require.NoError(t, err)
	users := newFakeUserStore()
	creds := newFakeCredStore(NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutDuration))
	resets := newFakeResetStore()
	var n int
	newID := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc := NewService(zap.NewNop().Sugar(), cfg, users, creds, resets, tokens, newID)
	return &testEnv{svc: svc, users: users, creds: creds, resets: resets, tokens: tokens}
}

// seedAccount registers a user directly into the fakes with the given password.
func (e *testEnv) seedAccount(t *testing.T, id, email, password string, role userentity.Role) {
	t.Helper()
	e.users.byID[id] = &userentity.User{
		ID: id, Username: "user-" + id, Email: email,
		FirstName: "Ada", LastName: "Lovelace", Role: role,
	}
	hash, err := BcryptHasher{Cost: bcrypt.MinCost}.Hash(password)
	require.NoError(t, err)
	e.creds.byUser[id] = &entity.Credential{UserID: id, PasswordHash: hash, IsActive: true}
	e.creds.emails[strings.ToLower(email)] = id
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)

	res, err := e.svc.Login(context.Background(), "a@b.com", "Secret123!")
	require.NoError(t, err)

	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, userentity.RoleApprentice, res.User.Role)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.Equal(t, 900, res.Tokens.ExpiresIn)

	claims, err := e.tokens.Verify(res.Tokens.AccessToken, TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)

	cred := e.creds.byUser["u1"]
	require.NotNil(t, cred.RefreshToken)
	assert.Equal(t, res.Tokens.RefreshToken, *cred.RefreshToken)
	assert.NotNil(t, cred.LastLogin)
}

func TestLogin_InputValidation(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())

	_, err := e.svc.Login(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = e.svc.Login(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = e.svc.Login(context.Background(), "not-an-email", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestLogin_UnknownAndDeactivatedLookAlike(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleMentor)

	_, unknownErr := e.svc.Login(context.Background(), "ghost@b.com", "Secret123!")
	assert.ErrorIs(t, unknownErr, ErrBadCredentials)

	require.NoError(t, e.svc.Deactivate(context.Background(), "u1"))
	_, deactivatedErr := e.svc.Login(context.Background(), "a@b.com", "Secret123!")
	assert.ErrorIs(t, deactivatedErr, ErrBadCredentials)
}

func TestLogin_LockoutScenario(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.svc.Login(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	cred := e.creds.byUser["u1"]
	require.NotNil(t, cred.AccountLockedUntil)
	assert.Equal(t, 0, cred.FailedLoginAttempts)
	assert.False(t, cred.AccountLockedUntil.Before(time.Now().Add(14*time.Minute)))

	// the sixth attempt fails closed even with the correct password
	_, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	assert.ErrorIs(t, err, ErrAccountLocked)

	// once the lock lapses, the correct password works and state resets
	past := time.Now().Add(-time.Second)
	cred.AccountLockedUntil = &past
	_, err = e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, 0, cred.FailedLoginAttempts)
	assert.Nil(t, cred.AccountLockedUntil)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = e.svc.Login(ctx, "a@b.com", "wrong")
	}
	assert.Equal(t, 3, e.creds.byUser["u1"].FailedLoginAttempts)

	_, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, 0, e.creds.byUser["u1"].FailedLoginAttempts)
}

func TestLogin_LockWindowPassedInWholeSeconds(t *testing.T) {
	t.Parallel()

	// a sub-minute lockout duration must not truncate to a zero-length lock
	cfg := testServiceConfig()
	cfg.LockoutDuration = 30 * time.Second
	e := newTestEnv(t, cfg)
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)

	_, err := e.svc.Login(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, 30, e.creds.lastLockSeconds)
}

// --- logout / refresh ---

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, "u1"))
	assert.Nil(t, e.creds.byUser["u1"].RefreshToken)

	// repeated and unknown-subject logouts are not errors
	require.NoError(t, e.svc.Logout(ctx, "u1"))
	require.NoError(t, e.svc.Logout(ctx, "nobody"))

	// the logged-out token no longer refreshes
	_, err = e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestRefresh_RotationInvalidatesOldToken(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleMentor)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	pair, err := e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	// old value was rotated out
	_, err = e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	// the rotated-in value works
	_, err = e.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RotationDisabledReusesToken(t *testing.T) {
	t.Parallel()

	cfg := testServiceConfig()
	cfg.RotateRefreshTokens = false
	e := newTestEnv(t, cfg)
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleMentor)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	pair, err := e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens.RefreshToken, pair.RefreshToken)

	// without rotation the same token keeps working
	_, err = e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RejectsGarbageAndAccessTokens(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleMentor)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	_, err = e.svc.Refresh(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)

	_, err = e.svc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRefresh_HydratesClaimsFromCurrentUserRow(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	// a role change after login must be reflected on the next refresh
	e.users.byID["u1"].Role = userentity.RoleMentor

	pair, err := e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := e.tokens.Verify(pair.AccessToken, TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, userentity.RoleMentor, claims.Role)
}

// --- change password ---

func TestChangePassword(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "a@b.com", "Secret123!")
	require.NoError(t, err)

	err = e.svc.ChangePassword(ctx, "u1", "nope", "NewSecret1!")
	assert.ErrorIs(t, err, ErrInvalidCurrentPassword)

	err = e.svc.ChangePassword(ctx, "u1", "Secret123!", "weakpass")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)

	err = e.svc.ChangePassword(ctx, "u1", "Secret123!", "Secret123!")
	assert.ErrorIs(t, err, ErrSamePassword)

	require.NoError(t, e.svc.ChangePassword(ctx, "u1", "Secret123!", "NewSecret1!"))

	// the previously issued refresh token is dead
	_, err = e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	// old password out, new password in
	_, err = e.svc.Login(ctx, "a@b.com", "Secret123!")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = e.svc.Login(ctx, "a@b.com", "NewSecret1!")
	require.NoError(t, err)
}

// --- registration ---

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())

	u, err := e.svc.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "Ada@Example.com", Password: "Secret123!",
		FirstName: "Ada", LastName: "Lovelace", Role: userentity.RoleApprentice,
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	require.Contains(t, e.users.byID, u.ID)
	cred, ok := e.creds.byUser[u.ID]
	require.True(t, ok)
	assert.True(t, cred.IsActive)
	assert.GreaterOrEqual(t, len(cred.PasswordHash), entity.MinHashLength)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{Username: "ada", Email: "", Password: "Secret123!", Role: userentity.RoleApprentice})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = e.svc.Register(ctx, RegisterInput{Username: "ada", Email: "bad", Password: "Secret123!", Role: userentity.RoleApprentice})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = e.svc.Register(ctx, RegisterInput{Username: "ada", Email: "a@b.com", Password: "weakpass", Role: userentity.RoleApprentice})
	assert.ErrorIs(t, err, ErrPasswordTooWeak)

	_, err = e.svc.Register(ctx, RegisterInput{Username: "ada", Email: "a@b.com", Password: "Secret123!", Role: "WIZARD"})
	assert.Error(t, err)
}

func TestRegister_Duplicates(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{
		Username: "other", Email: "a@b.com", Password: "Secret123!", Role: userentity.RoleApprentice,
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = e.svc.Register(ctx, RegisterInput{
		Username: "user-u1", Email: "new@b.com", Password: "Secret123!", Role: userentity.RoleApprentice,
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestRegister_CompensatesFailedCredentialPhase(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.creds.createErr = fmt.Errorf("store unavailable")

	_, err := e.svc.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "a@b.com", Password: "Secret123!", Role: userentity.RoleApprentice,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCompensationFailed)

	// the phase-1 user row was rolled back
	assert.Empty(t, e.users.byID)
	assert.NotEmpty(t, e.users.deleted)
}

func TestRegister_CompensationFailureIsDistinct(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.creds.createErr = fmt.Errorf("store unavailable")
	e.users.deleteErr = fmt.Errorf("also down")

	_, err := e.svc.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "a@b.com", Password: "Secret123!", Role: userentity.RoleApprentice,
	})
	assert.ErrorIs(t, err, ErrCompensationFailed)
}

// --- password reset ---

func TestRequestPasswordReset_SilentForUnknownEmail(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())

	require.NoError(t, e.svc.RequestPasswordReset(context.Background(), "ghost@b.com"))
	assert.Empty(t, e.resets.byHash)

	require.NoError(t, e.svc.RequestPasswordReset(context.Background(), "not an email"))
}

func TestRequestPasswordReset_StoresFingerprintOnly(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)

	require.NoError(t, e.svc.RequestPasswordReset(context.Background(), "a@b.com"))
	require.Len(t, e.resets.byHash, 1)
	for hash, tok := range e.resets.byHash {
		assert.Len(t, hash, 64) // sha256 hex, never the raw token
		assert.Equal(t, "u1", tok.UserID)
		assert.True(t, tok.ExpiresAt.After(time.Now()))
	}
}

func TestResetPassword_SingleUse(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	raw := "0123456789abcdef0123456789abcdef"
	e.resets.byHash[hashResetToken(raw)] = &entity.PasswordResetToken{
		ID: "t1", UserID: "u1", TokenHash: hashResetToken(raw),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, e.svc.ResetPassword(ctx, raw, "NewSecret1!"))

	_, err := e.svc.Login(ctx, "a@b.com", "NewSecret1!")
	require.NoError(t, err)

	// a second redemption of the same token fails
	err = e.svc.ResetPassword(ctx, raw, "OtherSecret1!")
	assert.ErrorIs(t, err, repo.ErrResetTokenInvalid)
}

func TestResetPassword_ExpiredOrUnknownToken(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, testServiceConfig())
	e.seedAccount(t, "u1", "a@b.com", "Secret123!", userentity.RoleApprentice)
	ctx := context.Background()

	raw := "feedfacefeedfacefeedfacefeedface"
	e.resets.byHash[hashResetToken(raw)] = &entity.PasswordResetToken{
		ID: "t1", UserID: "u1", TokenHash: hashResetToken(raw),
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	assert.ErrorIs(t, e.svc.ResetPassword(ctx, raw, "NewSecret1!"), repo.ErrResetTokenInvalid)
	assert.ErrorIs(t, e.svc.ResetPassword(ctx, "unknown-token", "NewSecret1!"), repo.ErrResetTokenInvalid)
	assert.ErrorIs(t, e.svc.ResetPassword(ctx, "", "NewSecret1!"), repo.ErrResetTokenInvalid)
}
