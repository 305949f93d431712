package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/apprentix/service-core/internal/user/entity"
)

// TokenKind distinguishes the two token families. Each kind is signed with
// its own secret; a token of one kind never verifies as the other.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"

	tokenIssuer   = "apprentix-core"
	tokenAudience = "apprentix-api"
)

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenMalformed   = errors.New("token is malformed or has a bad signature")
	ErrTokenNotYetValid = errors.New("token is not valid yet")
	ErrTokenWrongType   = errors.New("token is of the wrong type for this operation")
	ErrBearerFormat     = errors.New("authorization header must be of the form 'Bearer <token>'")
)

// Claims is the payload shape shared by both token kinds. Refresh tokens
// omit Email and Role: authorization data is re-read from the store at
// refresh time, never trusted from a long-lived token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string      `json:"email,omitempty"`
	Role      entity.Role `json:"role,omitempty"`
	TokenType TokenKind   `json:"type"`
}

// TokenService issues and verifies signed, typed, expiring tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService validates secret configuration and returns a service.
func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrSecretMissing
	}
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSecretsEqual
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL == 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTokenTTL
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess signs a short-lived access token carrying email and role.
func (s *TokenService) IssueAccess(userID string, email string, role entity.Role) (string, error) {
	return s.issue(userID, email, role, TokenKindAccess, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token carrying only the subject.
func (s *TokenService) IssueRefresh(userID string) (string, error) {
	return s.issue(userID, "", "", TokenKindRefresh, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) issue(userID, email string, role entity.Role, kind TokenKind, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Email:     email,
		Role:      role,
		TokenType: kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify decodes the token against the secret for the expected kind,
// validates signature, issuer, audience and expiry, and then checks the
// embedded type claim. The type check defends against a signature-valid
// token of one kind being replayed where the other kind is expected.
func (s *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret := s.accessSecret
	if kind == TokenKindRefresh {
		secret = s.refreshSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != kind {
		return nil, ErrTokenWrongType
	}
	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// ExtractBearer parses an Authorization header value, requiring the exact
// two-part "Bearer <token>" form: case-sensitive scheme, one separating
// space, non-empty token.
func ExtractBearer(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrBearerFormat
	}
	return parts[1], nil
}
