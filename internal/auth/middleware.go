package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/user/entity"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const ctxKeyClaims contextKey = "auth_claims"

// ClaimsFromContext returns the verified claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

// Guard provides request-time authorization middleware. All predicates
// fail closed: missing claims are 401 before any role logic runs, and a
// misconfigured requirement is a 500, never a silent allow.
type Guard struct {
	tokens *TokenService
	logger *zap.SugaredLogger
}

func NewGuard(tokens *TokenService, logger *zap.SugaredLogger) *Guard {
	return &Guard{tokens: tokens, logger: logger}
}

// RequireAuth verifies the bearer access token and stores its claims in
// the request context for downstream predicates and handlers.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
			return
		}
		raw, err := ExtractBearer(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, "malformed authorization header")
			return
		}
		claims, err := g.tokens.Verify(raw, TokenKindAccess)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, CodeTokenExpired, "access token has expired")
			case errors.Is(err, ErrTokenWrongType):
				writeError(w, http.StatusUnauthorized, CodeWrongTokenType, "access token required")
			default:
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
			}
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles allows only the listed roles. An empty allowlist or an
// unknown role in the list is a caller configuration error.
func (g *Guard) RequireRoles(roles ...entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
				return
			}
			if len(roles) == 0 {
				g.logger.Errorw("role allowlist is empty", "path", r.URL.Path)
				writeInternalError(w)
				return
			}
			for _, role := range roles {
				if !entity.IsValidRole(role) {
					g.logger.Errorw("role allowlist contains unknown role", "path", r.URL.Path, "role", role)
					writeInternalError(w)
					return
				}
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			g.forbidden(w, r, rolesString(roles), claims)
		})
	}
}

// RequireMinRole allows roles at or above the given rung of the hierarchy.
func (g *Guard) RequireMinRole(min entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
				return
			}
			minRank, ok := entity.Rank(min)
			if !ok {
				g.logger.Errorw("minimum role is unknown", "path", r.URL.Path, "role", min)
				writeInternalError(w)
				return
			}
			rank, ok := entity.Rank(claims.Role)
			if !ok || rank < minRank {
				g.forbidden(w, r, fmt.Sprintf("%s or above", min), claims)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin allows admins, or the subject whose ID matches the
// named path parameter. A route without that parameter is misconfigured.
func (g *Guard) RequireSelfOrAdmin(pathParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
				return
			}
			ownerID := r.PathValue(pathParam)
			if ownerID == "" {
				g.logger.Errorw("self-or-admin guard without path parameter", "path", r.URL.Path, "param", pathParam)
				writeInternalError(w)
				return
			}
			if claims.Role == entity.RoleAdmin || claims.Subject == ownerID {
				next.ServeHTTP(w, r)
				return
			}
			g.forbidden(w, r, fmt.Sprintf("%s or resource owner", entity.RoleAdmin), claims)
		})
	}
}

// forbidden logs required vs actual for observability; the response body
// carries them too, but the message stays unhelpful to an attacker.
func (g *Guard) forbidden(w http.ResponseWriter, r *http.Request, required string, claims *Claims) {
	g.logger.Infow("authorization denied",
		"path", r.URL.Path, "subject", claims.Subject,
		"required", required, "actual", claims.Role)
	writeError(w, http.StatusForbidden, CodeForbidden,
		fmt.Sprintf("requires %s, have %s", required, claims.Role))
}

func rolesString(roles []entity.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
