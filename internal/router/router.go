package router

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/auth"
	authrepo "github.com/apprentix/service-core/internal/auth/repo"
	"github.com/apprentix/service-core/internal/event"
	"github.com/apprentix/service-core/internal/user"
	userentity "github.com/apprentix/service-core/internal/user/entity"
	userrepo "github.com/apprentix/service-core/internal/user/repo"
	"github.com/apprentix/service-core/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// RecoveryMiddleware catches panics in handlers and returns a 500 response.
func RecoveryMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorw("panic recovered in HTTP handler",
						"panic", rec, "method", r.Method, "path", r.URL.Path)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"status":500,"code":"INTERNAL_ERROR","message":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers. It is
// intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware to a handler, first listed outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RegisterRoutes builds the service graph and mounts all HTTP handlers on
// the standard library's http.ServeMux (Go 1.22 method patterns).
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, cfg auth.Config) (http.Handler, error) {
	tokens, err := auth.NewTokenService(cfg)
	if err != nil {
		return nil, err
	}

	users := userrepo.NewUserRepo(db)
	creds := authrepo.NewCredentialRepo(db)
	resets := authrepo.NewPasswordResetRepo(db)

	authSvc := auth.NewService(logger, cfg, users, creds, resets, tokens, utilities.NewSnowflakeID)
	guard := auth.NewGuard(tokens, logger)

	authHandler := auth.NewHandler(authSvc, logger)
	userHandler := user.NewHandler(db, authSvc, logger)
	eventHandler := event.NewHandler(db, logger)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /apprentix-api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// session flows
	mux.HandleFunc("POST /apprentix-api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /apprentix-api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /apprentix-api/auth/request-reset", authHandler.RequestReset)
	mux.HandleFunc("POST /apprentix-api/auth/reset-password", authHandler.ResetPassword)
	mux.Handle("POST /apprentix-api/auth/logout",
		chain(http.HandlerFunc(authHandler.Logout), guard.RequireAuth))
	mux.Handle("POST /apprentix-api/auth/change-password",
		chain(http.HandlerFunc(authHandler.ChangePassword), guard.RequireAuth))
	mux.Handle("POST /apprentix-api/auth/register",
		chain(http.HandlerFunc(authHandler.Register),
			guard.RequireAuth, guard.RequireMinRole(userentity.RoleAccountManager)))

	// users
	mux.Handle("GET /apprentix-api/users",
		chain(http.HandlerFunc(userHandler.List),
			guard.RequireAuth, guard.RequireMinRole(userentity.RoleAccountManager)))
	mux.Handle("GET /apprentix-api/users/{id}",
		chain(http.HandlerFunc(userHandler.Get),
			guard.RequireAuth, guard.RequireSelfOrAdmin("id")))
	mux.Handle("DELETE /apprentix-api/users/{id}",
		chain(http.HandlerFunc(userHandler.Deactivate),
			guard.RequireAuth, guard.RequireRoles(userentity.RoleAdmin)))

	// calendar events
	mux.Handle("GET /apprentix-api/events",
		chain(http.HandlerFunc(eventHandler.List), guard.RequireAuth))
	mux.Handle("GET /apprentix-api/events/{id}",
		chain(http.HandlerFunc(eventHandler.Get), guard.RequireAuth))
	mux.Handle("POST /apprentix-api/events",
		chain(http.HandlerFunc(eventHandler.Create),
			guard.RequireAuth, guard.RequireMinRole(userentity.RoleEducationalTutor)))
	mux.Handle("PUT /apprentix-api/events/{id}",
		chain(http.HandlerFunc(eventHandler.Update),
			guard.RequireAuth, guard.RequireMinRole(userentity.RoleEducationalTutor)))
	mux.Handle("DELETE /apprentix-api/events/{id}",
		chain(http.HandlerFunc(eventHandler.Delete),
			guard.RequireAuth, guard.RequireMinRole(userentity.RoleEducationalTutor)))

	handler := chain(mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	)
	return handler, nil
}
