package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/auth/repo"
	userentity "github.com/apprentix/service-core/internal/user/entity"
)

// Machine-readable error codes, stable across releases so clients can
// branch on them.
const (
	CodeInvalidPayload         = "INVALID_PAYLOAD"
	CodeMissingCredentials     = "MISSING_CREDENTIALS"
	CodeInvalidEmailFormat     = "INVALID_EMAIL_FORMAT"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountLocked          = "ACCOUNT_LOCKED"
	CodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	CodeRefreshTokenRevoked    = "REFRESH_TOKEN_REVOKED"
	CodeWeakPassword           = "WEAK_PASSWORD"
	CodeWeakPasswordComplexity = "WEAK_PASSWORD_COMPLEXITY"
	CodeSamePassword           = "SAME_PASSWORD"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeInvalidResetToken      = "INVALID_RESET_TOKEN"
	CodeEmailExists            = "EMAIL_EXISTS"
	CodeUsernameExists         = "USERNAME_EXISTS"
	CodeUnknownRole            = "UNKNOWN_ROLE"
	CodeMissingToken           = "MISSING_TOKEN"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeWrongTokenType         = "WRONG_TOKEN_TYPE"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
)

// HTTPError is the structured error envelope for every non-2xx response.
type HTTPError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, HTTPError{Status: status, Code: code, Message: message})
}

// writeInternalError reports a generic 500; detail stays in the server log.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// Handler exposes the auth session endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload, "invalid JSON body")
		return
	}
	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, CodeMissingCredentials, "email and password are required")
		case errors.Is(err, ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, CodeInvalidEmailFormat, "email format is invalid")
		case errors.Is(err, ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials")
		case errors.Is(err, ErrAccountLocked):
			writeError(w, http.StatusForbidden, CodeAccountLocked, "account temporarily locked, try again later")
		default:
			h.logger.Errorw("login failed", "err", err)
			writeInternalError(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.Subject); err != nil {
		h.logger.Errorw("logout failed", "user_id", claims.Subject, "err", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Refresh is its own bearer extraction path: the presented token must be a
// refresh token, so this endpoint never sits behind RequireAuth.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, CodeInvalidRefreshToken, "refresh token required")
		return
	}
	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenInvalid):
			writeError(w, http.StatusUnauthorized, CodeInvalidRefreshToken, "refresh token is invalid")
		case errors.Is(err, ErrRefreshTokenRevoked):
			writeError(w, http.StatusUnauthorized, CodeRefreshTokenRevoked, "refresh token has been revoked")
		default:
			h.logger.Errorw("refresh failed", "err", err)
			writeInternalError(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeMissingToken, "authorization required")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload, "invalid JSON body")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCurrentPassword):
			writeError(w, http.StatusUnauthorized, CodeInvalidCurrentPassword, "current password is incorrect")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordRequired):
			writeError(w, http.StatusBadRequest, CodeWeakPassword, err.Error())
		case errors.Is(err, ErrPasswordTooWeak):
			writeError(w, http.StatusBadRequest, CodeWeakPasswordComplexity, err.Error())
		case errors.Is(err, ErrSamePassword):
			writeError(w, http.StatusBadRequest, CodeSamePassword, "new password must differ from the current one")
		default:
			h.logger.Errorw("change password failed", "user_id", claims.Subject, "err", err)
			writeInternalError(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload, "invalid JSON body")
		return
	}
	role := userentity.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !userentity.IsValidRole(role) {
		writeError(w, http.StatusBadRequest, CodeUnknownRole, "unknown role")
		return
	}
	u, err := h.svc.Register(r.Context(), RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, CodeMissingCredentials, "username, email and password are required")
		case errors.Is(err, ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, CodeInvalidEmailFormat, "email format is invalid")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordRequired):
			writeError(w, http.StatusBadRequest, CodeWeakPassword, err.Error())
		case errors.Is(err, ErrPasswordTooWeak):
			writeError(w, http.StatusBadRequest, CodeWeakPasswordComplexity, err.Error())
		case errors.Is(err, ErrEmailExists):
			writeError(w, http.StatusConflict, CodeEmailExists, "email already registered")
		case errors.Is(err, ErrUsernameExists):
			writeError(w, http.StatusConflict, CodeUsernameExists, "username already taken")
		case errors.Is(err, repo.ErrCredentialExists):
			writeError(w, http.StatusConflict, CodeEmailExists, "account already exists")
		default:
			h.logger.Errorw("registration failed", "err", err)
			writeInternalError(w)
		}
		return
	}
	writeJSON(w, http.StatusCreated, u.Summary())
}

type resetRequestBody struct {
	Email string `json:"email"`
}

// RequestReset always answers with the same message, whether or not the
// email maps to an account.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload, "invalid JSON body")
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.logger.Errorw("password reset request failed", "err", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if the email is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidPayload, "invalid JSON body")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, repo.ErrResetTokenInvalid):
			writeError(w, http.StatusBadRequest, CodeInvalidResetToken, "reset token is invalid or expired")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordRequired):
			writeError(w, http.StatusBadRequest, CodeWeakPassword, err.Error())
		case errors.Is(err, ErrPasswordTooWeak):
			writeError(w, http.StatusBadRequest, CodeWeakPasswordComplexity, err.Error())
		default:
			h.logger.Errorw("password reset failed", "err", err)
			writeInternalError(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}
