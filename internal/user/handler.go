package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/auth"
	authrepo "github.com/apprentix/service-core/internal/auth/repo"
	"github.com/apprentix/service-core/internal/user/repo"
)

// Handler exposes profile endpoints. Route-level authorization (self-or-
// admin, minimum role) is applied by the router via auth.Guard; handlers
// here only do the work.
type Handler struct {
	svc     *UserService
	authSvc *auth.Service
	logger  *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, authSvc *auth.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewUserService(db, nil), authSvc: authSvc, logger: logger}
}

// Get serves GET /users/{id} (self-or-admin).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sum, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		h.logger.Errorw("get user failed", "user_id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, sum)
}

// List serves GET /users (ACCOUNT_MANAGER and above).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	users, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Errorw("list users failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// Deactivate serves DELETE /users/{id} (admin only). The profile row stays
// for history; the credential is soft-deleted and its session revoked.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.authSvc.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, authrepo.ErrCredentialNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		h.logger.Errorw("deactivate failed", "user_id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "account deactivated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
