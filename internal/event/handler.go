package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/apprentix/service-core/internal/auth"
	"github.com/apprentix/service-core/internal/event/entity"
	"github.com/apprentix/service-core/internal/event/repo"
)

// Handler exposes calendar-event endpoints. Reads require authentication;
// writes are limited to EDUCATIONAL_TUTOR and above at the router.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewService(repo.NewEventRepo(db)), logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	events, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Errorw("list events failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var e entity.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		e.CreatedBy = claims.Subject
	}
	created, err := h.svc.Create(r.Context(), &e)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var e entity.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	e.ID = r.PathValue("id")
	updated, err := h.svc.Update(r.Context(), &e)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
	case errors.Is(err, repo.ErrVersionConflict):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "event was modified concurrently"})
	case errors.Is(err, ErrInvalidTimeRange):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Errorw("event operation failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
