// Package http exposes the adjustment and elimination write API.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jdavon/closebook/internal/adjust"
	"github.com/jdavon/closebook/internal/platform/httpx"
	"github.com/jdavon/closebook/internal/shared"
)

// Handler wires adjustment mutation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *adjust.Service
	validator *validator.Validate
}

// NewHandler constructs the adjust handler.
func NewHandler(logger *slog.Logger, service *adjust.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers mutation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/adjustments/allocations", func(r chi.Router) {
		r.Post("/", h.createAllocation)
		r.Put("/{id}", h.updateAllocation)
		r.Delete("/{id}", h.deleteAllocation)
		r.Post("/{id}/exclude", h.excludeAllocation)
	})
	r.Route("/api/adjustments/pro-forma", func(r chi.Router) {
		r.Post("/", h.createProForma)
		r.Put("/{id}", h.updateProForma)
		r.Delete("/{id}", h.deleteProForma)
		r.Post("/{id}/exclude", h.excludeProForma)
	})
	r.Route("/api/eliminations", func(r chi.Router) {
		r.Post("/", h.createElimination)
		r.Put("/{id}", h.updateElimination)
		r.Delete("/{id}", h.deleteElimination)
		r.Post("/{id}/post", h.postElimination)
		r.Post("/{id}/reverse", h.reverseElimination)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := httpx.DecodeJSON(r, payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return false
	}
	if err := h.validator.Struct(payload); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fields: "+strings.Join(fields, ", "))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, adjust.ErrAdjustmentNotFound), errors.Is(err, adjust.ErrEliminationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, adjust.ErrDuplicateRef):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, adjust.ErrNotDraft), errors.Is(err, shared.ErrInvalidStatusTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case strings.Contains(err.Error(), "adjust:"), strings.Contains(err.Error(), "schedule:"):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("adjust request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) createAllocation(w http.ResponseWriter, r *http.Request) {
	var payload allocationPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	row, err := h.service.CreateAllocation(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, allocationFromDomain(row))
}

func (h *Handler) updateAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload allocationPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UpdateAllocation(r.Context(), id, in); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.DeleteAllocation(r.Context(), payload.OrganizationID, id, payload.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) excludeAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload excludePayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.SetAllocationExcluded(r.Context(), payload.OrganizationID, id, payload.ActorID, payload.Excluded); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createProForma(w http.ResponseWriter, r *http.Request) {
	var payload proFormaPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	row, err := h.service.CreateProForma(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, proFormaFromDomain(row))
}

func (h *Handler) updateProForma(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload proFormaPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UpdateProForma(r.Context(), id, in); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProForma(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.DeleteProForma(r.Context(), payload.OrganizationID, id, payload.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) excludeProForma(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload excludePayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.SetProFormaExcluded(r.Context(), payload.OrganizationID, id, payload.ActorID, payload.Excluded); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createElimination(w http.ResponseWriter, r *http.Request) {
	var payload eliminationPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	row, err := h.service.CreateElimination(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eliminationFromDomain(row))
}

func (h *Handler) updateElimination(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload eliminationPayload
	if !h.decode(w, r, &payload) {
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UpdateElimination(r.Context(), id, in); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteElimination(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.DeleteElimination(r.Context(), payload.OrganizationID, id, payload.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postElimination(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.PostElimination)
}

func (h *Handler) reverseElimination(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReverseElimination)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	if !h.decode(w, r, &payload) {
		return
	}
	row, err := fn(r.Context(), payload.OrganizationID, id, payload.ActorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eliminationFromDomain(row))
}
