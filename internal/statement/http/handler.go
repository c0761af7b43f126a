// Package http exposes rendered financial statements and cell drill-down.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/observability"
	"github.com/jdavon/closebook/internal/platform/httpx"
	"github.com/jdavon/closebook/internal/shared"
	"github.com/jdavon/closebook/internal/statement"
)

// Handler wires statement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *statement.Service
	metrics *observability.Metrics
}

// NewHandler constructs the statement handler.
func NewHandler(logger *slog.Logger, service *statement.Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers statement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/api/statements/{id}", h.handleGetStatement)
	r.Get("/api/statements/{id}/drilldown", h.handleDrillDown)
}

func (h *Handler) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	req, errs := parseRequest(r)
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", strings.Join(errs, "; "))
		return
	}
	started := time.Now()
	st, err := h.service.GetStatement(r.Context(), req)
	h.metrics.ObserveReportBuild(req.StatementID, started, err)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleDrillDown(w http.ResponseWriter, r *http.Request) {
	req, errs := parseRequest(r)
	lineID := r.URL.Query().Get("line")
	if lineID == "" {
		errs = append(errs, "line is required")
	}
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", strings.Join(errs, "; "))
		return
	}
	column := r.URL.Query().Get("column")
	dd, err := h.service.GetDrillDown(r.Context(), req, lineID, column)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dd)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, consol.ErrOrganizationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
	case strings.Contains(err.Error(), "statement:"):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
	default:
		h.logger.Error("statement request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}

func parseRequest(r *http.Request) (statement.Request, []string) {
	q := r.URL.Query()
	var errs []string
	req := statement.Request{StatementID: chi.URLParam(r, "id")}

	organizationID, err := strconv.ParseInt(q.Get("organization"), 10, 64)
	if err != nil || organizationID <= 0 {
		errs = append(errs, "organization is required")
	}
	req.OrganizationID = organizationID

	period, err := shared.ParsePeriod(q.Get("period"))
	if err != nil {
		errs = append(errs, "period must be YYYY-MM")
	}
	req.Period = period

	req.Scope = q.Get("scope")
	if req.Scope == consol.ScopeEntity {
		entityID, err := strconv.ParseInt(q.Get("entity"), 10, 64)
		if err != nil || entityID <= 0 {
			errs = append(errs, "entity is required for entity scope")
		}
		req.EntityID = entityID
	}

	req.Granularity = q.Get("granularity")
	req.IncludeBudget = q.Get("budget") == "true"
	req.IncludeYoY = q.Get("yoy") == "true"
	req.OperatingOnly = q.Get("operating_only") == "true"
	req.IncludeAllocations = q.Get("allocations") != "false"
	req.IncludeProForma = q.Get("pro_forma") != "false"
	return req, errs
}
