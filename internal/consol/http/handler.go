// Package http exposes the consolidated trial balance over JSON and CSV.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/observability"
	"github.com/jdavon/closebook/internal/platform/httpx"
	"github.com/jdavon/closebook/internal/shared"
)

// Handler wires consolidation read endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *consol.Service
	unmapped  *consol.UnmappedStore
	metrics   *observability.Metrics
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the consolidation handler.
func NewHandler(logger *slog.Logger, service *consol.Service, unmapped *consol.UnmappedStore, metrics *observability.Metrics) *Handler {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		unmapped:  unmapped,
		metrics:   metrics,
		rateLimit: limiter,
	}
}

// MountRoutes registers consolidation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/api/consol/tb", h.handleGetTB)
	r.Get("/api/consol/budget/tb", h.handleGetBudgetTB)
	r.Get("/api/consol/unmapped", h.handleGetUnmapped)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/api/consol/tb/export.csv", h.handleExportCSV)
	})
}

func (h *Handler) handleGetTB(w http.ResponseWriter, r *http.Request) {
	filters, errs := parseFilters(r)
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", strings.Join(errs, "; "))
		return
	}
	started := time.Now()
	compareKey := ""
	if filters.ComparePeriod != nil {
		compareKey = filters.ComparePeriod.Key()
	}
	key := fmt.Sprintf("tb:%d:%s:%s:%s:%d:%s:%v:%v",
		filters.OrganizationID, filters.Period.Key(), filters.Granularity, filters.Scope,
		filters.EntityID, compareKey, filters.IncludeAllocations, filters.IncludeProForma)
	result, err, _ := singleflightBuild(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		return h.service.GetTrialBalance(ctx, filters)
	})
	h.metrics.ObserveReportBuild("trial_balance", started, err)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, FromDomain(result.(consol.TrialBalance)))
}

func (h *Handler) handleGetBudgetTB(w http.ResponseWriter, r *http.Request) {
	filters, errs := parseFilters(r)
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", strings.Join(errs, "; "))
		return
	}
	started := time.Now()
	tb, err := h.service.GetBudgetTrialBalance(r.Context(), filters)
	h.metrics.ObserveReportBuild("budget_trial_balance", started, err)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, FromDomain(tb))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filters, errs := parseFilters(r)
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", strings.Join(errs, "; "))
		return
	}
	started := time.Now()
	tb, err := h.service.GetTrialBalance(r.Context(), filters)
	h.metrics.ObserveReportBuild("trial_balance_csv", started, err)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=consolidated_tb_%s.csv", tb.PeriodKey))
	if err := writeTBCsv(w, tb, filters); err != nil {
		h.logger.Error("write consol tb csv", slog.Any("error", err))
	}
}

func (h *Handler) handleGetUnmapped(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	organizationID, err := strconv.ParseInt(q.Get("organization"), 10, 64)
	if err != nil || organizationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", "organization is required")
		return
	}
	period, err := shared.ParsePeriod(q.Get("period"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", "period must be YYYY-MM")
		return
	}
	report, err := h.unmapped.Load(r.Context(), organizationID, period)
	if err != nil {
		if errors.Is(err, consol.ErrReportNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no unmapped report for the period; the scan may not have run yet")
			return
		}
		h.logger.Error("load unmapped report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, consol.ErrOrganizationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
	case strings.Contains(err.Error(), "consol:"):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
	default:
		h.logger.Error("consolidation request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}

// parseFilters reads query parameters into consolidation filters,
// collecting every problem instead of stopping at the first.
func parseFilters(r *http.Request) (consol.Filters, []string) {
	q := r.URL.Query()
	var errs []string
	var filters consol.Filters

	organizationID, err := strconv.ParseInt(q.Get("organization"), 10, 64)
	if err != nil || organizationID <= 0 {
		errs = append(errs, "organization is required")
	}
	filters.OrganizationID = organizationID

	period, err := shared.ParsePeriod(q.Get("period"))
	if err != nil {
		errs = append(errs, "period must be YYYY-MM")
	}
	filters.Period = period

	if raw := q.Get("compare"); raw != "" {
		compare, err := shared.ParsePeriod(raw)
		if err != nil {
			errs = append(errs, "compare must be YYYY-MM")
		} else {
			filters.ComparePeriod = &compare
		}
	}

	filters.Scope = q.Get("scope")
	if filters.Scope == consol.ScopeEntity {
		entityID, err := strconv.ParseInt(q.Get("entity"), 10, 64)
		if err != nil || entityID <= 0 {
			errs = append(errs, "entity is required for entity scope")
		}
		filters.EntityID = entityID
	}

	filters.Granularity = q.Get("granularity")
	filters.IncludeAllocations = q.Get("allocations") != "false"
	filters.IncludeProForma = q.Get("pro_forma") != "false"
	return filters, errs
}
