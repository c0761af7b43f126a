package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	adjusthttp "github.com/jdavon/closebook/internal/adjust/http"
	consolhttp "github.com/jdavon/closebook/internal/consol/http"
	"github.com/jdavon/closebook/internal/observability"
	statementhttp "github.com/jdavon/closebook/internal/statement/http"
	"github.com/jdavon/closebook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	ConsolHandler    *consolhttp.Handler
	StatementHandler *statementhttp.Handler
	AdjustHandler    *adjusthttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Closebook defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.ConsolHandler != nil {
		params.ConsolHandler.MountRoutes(r)
	}
	if params.StatementHandler != nil {
		params.StatementHandler.MountRoutes(r)
	}
	if params.AdjustHandler != nil {
		params.AdjustHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
