package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stocklane/stocklane/internal/catalog"
	"github.com/stocklane/stocklane/internal/drift"
	"github.com/stocklane/stocklane/internal/importer"
	"github.com/stocklane/stocklane/internal/observability"
	"github.com/stocklane/stocklane/internal/reconcile"
	"github.com/stocklane/stocklane/internal/shared"
	"github.com/stocklane/stocklane/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	ReconcileHandler *reconcile.Handler
	ImportHandler    *importer.Handler
	QueueHandler     *jobs.Handler
	DriftHandler     *drift.Handler
	Idempotency      *shared.IdempotencyStore
	Metrics          *observability.Metrics
	Health           func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the default middleware chain and
// every API surface mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Idempotency: params.Idempotency,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Health != nil {
			if err := params.Health(req); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/variants", func(r chi.Router) {
		params.CatalogHandler.MountRoutes(r)
		r.Post("/{id}/recount", params.ReconcileHandler.HandleRecount)
	})
	r.Route("/sales", params.ReconcileHandler.MountSales)
	r.Route("/stock", params.ReconcileHandler.MountStock)
	r.Route("/adjustments", params.ReconcileHandler.MountAdjustments)
	r.Route("/imports", func(r chi.Router) {
		params.ImportHandler.MountRoutes(r)
		if params.QueueHandler != nil {
			params.QueueHandler.MountRoutes(r)
		}
	})
	r.Route("/drift", params.DriftHandler.MountRoutes)
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
