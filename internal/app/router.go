package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian/internal/accounting/journals"
	"github.com/meridian-dms/meridian/internal/allocations"
	"github.com/meridian-dms/meridian/internal/catalog"
	"github.com/meridian-dms/meridian/internal/collections"
	"github.com/meridian-dms/meridian/internal/customers"
	"github.com/meridian-dms/meridian/internal/observability"
	"github.com/meridian-dms/meridian/internal/orders"
	"github.com/meridian-dms/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CatalogHandler     *catalog.Handler
	CustomersHandler   *customers.Handler
	OrdersHandler      *orders.Handler
	AllocationsHandler *allocations.Handler
	CollectionsHandler *collections.Handler
	JournalsHandler    *journals.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/catalog", params.CatalogHandler.MountRoutes)
	r.Route("/customers", params.CustomersHandler.MountRoutes)
	r.Route("/orders", params.OrdersHandler.MountRoutes)
	r.Route("/allocations", params.AllocationsHandler.MountRoutes)
	r.Route("/collections", params.CollectionsHandler.MountRoutes)
	if params.JournalsHandler != nil {
		r.Route("/accounting/journals", params.JournalsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
