package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/turnkey/turnkey/internal/observability"
	"github.com/turnkey/turnkey/internal/platform/httpx"
	unitturnhttp "github.com/turnkey/turnkey/internal/unitturn/http"
	"github.com/turnkey/turnkey/jobs"
)

// ReadinessProbe reports whether a backing service is reachable.
type ReadinessProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	UnitTurnHandler *unitturnhttp.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	Probes          []ReadinessProbe
}

// NewRouter constructs the chi.Router with the default middleware stack.
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
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Probes))

	if params.UnitTurnHandler != nil {
		params.UnitTurnHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func readinessHandler(logger *slog.Logger, probes []ReadinessProbe) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]string, len(probes))
		var g errgroup.Group
		for i, probe := range probes {
			i, probe := i, probe
			g.Go(func() error {
				if err := probe.Check(ctx); err != nil {
					results[i] = "down"
					logger.Warn("readiness probe failed", slog.String("probe", probe.Name), slog.Any("error", err))
					return err
				}
				results[i] = "up"
				return nil
			})
		}
		err := g.Wait()

		body := map[string]string{}
		for i, probe := range probes {
			body[probe.Name] = results[i]
		}
		if err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, body)
			return
		}
		httpx.JSON(w, http.StatusOK, body)
	}
}
