// Package server exposes the scoring engine's HTTP control surface:
// triggering runs, reading the latest result, and tuning unit weights.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	rxmiddleware "github.com/rxguard/rxguard/infrastructure/middleware"
	"github.com/rxguard/rxguard/internal/application"
	"github.com/rxguard/rxguard/internal/domain"
)

// Weight updates are operator actions, not a data path; a small steady
// rate with a burst of a few is plenty and shields the engine from
// scripted hammering.
const (
	weightUpdateRate  = rate.Limit(1)
	weightUpdateBurst = 3
)

// Config holds the control surface settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// WebAPI is the HTTP control surface over one scoring engine instance.
// Runs triggered through it execute serially: a second trigger while a
// run is in flight waits for the first to finish.
type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server

	orchestrator *application.Orchestrator
	weights      *domain.WeightVector

	// mu serializes runs and weight updates so the weight vector is never
	// mutated while aggregation reads it.
	mu     sync.Mutex
	latest *domain.RunResult

	weightLimiter *rate.Limiter

	shutdownTimeout time.Duration
}

// NewWebAPI wires the control surface over the given orchestrator and
// weight vector. The weight vector must be the same instance the
// orchestrator's aggregator reads.
func NewWebAPI(logger zerolog.Logger, config Config, orchestrator *application.Orchestrator, weights *domain.WeightVector) *WebAPI {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	api := &WebAPI{
		logger:          &logger,
		orchestrator:    orchestrator,
		weights:         weights,
		weightLimiter:   rate.NewLimiter(weightUpdateRate, weightUpdateBurst),
		shutdownTimeout: config.ShutdownTimeout,
	}

	router := chi.NewRouter()
	router.Use(rxmiddleware.Logger(&logger))
	router.Use(chimiddleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", api.triggerRun)
		r.Get("/runs/latest", api.latestRun)
		r.Get("/weights", api.getWeights)
		r.Put("/weights", api.updateWeights)
	})
	router.Get("/healthz", api.healthz)
	router.Handle("/metrics", promhttp.Handler())

	api.router = router
	api.server = &http.Server{
		Addr:    config.Addr,
		Handler: router,
	}
	return api
}

// Handler exposes the router for tests.
func (w *WebAPI) Handler() http.Handler { return w.router }

// Start runs the HTTP server until the context is canceled or an
// interrupt arrives, then shuts down gracefully within the configured
// timeout.
func (w *WebAPI) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting control surface")
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		w.logger.Info().Msg("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			return w.server.Close()
		}
		return nil
	})

	return g.Wait()
}
