// Package api serves the reconciliation engine over HTTP.
//
// Every engine endpoint takes a POST body of the form
//
//	{"problem": {...}, "options": {...}}
//
// where problem is an [mio.ProblemDoc] and options a [pipeline.Options].
// Results are JSON, except /v1/csv and /v1/dot which return the event
// table and the Graphviz rendering of the reconciliation graph.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/mprscape/pkg/pipeline"
)

const (
	// DefaultAddr is the listen address used when Config.Addr is empty.
	DefaultAddr = ":8080"

	// DefaultTimeout bounds the handling of a single request.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 8 << 20

	shutdownTimeout = 10 * time.Second
)

// Config configures a [Server].
type Config struct {
	Addr         string
	Timeout      time.Duration
	MaxBodyBytes int64

	// Defaults are merged under the options of every request.
	Defaults pipeline.Options

	// Registry is served on /metrics. A nil registry disables the route.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Server is the HTTP front end of a [pipeline.Runner].
type Server struct {
	runner  *pipeline.Runner
	cfg     Config
	logger  *log.Logger
	router  chi.Router
	started time.Time
}

// New creates a server for runner.
func New(runner *pipeline.Runner, cfg Config) *Server {
	cfg.setDefaults()
	s := &Server{
		runner:  runner,
		cfg:     cfg,
		logger:  cfg.Logger,
		started: time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	if s.cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Timeout))
			r.Post("/reconcile", s.handleReconcile)
			r.Post("/median", s.handleMedian)
			r.Post("/sample", s.handleSample)
			r.Post("/histogram", s.handleHistogram)
			r.Post("/cluster", s.handleCluster)
			r.Post("/regions", s.handleRegions)
			r.Post("/stats", s.handleStats)
			r.Post("/csv", s.handleCSV)
			r.Post("/dot", s.handleDOT)
		})
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
