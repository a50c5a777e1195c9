// Package server is the submission API. It accepts requests, seeds the
// status cache, and hands work to the queue; it never blocks on execution
// and never reads worker memory, only the cache.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/cache"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/metrics"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/queue"
)

// Options configures the API server.
type Options struct {
	Addr        string
	WorkerCount int
	CacheTTL    time.Duration
}

// Server wires the HTTP surface to the queue and cache.
type Server struct {
	opts    Options
	queue   *queue.Queue
	cache   cache.Cache
	metrics *metrics.Metrics
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	httpSrv *http.Server
}

func New(opts Options, q *queue.Queue, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:    opts,
		queue:   q,
		cache:   c,
		metrics: m,
		logger:  logger.With(zap.String("component", "api")),
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	return s
}

// Handler builds the router; exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/execution", func(r chi.Router) {
		r.Post("/submit", s.handleSubmit)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/results/{id}", s.handleStatus)
		r.Delete("/cancel/{id}", s.handleCancel)
		r.Get("/health", s.handleHealth)
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", zap.String("addr", s.opts.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains HTTP connections and stops intake. Workers are drained by
// the caller closing the queue.
func (s *Server) Shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	s.cancel()
}
