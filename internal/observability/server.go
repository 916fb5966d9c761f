// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether the service can serve traffic.
type ReadinessChecker func(ctx context.Context) bool

// Outcome labels shared by the auth counters.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Auth counters are package-level so the auth package can record events
// without holding a Server.
var (
	signupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_signups_total",
			Help: "Total number of signup attempts by result",
		},
		[]string{"result"},
	)
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)
	authorizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_authorizations_total",
			Help: "Total number of credential resolutions by result",
		},
		[]string{"result"},
	)
	sessionsRenewedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_sessions_renewed_total",
		Help: "Total number of sessions extended during authorization",
	})
	sessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_sessions_expired_total",
		Help: "Total number of expired sessions seen during authorization",
	})
	sessionsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_sessions_swept_total",
		Help: "Total number of expired sessions removed by the sweeper",
	})
)

// RecordSignup increments the signup counter.
func RecordSignup(result string) {
	signupsTotal.WithLabelValues(result).Inc()
}

// RecordLogin increments the login counter.
func RecordLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// RecordAuthorization increments the authorization counter.
func RecordAuthorization(result string) {
	authorizationsTotal.WithLabelValues(result).Inc()
}

// RecordSessionRenewed counts one renewal.
func RecordSessionRenewed() {
	sessionsRenewedTotal.Inc()
}

// RecordSessionExpired counts one expired session found on access.
func RecordSessionExpired() {
	sessionsExpiredTotal.Inc()
}

// RecordSessionsSwept adds n removed sessions. Non-positive n is ignored.
func RecordSessionsSwept(n int64) {
	if n > 0 {
		sessionsSweptTotal.Add(float64(n))
	}
}

// Metrics contains the per-server Prometheus metrics.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers Tokengate metrics, including the
// package-level auth counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokengate_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(signupsTotal)
	reg.MustRegister(loginsTotal)
	reg.MustRegister(authorizationsTotal)
	reg.MustRegister(sessionsRenewedTotal)
	reg.MustRegister(sessionsExpiredTotal)
	reg.MustRegister(sessionsSweptTotal)

	return m
}

// RecordRequest increments the request counter. Safe on a nil receiver.
func (m *Metrics) RecordRequest(route string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Server provides HTTP endpoints for observability (metrics and health checks).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Register custom metrics
	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health checks
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Create buffered error channel so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	// Use CompareAndSwap to atomically transition from running to stopped.
	// This prevents a race where a concurrent Start() could succeed between
	// checking the running state and setting it to false.
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
// This is a simple check that the process is alive.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the backing store answers, or 503 if not.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady(r.Context()) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
