// Package server mounts registered actions on an HTTP mux: one route per
// action, JSON result envelopes for unary actions and server-sent event
// streams for streaming actions, with request IDs, CORS, body limits, and
// prometheus instrumentation.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/actionkit/action"
	"github.com/c360/actionkit/config"
	"github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/metric"
)

// Server holds the action registry and serving configuration.
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	metrics *metric.Registry

	mu     sync.RWMutex
	routes map[string]route
}

type route struct {
	act    *action.Action
	method string
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics registry. Without it the server runs
// uninstrumented.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server from configuration.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		routes: make(map[string]route),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts an action at path for the given HTTP method. The
// action's configuration error, if any, surfaces here so misconfiguration
// fails at startup, not per request.
func (s *Server) Register(path, method string, act *action.Action) error {
	if err := act.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("server.Register: path %q must start with /", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.routes[path]; exists {
		return fmt.Errorf("server.Register: path %q already registered", path)
	}
	s.routes[path] = route{act: act, method: strings.ToUpper(method)}
	return nil
}

// RegisterHTTPHandlers registers all mounted actions with the mux under
// the configured base path, plus the metrics endpoint when configured.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	prefix := strings.TrimSuffix(s.cfg.BasePath, "/")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for path, rt := range s.routes {
		mux.HandleFunc(prefix+path, s.createRouteHandler(rt))
	}

	if s.metrics != nil && s.cfg.MetricsPath != "" {
		mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	}
}

// getOrGenerateRequestID extracts the request ID header or generates a new
// one for tracing across client and server logs.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

func (s *Server) createRouteHandler(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", requestID)

		if s.cfg.EnableCORS {
			s.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		if r.Method != rt.method {
			s.writeError(w, http.StatusMethodNotAllowed,
				fmt.Sprintf("method %s not allowed", r.Method))
			return
		}

		defer r.Body.Close()
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestSize)

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()

		if s.metrics != nil {
			s.metrics.Metrics.RequestsInFlight.Inc()
			defer s.metrics.Metrics.RequestsInFlight.Dec()
		}

		req := action.FromHTTP(r)
		if rt.act.IsStream() {
			s.serveStream(ctx, w, rt.act, req, requestID)
			return
		}

		start := time.Now()
		result := rt.act.Execute(ctx, req)
		s.observe(rt.act.Name(), result, time.Since(start))
		s.writeResult(w, result)
	}
}

func (s *Server) observe(name string, result *action.Result, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	code := ""
	status := http.StatusOK
	if !result.OK {
		code = result.Error.Code
		status = result.Error.StatusCode
	}
	s.metrics.ObserveRequest(name, code, status, duration)
}

// writeResult writes the envelope, mapping the failure status code onto
// the HTTP response. Success is always 200; an envelope whose error has no
// usable HTTP status (client-side codes) degrades to 500.
func (s *Server) writeResult(w http.ResponseWriter, result *action.Result) {
	status := http.StatusOK
	if !result.OK {
		status = result.Error.StatusCode
		if status <= 0 {
			status = http.StatusInternalServerError
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to write result envelope", "error", err)
	}
}

// writeError writes a failure envelope for transport-level rejections that
// never reached the pipeline (wrong method, oversized body).
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeResult(w, action.Fail(errors.New(errors.CodeServer, message, statusCode)))
}

// applyCORS applies CORS headers for allowed origins.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, allowedOrigin := range s.cfg.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("action server listening", "addr", s.cfg.Addr, "base_path", s.cfg.BasePath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
