// Package http exposes the cache over a small REST surface.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/barberbradleyt/Cache/cache"
	"github.com/barberbradleyt/Cache/errors"
	"github.com/barberbradleyt/Cache/health"
	"github.com/barberbradleyt/Cache/metric"
)

// Config contains HTTP gateway settings.
type Config struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `json:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
	MaxBodyBytes    int64         `json:"max_body_bytes,omitempty"`
	EnableCORS      bool          `json:"enable_cors,omitempty"`
	CORSOrigins     []string      `json:"cors_origins,omitempty"`
}

// Validate checks gateway configuration.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			fmt.Sprintf("port must be in 1..65535, got %d", c.Port))
	}
	if c.MaxBodyBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			fmt.Sprintf("max_body_bytes cannot be negative, got %d", c.MaxBodyBytes))
	}
	return nil
}

func (c Config) maxBodyBytes() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return 1 << 20
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout
	}
	return 15 * time.Second
}

// Gateway serves the cache's REST API.
type Gateway struct {
	config  Config
	cache   cache.Cache[json.RawMessage]
	logger  *slog.Logger
	metrics *metric.Metrics
	monitor *health.Monitor
	server  *http.Server

	// Lifecycle state (atomic operations)
	running atomic.Bool

	startTime time.Time

	// Metrics (atomic operations)
	requestsTotal   atomic.Uint64
	requestsSuccess atomic.Uint64
	requestsFailed  atomic.Uint64
}

// NewGateway creates an HTTP gateway over the given cache. The metrics and
// monitor arguments may be nil.
func NewGateway(
	config Config, c cache.Cache[json.RawMessage], logger *slog.Logger,
	metrics *metric.Metrics, monitor *health.Monitor,
) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "NewGateway",
			"cache is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		config:  config,
		cache:   c,
		logger:  logger.With("component", "http-gateway"),
		metrics: metrics,
		monitor: monitor,
	}, nil
}

// Start begins serving. It blocks until Stop is called or the listener
// fails.
func (g *Gateway) Start(_ context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gateway", "Start",
			"gateway already running")
	}
	g.startTime = time.Now()

	mux := http.NewServeMux()
	g.RegisterHTTPHandlers("/v1/", mux)

	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", g.config.Port),
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	g.logger.Info("gateway listening", "addr", g.server.Addr)
	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		g.running.Store(false)
		return errors.WrapTransient(err, "Gateway", "Start", "listen")
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (g *Gateway) Stop() error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.config.shutdownTimeout())
	defer cancel()

	if err := g.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "shutdown")
	}
	g.logger.Info("gateway stopped")
	return nil
}

// RegisterHTTPHandlers registers gateway routes under prefix on mux.
func (g *Gateway) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc("GET "+prefix+"cache/{key}", g.instrument("get", g.handleGet))
	mux.HandleFunc("PUT "+prefix+"cache/{key}", g.instrument("put", g.handlePut))
	mux.HandleFunc("DELETE "+prefix+"cache/{key}", g.instrument("delete", g.handleDelete))
	mux.HandleFunc("POST "+prefix+"clear", g.instrument("clear", g.handleClear))
	mux.HandleFunc("GET "+prefix+"size", g.instrument("size", g.handleSize))
	mux.HandleFunc("GET "+prefix+"stats", g.instrument("stats", g.handleStats))
	mux.HandleFunc("GET "+prefix+"healthz", g.instrument("healthz", g.handleHealthz))
}

// getOrGenerateRequestID extracts a request ID from headers or generates a
// new one for tracing.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

// instrument wraps a handler with request IDs, CORS, counters and timing.
func (g *Gateway) instrument(operation string, next func(http.ResponseWriter, *http.Request) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", requestID)

		if g.config.EnableCORS {
			g.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		g.requestsTotal.Add(1)

		status, err := next(w, r)
		if err != nil {
			status = mapErrorToHTTPStatus(err)
			g.writeError(w, status, sanitizeError(err))
			g.requestsFailed.Add(1)
			g.logger.Warn("request failed",
				"operation", operation,
				"request_id", requestID,
				"status", status,
				"error", err,
			)
		} else {
			g.requestsSuccess.Add(1)
		}

		if g.metrics != nil {
			g.metrics.ObserveRequest(operation, fmt.Sprintf("%d", status), time.Since(started))
		}
	}
}

type putRequest struct {
	Value json.RawMessage `json:"value"`
}

type getResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) (int, error) {
	key := r.PathValue("key")

	value, found, err := g.cache.Get(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.WrapInvalid(errors.ErrKeyNotFound, "Gateway", "handleGet", key)
	}

	return g.writeJSON(w, http.StatusOK, getResponse{Key: key, Value: value})
}

func (g *Gateway) handlePut(w http.ResponseWriter, r *http.Request) (int, error) {
	key := r.PathValue("key")

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, g.config.maxBodyBytes()+1))
	if err != nil {
		return 0, errors.WrapInvalid(err, "Gateway", "handlePut", "read body")
	}
	if int64(len(body)) > g.config.maxBodyBytes() {
		return 0, errors.WrapInvalid(errors.ErrResourceExhausted, "Gateway", "handlePut",
			fmt.Sprintf("request body exceeds maximum size of %d bytes", g.config.maxBodyBytes()))
	}

	var req putRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return 0, errors.WrapInvalid(err, "Gateway", "handlePut", "parse body")
	}
	if len(req.Value) == 0 {
		return 0, errors.WrapInvalid(errors.ErrNilValue, "Gateway", "handlePut", "missing value field")
	}

	if err := g.cache.Put(key, req.Value); err != nil {
		return 0, err
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) (int, error) {
	key := r.PathValue("key")

	deleted, err := g.cache.Delete(key)
	if err != nil {
		return 0, err
	}
	if !deleted {
		return 0, errors.WrapInvalid(errors.ErrKeyNotFound, "Gateway", "handleDelete", key)
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (g *Gateway) handleClear(w http.ResponseWriter, _ *http.Request) (int, error) {
	if err := g.cache.Clear(); err != nil {
		return 0, err
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (g *Gateway) handleSize(w http.ResponseWriter, _ *http.Request) (int, error) {
	return g.writeJSON(w, http.StatusOK, map[string]int{"size": g.cache.Size()})
}

func (g *Gateway) handleStats(w http.ResponseWriter, _ *http.Request) (int, error) {
	stats := g.cache.Stats()
	if stats == nil {
		return 0, errors.WrapFatal(errors.ErrInternalState, "Gateway", "handleStats",
			"cache has no statistics")
	}
	return g.writeJSON(w, http.StatusOK, stats.Summary())
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) (int, error) {
	if g.monitor == nil {
		return g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}

	aggregate := g.monitor.AggregateHealth("freqcached")
	status := http.StatusOK
	if !aggregate.Healthy {
		status = http.StatusServiceUnavailable
	}
	return g.writeJSON(w, status, aggregate)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, errors.WrapFatal(err, "Gateway", "writeJSON", "marshal response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
	return status, nil
}

// applyCORS applies CORS headers to the response
func (g *Gateway) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, allowedOrigin := range g.config.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}

	if allowed {
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")
	}
}

// mapErrorToHTTPStatus maps classified errors to HTTP status codes
func mapErrorToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if errors.Is(err, errors.ErrKeyNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, errors.ErrResourceExhausted) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// sanitizeError returns a safe error message for external clients.
// Internal error details are logged but not exposed.
func sanitizeError(err error) string {
	if err == nil {
		return "internal server error"
	}

	if errors.Is(err, errors.ErrKeyNotFound) {
		return "key not found"
	}
	if errors.Is(err, errors.ErrResourceExhausted) {
		return "request body too large"
	}
	if errors.IsInvalid(err) {
		return "invalid request"
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") {
			return "request timeout"
		}
		return "service temporarily unavailable"
	}

	return "internal server error"
}

// writeError writes an error response
func (g *Gateway) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":  message,
		"status": statusCode,
	}

	data, _ := json.Marshal(response)
	_, _ = w.Write(data)
}

// Uptime reports how long the gateway has been running.
func (g *Gateway) Uptime() time.Duration {
	if !g.running.Load() {
		return 0
	}
	return time.Since(g.startTime)
}

// RequestCounts returns total, succeeded and failed request counts.
func (g *Gateway) RequestCounts() (total, success, failed uint64) {
	return g.requestsTotal.Load(), g.requestsSuccess.Load(), g.requestsFailed.Load()
}
