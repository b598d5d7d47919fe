/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api provides the HTTP API server for SatelliteHive
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/satellitehive/pkg/audit"
	"github.com/carverauto/satellitehive/pkg/core/auth"
	"github.com/carverauto/satellitehive/pkg/correlator"
	"github.com/carverauto/satellitehive/pkg/db"
	srHttp "github.com/carverauto/satellitehive/pkg/http"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/metrics"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/registry"
	"github.com/carverauto/satellitehive/pkg/sessions"
)

const (
	defaultListLimit    = 100
	defaultServerBuffer = 5 * time.Second
	maxRequestBody      = 1 << 20
	readinessTimeout    = 2 * time.Second
)

// APIServer exposes the fleet over REST and mounts the websocket channels.
type APIServer struct {
	router     *mux.Router
	corsConfig models.CORSConfig
	logger     logger.Logger
	tracer     trace.Tracer
	startTime  time.Time
	version    string

	authenticator auth.Authenticator
	directory     registry.Directory
	sessions      *sessions.Manager
	correlator    *correlator.Correlator
	dispatcher    CommandDispatcher
	sessionCtl    SessionController
	store         db.Service
	audit         audit.Sink
	metrics       *metrics.Recorder
	rateLimiter   *srHttp.RateLimiter

	agentHandler     http.Handler
	dashboardHandler http.Handler
	dashboards       func() int

	defaultTimeout time.Duration
	maxTimeout     time.Duration
	serverBuffer   time.Duration
}

// NewAPIServer creates a new API server instance with the given configuration
func NewAPIServer(config models.CORSConfig, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:       mux.NewRouter(),
		corsConfig:   config,
		logger:       log,
		tracer:       otel.Tracer("satellitehive/api"),
		startTime:    time.Now(),
		audit:        audit.Nop{},
		serverBuffer: defaultServerBuffer,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithAuthenticator sets the bearer token and API key verifier.
func WithAuthenticator(a auth.Authenticator) func(server *APIServer) {
	return func(server *APIServer) {
		server.authenticator = a
	}
}

// WithFleet wires the satellite directory and the session manager.
func WithFleet(dir registry.Directory, mgr *sessions.Manager) func(server *APIServer) {
	return func(server *APIServer) {
		server.directory = dir
		server.sessions = mgr
	}
}

// WithCommands wires exec dispatch and result correlation.
func WithCommands(d CommandDispatcher, c *correlator.Correlator) func(server *APIServer) {
	return func(server *APIServer) {
		server.dispatcher = d
		server.correlator = c
	}
}

// WithCommandLimits overrides the default and maximum exec timeouts and the
// grace period added while waiting for a result.
func WithCommandLimits(defaultTimeout, maxTimeout, serverBuffer time.Duration) func(server *APIServer) {
	return func(server *APIServer) {
		server.defaultTimeout = defaultTimeout
		server.maxTimeout = maxTimeout

		if serverBuffer > 0 {
			server.serverBuffer = serverBuffer
		}
	}
}

// WithSessionController sets the component that opens and ends sessions.
func WithSessionController(c SessionController) func(server *APIServer) {
	return func(server *APIServer) {
		server.sessionCtl = c
	}
}

// WithRateLimiter throttles /api/v1 requests per client IP.
func WithRateLimiter(l *srHttp.RateLimiter) func(server *APIServer) {
	return func(server *APIServer) {
		server.rateLimiter = l
	}
}

// WithStore adds the store used for audit and metrics queries.
func WithStore(store db.Service) func(server *APIServer) {
	return func(server *APIServer) {
		server.store = store
	}
}

func WithAuditSink(sink audit.Sink) func(server *APIServer) {
	return func(server *APIServer) {
		if sink != nil {
			server.audit = sink
		}
	}
}

func WithMetrics(rec *metrics.Recorder) func(server *APIServer) {
	return func(server *APIServer) {
		server.metrics = rec
	}
}

// WithWebSockets mounts the agent and dashboard channels. dashboards
// reports the connected dashboard count for the health endpoint.
func WithWebSockets(agents, dashboard http.Handler, dashboards func() int) func(server *APIServer) {
	return func(server *APIServer) {
		server.agentHandler = agents
		server.dashboardHandler = dashboard
		server.dashboards = dashboards
	}
}

func WithVersion(version string) func(server *APIServer) {
	return func(server *APIServer) {
		server.version = version
	}
}

// Handler returns the router wrapped in CORS and access logging. The
// wrapping sits outside the router so preflight requests never need a route.
func (s *APIServer) Handler() http.Handler {
	return srHttp.CommonMiddleware(s.router, s.corsConfig, s.logger)
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/health/live", s.getLiveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.getReadiness).Methods(http.MethodGet)

	if s.agentHandler != nil {
		s.router.Handle("/ws/agent", s.agentHandler).Methods(http.MethodGet)
	}

	if s.dashboardHandler != nil {
		s.router.Handle("/ws/ui", s.dashboardHandler).Methods(http.MethodGet)
	}

	s.setupProtectedRoutes()
}

func (s *APIServer) setupProtectedRoutes() {
	protected := s.router.PathPrefix("/api/v1").Subrouter()

	if s.rateLimiter != nil {
		protected.Use(s.rateLimiter.Middleware)
	}

	protected.Use(auth.Middleware(s.authenticator))

	protected.Handle("/satellites",
		auth.RequirePermission(models.PermSatellitesRead, s.listSatellites)).Methods(http.MethodGet)
	protected.Handle("/satellites/{id}",
		auth.RequirePermission(models.PermSatellitesRead, s.getSatellite)).Methods(http.MethodGet)
	protected.Handle("/satellites/{id}/exec",
		auth.RequirePermission(models.PermSatellitesExecute, s.execCommand)).Methods(http.MethodPost)
	protected.Handle("/satellites/{id}/metrics",
		auth.RequirePermission(models.PermMetricsRead, s.getSatelliteMetrics)).Methods(http.MethodGet)
	protected.Handle("/satellites/{id}/metrics/aggregated",
		auth.RequirePermission(models.PermMetricsRead, s.getAggregatedMetrics)).Methods(http.MethodGet)
	protected.Handle("/metrics/fleet/summary",
		auth.RequirePermission(models.PermMetricsRead, s.getFleetSummary)).Methods(http.MethodGet)
	protected.Handle("/tags",
		auth.RequirePermission(models.PermSatellitesRead, s.listTags)).Methods(http.MethodGet)
	protected.Handle("/tags/{tag}/satellites",
		auth.RequirePermission(models.PermSatellitesRead, s.listTagSatellites)).Methods(http.MethodGet)
	protected.Handle("/commands/{request_id}",
		auth.RequirePermission(models.PermSatellitesExecute, s.getCommandResult)).Methods(http.MethodGet)
	protected.Handle("/sessions",
		auth.RequirePermission(models.PermSessionsRead, s.listSessions)).Methods(http.MethodGet)
	protected.Handle("/sessions",
		auth.RequirePermission(models.PermSessionsWrite, s.createSession)).Methods(http.MethodPost)
	protected.Handle("/sessions/{id}",
		auth.RequirePermission(models.PermSessionsRead, s.getSession)).Methods(http.MethodGet)
	protected.Handle("/sessions/{id}",
		auth.RequirePermission(models.PermSessionsDelete, s.deleteSession)).Methods(http.MethodDelete)
	protected.Handle("/audit",
		auth.RequirePermission(models.PermAuditRead, s.listAudit)).Methods(http.MethodGet)
	protected.Handle("/audit/stats",
		auth.RequirePermission(models.PermAuditRead, s.getAuditStats)).Methods(http.MethodGet)
}

// @Summary Hub health
// @Description Health summary with fleet counters. Does not require authentication.
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (s *APIServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	resp := models.HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if s.directory != nil {
		resp.OnlineSatellites = s.directory.OnlineCount()
	}

	if s.sessions != nil {
		resp.ActiveSessions = s.sessions.ActiveCount()
	}

	if s.dashboards != nil {
		resp.Dashboards = s.dashboards()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// @Summary Liveness check
// @Description Reports that the process is serving. Does not require authentication.
// @Tags System
// @Produce json
// @Success 200 {object} models.LivenessResponse
// @Router /health/live [get]
func (s *APIServer) getLiveness(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.writeJSON(w, http.StatusOK, models.LivenessResponse{
		Status:     "alive",
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		Timestamp:  time.Now().UTC(),
	})
}

// @Summary Readiness check
// @Description Reports whether the hub's database answers. Does not require authentication.
// @Tags System
// @Produce json
// @Success 200 {object} models.ReadinessResponse
// @Failure 503 {object} models.ReadinessResponse
// @Router /health/ready [get]
func (s *APIServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	resp := models.ReadinessResponse{
		Status:    "ready",
		Checks:    map[string]string{"database": "ok"},
		Timestamp: time.Now().UTC(),
	}

	if s.store == nil {
		resp.Checks["database"] = "not_configured"
		s.writeJSON(w, http.StatusOK, resp)

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")

		resp.Status = "not_ready"
		resp.Checks["database"] = "error"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)

		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// queryLimit reads ?limit=, falling back to the default for missing or
// invalid values.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}

	return limit
}

// parseWait accepts a Go duration ("45s") or whole seconds ("45").
func parseWait(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, true
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return d, true
	}

	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return time.Duration(secs) * time.Second, true
}
