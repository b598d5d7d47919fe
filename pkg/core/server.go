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

// Package core assembles the hive: persistence, fleet state, the two
// WebSocket hubs and the REST API, behind a single lifecycle.Service.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/carverauto/satellitehive/pkg/audit"
	"github.com/carverauto/satellitehive/pkg/core/api"
	"github.com/carverauto/satellitehive/pkg/core/auth"
	"github.com/carverauto/satellitehive/pkg/core/hub"
	"github.com/carverauto/satellitehive/pkg/correlator"
	"github.com/carverauto/satellitehive/pkg/db"
	srHttp "github.com/carverauto/satellitehive/pkg/http"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/metrics"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/natsutil"
	"github.com/carverauto/satellitehive/pkg/registry"
	"github.com/carverauto/satellitehive/pkg/sessions"
	"github.com/carverauto/satellitehive/pkg/version"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	drainPoll         = 20 * time.Millisecond
)

var (
	errDatabaseError = errors.New("database error")
	errNATSError     = errors.New("nats event publisher error")
	errMetricsError  = errors.New("metrics error")
)

// Server owns every hive component and their shutdown order.
type Server struct {
	config     *models.HiveConfig
	logger     logger.Logger
	DB         db.Service
	Registry   *registry.Registry
	Sessions   *sessions.Manager
	Correlator *correlator.Correlator
	Agents     *hub.AgentHub
	Dashboards *hub.DashboardHub
	API        *api.APIServer

	events  *natsutil.EventPublisher
	metrics *metrics.Recorder
	pruner  *audit.Pruner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer opens the store and wires the hubs and API together. cfg must
// already carry defaults.
func NewServer(ctx context.Context, cfg *models.HiveConfig, log logger.Logger) (*Server, error) {
	database, err := db.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDatabaseError, err)
	}

	s, err := assemble(ctx, cfg, database, log)
	if err != nil {
		_ = database.Close()

		return nil, err
	}

	return s, nil
}

func assemble(ctx context.Context, cfg *models.HiveConfig, database db.Service, log logger.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log,
		DB:     database,
	}

	s.Registry = registry.New(database, registry.Config{
		EnrollmentTokens: cfg.Agents.EnrollmentTokens,
		BcryptCost:       cfg.Agents.BcryptCost,
	}, log)
	s.Sessions = sessions.NewManager(database, s.Registry, sessions.Config{
		MaxPerDevice: cfg.Agents.MaxSessionsPerAgent,
	}, log)
	s.Correlator = correlator.New(cfg.Commands.Retention.Std(), log)

	rec, err := metrics.NewFromGlobal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMetricsError, err)
	}

	s.metrics = rec

	var sink audit.Sink = audit.Nop{}
	if cfg.Audit.Enabled {
		sink = audit.NewLogger(database, log)
	}

	agentOpts := []hub.AgentOption{
		hub.WithAuditSink(sink),
		hub.WithMetrics(rec),
		hub.WithMetricsStore(database),
	}
	dashOpts := []hub.DashboardOption{
		hub.WithDashboardAudit(sink),
		hub.WithDashboardMetrics(rec),
		hub.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	}

	if cfg.NATS.Enabled {
		pub, err := natsutil.Connect(ctx, &cfg.NATS, log)
		if err != nil {
			_ = rec.Close()

			return nil, fmt.Errorf("%w: %w", errNATSError, err)
		}

		s.events = pub
		agentOpts = append(agentOpts, hub.WithFleetEvents(pub))
		dashOpts = append(dashOpts, hub.WithDashboardEvents(pub))
	}

	s.Agents = hub.NewAgentHub(hub.AgentConfig{
		HeartbeatInterval: cfg.Agents.HeartbeatInterval.Std(),
		HeartbeatTimeout:  cfg.Agents.HeartbeatTimeout.Std(),
		HandshakeTimeout:  cfg.Agents.HandshakeTimeout.Std(),
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
	}, s.Registry, s.Sessions, s.Correlator, log, agentOpts...)

	authn := auth.NewAuth(&cfg.Auth)

	s.Dashboards = hub.NewDashboardHub(authn, s.Registry, s.Sessions, s.Agents, log, dashOpts...)
	s.Agents.SetBroadcaster(s.Dashboards)

	apiOpts := []func(*api.APIServer){
		api.WithAuthenticator(authn),
		api.WithFleet(s.Registry, s.Sessions),
		api.WithCommands(s.Agents, s.Correlator),
		api.WithCommandLimits(cfg.Commands.DefaultTimeout.Std(), cfg.Commands.MaxTimeout.Std(), cfg.Commands.ServerBuffer.Std()),
		api.WithSessionController(s.Dashboards),
		api.WithStore(database),
		api.WithAuditSink(sink),
		api.WithMetrics(rec),
		api.WithWebSockets(s.Agents, s.Dashboards, s.Dashboards.ClientCount),
		api.WithVersion(version.GetVersion()),
	}

	if cfg.RateLimit.Enabled {
		apiOpts = append(apiOpts, api.WithRateLimiter(srHttp.NewRateLimiter(cfg.RateLimit, log)))
	}

	s.API = api.NewAPIServer(cfg.CORS, log, apiOpts...)

	var auditRetention time.Duration
	if cfg.Audit.Enabled {
		auditRetention = days(cfg.Audit.RetentionDays)
	}

	s.pruner = audit.NewPruner(database, auditRetention, days(cfg.Metrics.RetentionDays), log)

	return s, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// HTTPServer returns the listener for lifecycle.RunServer. No write timeout
// is set since WebSocket connections are long lived.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.API.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Start clears presence left by a previous run, ends orphaned sessions and
// launches background maintenance.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Registry.ResetPresence(ctx); err != nil {
		return fmt.Errorf("%w: %w", errDatabaseError, err)
	}

	n, err := s.Sessions.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errDatabaseError, err)
	}

	if n > 0 {
		s.logger.Info().Int64("sessions", n).Msg("Ended sessions orphaned by restart")
	}

	if err := s.metrics.ObserveGauges(metrics.GaugeSource{
		OnlineSatellites: s.Registry.OnlineCount,
		ActiveSessions:   s.Sessions.ActiveCount,
		PendingCommands:  s.Correlator.Pending,
		Dashboards:       s.Dashboards.ClientCount,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to register fleet gauges")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.pruner.Run(runCtx)
	}()

	s.logger.Info().
		Str("version", version.GetFullVersion()).
		Str("listen", s.config.ListenAddr).
		Bool("tls", s.config.TLS.Enabled()).
		Msg("Hive started")

	return nil
}

// Stop closes every WebSocket, waits for their teardown to reach the store,
// then releases NATS, metrics and the database.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.Agents.Shutdown()
	s.Dashboards.Shutdown()

	waitForDrain(ctx, func() int {
		return s.Agents.ConnectionCount() + s.Dashboards.ClientCount()
	})

	s.wg.Wait()

	var errs []error

	if s.events != nil {
		s.events.Close()
	}

	if err := s.metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", errMetricsError, err))
	}

	if err := s.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", errDatabaseError, err))
	}

	s.logger.Info().Msg("Hive stopped")

	return errors.Join(errs...)
}

func waitForDrain(ctx context.Context, remaining func() int) {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for remaining() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
