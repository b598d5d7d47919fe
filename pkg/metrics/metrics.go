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

// Package metrics exposes the hub's OpenTelemetry instruments.
package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/carverauto/satellitehive"

const (
	metricSatellitesOnline    = "hive.satellites.online"
	metricSessionsActive      = "hive.sessions.active"
	metricCommandsPending     = "hive.commands.pending"
	metricDashboardsConnected = "hive.dashboards.connected"
	metricAgentFrames         = "hive.agent.frames"
	metricCommandsDispatched  = "hive.commands.dispatched"
	metricCommandsTimeouts    = "hive.commands.timeouts"
	metricBroadcastDropped    = "hive.broadcast.dropped"
)

var errGaugesRegistered = errors.New("gauges already registered")

// GaugeSource supplies the values sampled on every collection. Nil funcs
// report zero.
type GaugeSource struct {
	OnlineSatellites func() int
	ActiveSessions   func() int
	PendingCommands  func() int
	Dashboards       func() int
}

// Recorder holds the hub instruments. A nil *Recorder records nothing.
type Recorder struct {
	meter metric.Meter

	agentFrames  metric.Int64Counter
	dispatched   metric.Int64Counter
	timeouts     metric.Int64Counter
	droppedSends metric.Int64Counter

	registration metric.Registration
}

// NewFromGlobal builds a Recorder on the global MeterProvider.
func NewFromGlobal() (*Recorder, error) {
	return New(otel.Meter(meterName))
}

func New(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{meter: meter}

	var err error

	if r.agentFrames, err = meter.Int64Counter(metricAgentFrames,
		metric.WithDescription("Frames received from satellite agents"),
	); err != nil {
		return nil, err
	}

	if r.dispatched, err = meter.Int64Counter(metricCommandsDispatched,
		metric.WithDescription("Frames dispatched to satellite agents"),
	); err != nil {
		return nil, err
	}

	if r.timeouts, err = meter.Int64Counter(metricCommandsTimeouts,
		metric.WithDescription("Exec requests whose caller gave up waiting"),
	); err != nil {
		return nil, err
	}

	if r.droppedSends, err = meter.Int64Counter(metricBroadcastDropped,
		metric.WithDescription("Dashboard frames dropped because a client queue was full"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// ObserveGauges registers the observable gauges backed by src.
func (r *Recorder) ObserveGauges(src GaugeSource) error {
	if r == nil {
		return nil
	}

	if r.registration != nil {
		return errGaugesRegistered
	}

	online, err := r.meter.Int64ObservableGauge(metricSatellitesOnline,
		metric.WithDescription("Satellites with a live agent connection"))
	if err != nil {
		return err
	}

	sessions, err := r.meter.Int64ObservableGauge(metricSessionsActive,
		metric.WithDescription("Active PTY sessions"))
	if err != nil {
		return err
	}

	pending, err := r.meter.Int64ObservableGauge(metricCommandsPending,
		metric.WithDescription("Exec requests awaiting a result or reaping"))
	if err != nil {
		return err
	}

	dashboards, err := r.meter.Int64ObservableGauge(metricDashboardsConnected,
		metric.WithDescription("Connected dashboard clients"))
	if err != nil {
		return err
	}

	r.registration, err = r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(online, sample(src.OnlineSatellites))
		o.ObserveInt64(sessions, sample(src.ActiveSessions))
		o.ObserveInt64(pending, sample(src.PendingCommands))
		o.ObserveInt64(dashboards, sample(src.Dashboards))

		return nil
	}, online, sessions, pending, dashboards)

	return err
}

func sample(fn func() int) int64 {
	if fn == nil {
		return 0
	}

	return int64(fn())
}

func (r *Recorder) AgentFrame(ctx context.Context, frameType string) {
	if r == nil {
		return
	}

	r.agentFrames.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

func (r *Recorder) CommandDispatched(ctx context.Context, frameType string) {
	if r == nil {
		return
	}

	r.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

func (r *Recorder) CommandTimedOut(ctx context.Context) {
	if r == nil {
		return
	}

	r.timeouts.Add(ctx, 1)
}

func (r *Recorder) BroadcastDropped(ctx context.Context) {
	if r == nil {
		return
	}

	r.droppedSends.Add(ctx, 1)
}

// Close unregisters the gauge callback.
func (r *Recorder) Close() error {
	if r == nil || r.registration == nil {
		return nil
	}

	return r.registration.Unregister()
}
