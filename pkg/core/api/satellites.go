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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/satellitehive/pkg/audit"
	"github.com/carverauto/satellitehive/pkg/core/auth"
	"github.com/carverauto/satellitehive/pkg/core/hub"
	"github.com/carverauto/satellitehive/pkg/correlator"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/registry"
)

const defaultMetricsWindow = time.Hour

// @Summary List satellites
// @Description Lists satellites with live presence. Filters: status (online|offline), tag, name (glob).
// @Tags Satellites
// @Produce json
// @Param status query string false "online or offline"
// @Param tag query string false "Only satellites carrying this tag"
// @Param name query string false "Glob matched against the satellite name"
// @Success 200 {array} models.DeviceView
// @Failure 400 {object} models.ErrorResponse "Invalid filter"
// @Router /api/v1/satellites [get]
// @Security ApiKeyAuth
func (s *APIServer) listSatellites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var nameGlob glob.Glob

	if pattern := q.Get("name"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			writeError(w, "Invalid name pattern", http.StatusBadRequest)
			return
		}

		nameGlob = g
	}

	status := q.Get("status")
	if status != "" && status != string(models.DeviceStatusOnline) && status != string(models.DeviceStatusOffline) {
		writeError(w, "status must be online or offline", http.StatusBadRequest)
		return
	}

	views, err := s.directory.Views(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list satellites")
		writeError(w, "Failed to list satellites", http.StatusInternalServerError)

		return
	}

	tag := q.Get("tag")
	out := make([]models.DeviceView, 0, len(views))

	for _, v := range views {
		if status != "" && v.IsOnline != (status == string(models.DeviceStatusOnline)) {
			continue
		}

		if tag != "" && !v.HasTag(tag) {
			continue
		}

		if nameGlob != nil && !nameGlob.Match(v.Name) {
			continue
		}

		out = append(out, v)
	}

	s.writeJSON(w, http.StatusOK, out)
}

// @Summary Get satellite
// @Tags Satellites
// @Produce json
// @Param id path string true "Satellite ID"
// @Success 200 {object} models.DeviceView
// @Failure 404 {object} models.ErrorResponse "Satellite not found"
// @Router /api/v1/satellites/{id} [get]
// @Security ApiKeyAuth
func (s *APIServer) getSatellite(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, models.DeviceView{Device: device, IsOnline: s.directory.IsOnline(device.ID)})
}

func (s *APIServer) lookupDevice(w http.ResponseWriter, r *http.Request, id string) (*models.Device, bool) {
	device, err := s.directory.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeError(w, "Satellite not found", http.StatusNotFound)
		} else {
			s.logger.Error().Err(err).Str("satellite_id", id).Msg("Failed to load satellite")
			writeError(w, "Failed to load satellite", http.StatusInternalServerError)
		}

		return nil, false
	}

	return device, true
}

// @Summary Run a command
// @Description Runs a shell command on a connected satellite. With wait=false the call returns 202 and the result is fetched from /api/v1/commands/{request_id}.
// @Tags Commands
// @Accept json
// @Produce json
// @Param id path string true "Satellite ID"
// @Param request body models.ExecRequest true "Command"
// @Success 200 {object} models.CommandResult
// @Success 202 {object} models.ExecAccepted
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "Satellite not found"
// @Failure 503 {object} models.ErrorResponse "Satellite offline"
// @Failure 504 {object} models.ErrorResponse "Command timed out"
// @Router /api/v1/satellites/{id}/exec [post]
// @Security ApiKeyAuth
func (s *APIServer) execCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	ctx, span := s.tracer.Start(r.Context(), "satellite.exec",
		trace.WithAttributes(attribute.String("satellite.id", deviceID)))
	defer span.End()

	var req models.ExecRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Command == "" {
		writeError(w, "command is required", http.StatusBadRequest)
		return
	}

	s.applyCommandLimits(&req)

	device, ok := s.lookupDevice(w, r.WithContext(ctx), deviceID)
	if !ok {
		return
	}

	user, _ := auth.GetUserFromContext(ctx)

	entry := audit.UserEntry(user, models.AuditCommandExec)
	entry.ActorIP = r.RemoteAddr
	entry.TargetType = "satellite"
	entry.TargetID = device.ID
	entry.TargetName = device.Name
	entry.Details = map[string]interface{}{"command": req.Command, "timeout_seconds": req.TimeoutSeconds}

	requestID, err := s.dispatcher.DispatchExec(ctx, device.ID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		entry.Result = models.AuditFailure
		entry.ErrorMessage = err.Error()
		s.audit.Record(ctx, entry)

		switch {
		case errors.Is(err, hub.ErrSatelliteOffline):
			writeError(w, "Satellite is not connected", http.StatusServiceUnavailable)
		case errors.Is(err, hub.ErrSendFailed):
			writeError(w, "Failed to reach satellite", http.StatusServiceUnavailable)
		default:
			s.logger.Error().Err(err).Str("satellite_id", device.ID).Msg("Failed to dispatch command")
			writeError(w, "Failed to dispatch command", http.StatusInternalServerError)
		}

		return
	}

	span.SetAttributes(attribute.String("request.id", requestID))

	entry.Details["request_id"] = requestID
	s.audit.Record(ctx, entry)

	if !req.ShouldWait() {
		s.writeJSON(w, http.StatusAccepted, models.ExecAccepted{RequestID: requestID})
		return
	}

	s.awaitResult(w, r.WithContext(ctx), requestID, req.Timeout())
}

func (s *APIServer) applyCommandLimits(req *models.ExecRequest) {
	if req.TimeoutSeconds <= 0 && s.defaultTimeout > 0 {
		req.TimeoutSeconds = int(s.defaultTimeout / time.Second)
	}

	timeout := req.Timeout()
	if s.maxTimeout > 0 && timeout > s.maxTimeout {
		timeout = s.maxTimeout
	}

	req.TimeoutSeconds = int(timeout / time.Second)
}

func (s *APIServer) awaitResult(w http.ResponseWriter, r *http.Request, requestID string, timeout time.Duration) {
	res, err := s.correlator.Await(r.Context(), requestID, timeout+s.serverBuffer)

	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, res)
	case errors.Is(err, correlator.ErrTimeout):
		s.metrics.CommandTimedOut(r.Context())
		trace.SpanFromContext(r.Context()).SetStatus(codes.Error, "timeout")
		writeError(w, "Command timed out", http.StatusGatewayTimeout)
	case errors.Is(err, correlator.ErrUnknownRequest):
		writeError(w, "Unknown or expired request", http.StatusNotFound)
	default:
		writeError(w, "Request cancelled", http.StatusServiceUnavailable)
	}
}

// @Summary Await a command result
// @Description Waits for the result of a command dispatched with wait=false.
// @Tags Commands
// @Produce json
// @Param request_id path string true "Request ID"
// @Param timeout query string false "How long to wait, e.g. 30s"
// @Success 200 {object} models.CommandResult
// @Failure 404 {object} models.ErrorResponse "Unknown or expired request"
// @Failure 504 {object} models.ErrorResponse "Command timed out"
// @Router /api/v1/commands/{request_id} [get]
// @Security ApiKeyAuth
func (s *APIServer) getCommandResult(w http.ResponseWriter, r *http.Request) {
	wait, ok := parseWait(r.URL.Query().Get("timeout"))
	if !ok {
		writeError(w, "Invalid timeout", http.StatusBadRequest)
		return
	}

	s.awaitResult(w, r, mux.Vars(r)["request_id"], models.ClampCommandTimeout(wait))
}

// @Summary Satellite metrics
// @Description Heartbeat resource samples, newest first.
// @Tags Satellites
// @Produce json
// @Param id path string true "Satellite ID"
// @Param since query string false "Look-back window, e.g. 1h"
// @Param limit query int false "Maximum samples"
// @Success 200 {array} models.DeviceMetrics
// @Router /api/v1/satellites/{id}/metrics [get]
// @Security ApiKeyAuth
func (s *APIServer) getSatelliteMetrics(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	window, ok := parseWait(r.URL.Query().Get("since"))
	if !ok {
		writeError(w, "Invalid since", http.StatusBadRequest)
		return
	}

	if window <= 0 {
		window = defaultMetricsWindow
	}

	samples, err := s.store.GetDeviceMetrics(r.Context(), device.ID, time.Now().Add(-window), queryLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Str("satellite_id", device.ID).Msg("Failed to load metrics")
		writeError(w, "Failed to load metrics", http.StatusInternalServerError)

		return
	}

	if samples == nil {
		samples = []*models.DeviceMetrics{}
	}

	s.writeJSON(w, http.StatusOK, samples)
}
