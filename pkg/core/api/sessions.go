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
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/satellitehive/pkg/core/auth"
	"github.com/carverauto/satellitehive/pkg/core/hub"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/sessions"
)

const (
	defaultAuditStatsDays = 7
	maxAuditStatsDays     = 365
)

// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param satellite_id query string false "Filter by satellite"
// @Param user_id query string false "Filter by user"
// @Param status query string false "active or ended"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.Session
// @Router /api/v1/sessions [get]
// @Security ApiKeyAuth
func (s *APIServer) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.SessionFilter{
		DeviceID: q.Get("satellite_id"),
		UserID:   q.Get("user_id"),
		Status:   models.SessionStatus(q.Get("status")),
		Limit:    queryLimit(r),
	}

	if filter.Status != "" && filter.Status != models.SessionStatusActive && filter.Status != models.SessionStatusEnded {
		writeError(w, "status must be active or ended", http.StatusBadRequest)
		return
	}

	list, err := s.sessions.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sessions")
		writeError(w, "Failed to list sessions", http.StatusInternalServerError)

		return
	}

	if list == nil {
		list = []*models.Session{}
	}

	s.writeJSON(w, http.StatusOK, list)
}

// @Summary Open a session
// @Description Opens a terminal on a connected satellite and sends it pty_start. Output is streamed to dashboards.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body models.SessionCreateRequest true "Satellite and terminal size"
// @Success 201 {object} models.Session
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "Satellite not found"
// @Failure 429 {object} models.ErrorResponse "Session limit reached"
// @Failure 503 {object} models.ErrorResponse "Satellite offline or unreachable"
// @Router /api/v1/sessions [post]
// @Security ApiKeyAuth
func (s *APIServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionCreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SatelliteID == "" {
		writeError(w, "satellite_id is required", http.StatusBadRequest)
		return
	}

	device, ok := s.lookupDevice(w, r, req.SatelliteID)
	if !ok {
		return
	}

	user, _ := auth.GetUserFromContext(r.Context())

	sess, err := s.sessionCtl.OpenSession(r.Context(), user, sessions.CreateRequest{
		DeviceID: device.ID,
		Cols:     req.Cols,
		Rows:     req.Rows,
		Shell:    req.Shell,
	})
	if err != nil {
		switch {
		case errors.Is(err, hub.ErrSatelliteOffline), errors.Is(err, sessions.ErrDeviceOffline):
			writeError(w, "Satellite is not connected", http.StatusServiceUnavailable)
		case errors.Is(err, hub.ErrSendFailed):
			writeError(w, "Failed to reach satellite", http.StatusServiceUnavailable)
		case errors.Is(err, sessions.ErrInvalidGeometry):
			writeError(w, "Invalid terminal size", http.StatusBadRequest)
		case errors.Is(err, sessions.ErrSessionLimit):
			writeError(w, "Too many active sessions on satellite", http.StatusTooManyRequests)
		default:
			s.logger.Error().Err(err).Str("satellite_id", device.ID).Msg("Failed to open session")
			writeError(w, "Failed to open session", http.StatusInternalServerError)
		}

		return
	}

	s.writeJSON(w, http.StatusCreated, sess)
}

// @Summary Get session
// @Description Returns a session; active sessions include their recent output.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionDetail
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /api/v1/sessions/{id} [get]
// @Security ApiKeyAuth
func (s *APIServer) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, "Session not found", http.StatusNotFound)
		} else {
			s.logger.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
			writeError(w, "Failed to load session", http.StatusInternalServerError)
		}

		return
	}

	detail := models.SessionDetail{Session: sess}

	if sess.Active() {
		for _, chunk := range s.sessions.RecentOutput(id) {
			detail.RecentOutput = append(detail.RecentOutput, base64.StdEncoding.EncodeToString(chunk))
		}
	}

	s.writeJSON(w, http.StatusOK, detail)
}

// @Summary Close session
// @Description Ends a session. Closing an already ended session succeeds.
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /api/v1/sessions/{id} [delete]
// @Security ApiKeyAuth
func (s *APIServer) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, _ := auth.GetUserFromContext(r.Context())

	if err := s.sessionCtl.CloseSession(r.Context(), user, id); err != nil {
		if errors.Is(err, hub.ErrSessionNotFound) {
			writeError(w, "Session not found", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("session_id", id).Msg("Failed to close session")
		writeError(w, "Failed to close session", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Audit log
// @Tags Audit
// @Produce json
// @Param actor_id query string false "Filter by actor"
// @Param action query string false "Filter by action, e.g. session.create"
// @Param target_id query string false "Filter by target"
// @Param since query string false "RFC3339 lower bound"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.AuditEntry
// @Router /api/v1/audit [get]
// @Security ApiKeyAuth
func (s *APIServer) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.AuditFilter{
		ActorID:  q.Get("actor_id"),
		Action:   q.Get("action"),
		TargetID: q.Get("target_id"),
		Limit:    queryLimit(r),
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}

		filter.Since = since
	}

	entries, err := s.store.ListAuditEntries(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list audit entries")
		writeError(w, "Failed to list audit entries", http.StatusInternalServerError)

		return
	}

	if entries == nil {
		entries = []*models.AuditEntry{}
	}

	s.writeJSON(w, http.StatusOK, entries)
}

// @Summary Audit statistics
// @Description Audit counts by action, by actor (top ten) and per UTC day.
// @Tags Audit
// @Produce json
// @Param days query int false "Look-back window in days (default 7)"
// @Success 200 {object} models.AuditStats
// @Router /api/v1/audit/stats [get]
// @Security ApiKeyAuth
func (s *APIServer) getAuditStats(w http.ResponseWriter, r *http.Request) {
	days := defaultAuditStatsDays

	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditStatsDays {
			writeError(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}

		days = n
	}

	stats, err := s.store.AuditStats(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute audit statistics")
		writeError(w, "Failed to compute audit statistics", http.StatusInternalServerError)

		return
	}

	stats.PeriodDays = days

	s.writeJSON(w, http.StatusOK, stats)
}
