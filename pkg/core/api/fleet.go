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
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/satellitehive/pkg/models"
)

const (
	defaultAggregateHours = 24
	maxAggregateHours     = 24 * 90
)

// @Summary List tags
// @Description Every tag in the fleet with the number of satellites carrying it.
// @Tags Tags
// @Produce json
// @Success 200 {array} models.TagCount
// @Router /api/v1/tags [get]
// @Security ApiKeyAuth
func (s *APIServer) listTags(w http.ResponseWriter, r *http.Request) {
	devices, err := s.directory.All(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list satellites for tags")
		writeError(w, "Failed to list tags", http.StatusInternalServerError)

		return
	}

	counts := make(map[string]int)

	for _, d := range devices {
		for _, tag := range d.Tags {
			counts[tag]++
		}
	}

	tags := make([]models.TagCount, 0, len(counts))
	for name, n := range counts {
		tags = append(tags, models.TagCount{Name: name, Count: n})
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })

	s.writeJSON(w, http.StatusOK, tags)
}

// @Summary Satellites by tag
// @Tags Tags
// @Produce json
// @Param tag path string true "Tag"
// @Success 200 {array} models.DeviceView
// @Router /api/v1/tags/{tag}/satellites [get]
// @Security ApiKeyAuth
func (s *APIServer) listTagSatellites(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	views, err := s.directory.Views(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("tag", tag).Msg("Failed to list satellites by tag")
		writeError(w, "Failed to list satellites", http.StatusInternalServerError)

		return
	}

	out := make([]models.DeviceView, 0, len(views))

	for _, v := range views {
		if v.HasTag(tag) {
			out = append(out, v)
		}
	}

	s.writeJSON(w, http.StatusOK, out)
}

// @Summary Aggregated satellite metrics
// @Description Averages and peaks of a satellite's heartbeat samples.
// @Tags Satellites
// @Produce json
// @Param id path string true "Satellite ID"
// @Param hours query int false "Look-back window in hours (default 24)"
// @Success 200 {object} models.MetricsAggregate
// @Failure 404 {object} models.ErrorResponse "Satellite not found"
// @Router /api/v1/satellites/{id}/metrics/aggregated [get]
// @Security ApiKeyAuth
func (s *APIServer) getAggregatedMetrics(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}

	hours := defaultAggregateHours

	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAggregateHours {
			writeError(w, "Invalid hours", http.StatusBadRequest)
			return
		}

		hours = n
	}

	agg, err := s.store.AggregateDeviceMetrics(r.Context(), device.ID, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.logger.Error().Err(err).Str("satellite_id", device.ID).Msg("Failed to aggregate metrics")
		writeError(w, "Failed to aggregate metrics", http.StatusInternalServerError)

		return
	}

	agg.Hours = hours

	s.writeJSON(w, http.StatusOK, agg)
}

// @Summary Fleet metrics summary
// @Description Satellite counts plus the latest heartbeat sample of every online satellite.
// @Tags Satellites
// @Produce json
// @Success 200 {object} models.FleetSummary
// @Router /api/v1/metrics/fleet/summary [get]
// @Security ApiKeyAuth
func (s *APIServer) getFleetSummary(w http.ResponseWriter, r *http.Request) {
	views, err := s.directory.Views(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list satellites for fleet summary")
		writeError(w, "Failed to build fleet summary", http.StatusInternalServerError)

		return
	}

	summary := models.FleetSummary{
		TotalSatellites: len(views),
		Metrics:         []models.FleetMetric{},
	}

	for _, v := range views {
		if !v.IsOnline {
			continue
		}

		summary.OnlineSatellites++

		latest, err := s.store.GetDeviceMetrics(r.Context(), v.ID, time.Time{}, 1)
		if err != nil {
			s.logger.Warn().Err(err).Str("satellite_id", v.ID).Msg("Failed to load latest metrics")
			continue
		}

		if len(latest) == 0 {
			continue
		}

		summary.Metrics = append(summary.Metrics, models.FleetMetric{DeviceMetrics: latest[0], SatelliteName: v.Name})
	}

	s.writeJSON(w, http.StatusOK, summary)
}
