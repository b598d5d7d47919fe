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

package models

import "time"

// ErrorResponse represents an API error response.
// @Description Error information returned from the API.
type ErrorResponse struct {
	// Error message
	Message string `json:"message" example:"Invalid request parameters"`
	// HTTP status code
	Status int `json:"status" example:"400"`
}

// HealthResponse is returned by the unauthenticated health endpoint.
// @Description Hub liveness and fleet counters.
type HealthResponse struct {
	Status           string    `json:"status" example:"ok"`
	Version          string    `json:"version" example:"1.0.0"`
	Uptime           string    `json:"uptime" example:"3h2m1s"`
	OnlineSatellites int       `json:"online_satellites" example:"12"`
	ActiveSessions   int       `json:"active_sessions" example:"3"`
	Dashboards       int       `json:"dashboards" example:"2"`
	Timestamp        time.Time `json:"timestamp"`
}

// SessionDetail is a session plus its replay buffer while active.
type SessionDetail struct {
	*Session
	// Base64 output chunks, oldest first
	RecentOutput []string `json:"recent_output,omitempty"`
}

// LivenessResponse is returned by /health/live.
type LivenessResponse struct {
	Status     string    `json:"status" example:"alive"`
	PID        int       `json:"pid" example:"4242"`
	Goroutines int       `json:"goroutines" example:"57"`
	HeapBytes  uint64    `json:"heap_bytes" example:"10485760"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReadinessResponse is returned by /health/ready.
// @Description Whether the hub can serve traffic, with per-dependency checks.
type ReadinessResponse struct {
	Status    string            `json:"status" example:"ready"`
	Checks    map[string]string `json:"checks"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionCreateRequest opens a terminal over the REST API.
type SessionCreateRequest struct {
	SatelliteID string `json:"satellite_id" example:"sat_1a2b3c4d5e6f"`
	Cols        int    `json:"cols,omitempty" example:"120"`
	Rows        int    `json:"rows,omitempty" example:"40"`
	Shell       string `json:"shell,omitempty" example:"/bin/bash"`
}

// TagCount is one tag and the number of satellites carrying it.
type TagCount struct {
	Name  string `json:"name" example:"prod"`
	Count int    `json:"count" example:"7"`
}
