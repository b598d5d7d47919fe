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

package protocol

import (
	"encoding/json"

	"github.com/carverauto/satellitehive/pkg/models"
)

// Dashboard actions.
const (
	ActionSessionCreate = "session:create"
	ActionSessionInput  = "session:input"
	ActionSessionResize = "session:resize"
	ActionSessionClose  = "session:close"
)

// Dashboard events.
const (
	EventError            = "error"
	EventInitialState     = "initial_state"
	EventActionResult     = "action:result"
	EventSatelliteOnline  = "satellite:online"
	EventSatelliteOffline = "satellite:offline"
	EventSatelliteMetrics = "satellite:metrics"
	EventSessionOutput    = "session:output"
	EventSessionEnded     = "session:ended"
)

// DashboardRequest is an inbound dashboard frame.
type DashboardRequest struct {
	Action    string          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type SessionCreateData struct {
	SatelliteID string `json:"satellite_id"`
	Cols        int    `json:"cols,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	Shell       string `json:"shell,omitempty"`
}

// SessionInputData carries base64 keystrokes.
type SessionInputData struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

type SessionResizeData struct {
	SessionID string `json:"session_id"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type SessionCloseData struct {
	SessionID string `json:"session_id"`
}

// Event is an outbound dashboard frame.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ActionResult answers a dashboard request that carried a request id.
type ActionResult struct {
	Event     string      `json:"event"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
}

// ErrorEvent is sent before a dashboard connection is refused.
type ErrorEvent struct {
	Event string    `json:"event"`
	Error ErrorBody `json:"error"`
}

type InitialState struct {
	Satellites []models.DeviceView `json:"satellites"`
}

type SessionCreated struct {
	SessionID string `json:"session_id"`
}

type SatelliteStatus struct {
	SatelliteID string             `json:"satellite_id"`
	Satellite   *models.DeviceView `json:"satellite,omitempty"`
}

// SatelliteMetrics carries the sample from a heartbeat pong.
type SatelliteMetrics struct {
	SatelliteID string                `json:"satellite_id"`
	Metrics     *models.DeviceMetrics `json:"metrics"`
}

// SessionOutput relays agent output verbatim in base64.
type SessionOutput struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output"`
}

type SessionEnded struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	ExitCode  *int   `json:"exit_code,omitempty"`
}

// Success builds a successful action result.
func Success(requestID string, data interface{}) *ActionResult {
	return &ActionResult{Event: EventActionResult, RequestID: requestID, Success: true, Data: data}
}

// Failure builds a failed action result.
func Failure(requestID, code, message string) *ActionResult {
	return &ActionResult{
		Event:     EventActionResult,
		RequestID: requestID,
		Error:     &ErrorBody{Code: code, Message: message},
	}
}
