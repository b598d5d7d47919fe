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

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// Fleet event types published to the event stream.
const (
	EventSatelliteConnected    = "satellite.connected"
	EventSatelliteDisconnected = "satellite.disconnected"
	EventSessionEnded          = "session.ended"
)

// SatelliteEventData is the payload of satellite presence events.
type SatelliteEventData struct {
	SatelliteID string `json:"satellite_id"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	RemoteAddr  string `json:"remote_addr,omitempty"`
}

// SessionEventData is the payload of session lifecycle events.
type SessionEventData struct {
	SessionID   string `json:"session_id"`
	SatelliteID string `json:"satellite_id"`
	Reason      string `json:"reason"`
	ExitCode    *int   `json:"exit_code,omitempty"`
}
