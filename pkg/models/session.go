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

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Reasons recorded when a session ends.
const (
	EndReasonExited         = "exited"
	EndReasonUserTerminated = "user_terminated"
	EndReasonConnectionLost = "connection_lost"
	EndReasonSendFailed     = "send_failed"
	EndReasonServerRestart  = "server_restart"
	EndReasonStartFailed    = "start_failed"
)

const (
	DefaultSessionCols = 120
	DefaultSessionRows = 40

	// MaxSessionDimension bounds cols and rows; satellites size PTYs as uint16.
	MaxSessionDimension = 1000
)

// ValidGeometry reports whether cols and rows fit a terminal.
func ValidGeometry(cols, rows int) bool {
	return cols > 0 && rows > 0 && cols <= MaxSessionDimension && rows <= MaxSessionDimension
}

// Session is an interactive terminal opened on a satellite.
// @Description A PTY session relayed between a dashboard and a satellite.
type Session struct {
	ID        string        `json:"id" example:"sess_9f8e7d6c5b4a"`
	DeviceID  string        `json:"satellite_id" example:"sat_1a2b3c4d5e6f"`
	UserID    string        `json:"user_id" example:"alice"`
	Cols      int           `json:"cols" example:"120"`
	Rows      int           `json:"rows" example:"40"`
	Shell     string        `json:"shell,omitempty" example:"/bin/bash"`
	Status    SessionStatus `json:"status" example:"active"`
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	EndReason string        `json:"end_reason,omitempty" example:"exited"`
	ExitCode  *int          `json:"exit_code,omitempty"`
}

// Active reports whether the session still accepts input.
func (s *Session) Active() bool {
	return s.Status == SessionStatusActive
}

// SessionFilter narrows session listings. Zero values match everything.
type SessionFilter struct {
	DeviceID string
	UserID   string
	Status   SessionStatus
	Limit    int
}
