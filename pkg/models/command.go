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

const (
	DefaultCommandTimeout = 30 * time.Second
	MinCommandTimeout     = time.Second
	MaxCommandTimeout     = 3600 * time.Second
)

// CommandResult is what a satellite reports for a dispatched exec request.
// @Description Outcome of a shell command run on a satellite.
type CommandResult struct {
	RequestID  string    `json:"request_id" example:"req_0a1b2c3d4e5f"`
	DeviceID   string    `json:"satellite_id,omitempty"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	DurationMs int64     `json:"duration_ms"`
	Truncated  bool      `json:"truncated,omitempty"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ExecRequest is the body of a REST exec call.
// @Description Request to run a shell command on a satellite.
type ExecRequest struct {
	Command        string            `json:"command" example:"uptime"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" example:"30"`
	Env            map[string]string `json:"env,omitempty"`
	// Wait for the result; defaults to true
	Wait *bool `json:"wait,omitempty"`
}

// ShouldWait reports whether the caller asked to block for the result.
func (r *ExecRequest) ShouldWait() bool {
	return r.Wait == nil || *r.Wait
}

// Timeout clamps the requested timeout to the allowed range.
func (r *ExecRequest) Timeout() time.Duration {
	return ClampCommandTimeout(time.Duration(r.TimeoutSeconds) * time.Second)
}

// ClampCommandTimeout returns the default for non-positive values and
// bounds everything else to [MinCommandTimeout, MaxCommandTimeout].
func ClampCommandTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultCommandTimeout
	case d < MinCommandTimeout:
		return MinCommandTimeout
	case d > MaxCommandTimeout:
		return MaxCommandTimeout
	default:
		return d
	}
}

// ExecAccepted is returned when an exec call does not wait.
type ExecAccepted struct {
	RequestID string `json:"request_id"`
}
