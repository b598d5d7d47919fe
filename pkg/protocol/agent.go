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

// Package protocol defines the JSON frames exchanged with satellite agents
// and operator dashboards.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/satellitehive/pkg/models"
)

var (
	// ErrMalformedFrame is returned for frames that are not JSON objects.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingType is returned for JSON objects without a type.
	ErrMissingType = errors.New("frame has no type")
)

// Agent frame types.
const (
	TypeHandshake     = "handshake"
	TypeHandshakeAck  = "handshake_ack"
	TypeHeartbeatPing = "heartbeat_ping"
	TypeHeartbeatPong = "heartbeat_pong"
	TypeExec          = "exec"
	TypeExecResult    = "exec_result"
	TypePTYStart      = "pty_start"
	TypePTYStarted    = "pty_started"
	TypePTYInput      = "pty_input"
	TypePTYOutput     = "pty_output"
	TypePTYResize     = "pty_resize"
	TypePTYEnd        = "pty_end"
	TypePTYEnded      = "pty_ended"
	TypeError         = "error"
)

// Error codes carried by agent and dashboard error frames.
const (
	CodeHandshakeRequired = "HANDSHAKE_REQUIRED"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidFrame      = "INVALID_FRAME"
	CodeSatelliteOffline  = "SATELLITE_OFFLINE"
	CodeSendFailed        = "SEND_FAILED"
	CodeSessionNotActive  = "SESSION_NOT_ACTIVE"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeUnknownAction     = "UNKNOWN_ACTION"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeSessionLimit      = "SESSION_LIMIT"
	CodePTYStartFailed    = "PTY_START_FAILED"
)

type envelope struct {
	Type string `json:"type"`
}

// PeekType returns the type of an agent frame without decoding the rest.
func PeekType(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	if env.Type == "" {
		return "", ErrMissingType
	}

	return env.Type, nil
}

// Decode unmarshals raw into dst, reporting failures as ErrMalformedFrame.
func Decode(raw []byte, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return nil
}

// ErrorBody is the code/message pair used by every error frame.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorBody) Error() string {
	return e.Code + ": " + e.Message
}

// Handshake is the first frame an agent sends.
type Handshake struct {
	Type         string            `json:"type"`
	AgentID      string            `json:"agent_id,omitempty"`
	Token        string            `json:"token"`
	Version      string            `json:"version,omitempty"`
	Name         string            `json:"name,omitempty"`
	System       models.SystemInfo `json:"system"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

type HandshakeAck struct {
	Type       string    `json:"type"`
	Success    bool      `json:"success"`
	AgentID    string    `json:"agent_id"`
	ServerTime time.Time `json:"server_time"`
	// Seconds between heartbeat pings
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type HeartbeatPing struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatMetrics is the optional resource sample on a pong.
type HeartbeatMetrics struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	NetworkRxBytes uint64  `json:"network_rx_bytes"`
	NetworkTxBytes uint64  `json:"network_tx_bytes"`
	ActiveSessions int     `json:"active_sessions"`
}

type HeartbeatPong struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metrics   *HeartbeatMetrics `json:"metrics,omitempty"`
}

// Exec asks the agent to run a shell command.
type Exec struct {
	Type           string            `json:"type"`
	RequestID      string            `json:"request_id"`
	Command        string            `json:"command"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Env            map[string]string `json:"env,omitempty"`
}

type ExecResult struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Success    bool   `json:"success"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated"`
	Error      string `json:"error,omitempty"`
}

// ToResult converts the frame into a correlator result for deviceID.
func (r *ExecResult) ToResult(deviceID string, received time.Time) *models.CommandResult {
	return &models.CommandResult{
		RequestID:  r.RequestID,
		DeviceID:   deviceID,
		Success:    r.Success,
		ExitCode:   r.ExitCode,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		DurationMs: r.DurationMs,
		Truncated:  r.Truncated,
		Error:      r.Error,
		ReceivedAt: received,
	}
}

type PTYStart struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	Shell     string            `json:"shell,omitempty"`
	Cols      int               `json:"cols"`
	Rows      int               `json:"rows"`
	Env       map[string]string `json:"env,omitempty"`
}

type PTYStarted struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
	PID       int    `json:"pid,omitempty"`
}

// PTYInput carries base64 keystrokes for a session.
type PTYInput struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// PTYOutput carries base64 terminal output for a session.
type PTYOutput struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type PTYResize struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type PTYEnd struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type PTYEnded struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Error is sent in either direction when a frame cannot be honoured.
type Error struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Error     ErrorBody `json:"error"`
}

// NewError builds an error frame.
func NewError(code, message string) *Error {
	return &Error{Type: TypeError, Error: ErrorBody{Code: code, Message: message}}
}
