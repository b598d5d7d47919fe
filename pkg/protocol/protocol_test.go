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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"handshake", `{"type":"handshake","token":"x"}`, TypeHandshake, nil},
		{"unknown types pass through", `{"type":"telemetry"}`, "telemetry", nil},
		{"not json", `hello`, "", ErrMalformedFrame},
		{"array", `[1,2]`, "", ErrMalformedFrame},
		{"no type", `{"session_id":"s"}`, "", ErrMissingType},
		{"non-string type", `{"type":7}`, "", ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := PeekType([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandshakeDecodesAgentFacts(t *testing.T) {
	t.Parallel()

	raw := `{
		"type": "handshake",
		"agent_id": "sat_abc",
		"token": "secret",
		"version": "1.2.0",
		"name": "edge-01",
		"system": {"hostname": "edge-01", "os": "linux", "cpu_cores": 4,
			"ip_addresses": [{"interface": "eth0", "ipv4": "10.0.0.2"}]},
		"capabilities": ["shell", "pty"],
		"tags": ["lab"]
	}`

	var hs Handshake
	require.NoError(t, Decode([]byte(raw), &hs))

	assert.Equal(t, "sat_abc", hs.AgentID)
	assert.Equal(t, "secret", hs.Token)
	assert.Equal(t, 4, hs.System.CPUCores)
	assert.Equal(t, "10.0.0.2", hs.System.IPAddresses[0].IPv4)
	assert.Equal(t, []string{"shell", "pty"}, hs.Capabilities)
}

func TestHeartbeatPongAcceptsRFC3339(t *testing.T) {
	t.Parallel()

	var pong HeartbeatPong
	require.NoError(t, Decode([]byte(`{"type":"heartbeat_pong","timestamp":"2025-01-02T03:04:05Z",
		"metrics":{"cpu_percent":12.5,"active_sessions":2}}`), &pong))

	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), pong.Timestamp)
	require.NotNil(t, pong.Metrics)
	assert.InDelta(t, 12.5, pong.Metrics.CPUPercent, 0.001)
	assert.Equal(t, 2, pong.Metrics.ActiveSessions)
}

func TestExecResultToResult(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := ExecResult{RequestID: "req_1", Success: false, ExitCode: 2, Stderr: "boom", DurationMs: 15}
	res := r.ToResult("sat_1", now)

	assert.Equal(t, "req_1", res.RequestID)
	assert.Equal(t, "sat_1", res.DeviceID)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, now, res.ReceivedAt)
}

func TestActionResultShape(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(Failure("r1", CodeSatelliteOffline, "Satellite is not connected"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"action:result","request_id":"r1","success":false,
		"error":{"code":"SATELLITE_OFFLINE","message":"Satellite is not connected"}}`, string(payload))

	payload, err = json.Marshal(Success("r2", SessionCreated{SessionID: "sess_1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"action:result","request_id":"r2","success":true,
		"data":{"session_id":"sess_1"}}`, string(payload))
}

func TestErrorFrameShape(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(NewError(CodeHandshakeRequired, "handshake required"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":{"code":"HANDSHAKE_REQUIRED","message":"handshake required"}}`, string(payload))
}
