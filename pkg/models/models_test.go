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

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *HiveConfig {
	cfg := &HiveConfig{Auth: AuthConfig{JWTSecret: "secret"}}
	cfg.ApplyDefaults()

	return cfg
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, DBDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Agents.HeartbeatInterval.Std())
	assert.Equal(t, 90*time.Second, cfg.Agents.HeartbeatTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Agents.HandshakeTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Commands.ServerBuffer.Std())
	assert.Equal(t, 5*time.Minute, cfg.Commands.Retention.Std())
	assert.NotNil(t, cfg.Logging)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Auth.JWTSecret = ""
	cfg.Database.Driver = "mysql"
	cfg.Agents.HeartbeatTimeout = cfg.Agents.HeartbeatInterval
	cfg.NATS.Enabled = true
	cfg.TLS.CertFile = "cert.pem"

	err := cfg.Validate()
	require.Error(t, err)

	for _, want := range []error{errJWTSecretRequired, errUnknownDBDriver, errHeartbeatOrdering, errNATSURLRequired, errTLSIncomplete} {
		assert.ErrorIs(t, err, want)
	}
}

func TestValidatePostgresNeedsConnection(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Database.Driver = DBDriverPostgres

	require.ErrorIs(t, cfg.Validate(), errDBConnRequired)

	cfg.Database.Connection = "postgres://hive@localhost/hive"
	require.NoError(t, cfg.Validate())
}

func TestHiveConfigDecodesDurations(t *testing.T) {
	t.Parallel()

	var cfg HiveConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"agents": {"heartbeat_interval": "10s", "heartbeat_timeout": 60000000000},
		"commands": {"retention": "2m"}
	}`), &cfg))

	assert.Equal(t, 10*time.Second, cfg.Agents.HeartbeatInterval.Std())
	assert.Equal(t, time.Minute, cfg.Agents.HeartbeatTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Commands.Retention.Std())

	var bad HiveConfig
	require.Error(t, json.Unmarshal([]byte(`{"agents":{"heartbeat_interval":"soon"}}`), &bad))
}

func TestClampCommandTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCommandTimeout, ClampCommandTimeout(0))
	assert.Equal(t, DefaultCommandTimeout, ClampCommandTimeout(-time.Second))
	assert.Equal(t, MinCommandTimeout, ClampCommandTimeout(time.Millisecond))
	assert.Equal(t, MaxCommandTimeout, ClampCommandTimeout(2*time.Hour))
	assert.Equal(t, time.Minute, ClampCommandTimeout(time.Minute))

	wait := false
	req := ExecRequest{TimeoutSeconds: 5000, Wait: &wait}
	assert.Equal(t, MaxCommandTimeout, req.Timeout())
	assert.False(t, req.ShouldWait())
	assert.True(t, (&ExecRequest{}).ShouldWait())
}

func TestGeneratedIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		id := NewSessionID()
		require.True(t, strings.HasPrefix(id, SessionIDPrefix))
		require.Len(t, id, len(SessionIDPrefix)+idRandomLength)

		_, dup := seen[id]
		require.False(t, dup)

		seen[id] = struct{}{}
	}

	assert.True(t, strings.HasPrefix(NewDeviceID(), DeviceIDPrefix))
	assert.True(t, strings.HasPrefix(NewRequestID(), RequestIDPrefix))
}

func TestDeviceJSONHidesCredential(t *testing.T) {
	t.Parallel()

	d := Device{ID: "sat_1", CredentialHash: "$2a$10$hash", Tags: []string{"edge"}}
	payload, err := json.Marshal(DeviceView{Device: &d, IsOnline: true})
	require.NoError(t, err)

	assert.NotContains(t, string(payload), "hash")
	assert.Contains(t, string(payload), `"is_online":true`)
	assert.True(t, d.HasTag("edge"))
	assert.False(t, d.HasTag("core"))
}
