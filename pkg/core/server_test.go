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

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/agent"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

const adminKey = "admin-key"

func testConfig(t *testing.T) *models.HiveConfig {
	t.Helper()

	cfg := &models.HiveConfig{
		Database: models.DatabaseConfig{
			Driver: models.DBDriverSQLite,
			Path:   filepath.Join(t.TempDir(), "hive.db"),
		},
		Auth:  models.AuthConfig{JWTSecret: "test-secret", AdminAPIKey: adminKey},
		Audit: models.AuditConfig{Enabled: true},
	}
	cfg.ApplyDefaults()
	cfg.Agents.BcryptCost = 4

	require.NoError(t, cfg.Validate())

	return cfg
}

func apiRequest(t *testing.T, method, url string, body interface{}, dst interface{}) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", adminKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}

	return resp.StatusCode
}

func TestServerLifecycleWithAgent(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()

	s, err := NewServer(ctx, testConfig(t), log)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))

	srv := httptest.NewServer(s.HTTPServer().Handler)

	agentCfg := &agent.Config{
		ServerURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/agent",
		Token:     "first-boot",
		Name:      "edge-e2e",
		Tags:      []string{"e2e"},
	}
	agentCfg.ApplyDefaults()

	agentCtx, stopAgent := context.WithCancel(ctx)
	agentDone := make(chan error, 1)

	go func() { agentDone <- agent.New(agentCfg, log).Run(agentCtx) }()

	require.Eventually(t, func() bool {
		var health models.HealthResponse
		return apiRequest(t, http.MethodGet, srv.URL+"/health", nil, &health) == http.StatusOK &&
			health.OnlineSatellites == 1
	}, 10*time.Second, 50*time.Millisecond)

	var satellites []models.DeviceView
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodGet, srv.URL+"/api/v1/satellites?tag=e2e", nil, &satellites))
	require.Len(t, satellites, 1)
	assert.Equal(t, "edge-e2e", satellites[0].Name)
	assert.True(t, satellites[0].IsOnline)

	var result models.CommandResult
	status := apiRequest(t, http.MethodPost, srv.URL+"/api/v1/satellites/"+satellites[0].ID+"/exec",
		&models.ExecRequest{Command: "echo e2e", TimeoutSeconds: 5}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, result.Success)
	assert.Equal(t, "e2e\n", result.Stdout)

	stopAgent()
	require.NoError(t, <-agentDone)

	require.Eventually(t, func() bool {
		return s.Registry.OnlineCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	srv.Close()

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	require.NoError(t, s.Stop(stopCtx))
}

func TestNewServerRejectsBadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "hive.db")

	_, err := NewServer(context.Background(), cfg, logger.NewTestLogger())

	require.ErrorIs(t, err, errDatabaseError)
}

func TestWaitForDrain(t *testing.T) {
	remaining := 3

	waitForDrain(context.Background(), func() int {
		remaining--
		return remaining
	})
	assert.Equal(t, 0, remaining)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	waitForDrain(ctx, func() int { return 1 })
}
