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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileWithFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: ws://hive.internal:8080/ws/agent
token: file-token
name: from-file
tags: [edge, lab]
reconnect_min: 2s
`), 0o600))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--token", "flag-token"}))

	f := &flags{}
	f.configPath, _ = cmd.Flags().GetString("config")
	f.token, _ = cmd.Flags().GetString("token")

	cfg, err := loadConfig(context.Background(), f, cmd)
	require.NoError(t, err)

	assert.Equal(t, "ws://hive.internal:8080/ws/agent", cfg.ServerURL)
	assert.Equal(t, "flag-token", cfg.Token)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, []string{"edge", "lab"}, cfg.Tags)
	assert.Equal(t, "2s", cfg.ReconnectMin.Std().String())
}

func TestLoadConfigRequiresServer(t *testing.T) {
	t.Setenv("HIVE_SERVER_URL", "")

	cmd := newRootCmd()
	_, err := loadConfig(context.Background(), &flags{token: "t"}, cmd)

	require.Error(t, err)
}
