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

package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/models"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, defaultReconnectMin, cfg.ReconnectMin.Std())
	assert.Equal(t, defaultReconnectMax, cfg.ReconnectMax.Std())
	assert.Equal(t, defaultDialTimeout, cfg.DialTimeout.Std())
	assert.Equal(t, defaultExecTimeout, cfg.ExecTimeout.Std())
	assert.Equal(t, defaultMaxOutput, cfg.MaxOutput)
	assert.NotNil(t, cfg.Logging)
}

func TestConfigDefaultsKeepReconnectOrder(t *testing.T) {
	cfg := &Config{ReconnectMin: models.Duration(5 * time.Minute)}
	cfg.ApplyDefaults()

	assert.Equal(t, 5*time.Minute, cfg.ReconnectMax.Std())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "valid", cfg: Config{ServerURL: "wss://hive.example.com/ws/agent", Token: "t"}},
		{name: "missing url", cfg: Config{Token: "t"}, wantErr: errServerURLRequired},
		{name: "http scheme", cfg: Config{ServerURL: "http://hive/ws/agent", Token: "t"}, wantErr: errInvalidServerURL},
		{name: "missing token", cfg: Config{ServerURL: "ws://hive/ws/agent"}, wantErr: errTokenRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
