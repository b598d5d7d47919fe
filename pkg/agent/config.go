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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

const (
	defaultReconnectMin  = time.Second
	defaultReconnectMax  = time.Minute
	defaultDialTimeout   = 15 * time.Second
	defaultExecTimeout   = 30 * time.Second
	defaultMaxOutput     = 1 << 20
	defaultHeartbeatWait = 90 * time.Second
)

var (
	errServerURLRequired = errors.New("server_url is required")
	errTokenRequired     = errors.New("token is required")
	errInvalidServerURL  = errors.New("server_url must be a ws:// or wss:// URL")
)

// Config drives a satellite agent. It loads from JSON/YAML through
// pkg/config and is overridden by command line flags.
type Config struct {
	ServerURL    string          `json:"server_url"`
	AgentID      string          `json:"agent_id"`
	IDFile       string          `json:"id_file"`
	Token        string          `json:"token"`
	Name         string          `json:"name"`
	Tags         []string        `json:"tags"`
	Shell        string          `json:"shell"`
	ReconnectMin models.Duration `json:"reconnect_min"`
	ReconnectMax models.Duration `json:"reconnect_max"`
	DialTimeout  models.Duration `json:"dial_timeout"`
	ExecTimeout  models.Duration `json:"exec_timeout"`
	MaxOutput    int             `json:"max_output_bytes"`
	Logging      *logger.Config  `json:"logging"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = models.Duration(defaultReconnectMin)
	}

	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = models.Duration(defaultReconnectMax)
	}

	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = c.ReconnectMin
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = models.Duration(defaultDialTimeout)
	}

	if c.ExecTimeout <= 0 {
		c.ExecTimeout = models.Duration(defaultExecTimeout)
	}

	if c.MaxOutput <= 0 {
		c.MaxOutput = defaultMaxOutput
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
}

// Validate checks the fields needed to reach a hive.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errServerURLRequired
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidServerURL, err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: %q", errInvalidServerURL, c.ServerURL)
	}

	if c.Token == "" {
		return errTokenRequired
	}

	return nil
}
