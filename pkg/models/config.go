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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
)

var (
	errInvalidDuration      = errors.New("invalid duration")
	errListenAddrRequired   = errors.New("listen_addr is required")
	errUnknownDBDriver      = errors.New("database.driver must be sqlite or postgres")
	errDBPathRequired       = errors.New("database.path is required for sqlite")
	errDBConnRequired       = errors.New("database.connection is required for postgres")
	errJWTSecretRequired    = errors.New("auth.jwt_secret is required")
	errHeartbeatOrdering    = errors.New("agents.heartbeat_timeout must exceed agents.heartbeat_interval")
	errNATSURLRequired      = errors.New("nats.url is required when nats is enabled")
	errTLSIncomplete        = errors.New("tls.cert_file and tls.key_file must be set together")
	errCommandTimeoutBounds = errors.New("commands.default_timeout must not exceed commands.max_timeout")
	errRateLimitRequests    = errors.New("rate_limit.requests must be positive")
)

// Duration is a time.Duration that decodes from "30s" or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

// Enabled reports whether the listener should serve TLS.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver         string `json:"driver"`
	Path           string `json:"path"`
	Connection     string `json:"connection"`
	MaxConnections int    `json:"max_connections"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	AdminAPIKey string `json:"admin_api_key"`
}

type AgentsConfig struct {
	HeartbeatInterval   Duration `json:"heartbeat_interval"`
	HeartbeatTimeout    Duration `json:"heartbeat_timeout"`
	HandshakeTimeout    Duration `json:"handshake_timeout"`
	EnrollmentTokens    []string `json:"enrollment_tokens"`
	MaxSessionsPerAgent int      `json:"max_sessions_per_agent"`
	BcryptCost          int      `json:"bcrypt_cost"`
}

type CommandsConfig struct {
	DefaultTimeout Duration `json:"default_timeout"`
	MaxTimeout     Duration `json:"max_timeout"`
	ServerBuffer   Duration `json:"server_buffer"`
	Retention      Duration `json:"retention"`
}

type NATSConfig struct {
	Enabled       bool           `json:"enabled"`
	URL           string         `json:"url"`
	Stream        string         `json:"stream"`
	SubjectPrefix string         `json:"subject_prefix"`
	CredsFile     string         `json:"creds_file,omitempty"`
	TLS           *NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig enables mTLS to the broker when CertFile and KeyFile are set.
type NATSTLSConfig struct {
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name,omitempty"`
}

type AuditConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

type MetricsConfig struct {
	RetentionDays int `json:"retention_days"`
}

// RateLimitConfig bounds REST requests per client IP.
type RateLimitConfig struct {
	Enabled  bool     `json:"enabled"`
	Requests int      `json:"requests"`
	Window   Duration `json:"window"`
}

// HiveConfig is the hub's configuration document.
type HiveConfig struct {
	ListenAddr string          `json:"listen_addr"`
	TLS        TLSConfig       `json:"tls"`
	CORS       CORSConfig      `json:"cors"`
	Database   DatabaseConfig  `json:"database"`
	Auth       AuthConfig      `json:"auth"`
	Agents     AgentsConfig    `json:"agents"`
	Commands   CommandsConfig  `json:"commands"`
	NATS       NATSConfig      `json:"nats"`
	Audit      AuditConfig     `json:"audit"`
	Metrics    MetricsConfig   `json:"metrics"`
	RateLimit  RateLimitConfig `json:"rate_limit"`
	Logging    *logger.Config  `json:"logging"`
}

// ApplyDefaults fills every unset field.
func (c *HiveConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DBDriverSQLite
	}

	if c.Database.Driver == DBDriverSQLite && c.Database.Path == "" {
		c.Database.Path = "satellitehive.db"
	}

	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 10
	}

	setDuration(&c.Agents.HeartbeatInterval, 30*time.Second)
	setDuration(&c.Agents.HeartbeatTimeout, 90*time.Second)
	setDuration(&c.Agents.HandshakeTimeout, 30*time.Second)

	if c.Agents.MaxSessionsPerAgent == 0 {
		c.Agents.MaxSessionsPerAgent = 16
	}

	setDuration(&c.Commands.DefaultTimeout, DefaultCommandTimeout)
	setDuration(&c.Commands.MaxTimeout, MaxCommandTimeout)
	setDuration(&c.Commands.ServerBuffer, 5*time.Second)
	setDuration(&c.Commands.Retention, 5*time.Minute)

	if c.NATS.Stream == "" {
		c.NATS.Stream = "HIVE_EVENTS"
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "hive.events"
	}

	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 90
	}

	if c.Metrics.RetentionDays == 0 {
		c.Metrics.RetentionDays = 7
	}

	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}

	setDuration(&c.RateLimit.Window, time.Minute)

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
}

func setDuration(d *Duration, fallback time.Duration) {
	if *d <= 0 {
		*d = Duration(fallback)
	}
}

// Validate checks the configuration after defaults are applied.
func (c *HiveConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errListenAddrRequired)
	}

	switch c.Database.Driver {
	case DBDriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errDBPathRequired)
		}
	case DBDriverPostgres:
		if c.Database.Connection == "" {
			errs = append(errs, errDBConnRequired)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", errUnknownDBDriver, c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errJWTSecretRequired)
	}

	if c.Agents.HeartbeatTimeout <= c.Agents.HeartbeatInterval {
		errs = append(errs, errHeartbeatOrdering)
	}

	if c.Commands.DefaultTimeout > c.Commands.MaxTimeout {
		errs = append(errs, errCommandTimeoutBounds)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errNATSURLRequired)
	}

	if c.RateLimit.Enabled && c.RateLimit.Requests < 0 {
		errs = append(errs, errRateLimitRequests)
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errTLSIncomplete)
	}

	return errors.Join(errs...)
}
