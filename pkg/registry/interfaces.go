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

package registry

import (
	"context"
	"errors"

	"github.com/carverauto/satellitehive/pkg/models"
)

var (
	// ErrInvalidCredential is returned when a handshake token is empty, does
	// not match the stored hash, or is not an accepted enrolment token.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrDeviceNotFound    = errors.New("device not found")
)

// Transport is the live handle the registry keeps for a connected satellite.
// Implementations must be safe for concurrent use.
type Transport interface {
	// ID uniquely identifies the underlying connection.
	ID() string
	Send(v interface{}) error
	Close()
}

// RegisterRequest carries the facts a satellite presents during handshake.
type RegisterRequest struct {
	DeclaredID   string
	Token        string
	Name         string
	Version      string
	System       models.SystemInfo
	Capabilities []string
	Tags         []string
	RemoteIP     string
}

// Presence answers liveness questions without exposing the transport set.
type Presence interface {
	IsOnline(deviceID string) bool
	ConnectionID(deviceID string) (string, bool)
}

// Directory is the read side of the registry used by the API.
type Directory interface {
	Presence
	All(ctx context.Context) ([]*models.Device, error)
	ByID(ctx context.Context, id string) (*models.Device, error)
	Views(ctx context.Context) ([]models.DeviceView, error)
	OnlineCount() int
}
