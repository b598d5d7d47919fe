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

// Package registry tracks known satellites and which of them hold a live
// agent connection.
package registry

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/carverauto/satellitehive/pkg/db"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

// Config controls how satellites are admitted.
type Config struct {
	// EnrollmentTokens admit unknown satellites. When empty any non-empty
	// token enrolls.
	EnrollmentTokens []string
	BcryptCost       int
}

// Registry owns persisted satellite records and the live transport set.
type Registry struct {
	db     db.Service
	logger logger.Logger
	cfg    Config

	locks *keyedMutex

	mu   sync.RWMutex
	live map[string]Transport

	now func() time.Time
}

var _ Directory = (*Registry)(nil)

// New builds a Registry over the given store.
func New(store db.Service, cfg Config, log logger.Logger) *Registry {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	if len(cfg.EnrollmentTokens) == 0 {
		log.Warn().Msg("No enrollment tokens configured; any non-empty token will enroll a new satellite")
	}

	return &Registry{
		db:     store,
		logger: log,
		cfg:    cfg,
		locks:  newKeyedMutex(),
		live:   make(map[string]Transport),
		now:    time.Now,
	}
}

// Register authenticates a handshake and creates or refreshes the device
// record. The boolean result is true when a new device was enrolled.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*models.Device, bool, error) {
	if req.Token == "" {
		return nil, false, ErrInvalidCredential
	}

	if req.DeclaredID != "" {
		device, err := r.refresh(ctx, req)
		if err == nil {
			return device, false, nil
		}

		if !errors.Is(err, db.ErrNotFound) {
			return nil, false, err
		}

		r.logger.Debug().
			Str("declared_id", req.DeclaredID).
			Msg("Declared satellite id is unknown, enrolling as new")
	}

	device, err := r.enroll(ctx, req)
	if err != nil {
		return nil, false, err
	}

	return device, true, nil
}

func (r *Registry) refresh(ctx context.Context, req RegisterRequest) (*models.Device, error) {
	unlock := r.locks.Lock(req.DeclaredID)
	defer unlock()

	device, err := r.db.GetDevice(ctx, req.DeclaredID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to load satellite %s: %w", req.DeclaredID, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(device.CredentialHash), []byte(req.Token)) != nil {
		return nil, ErrInvalidCredential
	}

	now := r.now()
	applyFacts(device, req)
	device.Status = models.DeviceStatusOnline
	device.LastSeen = now
	device.UpdatedAt = now

	if err := r.db.UpsertDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to update satellite %s: %w", device.ID, err)
	}

	return device, nil
}

func (r *Registry) enroll(ctx context.Context, req RegisterRequest) (*models.Device, error) {
	if !r.acceptsEnrollment(req.Token) {
		return nil, ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Token), r.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	now := r.now()
	device := &models.Device{
		ID:             models.NewDeviceID(),
		CredentialHash: string(hash),
		Status:         models.DeviceStatusOnline,
		FirstSeen:      now,
		LastSeen:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyFacts(device, req)

	unlock := r.locks.Lock(device.ID)
	defer unlock()

	if err := r.db.UpsertDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to create satellite: %w", err)
	}

	r.logger.Info().
		Str("satellite_id", device.ID).
		Str("name", device.Name).
		Msg("Enrolled new satellite")

	return device, nil
}

func (r *Registry) acceptsEnrollment(token string) bool {
	if len(r.cfg.EnrollmentTokens) == 0 {
		return true
	}

	accepted := 0

	for _, candidate := range r.cfg.EnrollmentTokens {
		accepted |= subtle.ConstantTimeCompare([]byte(candidate), []byte(token))
	}

	return accepted == 1
}

func applyFacts(device *models.Device, req RegisterRequest) {
	switch {
	case req.Name != "":
		device.Name = req.Name
	case device.Name == "" && req.System.Hostname != "":
		device.Name = req.System.Hostname
	case device.Name == "":
		device.Name = device.ID
	}

	device.AgentVersion = req.Version
	device.System = req.System
	device.LastIP = req.RemoteIP

	if req.Capabilities != nil {
		device.Capabilities = req.Capabilities
	}

	if req.Tags != nil {
		device.Tags = req.Tags
	}
}

// Bind records t as the live transport for deviceID and persists the device
// as online. The replaced transport, if any, is returned for the caller to close.
func (r *Registry) Bind(ctx context.Context, deviceID string, t Transport) Transport {
	unlock := r.locks.Lock(deviceID)
	defer unlock()

	r.mu.Lock()
	prev := r.live[deviceID]
	r.live[deviceID] = t
	r.mu.Unlock()

	r.persist(ctx, deviceID, models.DeviceStatusOnline)

	if prev == t {
		return nil
	}

	return prev
}

// Unbind drops whatever transport is bound to deviceID and persists the
// device as offline. Calling it for an unbound device is harmless.
func (r *Registry) Unbind(ctx context.Context, deviceID string) bool {
	unlock := r.locks.Lock(deviceID)
	defer unlock()

	r.mu.Lock()
	_, ok := r.live[deviceID]
	delete(r.live, deviceID)
	r.mu.Unlock()

	r.persist(ctx, deviceID, models.DeviceStatusOffline)

	return ok
}

// UnbindIf unbinds deviceID only while t is still its bound transport.
func (r *Registry) UnbindIf(ctx context.Context, deviceID string, t Transport) bool {
	unlock := r.locks.Lock(deviceID)
	defer unlock()

	r.mu.Lock()
	current, ok := r.live[deviceID]
	if !ok || current != t {
		r.mu.Unlock()
		return false
	}

	delete(r.live, deviceID)
	r.mu.Unlock()

	r.persist(ctx, deviceID, models.DeviceStatusOffline)

	return true
}

func (r *Registry) persist(ctx context.Context, deviceID string, status models.DeviceStatus) {
	if err := r.db.UpdateDeviceStatus(ctx, deviceID, status, r.now()); err != nil {
		r.logger.Error().Err(err).
			Str("satellite_id", deviceID).
			Str("status", string(status)).
			Msg("Failed to persist satellite presence")
	}
}

func (r *Registry) IsOnline(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.live[deviceID]

	return ok
}

func (r *Registry) TransportFor(deviceID string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.live[deviceID]

	return t, ok
}

// ConnectionID returns the id of the transport bound to deviceID.
func (r *Registry) ConnectionID(deviceID string) (string, bool) {
	t, ok := r.TransportFor(deviceID)
	if !ok {
		return "", false
	}

	return t.ID(), true
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.live)
}

// All returns every persisted satellite.
func (r *Registry) All(ctx context.Context) ([]*models.Device, error) {
	devices, err := r.db.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list satellites: %w", err)
	}

	return devices, nil
}

// ByID returns one persisted satellite or ErrDeviceNotFound.
func (r *Registry) ByID(ctx context.Context, id string) (*models.Device, error) {
	device, err := r.db.GetDevice(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load satellite %s: %w", id, err)
	}

	return device, nil
}

// Views returns every satellite annotated with live presence.
func (r *Registry) Views(ctx context.Context) ([]models.DeviceView, error) {
	devices, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]models.DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, r.View(d))
	}

	return views, nil
}

// View annotates one device with live presence.
func (r *Registry) View(d *models.Device) models.DeviceView {
	online := r.IsOnline(d.ID)
	if online {
		d.Status = models.DeviceStatusOnline
	} else {
		d.Status = models.DeviceStatusOffline
	}

	return models.DeviceView{Device: d, IsOnline: online}
}

// Touch refreshes last-seen for a connected satellite.
func (r *Registry) Touch(ctx context.Context, deviceID string) error {
	return r.db.TouchDevice(ctx, deviceID, r.now())
}

// ResetPresence marks every persisted satellite offline. It is meant to run
// before any agent connection is accepted.
func (r *Registry) ResetPresence(ctx context.Context) error {
	n, err := r.db.ResetDeviceStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset satellite presence: %w", err)
	}

	if n > 0 {
		r.logger.Info().Int64("count", n).Msg("Marked stale satellites offline")
	}

	return nil
}
