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

// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/carverauto/satellitehive/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/satellitehive/pkg/db Service

// Service is the relational store behind the hub.
type Service interface {
	Close() error
	Driver() string
	Ping(ctx context.Context) error

	// Satellite operations.

	UpsertDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus, lastSeen time.Time) error
	TouchDevice(ctx context.Context, id string, lastSeen time.Time) error
	// ResetDeviceStatuses marks every online device offline and returns how many changed.
	ResetDeviceStatuses(ctx context.Context) (int64, error)

	// Session operations.

	CreateSession(ctx context.Context, session *models.Session) error
	// EndSession records the end of an active session; ended rows are left untouched.
	EndSession(ctx context.Context, id, reason string, exitCode *int, endedAt time.Time) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
	EndActiveSessions(ctx context.Context, reason string, endedAt time.Time) (int64, error)

	// Audit operations.

	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error)
	PruneAuditEntries(ctx context.Context, before time.Time) (int64, error)
	// AuditStats groups entries newer than since; by-actor is capped at ten rows.
	AuditStats(ctx context.Context, since time.Time) (*models.AuditStats, error)

	// Metrics operations.

	StoreDeviceMetrics(ctx context.Context, sample *models.DeviceMetrics) error
	GetDeviceMetrics(ctx context.Context, deviceID string, since time.Time, limit int) ([]*models.DeviceMetrics, error)
	AggregateDeviceMetrics(ctx context.Context, deviceID string, since time.Time) (*models.MetricsAggregate, error)
	PruneDeviceMetrics(ctx context.Context, before time.Time) (int64, error)
}
