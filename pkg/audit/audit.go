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

// Package audit records who did what to which satellite or session.
package audit

import (
	"context"
	"time"

	"github.com/carverauto/satellitehive/pkg/db"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

//go:generate mockgen -destination=mock_audit.go -package=audit github.com/carverauto/satellitehive/pkg/audit Sink

// Sink accepts audit records. Recording never fails the audited operation.
type Sink interface {
	Record(ctx context.Context, entry *models.AuditEntry)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, *models.AuditEntry) {}

// Logger persists audit records and mirrors them to the component log.
type Logger struct {
	db     db.Service
	logger logger.Logger
	now    func() time.Time
}

var _ Sink = (*Logger)(nil)

func NewLogger(store db.Service, log logger.Logger) *Logger {
	return &Logger{db: store, logger: log, now: time.Now}
}

func (l *Logger) Record(ctx context.Context, entry *models.AuditEntry) {
	if entry == nil {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	if entry.Result == "" {
		entry.Result = models.AuditSuccess
	}

	l.logger.Info().
		Str("action", entry.Action).
		Str("actor_type", string(entry.ActorType)).
		Str("actor_id", entry.ActorID).
		Str("target_id", entry.TargetID).
		Str("result", string(entry.Result)).
		Msg("Audit")

	if err := l.db.InsertAuditEntry(ctx, entry); err != nil {
		l.logger.Error().Err(err).Str("action", entry.Action).Msg("Failed to persist audit entry")
	}
}

// UserEntry starts an entry attributed to an authenticated principal.
func UserEntry(user *models.User, action string) *models.AuditEntry {
	entry := &models.AuditEntry{Action: action, ActorType: models.ActorSystem}

	if user != nil {
		entry.ActorType = user.ActorType
		entry.ActorID = user.ID
		entry.ActorName = user.Name
	}

	return entry
}
