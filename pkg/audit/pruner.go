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

package audit

import (
	"context"
	"time"

	"github.com/carverauto/satellitehive/pkg/db"
	"github.com/carverauto/satellitehive/pkg/logger"
)

const defaultPruneInterval = 24 * time.Hour

// Pruner deletes audit records and heartbeat samples past their retention.
// A zero retention keeps that table forever.
type Pruner struct {
	db               db.Service
	logger           logger.Logger
	auditRetention   time.Duration
	metricsRetention time.Duration
	interval         time.Duration
	now              func() time.Time
}

func NewPruner(store db.Service, auditRetention, metricsRetention time.Duration, log logger.Logger) *Pruner {
	return &Pruner{
		db:               store,
		logger:           log,
		auditRetention:   auditRetention,
		metricsRetention: metricsRetention,
		interval:         defaultPruneInterval,
		now:              time.Now,
	}
}

// Run prunes immediately and then once per interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PruneOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PruneOnce runs a single pass and returns the number of deleted rows.
func (p *Pruner) PruneOnce(ctx context.Context) (auditRows, metricRows int64) {
	now := p.now()

	if p.auditRetention > 0 {
		n, err := p.db.PruneAuditEntries(ctx, now.Add(-p.auditRetention))
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to prune audit log")
		}

		auditRows = n
	}

	if p.metricsRetention > 0 {
		n, err := p.db.PruneDeviceMetrics(ctx, now.Add(-p.metricsRetention))
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to prune satellite metrics")
		}

		metricRows = n
	}

	if auditRows > 0 || metricRows > 0 {
		p.logger.Info().
			Int64("audit_rows", auditRows).
			Int64("metric_rows", metricRows).
			Msg("Pruned expired records")
	}

	return auditRows, metricRows
}
