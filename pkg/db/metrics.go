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

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carverauto/satellitehive/pkg/models"
)

const defaultMetricsLimit = 500

// StoreDeviceMetrics records a heartbeat sample. A second sample in the same
// millisecond for the same satellite is ignored.
func (db *DB) StoreDeviceMetrics(ctx context.Context, sample *models.DeviceMetrics) error {
	if sample == nil {
		return ErrMetricsNil
	}

	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := db.exec(ctx, `INSERT INTO satellite_metrics (satellite_id, timestamp, cpu_percent, memory_percent,
			disk_percent, network_rx_bytes, network_tx_bytes, active_sessions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (satellite_id, timestamp) DO NOTHING`,
		sample.DeviceID, toMillis(ts), sample.CPUPercent, sample.MemoryPercent, sample.DiskPercent,
		int64(sample.NetworkRxBytes), int64(sample.NetworkTxBytes), sample.ActiveSessions) //nolint:gosec // counters fit in int64
	if err != nil {
		return fmt.Errorf("%w: metrics for %s: %w", ErrFailedToInsert, sample.DeviceID, err)
	}

	return nil
}

// GetDeviceMetrics returns samples newer than since, newest first.
func (db *DB) GetDeviceMetrics(ctx context.Context, deviceID string, since time.Time, limit int) ([]*models.DeviceMetrics, error) {
	if limit <= 0 {
		limit = defaultMetricsLimit
	}

	rows, err := db.query(ctx, `SELECT satellite_id, timestamp, cpu_percent, memory_percent, disk_percent,
			network_rx_bytes, network_tx_bytes, active_sessions
		FROM satellite_metrics
		WHERE satellite_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC LIMIT ?`, deviceID, toMillis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics for %s: %w", ErrFailedToQuery, deviceID, err)
	}
	defer func() { _ = rows.Close() }()

	var samples []*models.DeviceMetrics

	for rows.Next() {
		var (
			m      models.DeviceMetrics
			ts     int64
			rx, tx int64
		)

		if err := rows.Scan(&m.DeviceID, &ts, &m.CPUPercent, &m.MemoryPercent, &m.DiskPercent,
			&rx, &tx, &m.ActiveSessions); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		m.Timestamp = fromMillis(ts)
		m.NetworkRxBytes = uint64(rx) //nolint:gosec // stored from uint64
		m.NetworkTxBytes = uint64(tx) //nolint:gosec // stored from uint64

		samples = append(samples, &m)
	}

	return samples, rows.Err()
}

// AggregateDeviceMetrics averages and peaks a satellite's samples newer
// than since. A window without samples yields zero values.
func (db *DB) AggregateDeviceMetrics(ctx context.Context, deviceID string, since time.Time) (*models.MetricsAggregate, error) {
	agg := models.MetricsAggregate{DeviceID: deviceID}

	var avgCPU, maxCPU, avgMem, maxMem, avgDisk, maxDisk sql.NullFloat64

	err := db.queryRow(ctx, `SELECT COUNT(*), AVG(cpu_percent), MAX(cpu_percent), AVG(memory_percent),
			MAX(memory_percent), AVG(disk_percent), MAX(disk_percent)
		FROM satellite_metrics
		WHERE satellite_id = ? AND timestamp >= ?`, deviceID, toMillis(since)).
		Scan(&agg.SampleCount, &avgCPU, &maxCPU, &avgMem, &maxMem, &avgDisk, &maxDisk)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate metrics for %s: %w", ErrFailedToQuery, deviceID, err)
	}

	agg.AvgCPU, agg.MaxCPU = avgCPU.Float64, maxCPU.Float64
	agg.AvgMemory, agg.MaxMemory = avgMem.Float64, maxMem.Float64
	agg.AvgDisk, agg.MaxDisk = avgDisk.Float64, maxDisk.Float64

	return &agg, nil
}

func (db *DB) PruneDeviceMetrics(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.exec(ctx, `DELETE FROM satellite_metrics WHERE timestamp < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("%w: prune metrics: %w", ErrFailedToQuery, err)
	}

	return res.RowsAffected()
}
