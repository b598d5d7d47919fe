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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/carverauto/satellitehive/pkg/models"
)

const deviceColumns = `id, name, credential_hash, agent_version, last_ip, system_info, capabilities,
	status, first_seen, last_seen, created_at, updated_at`

// UpsertDevice inserts or replaces a satellite record and its tag set.
func (db *DB) UpsertDevice(ctx context.Context, device *models.Device) error {
	if device == nil {
		return ErrDeviceNil
	}

	if device.ID == "" {
		return ErrDeviceIDRequired
	}

	systemInfo, err := json.Marshal(device.System)
	if err != nil {
		return fmt.Errorf("%w: system info: %w", ErrFailedToInsert, err)
	}

	capabilities, err := json.Marshal(nonNil(device.Capabilities))
	if err != nil {
		return fmt.Errorf("%w: capabilities: %w", ErrFailedToInsert, err)
	}

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, db.rebind(`INSERT INTO satellites (`+deviceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				credential_hash = excluded.credential_hash,
				agent_version = excluded.agent_version,
				last_ip = excluded.last_ip,
				system_info = excluded.system_info,
				capabilities = excluded.capabilities,
				status = excluded.status,
				last_seen = excluded.last_seen,
				updated_at = excluded.updated_at`),
			device.ID, device.Name, device.CredentialHash, device.AgentVersion, device.LastIP,
			string(systemInfo), string(capabilities), string(device.Status),
			toMillis(device.FirstSeen), toMillis(device.LastSeen),
			toMillis(device.CreatedAt), toMillis(device.UpdatedAt),
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM satellite_tags WHERE satellite_id = ?`), device.ID); err != nil {
			return err
		}

		for _, tag := range dedupe(device.Tags) {
			if _, err := tx.ExecContext(ctx,
				db.rebind(`INSERT INTO satellite_tags (satellite_id, tag) VALUES (?, ?)`), device.ID, tag); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: satellite %s: %w", ErrFailedToInsert, device.ID, err)
	}

	return nil
}

// GetDevice returns one satellite or ErrNotFound.
func (db *DB) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	device, err := scanDevice(db.queryRow(ctx, `SELECT `+deviceColumns+` FROM satellites WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: satellite %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	tags, err := db.tagsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	device.Tags = nonNil(tags[id])

	return device, nil
}

// ListDevices returns every satellite ordered by name.
func (db *DB) ListDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := db.query(ctx, `SELECT `+deviceColumns+` FROM satellites ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: satellites: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: satellites: %w", ErrFailedToQuery, err)
	}

	if len(devices) == 0 {
		return devices, nil
	}

	tags, err := db.tagsFor(ctx, nil)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		device.Tags = nonNil(tags[device.ID])
	}

	return devices, nil
}

// tagsFor loads tags for the given ids, or for every satellite when ids is empty.
func (db *DB) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	query := `SELECT satellite_id, tag FROM satellite_tags`
	args := make([]interface{}, 0, len(ids))

	if len(ids) > 0 {
		query += ` WHERE satellite_id IN (` + placeholders(len(ids)) + `)`

		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := db.query(ctx, query+` ORDER BY tag`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: satellite tags: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	tags := make(map[string][]string)

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		tags[id] = append(tags[id], tag)
	}

	return tags, rows.Err()
}

// UpdateDeviceStatus persists presence and last-seen for one satellite.
func (db *DB) UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus, lastSeen time.Time) error {
	res, err := db.exec(ctx, `UPDATE satellites SET status = ?, last_seen = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(lastSeen), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("%w: status of %s: %w", ErrFailedToInsert, id, err)
	}

	return requireRow(res, id)
}

// TouchDevice refreshes last-seen without changing presence.
func (db *DB) TouchDevice(ctx context.Context, id string, lastSeen time.Time) error {
	res, err := db.exec(ctx, `UPDATE satellites SET last_seen = ? WHERE id = ?`, toMillis(lastSeen), id)
	if err != nil {
		return fmt.Errorf("%w: touch %s: %w", ErrFailedToInsert, id, err)
	}

	return requireRow(res, id)
}

func (db *DB) ResetDeviceStatuses(ctx context.Context) (int64, error) {
	res, err := db.exec(ctx, `UPDATE satellites SET status = ?, updated_at = ? WHERE status = ?`,
		string(models.DeviceStatusOffline), time.Now().UnixMilli(), string(models.DeviceStatusOnline))
	if err != nil {
		return 0, fmt.Errorf("%w: reset presence: %w", ErrFailedToInsert, err)
	}

	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		d                                           models.Device
		status, systemInfo, capabilities            string
		firstSeen, lastSeen, createdAt, updatedAtMs int64
	)

	if err := row.Scan(&d.ID, &d.Name, &d.CredentialHash, &d.AgentVersion, &d.LastIP,
		&systemInfo, &capabilities, &status, &firstSeen, &lastSeen, &createdAt, &updatedAtMs); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(systemInfo), &d.System); err != nil {
		return nil, fmt.Errorf("satellite %s system info: %w", d.ID, err)
	}

	if err := json.Unmarshal([]byte(capabilities), &d.Capabilities); err != nil {
		return nil, fmt.Errorf("satellite %s capabilities: %w", d.ID, err)
	}

	d.Capabilities = nonNil(d.Capabilities)
	d.Status = models.DeviceStatus(status)
	d.FirstSeen = fromMillis(firstSeen)
	d.LastSeen = fromMillis(lastSeen)
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAtMs)

	return &d, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Strings(out)

	return out
}
