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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/satellitehive/pkg/models"
)

const auditColumns = `id, timestamp, actor_type, actor_id, actor_name, actor_ip, action,
	target_type, target_id, target_name, details, result, error_message`

const defaultAuditListLimit = 100

// InsertAuditEntry stores entry, assigning an id and timestamp when unset.
func (db *DB) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry == nil {
		return ErrAuditEntryNil
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	details := []byte("{}")

	if len(entry.Details) > 0 {
		var err error

		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("%w: audit details: %w", ErrFailedToInsert, err)
		}
	}

	_, err := db.exec(ctx, `INSERT INTO audit_logs (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, toMillis(entry.Timestamp), string(entry.ActorType), entry.ActorID, entry.ActorName, entry.ActorIP,
		entry.Action, entry.TargetType, entry.TargetID, entry.TargetName, string(details),
		string(entry.Result), entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("%w: audit entry: %w", ErrFailedToInsert, err)
	}

	return nil
}

// ListAuditEntries returns entries newest first.
func (db *DB) ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, filter.ActorID)
	}

	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}

	if filter.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, filter.TargetID)
	}

	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, toMillis(filter.Since))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditListLimit
	}

	query += ` ORDER BY timestamp DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: audit logs: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.AuditEntry

	for rows.Next() {
		var (
			e                          models.AuditEntry
			ts                         int64
			actorType, result, details string
		)

		if err := rows.Scan(&e.ID, &ts, &actorType, &e.ActorID, &e.ActorName, &e.ActorIP, &e.Action,
			&e.TargetType, &e.TargetID, &e.TargetName, &details, &result, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		e.Timestamp = fromMillis(ts)
		e.ActorType = models.ActorType(actorType)
		e.Result = models.AuditResult(result)

		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("%w: audit %s details: %w", ErrFailedToScan, e.ID, err)
			}
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (db *DB) PruneAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.exec(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("%w: prune audit logs: %w", ErrFailedToQuery, err)
	}

	return res.RowsAffected()
}

const (
	msPerDay        = 24 * 60 * 60 * 1000
	auditTopActors  = 10
	auditDateLayout = "2006-01-02"
)

// AuditStats groups audit entries newer than since by action, by actor name
// and by UTC day.
func (db *DB) AuditStats(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	stats := &models.AuditStats{}

	var err error

	stats.ByAction, err = db.auditCounts(ctx, `SELECT action, COUNT(*) AS n FROM audit_logs
		WHERE timestamp >= ? GROUP BY action ORDER BY n DESC, action`, toMillis(since))
	if err != nil {
		return nil, err
	}

	stats.ByActor, err = db.auditCounts(ctx, `SELECT actor_name, COUNT(*) AS n FROM audit_logs
		WHERE timestamp >= ? GROUP BY actor_name ORDER BY n DESC, actor_name LIMIT ?`, toMillis(since), auditTopActors)
	if err != nil {
		return nil, err
	}

	rows, err := db.query(ctx, `SELECT timestamp / 86400000 AS day, COUNT(*) FROM audit_logs
		WHERE timestamp >= ? GROUP BY day ORDER BY day`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("%w: audit timeline: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	stats.Timeline = []models.AuditCount{}

	for rows.Next() {
		var day, n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		stats.Timeline = append(stats.Timeline, models.AuditCount{
			Key:   time.UnixMilli(day * msPerDay).UTC().Format(auditDateLayout),
			Count: n,
		})
	}

	return stats, rows.Err()
}

func (db *DB) auditCounts(ctx context.Context, query string, args ...interface{}) ([]models.AuditCount, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: audit stats: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	counts := []models.AuditCount{}

	for rows.Next() {
		var c models.AuditCount
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}
