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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/satellitehive/pkg/models"
)

const sessionColumns = `id, satellite_id, user_id, pty_cols, pty_rows, shell, status,
	created_at, ended_at, end_reason, exit_code`

const defaultSessionListLimit = 200

func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return ErrSessionNil
	}

	_, err := db.exec(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.DeviceID, session.UserID, session.Cols, session.Rows, session.Shell,
		string(session.Status), toMillis(session.CreatedAt), nullMillis(session.EndedAt),
		nullString(session.EndReason), nullInt(session.ExitCode))
	if err != nil {
		return fmt.Errorf("%w: session %s: %w", ErrFailedToInsert, session.ID, err)
	}

	return nil
}

func (db *DB) EndSession(ctx context.Context, id, reason string, exitCode *int, endedAt time.Time) error {
	_, err := db.exec(ctx, `UPDATE sessions SET status = ?, ended_at = ?, end_reason = ?, exit_code = ?
		WHERE id = ? AND status = ?`,
		string(models.SessionStatusEnded), toMillis(endedAt), reason, nullInt(exitCode),
		id, string(models.SessionStatusActive))
	if err != nil {
		return fmt.Errorf("%w: end session %s: %w", ErrFailedToInsert, id, err)
	}

	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := scanSession(db.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	return session, nil
}

// ListSessions returns sessions newest first.
func (db *DB) ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.DeviceID != "" {
		where = append(where, "satellite_id = ?")
		args = append(args, filter.DeviceID)
	}

	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSessionListLimit
	}

	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.Session

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// EndActiveSessions closes every session still persisted as active.
func (db *DB) EndActiveSessions(ctx context.Context, reason string, endedAt time.Time) (int64, error) {
	res, err := db.exec(ctx, `UPDATE sessions SET status = ?, ended_at = ?, end_reason = ? WHERE status = ?`,
		string(models.SessionStatusEnded), toMillis(endedAt), reason, string(models.SessionStatusActive))
	if err != nil {
		return 0, fmt.Errorf("%w: end active sessions: %w", ErrFailedToInsert, err)
	}

	return res.RowsAffected()
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s         models.Session
		status    string
		createdAt int64
		endedAt   sql.NullInt64
		reason    sql.NullString
		exitCode  sql.NullInt64
	)

	if err := row.Scan(&s.ID, &s.DeviceID, &s.UserID, &s.Cols, &s.Rows, &s.Shell, &status,
		&createdAt, &endedAt, &reason, &exitCode); err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	s.CreatedAt = fromMillis(createdAt)

	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		s.EndedAt = &t
	}

	s.EndReason = reason.String

	if exitCode.Valid {
		code := int(exitCode.Int64)
		s.ExitCode = &code
	}

	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
