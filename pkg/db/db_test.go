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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(context.Background(), &models.DatabaseConfig{Driver: models.DBDriverSQLite, Path: ":memory:"}, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testDevice(id string) *models.Device {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &models.Device{
		ID:             id,
		Name:           "edge-" + id,
		CredentialHash: "$2a$04$hash",
		Tags:           []string{"lab", "edge", "lab"},
		Capabilities:   []string{"shell", "pty"},
		System:         models.SystemInfo{Hostname: "edge", OS: "linux", CPUCores: 2},
		AgentVersion:   "1.0.0",
		LastIP:         "10.0.0.5",
		Status:         models.DeviceStatusOnline,
		FirstSeen:      now,
		LastSeen:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, RunMigrations(context.Background(), db.conn, db.driver, logger.NewTestLogger()))

	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM hive_schema_migrations`).Scan(&count))
	assert.Equal(t, 4, count)
}

func TestUpsertAndGetDevice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	device := testDevice("sat_a")
	require.NoError(t, db.UpsertDevice(ctx, device))

	got, err := db.GetDevice(ctx, "sat_a")
	require.NoError(t, err)

	assert.Equal(t, device.Name, got.Name)
	assert.Equal(t, device.CredentialHash, got.CredentialHash)
	assert.Equal(t, []string{"edge", "lab"}, got.Tags)
	assert.Equal(t, []string{"shell", "pty"}, got.Capabilities)
	assert.Equal(t, 2, got.System.CPUCores)
	assert.Equal(t, models.DeviceStatusOnline, got.Status)
	assert.True(t, device.LastSeen.Equal(got.LastSeen))

	device.Name = "renamed"
	device.Tags = []string{"prod"}
	require.NoError(t, db.UpsertDevice(ctx, device))

	got, err = db.GetDevice(ctx, "sat_a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"prod"}, got.Tags)
}

func TestGetDeviceNotFound(t *testing.T) {
	_, err := newTestDB(t).GetDevice(context.Background(), "sat_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertDeviceValidation(t *testing.T) {
	db := newTestDB(t)

	require.ErrorIs(t, db.UpsertDevice(context.Background(), nil), ErrDeviceNil)
	require.ErrorIs(t, db.UpsertDevice(context.Background(), &models.Device{}), ErrDeviceIDRequired)
}

func TestListDevicesAndPresence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, id := range []string{"sat_b", "sat_a"} {
		require.NoError(t, db.UpsertDevice(ctx, testDevice(id)))
	}

	devices, err := db.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "sat_a", devices[0].ID)
	assert.Equal(t, []string{"edge", "lab"}, devices[1].Tags)

	later := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
	require.NoError(t, db.UpdateDeviceStatus(ctx, "sat_a", models.DeviceStatusOffline, later))
	require.NoError(t, db.TouchDevice(ctx, "sat_b", later))
	require.ErrorIs(t, db.TouchDevice(ctx, "sat_zzz", later), ErrNotFound)

	a, err := db.GetDevice(ctx, "sat_a")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, a.Status)
	assert.True(t, later.Equal(a.LastSeen))

	n, err := db.ResetDeviceStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	b, err := db.GetDevice(ctx, "sat_b")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, b.Status)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.UpsertDevice(ctx, testDevice("sat_a")))

	session := &models.Session{
		ID:        "sess_1",
		DeviceID:  "sat_a",
		UserID:    "alice",
		Cols:      120,
		Rows:      40,
		Status:    models.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateSession(ctx, session))

	got, err := db.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.True(t, got.Active())
	assert.Nil(t, got.EndedAt)
	assert.Nil(t, got.ExitCode)

	code := 3
	require.NoError(t, db.EndSession(ctx, "sess_1", models.EndReasonExited, &code, time.Now()))
	// A second end must not overwrite the first.
	require.NoError(t, db.EndSession(ctx, "sess_1", models.EndReasonUserTerminated, nil, time.Now()))

	got, err = db.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, got.Status)
	assert.Equal(t, models.EndReasonExited, got.EndReason)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 3, *got.ExitCode)
	assert.NotNil(t, got.EndedAt)

	_, err = db.GetSession(ctx, "sess_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsAndEndActive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.UpsertDevice(ctx, testDevice("sat_a")))
	require.NoError(t, db.UpsertDevice(ctx, testDevice("sat_b")))

	base := time.Now().UTC()
	for i, dev := range []string{"sat_a", "sat_a", "sat_b"} {
		require.NoError(t, db.CreateSession(ctx, &models.Session{
			ID:        "sess_" + string(rune('a'+i)),
			DeviceID:  dev,
			UserID:    "alice",
			Cols:      80,
			Rows:      24,
			Status:    models.SessionStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := db.ListSessions(ctx, models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sess_c", all[0].ID)

	onA, err := db.ListSessions(ctx, models.SessionFilter{DeviceID: "sat_a"})
	require.NoError(t, err)
	assert.Len(t, onA, 2)

	n, err := db.EndActiveSessions(ctx, models.EndReasonServerRestart, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	active, err := db.ListSessions(ctx, models.SessionFilter{Status: models.SessionStatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAuditEntries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	old := &models.AuditEntry{
		Timestamp: time.Now().Add(-48 * time.Hour),
		ActorType: models.ActorSystem,
		Action:    models.AuditAgentConnected,
		Result:    models.AuditSuccess,
	}
	require.NoError(t, db.InsertAuditEntry(ctx, old))
	assert.NotEmpty(t, old.ID)

	recent := &models.AuditEntry{
		ActorType:  models.ActorUser,
		ActorID:    "alice",
		Action:     models.AuditSessionCreate,
		TargetType: "satellite",
		TargetID:   "sat_a",
		Details:    map[string]interface{}{"session_id": "sess_1"},
		Result:     models.AuditSuccess,
	}
	require.NoError(t, db.InsertAuditEntry(ctx, recent))

	entries, err := db.ListAuditEntries(ctx, models.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, recent.ID, entries[0].ID)
	assert.Equal(t, "sess_1", entries[0].Details["session_id"])

	byActor, err := db.ListAuditEntries(ctx, models.AuditFilter{ActorID: "alice"})
	require.NoError(t, err)
	assert.Len(t, byActor, 1)

	pruned, err := db.PruneAuditEntries(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestDeviceMetrics(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.UpsertDevice(ctx, testDevice("sat_a")))

	now := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.StoreDeviceMetrics(ctx, &models.DeviceMetrics{
			DeviceID:       "sat_a",
			Timestamp:      now.Add(-time.Duration(i) * time.Hour),
			CPUPercent:     float64(10 * (i + 1)),
			NetworkRxBytes: 1 << 40,
			ActiveSessions: i,
		}))
	}

	// Duplicate timestamps are ignored.
	require.NoError(t, db.StoreDeviceMetrics(ctx, &models.DeviceMetrics{DeviceID: "sat_a", Timestamp: now}))

	samples, err := db.GetDeviceMetrics(ctx, "sat_a", now.Add(-90*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.InDelta(t, 10.0, samples[0].CPUPercent, 0.001)
	assert.Equal(t, uint64(1<<40), samples[0].NetworkRxBytes)

	pruned, err := db.PruneDeviceMetrics(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)
}

func TestAggregateDeviceMetrics(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.UpsertDevice(ctx, testDevice("sat_a")))

	now := time.Now().UTC().Truncate(time.Millisecond)
	for i, cpu := range []float64{20, 40, 90} {
		require.NoError(t, db.StoreDeviceMetrics(ctx, &models.DeviceMetrics{
			DeviceID:      "sat_a",
			Timestamp:     now.Add(-time.Duration(i) * time.Hour),
			CPUPercent:    cpu,
			MemoryPercent: 50,
		}))
	}

	agg, err := db.AggregateDeviceMetrics(ctx, "sat_a", now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.SampleCount)
	assert.InDelta(t, 30.0, agg.AvgCPU, 0.001)
	assert.InDelta(t, 40.0, agg.MaxCPU, 0.001)
	assert.InDelta(t, 50.0, agg.AvgMemory, 0.001)

	empty, err := db.AggregateDeviceMetrics(ctx, "sat_missing", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "sat_missing", empty.DeviceID)
	assert.Zero(t, empty.SampleCount)
	assert.Zero(t, empty.MaxCPU)
}

func TestAuditStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	now := time.Now().UTC()
	entries := []*models.AuditEntry{
		{Timestamp: now, ActorName: "alice", Action: models.AuditSessionCreate},
		{Timestamp: now, ActorName: "alice", Action: models.AuditSessionCreate},
		{Timestamp: now, ActorName: "bob", Action: models.AuditCommandExec},
		{Timestamp: now.Add(-24 * time.Hour), ActorName: "bob", Action: models.AuditCommandExec},
		{Timestamp: now.Add(-30 * 24 * time.Hour), ActorName: "carol", Action: models.AuditSessionClose},
	}

	for _, e := range entries {
		e.ActorType = models.ActorUser
		e.Result = models.AuditSuccess
		require.NoError(t, db.InsertAuditEntry(ctx, e))
	}

	stats, err := db.AuditStats(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)

	assert.ElementsMatch(t, []models.AuditCount{
		{Key: models.AuditSessionCreate, Count: 2},
		{Key: models.AuditCommandExec, Count: 2},
	}, stats.ByAction)
	assert.ElementsMatch(t, []models.AuditCount{{Key: "alice", Count: 2}, {Key: "bob", Count: 2}}, stats.ByActor)

	require.Len(t, stats.Timeline, 2)
	assert.Equal(t, now.Add(-24*time.Hour).Format("2006-01-02"), stats.Timeline[0].Key)
	assert.Equal(t, int64(1), stats.Timeline[0].Count)
	assert.Equal(t, now.Format("2006-01-02"), stats.Timeline[1].Key)
	assert.Equal(t, int64(3), stats.Timeline[1].Count)
}

func TestPing(t *testing.T) {
	db, err := New(context.Background(), &models.DatabaseConfig{Driver: models.DBDriverSQLite, Path: ":memory:"}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	require.ErrorIs(t, db.Ping(context.Background()), ErrFailedToQuery)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := `SELECT * FROM t WHERE a = ? AND b IN (?, ?)`
	assert.Equal(t, q, Rebind(models.DBDriverSQLite, q))
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`, Rebind(models.DBDriverPostgres, q))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), &models.DatabaseConfig{Driver: "oracle"}, nil)
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}
