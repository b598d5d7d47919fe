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

// Package sessions owns the lifecycle of PTY sessions and their replay buffers.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/satellitehive/pkg/db"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

const (
	DefaultReplayChunks = 100
	DefaultMaxPerDevice = 16
)

var (
	ErrDeviceOffline   = errors.New("satellite is offline")
	ErrSessionLimit    = errors.New("too many active sessions on satellite")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidGeometry = errors.New("invalid terminal geometry")
)

// Presence reports the connection a satellite is currently reachable on.
type Presence interface {
	ConnectionID(deviceID string) (string, bool)
}

type Config struct {
	MaxPerDevice int
	ReplayChunks int
}

// CreateRequest asks for a new terminal on a satellite. Zero geometry falls
// back to the default size.
type CreateRequest struct {
	DeviceID string
	UserID   string
	Cols     int
	Rows     int
	Shell    string
}

type liveSession struct {
	session *models.Session
	connID  string
	replay  *replayRing

	// Set under Manager.mu when the entry is removed.
	endReason string
	exitCode  *int
}

// Manager tracks active sessions in memory and persists every transition.
type Manager struct {
	db       db.Service
	presence Presence
	logger   logger.Logger
	cfg      Config
	now      func() time.Time

	mu   sync.RWMutex
	live map[string]*liveSession
}

func NewManager(store db.Service, presence Presence, cfg Config, log logger.Logger) *Manager {
	if cfg.MaxPerDevice <= 0 {
		cfg.MaxPerDevice = DefaultMaxPerDevice
	}

	if cfg.ReplayChunks <= 0 {
		cfg.ReplayChunks = DefaultReplayChunks
	}

	return &Manager{
		db:       store,
		presence: presence,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
		live:     make(map[string]*liveSession),
	}
}

// Create opens an active session bound to the satellite's current
// connection. It does not talk to the satellite. The session is visible to
// disconnect sweeps before it is persisted, and the table lock is not held
// across the store write.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*models.Session, error) {
	if req.Cols == 0 {
		req.Cols = models.DefaultSessionCols
	}

	if req.Rows == 0 {
		req.Rows = models.DefaultSessionRows
	}

	if !models.ValidGeometry(req.Cols, req.Rows) {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, req.Cols, req.Rows)
	}

	ls, session, err := m.reserve(req)
	if err != nil {
		return nil, err
	}

	if err := m.db.CreateSession(ctx, session); err != nil {
		m.mu.Lock()
		if m.live[session.ID] == ls {
			delete(m.live, session.ID)
		}
		m.mu.Unlock()

		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	swept := m.live[session.ID] != ls
	reason, exitCode := ls.endReason, ls.exitCode
	m.mu.Unlock()

	if swept {
		// Ended while the insert was in flight; the earlier end write found no row.
		if err := m.db.EndSession(ctx, session.ID, reason, exitCode, m.now()); err != nil {
			m.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to persist session end")
		}

		return nil, fmt.Errorf("%w: %s", ErrDeviceOffline, req.DeviceID)
	}

	m.logger.Info().
		Str("session_id", session.ID).
		Str("satellite_id", session.DeviceID).
		Str("user_id", session.UserID).
		Msg("Session created")

	return session, nil
}

// reserve checks presence and the per-device limit and inserts the live
// entry in one critical section. It returns the entry and a private copy of
// its session.
func (m *Manager) reserve(req CreateRequest) (*liveSession, *models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID, ok := m.presence.ConnectionID(req.DeviceID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrDeviceOffline, req.DeviceID)
	}

	if m.countLocked(req.DeviceID) >= m.cfg.MaxPerDevice {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionLimit, req.DeviceID)
	}

	ls := &liveSession{
		session: &models.Session{
			ID:        models.NewSessionID(),
			DeviceID:  req.DeviceID,
			UserID:    req.UserID,
			Cols:      req.Cols,
			Rows:      req.Rows,
			Shell:     req.Shell,
			Status:    models.SessionStatusActive,
			CreatedAt: m.now(),
		},
		connID: connID,
		replay: newReplayRing(m.cfg.ReplayChunks),
	}
	m.live[ls.session.ID] = ls

	return ls, copySession(ls.session), nil
}

func (m *Manager) countLocked(deviceID string) int {
	n := 0

	for _, ls := range m.live {
		if ls.session.DeviceID == deviceID {
			n++
		}
	}

	return n
}

// AppendOutput adds a chunk to an active session's replay buffer.
func (m *Manager) AppendOutput(sessionID string, chunk []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.live[sessionID]
	if !ok {
		return false
	}

	ls.replay.push(chunk)

	return true
}

// RecentOutput returns the replay buffer of an active session, oldest first.
func (m *Manager) RecentOutput(sessionID string) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ls, ok := m.live[sessionID]
	if !ok {
		return nil
	}

	return ls.replay.snapshot()
}

// Terminate ends an active session. Only the call that performs the
// transition returns true; later calls and unknown ids are no-ops.
func (m *Manager) Terminate(ctx context.Context, sessionID, reason string, exitCode *int) bool {
	m.mu.Lock()
	ls, ok := m.live[sessionID]
	if ok {
		delete(m.live, sessionID)
		ls.endReason, ls.exitCode = reason, exitCode
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	m.finish(ctx, ls.session, reason, exitCode)

	return true
}

// TerminateConnection ends every active session on deviceID that was opened
// over connID, or all of the device's sessions when connID is empty.
func (m *Manager) TerminateConnection(ctx context.Context, deviceID, connID, reason string) []*models.Session {
	var orphaned []*models.Session

	m.mu.Lock()
	for id, ls := range m.live {
		if ls.session.DeviceID != deviceID || (connID != "" && ls.connID != connID) {
			continue
		}

		delete(m.live, id)
		ls.endReason = reason
		orphaned = append(orphaned, ls.session)
	}
	m.mu.Unlock()

	ended := make([]*models.Session, 0, len(orphaned))
	for _, s := range orphaned {
		m.finish(ctx, s, reason, nil)
		ended = append(ended, copySession(s))
	}

	return ended
}

func (m *Manager) finish(ctx context.Context, s *models.Session, reason string, exitCode *int) {
	endedAt := m.now()

	s.Status = models.SessionStatusEnded
	s.EndedAt = &endedAt
	s.EndReason = reason
	s.ExitCode = exitCode

	if err := m.db.EndSession(ctx, s.ID, reason, exitCode, endedAt); err != nil {
		m.logger.Error().Err(err).Str("session_id", s.ID).Msg("Failed to persist session end")
	}

	m.logger.Info().
		Str("session_id", s.ID).
		Str("satellite_id", s.DeviceID).
		Str("reason", reason).
		Msg("Session ended")
}

func (m *Manager) IsActive(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.live[sessionID]

	return ok
}

// Active returns a copy of an active session.
func (m *Manager) Active(sessionID string) (*models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ls, ok := m.live[sessionID]
	if !ok {
		return nil, false
	}

	return copySession(ls.session), true
}

// Get returns a live session, falling back to the persisted record.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if s, ok := m.Active(sessionID); ok {
		return s, nil
	}

	s, err := m.db.GetSession(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	return s, nil
}

func (m *Manager) List(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	return m.db.ListSessions(ctx, filter)
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.live)
}

// ActiveForDevice counts active sessions on one satellite.
func (m *Manager) ActiveForDevice(deviceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.countLocked(deviceID)
}

// RecoverOrphans ends sessions persisted as active by a previous process.
func (m *Manager) RecoverOrphans(ctx context.Context) (int64, error) {
	n, err := m.db.EndActiveSessions(ctx, models.EndReasonServerRestart, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned sessions: %w", err)
	}

	if n > 0 {
		m.logger.Warn().Int64("count", n).Msg("Ended sessions left active by a previous run")
	}

	return n, nil
}

func copySession(s *models.Session) *models.Session {
	c := *s

	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}

	if s.ExitCode != nil {
		code := *s.ExitCode
		c.ExitCode = &code
	}

	return &c
}
