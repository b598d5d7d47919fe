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

// Package agent is the satellite side of the hive agent channel: it dials
// the hive, authenticates, answers heartbeats and runs commands and
// terminals on the host.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/protocol"
	"github.com/carverauto/satellitehive/pkg/version"
)

//go:generate mockgen -destination=mock_agent.go -package=agent github.com/carverauto/satellitehive/pkg/agent FactSource

const (
	writeWait           = 10 * time.Second
	heartbeatMultiplier = 3
	idFileMode          = 0o600
)

var (
	// ErrHandshakeRejected is returned when the hive refuses the handshake.
	ErrHandshakeRejected = errors.New("handshake rejected")
	errUnexpectedFrame   = errors.New("unexpected frame during handshake")
)

// Capabilities advertised in the handshake.
var Capabilities = []string{"shell", "pty", "metrics"}

// FactSource supplies host facts for the handshake and heartbeat samples.
type FactSource interface {
	SystemInfo(ctx context.Context) models.SystemInfo
	Sample(ctx context.Context, activeSessions int) *protocol.HeartbeatMetrics
}

// link is one authenticated connection. gorilla allows a single writer.
type link struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (l *link) write(frame interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))

	return l.ws.WriteJSON(frame)
}

// Agent keeps a satellite connected to its hive.
type Agent struct {
	cfg       *Config
	log       logger.Logger
	facts     FactSource
	executor  *Executor
	terminals *Terminals
	dialer    *websocket.Dialer

	idMu    sync.RWMutex
	agentID string

	link atomic.Pointer[link]
}

type Option func(*Agent)

func WithFacts(f FactSource) Option {
	return func(a *Agent) {
		a.facts = f
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(a *Agent) {
		a.dialer = d
	}
}

// New builds an agent. cfg must already carry defaults.
func New(cfg *Config, log logger.Logger, opts ...Option) *Agent {
	a := &Agent{
		cfg:      cfg,
		log:      log,
		executor: NewExecutor(cfg.ExecTimeout.Std(), cfg.MaxOutput, log),
		agentID:  cfg.AgentID,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout.Std(),
		},
	}

	a.terminals = NewTerminals(cfg.Shell, a.send, log)

	for _, opt := range opts {
		opt(a)
	}

	if a.facts == nil {
		a.facts = NewHostFacts(log)
	}

	if a.agentID == "" && cfg.IDFile != "" {
		if raw, err := os.ReadFile(cfg.IDFile); err == nil {
			a.agentID = strings.TrimSpace(string(raw))
		}
	}

	return a
}

// AgentID is the identity the hive assigned, or the configured one before
// the first handshake.
func (a *Agent) AgentID() string {
	a.idMu.RLock()
	defer a.idMu.RUnlock()

	return a.agentID
}

func (a *Agent) setAgentID(id string) {
	if id == "" {
		return
	}

	a.idMu.Lock()
	changed := a.agentID != id
	a.agentID = id
	a.idMu.Unlock()

	if !changed || a.cfg.IDFile == "" {
		return
	}

	if err := os.WriteFile(a.cfg.IDFile, []byte(id+"\n"), idFileMode); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.IDFile).Msg("Failed to persist agent id")
	}
}

// Run connects and reconnects with exponential backoff until ctx ends.
func (a *Agent) Run(ctx context.Context) error {
	backoff := a.cfg.ReconnectMin.Std()

	for {
		connected, err := a.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			backoff = a.cfg.ReconnectMin.Std()
		}

		wait := jitter(backoff)

		a.log.Warn().Err(err).Dur("retry_in", wait).Msg("Disconnected from hive")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		backoff = nextBackoff(backoff, a.cfg.ReconnectMax.Std())
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff || next <= 0 {
		return maxBackoff
	}

	return next
}

// jitter spreads reconnects across [d/2, d).
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}

	return half + rand.N(half)
}

// runOnce reports whether the handshake succeeded before the link dropped.
func (a *Agent) runOnce(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent("agent"))

	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout.Std())
	ws, resp, err := a.dialer.DialContext(dialCtx, a.cfg.ServerURL, header)

	cancel()

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", a.cfg.ServerURL, err)
	}

	defer func() { _ = ws.Close() }()

	ack, err := a.handshake(ctx, ws)
	if err != nil {
		return false, err
	}

	a.setAgentID(ack.AgentID)

	readTimeout := defaultHeartbeatWait
	if ack.HeartbeatInterval > 0 {
		readTimeout = time.Duration(ack.HeartbeatInterval*heartbeatMultiplier) * time.Second
	}

	l := &link{ws: ws}
	a.link.Store(l)

	connCtx, cancelConn := context.WithCancel(ctx)
	stop := context.AfterFunc(connCtx, func() { _ = ws.Close() })

	defer func() {
		stop()
		cancelConn()
		a.link.CompareAndSwap(l, nil)
		a.terminals.CloseAll()
	}()

	a.log.Info().
		Str("agent_id", ack.AgentID).
		Str("server", a.cfg.ServerURL).
		Int("heartbeat_interval", ack.HeartbeatInterval).
		Msg("Connected to hive")

	return true, a.readLoop(connCtx, ws, readTimeout)
}

func (a *Agent) handshake(ctx context.Context, ws *websocket.Conn) (*protocol.HandshakeAck, error) {
	hs := &protocol.Handshake{
		Type:         protocol.TypeHandshake,
		AgentID:      a.AgentID(),
		Token:        a.cfg.Token,
		Version:      version.GetVersion(),
		Name:         a.cfg.Name,
		System:       a.facts.SystemInfo(ctx),
		Capabilities: Capabilities,
		Tags:         a.cfg.Tags,
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))

	if err := ws.WriteJSON(hs); err != nil {
		return nil, fmt.Errorf("failed to send handshake: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(a.cfg.DialTimeout.Std()))

	_, raw, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake reply: %w", err)
	}

	typ, err := protocol.PeekType(raw)
	if err != nil {
		return nil, err
	}

	switch typ {
	case protocol.TypeHandshakeAck:
		var ack protocol.HandshakeAck
		if err := protocol.Decode(raw, &ack); err != nil {
			return nil, err
		}

		if !ack.Success {
			return nil, ErrHandshakeRejected
		}

		return &ack, nil
	case protocol.TypeError:
		var e protocol.Error
		if err := protocol.Decode(raw, &e); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrHandshakeRejected, e.Error)
	default:
		return nil, fmt.Errorf("%w: %s", errUnexpectedFrame, typ)
	}
}

func (a *Agent) readLoop(ctx context.Context, ws *websocket.Conn, readTimeout time.Duration) error {
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("connection lost: %w", err)
		}

		a.dispatch(ctx, raw)
	}
}

func (a *Agent) dispatch(ctx context.Context, raw []byte) {
	typ, err := protocol.PeekType(raw)
	if err != nil {
		a.log.Debug().Err(err).Msg("Ignoring malformed frame")
		return
	}

	switch typ {
	case protocol.TypeHeartbeatPing:
		go a.pong(ctx)
	case protocol.TypeExec:
		var req protocol.Exec
		if err := protocol.Decode(raw, &req); err != nil {
			a.send(protocol.NewError(protocol.CodeInvalidFrame, err.Error()))
			return
		}

		go func() {
			a.send(a.executor.Run(ctx, &req))
		}()
	case protocol.TypePTYStart:
		var req protocol.PTYStart
		if err := protocol.Decode(raw, &req); err != nil {
			a.send(protocol.NewError(protocol.CodeInvalidFrame, err.Error()))
			return
		}

		if err := a.terminals.Start(&req); err != nil {
			a.log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Terminal failed to start")

			frame := protocol.NewError(protocol.CodePTYStartFailed, err.Error())
			frame.RequestID = req.RequestID
			frame.SessionID = req.SessionID
			a.send(frame)
		}
	case protocol.TypePTYInput:
		var req protocol.PTYInput
		if err := protocol.Decode(raw, &req); err == nil {
			err = a.terminals.Input(req.SessionID, req.Data)
			a.logFrameErr(typ, req.SessionID, err)
		}
	case protocol.TypePTYResize:
		var req protocol.PTYResize
		if err := protocol.Decode(raw, &req); err == nil {
			err = a.terminals.Resize(req.SessionID, req.Cols, req.Rows)
			a.logFrameErr(typ, req.SessionID, err)
		}
	case protocol.TypePTYEnd:
		var req protocol.PTYEnd
		if err := protocol.Decode(raw, &req); err == nil {
			err = a.terminals.End(req.SessionID)
			a.logFrameErr(typ, req.SessionID, err)
		}
	case protocol.TypeError:
		var e protocol.Error
		if err := protocol.Decode(raw, &e); err == nil {
			a.log.Warn().Str("code", e.Error.Code).Str("message", e.Error.Message).Msg("Hive reported an error")
		}
	default:
		a.log.Debug().Str("type", typ).Msg("Ignoring unknown frame type")
	}
}

func (a *Agent) logFrameErr(typ, sessionID string, err error) {
	if err != nil {
		a.log.Debug().Err(err).Str("type", typ).Str("session_id", sessionID).Msg("Terminal frame not applied")
	}
}

func (a *Agent) pong(ctx context.Context) {
	a.send(&protocol.HeartbeatPong{
		Type:      protocol.TypeHeartbeatPong,
		Timestamp: time.Now().UTC(),
		Metrics:   a.facts.Sample(ctx, a.terminals.Count()),
	})
}

// send writes frame on the live link. Frames are dropped while offline.
func (a *Agent) send(frame interface{}) bool {
	l := a.link.Load()
	if l == nil {
		return false
	}

	if err := l.write(frame); err != nil {
		a.log.Debug().Err(err).Msg("Failed to write frame")
		return false
	}

	return true
}
