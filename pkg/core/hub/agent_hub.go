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

package hub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/satellitehive/pkg/audit"
	"github.com/carverauto/satellitehive/pkg/correlator"
	"github.com/carverauto/satellitehive/pkg/db"
	srHttp "github.com/carverauto/satellitehive/pkg/http"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/metrics"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/protocol"
	"github.com/carverauto/satellitehive/pkg/registry"
	"github.com/carverauto/satellitehive/pkg/sessions"
)

const (
	maxHandshakeViolations = 5
	disconnectTimeout      = 10 * time.Second

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 90 * time.Second
	DefaultHandshakeTimeout  = 30 * time.Second
)

var (
	ErrSatelliteOffline = errors.New("satellite is not connected")
	ErrSendFailed       = errors.New("failed to send command to satellite")
)

// AgentConfig controls the satellite channel.
type AgentConfig struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	HandshakeTimeout  time.Duration
	AllowedOrigins    []string
}

func (c *AgentConfig) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
}

type agentConn struct {
	conn       *wsConn
	state      atomic.Int32
	deviceID   string
	violations int
}

func (a *agentConn) setState(s ConnState) { a.state.Store(int32(s)) }
func (a *agentConn) State() ConnState     { return ConnState(a.state.Load()) }

// AgentOption configures optional collaborators of an AgentHub.
type AgentOption func(*AgentHub)

func WithFleetEvents(ev FleetEvents) AgentOption {
	return func(h *AgentHub) {
		if ev != nil {
			h.events = ev
		}
	}
}

func WithAuditSink(sink audit.Sink) AgentOption {
	return func(h *AgentHub) {
		if sink != nil {
			h.audit = sink
		}
	}
}

func WithMetrics(rec *metrics.Recorder) AgentOption {
	return func(h *AgentHub) {
		h.metrics = rec
	}
}

// WithMetricsStore persists heartbeat resource samples.
func WithMetricsStore(store db.Service) AgentOption {
	return func(h *AgentHub) {
		h.samples = store
	}
}

// AgentHub accepts satellite connections on the agent channel.
type AgentHub struct {
	cfg        AgentConfig
	registry   *registry.Registry
	sessions   *sessions.Manager
	correlator *correlator.Correlator
	upgrader   websocket.Upgrader
	logger     logger.Logger

	broadcaster Broadcaster
	events      FleetEvents
	audit       audit.Sink
	metrics     *metrics.Recorder
	samples     db.Service

	mu    sync.Mutex
	conns map[*agentConn]struct{}
}

func NewAgentHub(
	cfg AgentConfig,
	reg *registry.Registry,
	sess *sessions.Manager,
	corr *correlator.Correlator,
	log logger.Logger,
	opts ...AgentOption,
) *AgentHub {
	cfg.applyDefaults()

	h := &AgentHub{
		cfg:         cfg,
		registry:    reg,
		sessions:    sess,
		correlator:  corr,
		upgrader:    newUpgrader(srHttp.WebSocketOriginChecker(cfg.AllowedOrigins)),
		logger:      log,
		broadcaster: noopBroadcaster{},
		events:      noopEvents{},
		audit:       audit.Nop{},
		conns:       make(map[*agentConn]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// SetBroadcaster wires the dashboard fan-out. Call before serving.
func (h *AgentHub) SetBroadcaster(b Broadcaster) {
	if b != nil {
		h.broadcaster = b
	}
}

func (h *AgentHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Agent websocket upgrade failed")
		return
	}

	ac := &agentConn{conn: newWSConn(ws, srHttp.RemoteIP(r))}
	ac.setState(StateAuthenticating)

	h.track(ac)

	go ac.conn.writePump(0)

	h.readLoop(context.WithoutCancel(r.Context()), ac)
}

func (h *AgentHub) readLoop(ctx context.Context, ac *agentConn) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Str("satellite_id", ac.deviceID).
				Msg("Recovered from agent connection panic")
		}

		h.disconnect(ac)
	}()

	ws := ac.conn.ws
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.logger.Debug().Err(err).Str("satellite_id", ac.deviceID).Msg("Agent read loop ended")
			return
		}

		if ac.State() != StateConnected {
			if !h.handlePreHandshake(ctx, ac, raw) {
				return
			}

			continue
		}

		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))

		h.handleFrame(ctx, ac, raw)
	}
}

// handlePreHandshake returns false when the connection must be closed.
func (h *AgentHub) handlePreHandshake(ctx context.Context, ac *agentConn, raw []byte) bool {
	frameType, err := protocol.PeekType(raw)
	if err != nil && !errors.Is(err, protocol.ErrMissingType) {
		_ = ac.conn.Send(protocol.NewError(protocol.CodeInvalidFrame, "Frame is not valid JSON"))
		return false
	}

	if frameType != protocol.TypeHandshake {
		ac.violations++

		_ = ac.conn.Send(protocol.NewError(protocol.CodeHandshakeRequired, "First message must be a handshake"))

		return ac.violations < maxHandshakeViolations
	}

	var hs protocol.Handshake
	if err := protocol.Decode(raw, &hs); err != nil {
		_ = ac.conn.Send(protocol.NewError(protocol.CodeInvalidFrame, "Malformed handshake"))
		return false
	}

	return h.completeHandshake(ctx, ac, &hs)
}

func (h *AgentHub) completeHandshake(ctx context.Context, ac *agentConn, hs *protocol.Handshake) bool {
	device, enrolled, err := h.registry.Register(ctx, registry.RegisterRequest{
		DeclaredID:   hs.AgentID,
		Token:        hs.Token,
		Name:         hs.Name,
		Version:      hs.Version,
		System:       hs.System,
		Capabilities: hs.Capabilities,
		Tags:         hs.Tags,
		RemoteIP:     ac.conn.remoteIP,
	})
	if err != nil {
		if errors.Is(err, registry.ErrInvalidCredential) {
			h.audit.Record(ctx, &models.AuditEntry{
				ActorType:    models.ActorAgent,
				ActorID:      hs.AgentID,
				ActorIP:      ac.conn.remoteIP,
				Action:       models.AuditAgentAuthFailed,
				TargetType:   "satellite",
				TargetID:     hs.AgentID,
				Result:       models.AuditFailure,
				ErrorMessage: err.Error(),
			})

			_ = ac.conn.Send(protocol.NewError(protocol.CodeAuthFailed, "Invalid credentials"))

			return false
		}

		h.logger.Error().Err(err).Str("agent_id", hs.AgentID).Msg("Failed to register satellite")
		_ = ac.conn.Send(protocol.NewError(protocol.CodeInternalError, "Registration failed"))

		return false
	}

	ac.deviceID = device.ID

	if prev := h.registry.Bind(ctx, device.ID, ac.conn); prev != nil && prev.ID() != ac.conn.ID() {
		h.logger.Info().Str("satellite_id", device.ID).Msg("Satellite reconnected, closing superseded connection")
		prev.Close()
	}

	ac.setState(StateConnected)

	if err := ac.conn.Send(&protocol.HandshakeAck{
		Type:              protocol.TypeHandshakeAck,
		Success:           true,
		AgentID:           device.ID,
		ServerTime:        time.Now().UTC(),
		HeartbeatInterval: int(h.cfg.HeartbeatInterval / time.Second),
	}); err != nil {
		h.logger.Warn().Err(err).Str("satellite_id", device.ID).Msg("Failed to queue handshake ack")
		return false
	}

	_ = ac.conn.ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))

	go h.heartbeat(ac)

	view := h.registry.View(device)
	h.broadcaster.Broadcast(protocol.EventSatelliteOnline, protocol.SatelliteStatus{
		SatelliteID: device.ID,
		Satellite:   &view,
	})
	h.events.SatelliteConnected(ctx, &view)

	h.audit.Record(ctx, &models.AuditEntry{
		ActorType:  models.ActorAgent,
		ActorID:    device.ID,
		ActorName:  device.Name,
		ActorIP:    ac.conn.remoteIP,
		Action:     models.AuditAgentConnected,
		TargetType: "satellite",
		TargetID:   device.ID,
		TargetName: device.Name,
		Details:    map[string]interface{}{"enrolled": enrolled, "version": device.AgentVersion},
	})

	h.logger.Info().
		Str("satellite_id", device.ID).
		Str("name", device.Name).
		Str("remote_ip", ac.conn.remoteIP).
		Bool("enrolled", enrolled).
		Msg("Satellite connected")

	return true
}

func (h *AgentHub) heartbeat(ac *agentConn) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ac.conn.done:
			return
		case now := <-ticker.C:
			err := ac.conn.Send(&protocol.HeartbeatPing{Type: protocol.TypeHeartbeatPing, Timestamp: now.UTC()})
			if errors.Is(err, ErrConnClosed) {
				return
			}
		}
	}
}

func (h *AgentHub) handleFrame(ctx context.Context, ac *agentConn, raw []byte) {
	frameType, err := protocol.PeekType(raw)
	if err != nil {
		_ = ac.conn.Send(protocol.NewError(protocol.CodeInvalidFrame, "Frame could not be parsed"))
		return
	}

	h.metrics.AgentFrame(ctx, frameType)

	switch frameType {
	case protocol.TypeHeartbeatPong:
		err = h.handlePong(ctx, ac, raw)
	case protocol.TypeExecResult:
		err = h.handleExecResult(ac, raw)
	case protocol.TypePTYOutput:
		err = h.handlePTYOutput(ac, raw)
	case protocol.TypePTYStarted:
		err = h.handlePTYStarted(ctx, ac, raw)
	case protocol.TypePTYEnded:
		err = h.handlePTYEnded(ctx, ac, raw)
	case protocol.TypeError:
		err = h.handleAgentError(ctx, ac, raw)
	default:
		h.logger.Debug().Str("type", frameType).Str("satellite_id", ac.deviceID).Msg("Ignoring unknown agent frame")
	}

	if err != nil {
		h.logger.Debug().Err(err).Str("type", frameType).Str("satellite_id", ac.deviceID).Msg("Rejected agent frame")
		_ = ac.conn.Send(protocol.NewError(protocol.CodeInvalidFrame, err.Error()))
	}
}

func (h *AgentHub) handlePong(ctx context.Context, ac *agentConn, raw []byte) error {
	var pong protocol.HeartbeatPong
	if err := protocol.Decode(raw, &pong); err != nil {
		return err
	}

	if err := h.registry.Touch(ctx, ac.deviceID); err != nil {
		h.logger.Warn().Err(err).Str("satellite_id", ac.deviceID).Msg("Failed to record heartbeat")
	}

	if pong.Metrics == nil {
		return nil
	}

	sample := &models.DeviceMetrics{
		DeviceID:       ac.deviceID,
		Timestamp:      time.Now().UTC(),
		CPUPercent:     pong.Metrics.CPUPercent,
		MemoryPercent:  pong.Metrics.MemoryPercent,
		DiskPercent:    pong.Metrics.DiskPercent,
		NetworkRxBytes: pong.Metrics.NetworkRxBytes,
		NetworkTxBytes: pong.Metrics.NetworkTxBytes,
		ActiveSessions: pong.Metrics.ActiveSessions,
	}

	h.broadcaster.Broadcast(protocol.EventSatelliteMetrics, protocol.SatelliteMetrics{
		SatelliteID: ac.deviceID,
		Metrics:     sample,
	})

	if h.samples == nil {
		return nil
	}

	if err := h.samples.StoreDeviceMetrics(ctx, sample); err != nil {
		h.logger.Warn().Err(err).Str("satellite_id", ac.deviceID).Msg("Failed to store heartbeat metrics")
	}

	return nil
}

func (h *AgentHub) handleExecResult(ac *agentConn, raw []byte) error {
	var res protocol.ExecResult
	if err := protocol.Decode(raw, &res); err != nil {
		return err
	}

	if !h.correlator.Fulfill(res.RequestID, res.ToResult(ac.deviceID, time.Now().UTC())) {
		h.logger.Debug().Str("request_id", res.RequestID).Msg("Dropped exec result with no pending request")
	}

	return nil
}

// ownedSession returns the live session only when it belongs to the
// satellite on this connection.
func (h *AgentHub) ownedSession(ac *agentConn, sessionID string) (*models.Session, bool) {
	s, ok := h.sessions.Active(sessionID)
	if !ok || s.DeviceID != ac.deviceID {
		return nil, false
	}

	return s, true
}

func (h *AgentHub) handlePTYOutput(ac *agentConn, raw []byte) error {
	var out protocol.PTYOutput
	if err := protocol.Decode(raw, &out); err != nil {
		return err
	}

	chunk, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return fmt.Errorf("pty_output data is not base64: %w", err)
	}

	if _, ok := h.ownedSession(ac, out.SessionID); !ok {
		return nil
	}

	if h.sessions.AppendOutput(out.SessionID, chunk) {
		h.broadcaster.Broadcast(protocol.EventSessionOutput, protocol.SessionOutput{
			SessionID: out.SessionID,
			Output:    out.Data,
		})
	}

	return nil
}

func (h *AgentHub) handlePTYStarted(ctx context.Context, ac *agentConn, raw []byte) error {
	var started protocol.PTYStarted
	if err := protocol.Decode(raw, &started); err != nil {
		return err
	}

	if !started.Success {
		h.endSession(ctx, ac, started.SessionID, models.EndReasonStartFailed, nil)
		return nil
	}

	h.logger.Debug().
		Str("session_id", started.SessionID).
		Int("pid", started.PID).
		Str("satellite_id", ac.deviceID).
		Msg("PTY started")

	return nil
}

func (h *AgentHub) handlePTYEnded(ctx context.Context, ac *agentConn, raw []byte) error {
	var ended protocol.PTYEnded
	if err := protocol.Decode(raw, &ended); err != nil {
		return err
	}

	reason := ended.Reason
	if reason == "" {
		reason = models.EndReasonExited
	}

	h.endSession(ctx, ac, ended.SessionID, reason, ended.ExitCode)

	return nil
}

func (h *AgentHub) endSession(ctx context.Context, ac *agentConn, sessionID, reason string, exitCode *int) {
	s, ok := h.ownedSession(ac, sessionID)
	if !ok {
		return
	}

	if h.sessions.Terminate(ctx, sessionID, reason, exitCode) {
		announceSessionEnded(ctx, h.broadcaster, h.events, endedCopy(s, reason, exitCode))
	}
}

func (h *AgentHub) handleAgentError(ctx context.Context, ac *agentConn, raw []byte) error {
	var frame protocol.Error
	if err := protocol.Decode(raw, &frame); err != nil {
		return err
	}

	h.logger.Warn().
		Str("satellite_id", ac.deviceID).
		Str("code", frame.Error.Code).
		Str("message", frame.Error.Message).
		Str("request_id", frame.RequestID).
		Str("session_id", frame.SessionID).
		Msg("Satellite reported an error")

	if frame.Error.Code == protocol.CodePTYStartFailed && frame.SessionID != "" {
		h.endSession(ctx, ac, frame.SessionID, models.EndReasonStartFailed, nil)
		return nil
	}

	if frame.RequestID != "" {
		if owner, ok := h.correlator.DeviceFor(frame.RequestID); ok && owner == ac.deviceID {
			h.correlator.Fulfill(frame.RequestID, &models.CommandResult{
				RequestID:  frame.RequestID,
				DeviceID:   ac.deviceID,
				ExitCode:   -1,
				Error:      frame.Error.Error(),
				ReceivedAt: time.Now().UTC(),
			})
		}
	}

	return nil
}

func (h *AgentHub) disconnect(ac *agentConn) {
	ac.conn.Close()
	ac.setState(StateClosed)

	defer h.untrack(ac)

	if ac.deviceID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	stillBound := h.registry.UnbindIf(ctx, ac.deviceID, ac.conn)

	for _, s := range h.sessions.TerminateConnection(ctx, ac.deviceID, ac.conn.ID(), models.EndReasonConnectionLost) {
		announceSessionEnded(ctx, h.broadcaster, h.events, s)
	}

	if stillBound {
		h.broadcaster.Broadcast(protocol.EventSatelliteOffline, protocol.SatelliteStatus{SatelliteID: ac.deviceID})
		h.events.SatelliteDisconnected(ctx, ac.deviceID)
	}

	h.logger.Info().
		Str("satellite_id", ac.deviceID).
		Bool("superseded", !stillBound).
		Msg("Satellite disconnected")
}

// SendCommand queues frame on the satellite's live connection. It reports
// false when the satellite is offline or its queue refused the frame.
func (h *AgentHub) SendCommand(deviceID string, frame interface{}) bool {
	t, ok := h.registry.TransportFor(deviceID)
	if !ok {
		return false
	}

	if err := t.Send(frame); err != nil {
		h.logger.Warn().Err(err).Str("satellite_id", deviceID).Msg("Failed to send frame to satellite")
		return false
	}

	return true
}

// DispatchExec registers a pending result and sends an exec frame. The
// registration is rolled back when the frame cannot be delivered.
func (h *AgentHub) DispatchExec(ctx context.Context, deviceID string, req *models.ExecRequest) (string, error) {
	if !h.registry.IsOnline(deviceID) {
		return "", ErrSatelliteOffline
	}

	requestID := models.NewRequestID()
	if err := h.correlator.Register(requestID, deviceID); err != nil {
		return "", fmt.Errorf("failed to register request: %w", err)
	}

	frame := &protocol.Exec{
		Type:           protocol.TypeExec,
		RequestID:      requestID,
		Command:        req.Command,
		TimeoutSeconds: int(req.Timeout() / time.Second),
		Env:            req.Env,
	}

	if !h.SendCommand(deviceID, frame) {
		h.correlator.Forget(requestID)
		return "", ErrSendFailed
	}

	h.metrics.CommandDispatched(ctx, protocol.TypeExec)

	return requestID, nil
}

// ConnectionCount returns the number of open agent sockets, including
// ones still in the handshake.
func (h *AgentHub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// Shutdown closes every agent connection.
func (h *AgentHub) Shutdown() {
	h.mu.Lock()
	conns := make([]*agentConn, 0, len(h.conns))
	for ac := range h.conns {
		conns = append(conns, ac)
	}
	h.mu.Unlock()

	for _, ac := range conns {
		ac.conn.Close()
	}
}

func (h *AgentHub) track(ac *agentConn) {
	h.mu.Lock()
	h.conns[ac] = struct{}{}
	h.mu.Unlock()
}

func (h *AgentHub) untrack(ac *agentConn) {
	h.mu.Lock()
	delete(h.conns, ac)
	h.mu.Unlock()
}
