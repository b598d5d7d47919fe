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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/satellitehive/pkg/audit"
	"github.com/carverauto/satellitehive/pkg/core/auth"
	srHttp "github.com/carverauto/satellitehive/pkg/http"
	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/metrics"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/protocol"
	"github.com/carverauto/satellitehive/pkg/registry"
	"github.com/carverauto/satellitehive/pkg/sessions"
)

// ErrSessionNotFound is returned when closing a session that never existed.
var ErrSessionNotFound = errors.New("session not found")

//nolint:gochecknoglobals // fixed terminal environment for dashboard shells
var ptyEnv = map[string]string{
	"TERM": "xterm-256color",
	"LANG": "en_US.UTF-8",
}

type dashboardClient struct {
	conn *wsConn
	user *models.User

	// Broadcasts that arrive before initial_state is queued are held and
	// replayed right after it.
	mu     sync.Mutex
	joined bool
	held   [][]byte
}

func (c *dashboardClient) deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined {
		return c.conn.SendRaw(payload)
	}

	if len(c.held) >= sendQueue {
		return ErrSendQueueFull
	}

	c.held = append(c.held, payload)

	return nil
}

func (c *dashboardClient) join(initial interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.Send(initial)

	for _, payload := range c.held {
		_ = c.conn.SendRaw(payload)
	}

	c.held = nil
	c.joined = true
}

// DashboardOption configures optional collaborators of a DashboardHub.
type DashboardOption func(*DashboardHub)

func WithDashboardEvents(ev FleetEvents) DashboardOption {
	return func(h *DashboardHub) {
		if ev != nil {
			h.events = ev
		}
	}
}

func WithDashboardAudit(sink audit.Sink) DashboardOption {
	return func(h *DashboardHub) {
		if sink != nil {
			h.audit = sink
		}
	}
}

func WithDashboardMetrics(rec *metrics.Recorder) DashboardOption {
	return func(h *DashboardHub) {
		h.metrics = rec
	}
}

func WithAllowedOrigins(origins []string) DashboardOption {
	return func(h *DashboardHub) {
		h.upgrader = newUpgrader(srHttp.WebSocketOriginChecker(origins))
	}
}

// DashboardHub serves operator dashboards: initial fleet state, session
// actions and live broadcasts.
type DashboardHub struct {
	auth      auth.Authenticator
	directory registry.Directory
	sessions  *sessions.Manager
	sender    CommandSender
	upgrader  websocket.Upgrader
	logger    logger.Logger

	events  FleetEvents
	audit   audit.Sink
	metrics *metrics.Recorder

	mu      sync.RWMutex
	clients map[string]*dashboardClient
}

func NewDashboardHub(
	authenticator auth.Authenticator,
	directory registry.Directory,
	sess *sessions.Manager,
	sender CommandSender,
	log logger.Logger,
	opts ...DashboardOption,
) *DashboardHub {
	h := &DashboardHub{
		auth:      authenticator,
		directory: directory,
		sessions:  sess,
		sender:    sender,
		upgrader:  newUpgrader(srHttp.WebSocketOriginChecker(nil)),
		logger:    log,
		events:    noopEvents{},
		audit:     audit.Nop{},
		clients:   make(map[string]*dashboardClient),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *DashboardHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Dashboard websocket upgrade failed")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}

	user, err := h.auth.VerifyToken(ctx, token)
	if err != nil {
		h.reject(ctx, ws, srHttp.RemoteIP(r), err)
		return
	}

	client := &dashboardClient{conn: newWSConn(ws, srHttp.RemoteIP(r)), user: user}

	// Registered before the snapshot so no presence change falls between
	// the two; anything broadcast meanwhile follows initial_state.
	h.add(client)

	views, err := h.directory.Views(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load satellites for initial state")

		views = []models.DeviceView{}
	}

	client.join(protocol.Event{
		Event: protocol.EventInitialState,
		Data:  protocol.InitialState{Satellites: views},
	})

	go client.conn.writePump(pingPeriod)

	h.logger.Info().Str("user_id", user.ID).Str("remote_ip", client.conn.remoteIP).Msg("Dashboard connected")

	h.readLoop(ctx, client)
}

func (h *DashboardHub) reject(ctx context.Context, ws *websocket.Conn, ip string, cause error) {
	h.audit.Record(ctx, &models.AuditEntry{
		ActorType:    models.ActorUser,
		ActorIP:      ip,
		Action:       models.AuditDashboardAuthFail,
		Result:       models.AuditFailure,
		ErrorMessage: cause.Error(),
	})

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteJSON(protocol.ErrorEvent{
		Event: protocol.EventError,
		Error: protocol.ErrorBody{Code: protocol.CodeAuthFailed, Message: "Invalid or expired token"},
	})
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
	_ = ws.Close()

	h.logger.Warn().Err(cause).Str("remote_ip", ip).Msg("Rejected dashboard connection")
}

func (h *DashboardHub) readLoop(ctx context.Context, client *dashboardClient) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Str("user_id", client.user.ID).
				Msg("Recovered from dashboard connection panic")
		}

		h.remove(client)
		client.conn.Close()

		h.logger.Info().Str("user_id", client.user.ID).Msg("Dashboard disconnected")
	}()

	ws := client.conn.ws
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var req protocol.DashboardRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			_ = client.conn.Send(protocol.ErrorEvent{
				Event: protocol.EventError,
				Error: protocol.ErrorBody{Code: protocol.CodeInvalidFrame, Message: "Frame is not valid JSON"},
			})

			continue
		}

		result := h.HandleAction(ctx, client.user, &req)
		if req.RequestID != "" {
			_ = client.conn.Send(result)
		}
	}
}

// HandleAction executes one dashboard request on behalf of user.
func (h *DashboardHub) HandleAction(ctx context.Context, user *models.User, req *protocol.DashboardRequest) *protocol.ActionResult {
	perm, known := actionPermissions[req.Action]
	if !known {
		return protocol.Failure(req.RequestID, protocol.CodeUnknownAction, "Unknown action: "+req.Action)
	}

	if !user.Can(perm) {
		return protocol.Failure(req.RequestID, protocol.CodeForbidden, "Missing permission "+string(perm))
	}

	switch req.Action {
	case protocol.ActionSessionCreate:
		var data protocol.SessionCreateData
		if err := decodeData(req.Data, &data); err != nil || data.SatelliteID == "" {
			return protocol.Failure(req.RequestID, protocol.CodeInvalidRequest, "satellite_id is required")
		}

		return h.createSession(ctx, user, req.RequestID, &data)
	case protocol.ActionSessionInput:
		var data protocol.SessionInputData
		if err := decodeData(req.Data, &data); err != nil {
			return protocol.Failure(req.RequestID, protocol.CodeInvalidRequest, "Malformed session input")
		}

		if _, err := base64.StdEncoding.DecodeString(data.Input); err != nil {
			return protocol.Failure(req.RequestID, protocol.CodeInvalidRequest, "Input must be base64")
		}

		return h.forward(req.RequestID, data.SessionID,
			&protocol.PTYInput{Type: protocol.TypePTYInput, SessionID: data.SessionID, Data: data.Input})
	case protocol.ActionSessionResize:
		var data protocol.SessionResizeData
		if err := decodeData(req.Data, &data); err != nil || !models.ValidGeometry(data.Cols, data.Rows) {
			return protocol.Failure(req.RequestID, protocol.CodeInvalidRequest,
				fmt.Sprintf("cols and rows must be between 1 and %d", models.MaxSessionDimension))
		}

		return h.forward(req.RequestID, data.SessionID, &protocol.PTYResize{
			Type: protocol.TypePTYResize, SessionID: data.SessionID, Cols: data.Cols, Rows: data.Rows,
		})
	default:
		var data protocol.SessionCloseData
		if err := decodeData(req.Data, &data); err != nil || data.SessionID == "" {
			return protocol.Failure(req.RequestID, protocol.CodeInvalidRequest, "session_id is required")
		}

		if err := h.CloseSession(ctx, user, data.SessionID); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return protocol.Failure(req.RequestID, protocol.CodeSessionNotFound, "Session not found")
			}

			return protocol.Failure(req.RequestID, protocol.CodeInternalError, "Failed to close session")
		}

		return protocol.Success(req.RequestID, nil)
	}
}

//nolint:gochecknoglobals // static action table
var actionPermissions = map[string]models.Permission{
	protocol.ActionSessionCreate: models.PermSessionsWrite,
	protocol.ActionSessionInput:  models.PermSessionsWrite,
	protocol.ActionSessionResize: models.PermSessionsWrite,
	protocol.ActionSessionClose:  models.PermSessionsDelete,
}

func decodeData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return protocol.ErrMalformedFrame
	}

	return protocol.Decode(raw, dst)
}

func (h *DashboardHub) createSession(
	ctx context.Context, user *models.User, requestID string, data *protocol.SessionCreateData,
) *protocol.ActionResult {
	s, err := h.openSession(ctx, user, requestID, sessions.CreateRequest{
		DeviceID: data.SatelliteID,
		UserID:   user.ID,
		Cols:     data.Cols,
		Rows:     data.Rows,
		Shell:    data.Shell,
	})
	if err != nil {
		code, msg := createFailure(err)
		return protocol.Failure(requestID, code, msg)
	}

	return protocol.Success(requestID, protocol.SessionCreated{SessionID: s.ID})
}

// OpenSession creates a session for user and sends pty_start to the
// satellite, rolling the session back with send_failed when the frame
// cannot be delivered.
func (h *DashboardHub) OpenSession(ctx context.Context, user *models.User, req sessions.CreateRequest) (*models.Session, error) {
	req.UserID = user.ID

	return h.openSession(ctx, user, "", req)
}

func (h *DashboardHub) openSession(
	ctx context.Context, user *models.User, requestID string, req sessions.CreateRequest,
) (*models.Session, error) {
	entry := audit.UserEntry(user, models.AuditSessionCreate)
	entry.TargetType = "satellite"
	entry.TargetID = req.DeviceID

	fail := func(err error) (*models.Session, error) {
		entry.Result = models.AuditFailure
		entry.ErrorMessage = err.Error()
		h.audit.Record(ctx, entry)

		return nil, err
	}

	if !h.directory.IsOnline(req.DeviceID) {
		return fail(ErrSatelliteOffline)
	}

	s, err := h.sessions.Create(ctx, req)
	if err != nil {
		if code, _ := createFailure(err); code == protocol.CodeInternalError {
			h.logger.Error().Err(err).Str("satellite_id", req.DeviceID).Msg("Failed to create session")
		}

		return fail(err)
	}

	if requestID == "" {
		requestID = models.NewRequestID()
	}

	sent := h.sender.SendCommand(s.DeviceID, &protocol.PTYStart{
		Type:      protocol.TypePTYStart,
		RequestID: requestID,
		SessionID: s.ID,
		Shell:     s.Shell,
		Cols:      s.Cols,
		Rows:      s.Rows,
		Env:       ptyEnv,
	})
	if !sent {
		h.sessions.Terminate(ctx, s.ID, models.EndReasonSendFailed, nil)

		return fail(ErrSendFailed)
	}

	entry.Details = map[string]interface{}{"session_id": s.ID, "cols": s.Cols, "rows": s.Rows}
	h.audit.Record(ctx, entry)

	return s, nil
}

func createFailure(err error) (code, message string) {
	switch {
	case errors.Is(err, ErrSatelliteOffline), errors.Is(err, sessions.ErrDeviceOffline):
		return protocol.CodeSatelliteOffline, "Satellite is not connected"
	case errors.Is(err, ErrSendFailed):
		return protocol.CodeSendFailed, "Failed to reach satellite"
	case errors.Is(err, sessions.ErrSessionLimit):
		return protocol.CodeSessionLimit, "Too many active sessions on satellite"
	case errors.Is(err, sessions.ErrInvalidGeometry):
		return protocol.CodeInvalidRequest, "Invalid terminal size"
	default:
		return protocol.CodeInternalError, "Failed to create session"
	}
}

// forward relays a frame for an active session to its satellite.
func (h *DashboardHub) forward(requestID, sessionID string, frame interface{}) *protocol.ActionResult {
	s, ok := h.sessions.Active(sessionID)
	if !ok {
		return protocol.Failure(requestID, protocol.CodeSessionNotActive, "Session is not active")
	}

	if !h.sender.SendCommand(s.DeviceID, frame) {
		return protocol.Failure(requestID, protocol.CodeSendFailed, "Failed to reach satellite")
	}

	return protocol.Success(requestID, nil)
}

// CloseSession ends a session on behalf of user. Closing an already ended
// session succeeds; only the caller that performed the transition
// broadcasts session:ended.
func (h *DashboardHub) CloseSession(ctx context.Context, user *models.User, sessionID string) error {
	s, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return ErrSessionNotFound
		}

		return err
	}

	entry := audit.UserEntry(user, models.AuditSessionClose)
	entry.TargetType = "session"
	entry.TargetID = sessionID

	if s.Active() {
		_ = h.sender.SendCommand(s.DeviceID, &protocol.PTYEnd{Type: protocol.TypePTYEnd, SessionID: sessionID})

		if h.sessions.Terminate(ctx, sessionID, models.EndReasonUserTerminated, nil) {
			announceSessionEnded(ctx, h, h.events, endedCopy(s, models.EndReasonUserTerminated, nil))

			entry.Details = map[string]interface{}{"satellite_id": s.DeviceID}
			h.audit.Record(ctx, entry)
		}
	}

	return nil
}

// Broadcast sends event to every dashboard. A client whose queue is full
// misses the frame; other clients are unaffected.
func (h *DashboardHub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(protocol.Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*dashboardClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.deliver(payload); errors.Is(err, ErrSendQueueFull) {
			h.metrics.BroadcastDropped(context.Background())
			h.logger.Debug().Str("event", event).Str("user_id", c.user.ID).Msg("Dropped broadcast for slow dashboard")
		}
	}
}

func (h *DashboardHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown closes every dashboard connection.
func (h *DashboardHub) Shutdown() {
	h.mu.RLock()
	clients := make([]*dashboardClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *DashboardHub) add(c *dashboardClient) {
	h.mu.Lock()
	h.clients[c.conn.ID()] = c
	h.mu.Unlock()
}

func (h *DashboardHub) remove(c *dashboardClient) {
	h.mu.Lock()
	delete(h.clients, c.conn.ID())
	h.mu.Unlock()
}
