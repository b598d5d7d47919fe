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

// Package hub terminates the satellite and dashboard websocket channels.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
	sendQueue    = 256
)

var (
	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendQueueFull is returned when a peer is not draining its queue.
	ErrSendQueueFull = errors.New("send queue full")
)

// ConnState tracks an agent connection through the handshake.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// wsConn owns a websocket and its write goroutine. Only writePump writes
// to the socket once it has started.
type wsConn struct {
	id       string
	ws       *websocket.Conn
	remoteIP string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, remoteIP string) *wsConn {
	return &wsConn{
		id:       uuid.NewString(),
		ws:       ws,
		remoteIP: remoteIP,
		send:     make(chan []byte, sendQueue),
		done:     make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send marshals v and queues it for the writer.
func (c *wsConn) Send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	return c.SendRaw(payload)
}

// SendRaw queues an encoded frame without blocking.
func (c *wsConn) SendRaw(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Close stops the writer; queued frames are flushed before the socket closes.
func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *wsConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump sends queued frames until Close. A positive ping interval
// enables websocket keepalive pings.
func (c *wsConn) writePump(ping time.Duration) {
	var tick <-chan time.Time

	if ping > 0 {
		ticker := time.NewTicker(ping)
		defer ticker.Stop()

		tick = ticker.C
	}

	defer func() { _ = c.ws.Close() }()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		case <-tick:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.drain()

			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

			return
		}
	}
}

func (c *wsConn) drain() {
	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(messageType int, payload []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

	return c.ws.WriteMessage(messageType, payload)
}

func newUpgrader(check func(r *http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     check,
	}
}
