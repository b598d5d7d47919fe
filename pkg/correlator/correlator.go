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

// Package correlator matches asynchronous exec results to the requests that
// caused them.
package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

const DefaultRetention = 5 * time.Minute

var (
	ErrDuplicateRequest = errors.New("request id already pending")
	ErrUnknownRequest   = errors.New("unknown or expired request id")
	ErrTimeout          = errors.New("timed out waiting for command result")
)

type pending struct {
	deviceID    string
	submittedAt time.Time
	done        chan struct{}
	result      *models.CommandResult
	reaper      *time.Timer
}

// Correlator holds one pending entry per outstanding request id. Every
// entry is reaped after the retention window whether or not it was consumed.
type Correlator struct {
	retention time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	pending map[string]*pending
}

func New(retention time.Duration, log logger.Logger) *Correlator {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Correlator{
		retention: retention,
		logger:    log,
		pending:   make(map[string]*pending),
	}
}

// Register records that a result for requestID is expected from deviceID.
func (c *Correlator) Register(requestID, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[requestID]; exists {
		return ErrDuplicateRequest
	}

	p := &pending{
		deviceID:    deviceID,
		submittedAt: time.Now(),
		done:        make(chan struct{}),
	}
	p.reaper = time.AfterFunc(c.retention, func() { c.reap(requestID, p) })
	c.pending[requestID] = p

	return nil
}

func (c *Correlator) reap(requestID string, p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[requestID] == p {
		delete(c.pending, requestID)
	}
}

// Fulfill delivers a result. Unknown, expired and already fulfilled ids
// are dropped and report false.
func (c *Correlator) Fulfill(requestID string, result *models.CommandResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok || p.result != nil {
		c.logger.Debug().Str("request_id", requestID).Msg("Dropping result for unknown or fulfilled request")
		return false
	}

	if result.DeviceID != "" && result.DeviceID != p.deviceID {
		c.logger.Warn().
			Str("request_id", requestID).
			Str("expected", p.deviceID).
			Str("got", result.DeviceID).
			Msg("Dropping result from unexpected satellite")

		return false
	}

	p.result = result
	close(p.done)

	return true
}

// Await blocks until the result for requestID arrives, the timeout elapses
// or ctx is done. A delivered result is consumed.
func (c *Correlator) Await(ctx context.Context, requestID string, timeout time.Duration) (*models.CommandResult, error) {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	c.mu.Unlock()

	if !ok {
		return nil, ErrUnknownRequest
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		c.consume(requestID, p)
		return p.result, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Correlator) consume(requestID string, p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[requestID] == p {
		delete(c.pending, requestID)
		p.reaper.Stop()
	}
}

// Forget drops a registration, used when dispatch fails.
func (c *Correlator) Forget(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pending[requestID]; ok {
		p.reaper.Stop()
		delete(c.pending, requestID)
	}
}

// Pending returns the number of registrations not yet consumed or reaped.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// DeviceFor returns the satellite a pending request was sent to.
func (c *Correlator) DeviceFor(requestID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return "", false
	}

	return p.deviceID, true
}
