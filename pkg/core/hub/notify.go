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

	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

// Broadcaster fans an event out to every connected dashboard.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// CommandSender delivers a frame to a satellite's live connection.
type CommandSender interface {
	SendCommand(deviceID string, frame interface{}) bool
}

// FleetEvents receives presence and session lifecycle notifications.
// natsutil.EventPublisher implements it.
type FleetEvents interface {
	SatelliteConnected(ctx context.Context, view *models.DeviceView)
	SatelliteDisconnected(ctx context.Context, deviceID string)
	SessionEnded(ctx context.Context, s *models.Session)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, interface{}) {}

type noopEvents struct{}

func (noopEvents) SatelliteConnected(context.Context, *models.DeviceView) {}
func (noopEvents) SatelliteDisconnected(context.Context, string)          {}
func (noopEvents) SessionEnded(context.Context, *models.Session)          {}

// endedCopy describes s after a transition to ended.
func endedCopy(s *models.Session, reason string, exitCode *int) *models.Session {
	out := *s
	out.Status = models.SessionStatusEnded
	out.EndReason = reason
	out.ExitCode = exitCode

	return &out
}

func announceSessionEnded(ctx context.Context, b Broadcaster, ev FleetEvents, s *models.Session) {
	b.Broadcast(protocol.EventSessionEnded, protocol.SessionEnded{
		SessionID: s.ID,
		Reason:    s.EndReason,
		ExitCode:  s.ExitCode,
	})
	ev.SessionEnded(ctx, s)
}
