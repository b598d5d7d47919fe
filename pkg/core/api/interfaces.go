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

// Package api pkg/core/api/interfaces.go
package api

import (
	"context"

	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/sessions"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/satellitehive/pkg/core/api CommandDispatcher,SessionController

// CommandDispatcher sends exec requests to satellites.
type CommandDispatcher interface {
	DispatchExec(ctx context.Context, deviceID string, req *models.ExecRequest) (string, error)
}

// SessionController opens and ends terminal sessions on behalf of a user.
type SessionController interface {
	OpenSession(ctx context.Context, user *models.User, req sessions.CreateRequest) (*models.Session, error)
	CloseSession(ctx context.Context, user *models.User, sessionID string) error
}
