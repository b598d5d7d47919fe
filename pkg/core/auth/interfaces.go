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

package auth

import (
	"context"

	"github.com/carverauto/satellitehive/pkg/models"
)

//go:generate mockgen -destination=mock_auth.go -package=auth github.com/carverauto/satellitehive/pkg/core/auth Authenticator

// Authenticator validates the bearer credentials presented by dashboards
// and REST clients.
type Authenticator interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
	VerifyAPIKey(ctx context.Context, key string) (*models.User, error)
}
