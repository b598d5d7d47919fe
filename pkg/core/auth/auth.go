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

// Package auth verifies dashboard and REST credentials and gates handlers
// on role permissions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/carverauto/satellitehive/pkg/models"
)

var (
	ErrMissingCredentials      = errors.New("missing credentials")
	ErrInvalidToken            = errors.New("invalid token")
	ErrInvalidAPIKey           = errors.New("invalid API key")
	ErrUnknownRole             = errors.New("token carries no known role")
	errUnexpectedSigningMethod = errors.New("unexpected signing method")
)

const apiKeyUserID = "api-key"

// Auth verifies HS256 bearer tokens and the static admin API key.
type Auth struct {
	config *models.AuthConfig
}

var _ Authenticator = (*Auth)(nil)

func NewAuth(config *models.AuthConfig) *Auth {
	return &Auth{config: config}
}

func (a *Auth) VerifyToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}

	claims, err := ParseJWT(token, a.config.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	known := false

	for _, role := range claims.Roles {
		if models.IsKnownRole(role) {
			known = true
			break
		}
	}

	if !known {
		return nil, ErrUnknownRole
	}

	user := &models.User{
		ID:        claims.Subject,
		Name:      claims.Name,
		Roles:     claims.Roles,
		ActorType: models.ActorUser,
	}

	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}

	return user, nil
}

// VerifyAPIKey accepts the configured admin key and grants the admin role.
// With no key configured every key is rejected.
func (a *Auth) VerifyAPIKey(_ context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrMissingCredentials
	}

	if a.config.AdminAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(a.config.AdminAPIKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	return &models.User{
		ID:        apiKeyUserID,
		Name:      "admin API key",
		Roles:     []string{string(models.RoleAdmin)},
		ActorType: models.ActorAPIKey,
	}, nil
}
