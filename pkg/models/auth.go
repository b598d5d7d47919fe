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

package models

import "time"

// User is the authenticated principal behind a dashboard or REST request.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Roles     []string  `json:"roles"`
	ActorType ActorType `json:"actor_type"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Can reports whether the user holds perm through any of its roles.
func (u *User) Can(perm Permission) bool {
	if u == nil {
		return false
	}

	return HasPermission(u.Roles, perm)
}
