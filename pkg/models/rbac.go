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

import "strings"

// Permission is a resource:action pair checked before privileged operations.
type Permission string

const (
	PermSatellitesRead    Permission = "satellites:read"
	PermSatellitesWrite   Permission = "satellites:write"
	PermSatellitesDelete  Permission = "satellites:delete"
	PermSatellitesExecute Permission = "satellites:execute"
	PermSessionsRead      Permission = "sessions:read"
	PermSessionsWrite     Permission = "sessions:write"
	PermSessionsDelete    Permission = "sessions:delete"
	PermProvisionRead     Permission = "provision:read"
	PermProvisionWrite    Permission = "provision:write"
	PermProvisionDelete   Permission = "provision:delete"
	PermAuditRead         Permission = "audit:read"
	PermMetricsRead       Permission = "metrics:read"
	PermUsersRead         Permission = "users:read"
	PermUsersWrite        Permission = "users:write"
	PermUsersDelete       Permission = "users:delete"
)

// Role names.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// AllPermissions lists every permission known to the hub.
var AllPermissions = []Permission{
	PermSatellitesRead, PermSatellitesWrite, PermSatellitesDelete, PermSatellitesExecute,
	PermSessionsRead, PermSessionsWrite, PermSessionsDelete,
	PermProvisionRead, PermProvisionWrite, PermProvisionDelete,
	PermAuditRead, PermMetricsRead,
	PermUsersRead, PermUsersWrite, PermUsersDelete,
}

//nolint:gochecknoglobals // static role table
var rolePermissions = map[string][]Permission{
	RoleAdmin: AllPermissions,
	RoleOperator: {
		PermSatellitesRead, PermSatellitesWrite, PermSatellitesExecute,
		PermSessionsRead, PermSessionsWrite, PermSessionsDelete,
		PermProvisionRead, PermAuditRead, PermMetricsRead,
	},
	RoleViewer: {
		PermSatellitesRead, PermSessionsRead, PermAuditRead, PermMetricsRead,
	},
}

// RolePermissions returns the permissions granted to role, or nil for unknown roles.
func RolePermissions(role string) []Permission {
	perms := rolePermissions[strings.ToLower(role)]
	out := make([]Permission, len(perms))
	copy(out, perms)

	return out
}

// IsKnownRole reports whether role appears in the role table.
func IsKnownRole(role string) bool {
	_, ok := rolePermissions[strings.ToLower(role)]
	return ok
}

// HasPermission reports whether any of roles grants perm. Unknown roles grant nothing.
func HasPermission(roles []string, perm Permission) bool {
	for _, role := range roles {
		for _, p := range rolePermissions[strings.ToLower(role)] {
			if p == perm {
				return true
			}
		}
	}

	return false
}
