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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermissionRoleTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		roles []string
		perm  Permission
		want  bool
	}{
		{"admin has everything", []string{RoleAdmin}, PermUsersDelete, true},
		{"operator executes", []string{RoleOperator}, PermSatellitesExecute, true},
		{"operator closes sessions", []string{RoleOperator}, PermSessionsDelete, true},
		{"operator cannot delete satellites", []string{RoleOperator}, PermSatellitesDelete, false},
		{"operator cannot manage users", []string{RoleOperator}, PermUsersWrite, false},
		{"viewer reads sessions", []string{RoleViewer}, PermSessionsRead, true},
		{"viewer cannot write sessions", []string{RoleViewer}, PermSessionsWrite, false},
		{"role names are case insensitive", []string{"Viewer"}, PermAuditRead, true},
		{"unknown role grants nothing", []string{"guest"}, PermSatellitesRead, false},
		{"no roles", nil, PermSatellitesRead, false},
		{"any role suffices", []string{"guest", RoleViewer}, PermMetricsRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HasPermission(tt.roles, tt.perm))
		})
	}
}

func TestAdminHoldsAllPermissions(t *testing.T) {
	t.Parallel()

	for _, p := range AllPermissions {
		assert.True(t, HasPermission([]string{RoleAdmin}, p), p)
	}
}

func TestRolePermissionsReturnsCopy(t *testing.T) {
	t.Parallel()

	perms := RolePermissions(RoleViewer)
	perms[0] = PermUsersDelete

	assert.False(t, HasPermission([]string{RoleViewer}, PermUsersDelete))
	assert.Empty(t, RolePermissions("nobody"))
	assert.True(t, IsKnownRole("OPERATOR"))
}

func TestUserCan(t *testing.T) {
	t.Parallel()

	var nilUser *User
	assert.False(t, nilUser.Can(PermSatellitesRead))

	u := &User{ID: "u1", Roles: []string{RoleViewer}}
	assert.True(t, u.Can(PermSatellitesRead))
	assert.False(t, u.Can(PermSessionsWrite))
}
