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

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAPIKey ActorType = "api_key"
	ActorSystem ActorType = "system"
	ActorAgent  ActorType = "agent"
)

type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailure AuditResult = "failure"
)

// Audited actions.
const (
	AuditSessionCreate     = "session.create"
	AuditSessionClose      = "session.close"
	AuditCommandExec       = "command.exec"
	AuditAgentAuthFailed   = "agent.auth_failed"
	AuditAgentConnected    = "agent.connected"
	AuditDashboardAuthFail = "dashboard.auth_failed"
)

// AuditEntry records who did what to which target.
// @Description A single audit log record.
type AuditEntry struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	ActorType    ActorType              `json:"actor_type" example:"user"`
	ActorID      string                 `json:"actor_id,omitempty"`
	ActorName    string                 `json:"actor_name,omitempty"`
	ActorIP      string                 `json:"actor_ip,omitempty"`
	Action       string                 `json:"action" example:"session.create"`
	TargetType   string                 `json:"target_type,omitempty" example:"satellite"`
	TargetID     string                 `json:"target_id,omitempty"`
	TargetName   string                 `json:"target_name,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Result       AuditResult            `json:"result" example:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// AuditFilter narrows audit listings. Zero values match everything.
type AuditFilter struct {
	ActorID  string
	Action   string
	TargetID string
	Since    time.Time
	Limit    int
}

// AuditCount is a grouped audit row count.
type AuditCount struct {
	Key   string `json:"key" example:"session.create"`
	Count int64  `json:"count" example:"42"`
}

// AuditStats groups audit activity over a look-back window.
// @Description Audit counts by action, by actor and per UTC day.
type AuditStats struct {
	PeriodDays int          `json:"period_days" example:"7"`
	ByAction   []AuditCount `json:"by_action"`
	ByActor    []AuditCount `json:"by_actor"`
	// Keys are UTC dates (YYYY-MM-DD), oldest first
	Timeline []AuditCount `json:"timeline"`
}
