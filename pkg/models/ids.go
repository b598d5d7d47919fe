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
	"strings"

	"github.com/google/uuid"
)

const idRandomLength = 12

// Identifier prefixes.
const (
	DeviceIDPrefix  = "sat_"
	SessionIDPrefix = "sess_"
	RequestIDPrefix = "req_"
)

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idRandomLength]
}

func NewDeviceID() string  { return DeviceIDPrefix + randomSuffix() }
func NewSessionID() string { return SessionIDPrefix + randomSuffix() }
func NewRequestID() string { return RequestIDPrefix + randomSuffix() }
