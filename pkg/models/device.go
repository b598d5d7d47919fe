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

// Package models holds the types shared by the hub, its store and its API.
package models

import (
	"time"
)

// DeviceStatus is the persisted presence of a satellite.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// NetworkAddress is one address bound to a host interface.
type NetworkAddress struct {
	Interface string `json:"interface"`
	IPv4      string `json:"ipv4,omitempty"`
	IPv6      string `json:"ipv6,omitempty"`
}

// SystemInfo describes the host a satellite agent runs on.
// @Description Host facts reported by a satellite during handshake.
type SystemInfo struct {
	Hostname          string           `json:"hostname,omitempty" example:"edge-01"`
	OS                string           `json:"os,omitempty" example:"linux"`
	OSVersion         string           `json:"os_version,omitempty" example:"debian 12.5"`
	Arch              string           `json:"arch,omitempty" example:"amd64"`
	Kernel            string           `json:"kernel,omitempty" example:"6.1.0-18-amd64"`
	UptimeSeconds     uint64           `json:"uptime_seconds,omitempty" example:"86400"`
	CPUCores          int              `json:"cpu_cores,omitempty" example:"4"`
	MemoryTotalMB     uint64           `json:"memory_total_mb,omitempty" example:"8192"`
	MemoryAvailableMB uint64           `json:"memory_available_mb,omitempty" example:"4096"`
	DiskTotalGB       uint64           `json:"disk_total_gb,omitempty" example:"128"`
	DiskAvailableGB   uint64           `json:"disk_available_gb,omitempty" example:"64"`
	IPAddresses       []NetworkAddress `json:"ip_addresses,omitempty"`
}

// Device is the authoritative record of a satellite.
// @Description A managed satellite and its last reported facts.
type Device struct {
	// Unique satellite identifier (sat_ prefix)
	ID   string `json:"id" example:"sat_1a2b3c4d5e6f"`
	Name string `json:"name" example:"edge-01"`
	// bcrypt hash of the enrolment credential; never sent to clients
	CredentialHash string       `json:"-"`
	Tags           []string     `json:"tags"`
	Capabilities   []string     `json:"capabilities"`
	System         SystemInfo   `json:"system"`
	AgentVersion   string       `json:"agent_version,omitempty" example:"1.4.0"`
	LastIP         string       `json:"last_ip,omitempty" example:"10.0.0.12"`
	Status         DeviceStatus `json:"status" example:"online"`
	FirstSeen      time.Time    `json:"first_seen"`
	LastSeen       time.Time    `json:"last_seen"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasTag reports whether the device carries tag.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// DeviceView is a device annotated with live presence, as sent to dashboards.
type DeviceView struct {
	*Device
	IsOnline bool `json:"is_online"`
}

// DeviceMetrics is one heartbeat sample reported by a satellite.
// @Description Resource usage sample attached to a heartbeat.
type DeviceMetrics struct {
	DeviceID       string    `json:"device_id"`
	Timestamp      time.Time `json:"timestamp"`
	CPUPercent     float64   `json:"cpu_percent" example:"12.5"`
	MemoryPercent  float64   `json:"memory_percent" example:"41.2"`
	DiskPercent    float64   `json:"disk_percent" example:"63.0"`
	NetworkRxBytes uint64    `json:"network_rx_bytes"`
	NetworkTxBytes uint64    `json:"network_tx_bytes"`
	ActiveSessions int       `json:"active_sessions"`
}

// MetricsAggregate summarises a satellite's samples over a window.
// @Description Averages and peaks of heartbeat samples.
type MetricsAggregate struct {
	DeviceID    string  `json:"device_id"`
	Hours       int     `json:"hours" example:"24"`
	SampleCount int64   `json:"sample_count" example:"2880"`
	AvgCPU      float64 `json:"avg_cpu" example:"14.2"`
	MaxCPU      float64 `json:"max_cpu" example:"97.0"`
	AvgMemory   float64 `json:"avg_memory" example:"40.1"`
	MaxMemory   float64 `json:"max_memory" example:"71.9"`
	AvgDisk     float64 `json:"avg_disk" example:"63.0"`
	MaxDisk     float64 `json:"max_disk" example:"63.4"`
}

// FleetMetric is the latest sample of one online satellite.
type FleetMetric struct {
	*DeviceMetrics
	SatelliteName string `json:"satellite_name"`
}

// FleetSummary is the fleet-wide metrics overview.
// @Description Satellite counts and the latest sample of every online satellite.
type FleetSummary struct {
	TotalSatellites  int           `json:"total_satellites" example:"12"`
	OnlineSatellites int           `json:"online_satellites" example:"10"`
	Metrics          []FleetMetric `json:"metrics"`
}
