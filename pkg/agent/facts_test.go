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

package agent

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

var errCollector = errors.New("collector unavailable")

func stubFacts() *HostFacts {
	f := NewHostFacts(logger.NewTestLogger())

	f.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Platform: "debian", PlatformVersion: "12.5", KernelVersion: "6.1.0", Uptime: 3600}, nil
	}
	f.memory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 8 * mib, Available: 3 * mib, UsedPercent: 62.5}, nil
	}
	f.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 128 * gib, Free: 64 * gib, UsedPercent: 50}, nil
	}
	f.interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "lo", Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", Addrs: psnet.InterfaceAddrList{
				{Addr: "10.0.0.5/24"},
				{Addr: "fe80::1/64"},
				{Addr: "2001:db8::5/64"},
				{Addr: "garbage"},
			}},
		}, nil
	}
	f.ioCounters = func(context.Context, bool) ([]psnet.IOCountersStat, error) {
		return []psnet.IOCountersStat{{BytesRecv: 1000, BytesSent: 2000}}, nil
	}
	f.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) {
		return []float64{12.5}, nil
	}

	return f
}

func TestSystemInfo(t *testing.T) {
	info := stubFacts().SystemInfo(context.Background())

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, "debian 12.5", info.OSVersion)
	assert.Equal(t, "6.1.0", info.Kernel)
	assert.Equal(t, uint64(3600), info.UptimeSeconds)
	assert.Equal(t, uint64(8), info.MemoryTotalMB)
	assert.Equal(t, uint64(3), info.MemoryAvailableMB)
	assert.Equal(t, uint64(128), info.DiskTotalGB)
	assert.Equal(t, uint64(64), info.DiskAvailableGB)
	assert.Equal(t, []models.NetworkAddress{
		{Interface: "eth0", IPv4: "10.0.0.5"},
		{Interface: "eth0", IPv6: "2001:db8::5"},
	}, info.IPAddresses)
}

func TestSystemInfoToleratesCollectorFailures(t *testing.T) {
	f := stubFacts()
	f.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, errCollector }
	f.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errCollector }
	f.interfaces = func(context.Context) (psnet.InterfaceStatList, error) { return nil, errCollector }

	info := f.SystemInfo(context.Background())

	assert.Empty(t, info.Kernel)
	assert.Zero(t, info.MemoryTotalMB)
	assert.Nil(t, info.IPAddresses)
	assert.Equal(t, uint64(128), info.DiskTotalGB)
}

func TestSample(t *testing.T) {
	m := stubFacts().Sample(context.Background(), 2)

	assert.InDelta(t, 12.5, m.CPUPercent, 0.001)
	assert.InDelta(t, 62.5, m.MemoryPercent, 0.001)
	assert.InDelta(t, 50.0, m.DiskPercent, 0.001)
	assert.Equal(t, uint64(1000), m.NetworkRxBytes)
	assert.Equal(t, uint64(2000), m.NetworkTxBytes)
	assert.Equal(t, 2, m.ActiveSessions)
}

func TestSampleEmptyCollectors(t *testing.T) {
	f := stubFacts()
	f.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, nil }
	f.ioCounters = func(context.Context, bool) ([]psnet.IOCountersStat, error) { return nil, errCollector }

	m := f.Sample(context.Background(), 0)

	assert.Zero(t, m.CPUPercent)
	assert.Zero(t, m.NetworkRxBytes)
}
