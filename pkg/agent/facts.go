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
	"net/netip"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

const (
	mib      = 1 << 20
	gib      = 1 << 30
	rootPath = "/"
)

// HostFacts gathers system facts and resource samples through gopsutil.
type HostFacts struct {
	log        logger.Logger
	hostInfo   func(context.Context) (*host.InfoStat, error)
	memory     func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(context.Context, string) (*disk.UsageStat, error)
	interfaces func(context.Context) (psnet.InterfaceStatList, error)
	ioCounters func(context.Context, bool) ([]psnet.IOCountersStat, error)
	cpuPercent func(context.Context, time.Duration, bool) ([]float64, error)
}

func NewHostFacts(log logger.Logger) *HostFacts {
	return &HostFacts{
		log:        log,
		hostInfo:   host.InfoWithContext,
		memory:     mem.VirtualMemoryWithContext,
		diskUsage:  disk.UsageWithContext,
		interfaces: psnet.InterfacesWithContext,
		ioCounters: psnet.IOCountersWithContext,
		cpuPercent: cpu.PercentWithContext,
	}
}

// SystemInfo describes the host for the handshake. Collector failures leave
// the affected fields empty.
func (f *HostFacts) SystemInfo(ctx context.Context) models.SystemInfo {
	info := models.SystemInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hi, err := f.hostInfo(ctx); err != nil {
		f.log.Debug().Err(err).Msg("host info unavailable")
	} else {
		info.OSVersion = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
		info.Kernel = hi.KernelVersion
		info.UptimeSeconds = hi.Uptime
	}

	if vm, err := f.memory(ctx); err != nil {
		f.log.Debug().Err(err).Msg("memory stats unavailable")
	} else {
		info.MemoryTotalMB = vm.Total / mib
		info.MemoryAvailableMB = vm.Available / mib
	}

	if du, err := f.diskUsage(ctx, rootPath); err != nil {
		f.log.Debug().Err(err).Msg("disk usage unavailable")
	} else {
		info.DiskTotalGB = du.Total / gib
		info.DiskAvailableGB = du.Free / gib
	}

	info.IPAddresses = f.addresses(ctx)

	return info
}

func (f *HostFacts) addresses(ctx context.Context) []models.NetworkAddress {
	ifaces, err := f.interfaces(ctx)
	if err != nil {
		f.log.Debug().Err(err).Msg("interface list unavailable")
		return nil
	}

	var out []models.NetworkAddress

	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}

			addr := prefix.Addr()
			if addr.IsLoopback() || addr.IsLinkLocalUnicast() {
				continue
			}

			na := models.NetworkAddress{Interface: iface.Name}
			if addr.Is4() {
				na.IPv4 = addr.String()
			} else {
				na.IPv6 = addr.String()
			}

			out = append(out, na)
		}
	}

	return out
}

// Sample takes the resource snapshot attached to heartbeat pongs. CPU usage
// is measured since the previous call, so the first sample may read zero.
func (f *HostFacts) Sample(ctx context.Context, activeSessions int) *protocol.HeartbeatMetrics {
	m := &protocol.HeartbeatMetrics{ActiveSessions: activeSessions}

	if pct, err := f.cpuPercent(ctx, 0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}

	if vm, err := f.memory(ctx); err == nil {
		m.MemoryPercent = vm.UsedPercent
	}

	if du, err := f.diskUsage(ctx, rootPath); err == nil {
		m.DiskPercent = du.UsedPercent
	}

	if counters, err := f.ioCounters(ctx, false); err == nil && len(counters) > 0 {
		m.NetworkRxBytes = counters[0].BytesRecv
		m.NetworkTxBytes = counters[0].BytesSent
	}

	return m
}
