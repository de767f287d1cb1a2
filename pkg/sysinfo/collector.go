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

// Package sysinfo builds host snapshots from the local operating system using gopsutil.
package sysinfo

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
)

const (
	bytesPerGiB   = 1 << 30
	statusListen  = "LISTEN"
	interfaceUp   = "up"
	connKindTCP   = "tcp"
	connKindUDP   = "udp"
	maxPortNumber = 65535
)

// source is the set of OS probes a Collector reads. Tests substitute fakes.
type source struct {
	hostInfo      func(ctx context.Context) (*host.InfoStat, error)
	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	interfaces    func(ctx context.Context) (psnet.InterfaceStatList, error)
	connections   func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)
}

func gopsutilSource() source {
	return source{
		hostInfo:      host.InfoWithContext,
		cpuCounts:     cpu.CountsWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		interfaces:    psnet.InterfacesWithContext,
		connections:   psnet.ConnectionsWithContext,
	}
}

// Collector gathers a models.Snapshot of the local host. It satisfies
// agent.SnapshotCollector.
type Collector struct {
	diskPath string
	src      source
	now      func() time.Time
	logger   logger.Logger
}

// NewCollector returns a collector that reports free space on diskPath.
func NewCollector(diskPath string, log logger.Logger) *Collector {
	return &Collector{
		diskPath: diskPath,
		src:      gopsutilSource(),
		now:      time.Now,
		logger:   log,
	}
}

// Collect takes one snapshot. Any probe failure fails the whole snapshot.
func (c *Collector) Collect(ctx context.Context) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{CapturedAt: c.now().UTC()}

	hostname, err := c.hostname(ctx)
	if err != nil {
		return nil, err
	}

	snapshot.Host = hostname

	if snapshot.CPULogical, err = c.src.cpuCounts(ctx, true); err != nil {
		return nil, fmt.Errorf("logical cpu count: %w", err)
	}

	if snapshot.CPUPhysical, err = c.src.cpuCounts(ctx, false); err != nil {
		return nil, fmt.Errorf("physical cpu count: %w", err)
	}

	if snapshot.CPUPhysical <= 0 {
		// Some virtualised hosts expose no core topology.
		c.logger.Debug().Int("logical", snapshot.CPULogical).Msg("Physical core count unavailable, using logical count")
		snapshot.CPUPhysical = snapshot.CPULogical
	}

	vm, err := c.src.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	snapshot.MemoryFreeGiB = vm.Available / bytesPerGiB

	usage, err := c.src.diskUsage(ctx, c.diskPath)
	if err != nil {
		return nil, fmt.Errorf("disk usage of %s: %w", c.diskPath, err)
	}

	snapshot.DiskFreeGiB = usage.Free / bytesPerGiB

	ifaces, err := c.src.interfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("network interfaces: %w", err)
	}

	snapshot.ActiveInterfaces, snapshot.DisabledInterfaces = splitInterfaces(ifaces)

	if snapshot.TCPListenPorts, err = c.listenPorts(ctx, connKindTCP); err != nil {
		return nil, err
	}

	if snapshot.UDPListenPorts, err = c.listenPorts(ctx, connKindUDP); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (c *Collector) hostname(ctx context.Context) (string, error) {
	info, err := c.src.hostInfo(ctx)
	if err == nil && info != nil && info.Hostname != "" {
		return info.Hostname, nil
	}

	name, osErr := os.Hostname()
	if osErr != nil {
		return "", fmt.Errorf("hostname: %w", osErr)
	}

	return name, nil
}

// splitInterfaces separates interfaces that are up with at least one IPv4
// address from the rest.
func splitInterfaces(ifaces psnet.InterfaceStatList) (map[string][]string, []string) {
	active := make(map[string][]string)
	disabled := make([]string, 0)

	for _, iface := range ifaces {
		addrs := ipv4Addrs(iface.Addrs)

		if slices.Contains(iface.Flags, interfaceUp) && len(addrs) > 0 {
			active[iface.Name] = addrs
			continue
		}

		disabled = append(disabled, iface.Name)
	}

	slices.Sort(disabled)

	return active, slices.Compact(disabled)
}

func ipv4Addrs(list psnet.InterfaceAddrList) []string {
	var out []string

	for _, a := range list {
		// Addresses are reported in CIDR form.
		raw, _, _ := strings.Cut(a.Addr, "/")

		ip, err := netip.ParseAddr(raw)
		if err != nil || !ip.Is4() {
			continue
		}

		out = append(out, ip.String())
	}

	return out
}

// listenPorts returns the sorted local ports of listening TCP sockets or
// unconnected UDP sockets.
func (c *Collector) listenPorts(ctx context.Context, kind string) ([]int, error) {
	conns, err := c.src.connections(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%s connections: %w", kind, err)
	}

	ports := make([]int, 0)

	for _, conn := range conns {
		if !isListening(kind, conn) {
			continue
		}

		if conn.Laddr.Port > maxPortNumber {
			continue
		}

		ports = append(ports, int(conn.Laddr.Port))
	}

	slices.Sort(ports)

	return slices.Compact(ports), nil
}

func isListening(kind string, conn psnet.ConnectionStat) bool {
	if kind == connKindTCP {
		return conn.Status == statusListen
	}

	return conn.Raddr.IP == "" || conn.Raddr.Port == 0
}
