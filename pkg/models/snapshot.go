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

// Package models holds the data types exchanged between hostwatch agents and the collector.
package models

import (
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"time"
)

// ErrInvalidSnapshot is returned by Snapshot.Validate.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

const maxPort = 65535

// Snapshot is one capture of a host's resource state. A Snapshot is treated as
// immutable once built; holders that need to keep it across goroutines store a Clone.
type Snapshot struct {
	Host               string              `json:"host"`
	CPULogical         int                 `json:"cpu_logical"`
	CPUPhysical        int                 `json:"cpu_physical"`
	MemoryFreeGiB      uint64              `json:"memory_free_gib"`
	DiskFreeGiB        uint64              `json:"disk_free_gib"`
	ActiveInterfaces   map[string][]string `json:"active_interfaces"`
	DisabledInterfaces []string            `json:"disabled_interfaces"`
	TCPListenPorts     []int               `json:"tcp_listen_ports"`
	UDPListenPorts     []int               `json:"udp_listen_ports"`
	CapturedAt         time.Time           `json:"captured_at"`
}

// Validate checks the invariants a snapshot must satisfy before it is registered.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}

	if s.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidSnapshot)
	}

	if s.CPULogical <= 0 || s.CPUPhysical <= 0 {
		return fmt.Errorf("%w: cpu counts must be positive (logical=%d physical=%d)",
			ErrInvalidSnapshot, s.CPULogical, s.CPUPhysical)
	}

	for name, addrs := range s.ActiveInterfaces {
		if len(addrs) == 0 {
			return fmt.Errorf("%w: active interface %q has no addresses", ErrInvalidSnapshot, name)
		}

		for _, addr := range addrs {
			ip, err := netip.ParseAddr(addr)
			if err != nil || !ip.Is4() {
				return fmt.Errorf("%w: interface %q address %q is not IPv4", ErrInvalidSnapshot, name, addr)
			}
		}
	}

	if err := validatePorts("tcp", s.TCPListenPorts); err != nil {
		return err
	}

	return validatePorts("udp", s.UDPListenPorts)
}

func validatePorts(proto string, ports []int) error {
	for _, p := range ports {
		if p < 0 || p > maxPort {
			return fmt.Errorf("%w: %s port %d out of range", ErrInvalidSnapshot, proto, p)
		}
	}

	return nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	c := *s
	c.DisabledInterfaces = slices.Clone(s.DisabledInterfaces)
	c.TCPListenPorts = slices.Clone(s.TCPListenPorts)
	c.UDPListenPorts = slices.Clone(s.UDPListenPorts)

	if s.ActiveInterfaces != nil {
		c.ActiveInterfaces = make(map[string][]string, len(s.ActiveInterfaces))
		for name, addrs := range s.ActiveInterfaces {
			c.ActiveInterfaces[name] = slices.Clone(addrs)
		}
	}

	return &c
}

// InterfaceNames returns the active interface names in sorted order.
func (s *Snapshot) InterfaceNames() []string {
	return slices.Sorted(maps.Keys(s.ActiveInterfaces))
}
