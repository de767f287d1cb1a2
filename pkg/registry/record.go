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

package registry

import (
	"io"
	"time"

	"github.com/carverauto/hostwatch/pkg/models"
)

// ClientRecord is the collector's view of one connected agent.
type ClientRecord struct {
	// Key is the agent's network address (source IP).
	Key string `json:"key"`
	// SessionID identifies the collector session that owns the record.
	SessionID     string           `json:"session_id"`
	Snapshot      *models.Snapshot `json:"snapshot"`
	RegisteredAt  time.Time        `json:"registered_at"`
	LastUpdatedAt time.Time        `json:"last_updated_at"`

	conn io.Closer
}

// ClientSummary is one row of List.
type ClientSummary struct {
	Key           string    `json:"key"`
	Host          string    `json:"host"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Averages aggregates the latest snapshot of every registered client.
type Averages struct {
	CPUPhysical   float64 `json:"cpu_physical"`
	MemoryFreeGiB float64 `json:"memory_free_gib"`
	DiskFreeGiB   float64 `json:"disk_free_gib"`
	Count         int     `json:"count"`
}

// Observer receives registry changes. Callbacks run on the mutating goroutine
// after the registry lock has been released and must not block.
type Observer interface {
	ClientRegistered(record *ClientRecord)
	ClientUpdated(record *ClientRecord)
	ClientRemoved(key, sessionID string)
}

func cloneRecord(r *ClientRecord) *ClientRecord {
	if r == nil {
		return nil
	}

	c := *r
	c.Snapshot = r.Snapshot.Clone()
	c.conn = nil

	return &c
}
