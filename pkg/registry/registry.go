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

// Package registry holds the collector's set of connected agents and their
// most recent snapshots.
package registry

import (
	"cmp"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
	"github.com/carverauto/hostwatch/pkg/wire"
)

// Registry is a concurrency-safe map of client key to ClientRecord. Every
// operation is linearizable; connection closes and observer callbacks happen
// outside the lock.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]*ClientRecord
	observers []Observer

	now    func() time.Time
	logger logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithObserver registers an observer for record changes.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// New creates an empty registry.
func New(log logger.Logger, opts ...Option) *Registry {
	if log == nil {
		log = logger.Global()
	}

	r := &Registry{
		clients: make(map[string]*ClientRecord),
		now:     time.Now,
		logger:  log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Upsert inserts or replaces the snapshot for key without ownership tracking.
func (r *Registry) Upsert(key string, snapshot *models.Snapshot) error {
	if key == "" {
		return errEmptyKey
	}

	if snapshot == nil {
		return errNilSnapshot
	}

	now := r.now()
	stored := snapshot.Clone()

	r.mu.Lock()

	existing, ok := r.clients[key]
	if ok {
		existing.Snapshot = stored
		existing.LastUpdatedAt = now
	} else {
		existing = &ClientRecord{
			Key:           key,
			Snapshot:      stored,
			RegisteredAt:  now,
			LastUpdatedAt: now,
		}
		r.clients[key] = existing
	}

	notify := cloneRecord(existing)

	r.mu.Unlock()

	if ok {
		r.notifyUpdated(notify)
	} else {
		r.notifyRegistered(notify)
	}

	return nil
}

// Register creates the record for key owned by sessionID. Any prior record for
// the key is replaced; its connection is closed before Register returns and
// the replaced session ID is reported.
func (r *Registry) Register(key, sessionID string, snapshot *models.Snapshot, conn io.Closer) (string, error) {
	if key == "" {
		return "", errEmptyKey
	}

	if snapshot == nil {
		return "", errNilSnapshot
	}

	now := r.now()
	record := &ClientRecord{
		Key:           key,
		SessionID:     sessionID,
		Snapshot:      snapshot.Clone(),
		RegisteredAt:  now,
		LastUpdatedAt: now,
		conn:          conn,
	}

	r.mu.Lock()
	previous := r.clients[key]
	r.clients[key] = record
	notify := cloneRecord(record)
	r.mu.Unlock()

	var replaced string

	if previous != nil {
		replaced = previous.SessionID

		r.logger.Info().
			Str("key", key).
			Str("session_id", sessionID).
			Str("replaced_session_id", replaced).
			Msg("Replacing existing client record")

		if previous.conn != nil {
			if err := previous.conn.Close(); err != nil && !wire.IsExpectedCloseError(err) {
				r.logger.Debug().Err(err).Str("key", key).Msg("Closing replaced connection")
			}
		}

		r.notifyRemoved(key, replaced)
	}

	r.notifyRegistered(notify)

	return replaced, nil
}

// Update replaces the snapshot of the record for key if sessionID still owns it.
func (r *Registry) Update(key, sessionID string, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return errNilSnapshot
	}

	now := r.now()
	stored := snapshot.Clone()

	r.mu.Lock()

	record, ok := r.clients[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if record.SessionID != sessionID {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOwner, key)
	}

	record.Snapshot = stored
	record.LastUpdatedAt = now
	notify := cloneRecord(record)

	r.mu.Unlock()

	r.notifyUpdated(notify)

	return nil
}

// Remove deletes the record for key. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) {
	r.mu.Lock()

	record, ok := r.clients[key]
	if ok {
		delete(r.clients, key)
	}

	r.mu.Unlock()

	if ok {
		r.notifyRemoved(key, record.SessionID)
	}
}

// Release deletes the record for key only if sessionID still owns it, and
// reports whether a record was deleted.
func (r *Registry) Release(key, sessionID string) bool {
	r.mu.Lock()

	record, ok := r.clients[key]
	if !ok || record.SessionID != sessionID {
		r.mu.Unlock()
		return false
	}

	delete(r.clients, key)

	r.mu.Unlock()

	r.notifyRemoved(key, sessionID)

	return true
}

// List returns a point-in-time summary of every client, ordered by address.
func (r *Registry) List() []ClientSummary {
	r.mu.RLock()

	out := make([]ClientSummary, 0, len(r.clients))
	for key, record := range r.clients {
		out = append(out, ClientSummary{
			Key:           key,
			Host:          record.Snapshot.Host,
			LastUpdatedAt: record.LastUpdatedAt,
		})
	}

	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ClientSummary) int {
		return compareKeys(a.Key, b.Key)
	})

	return out
}

// Detail returns a copy of the record for key.
func (r *Registry) Detail(key string) (*ClientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.clients[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return cloneRecord(record), nil
}

// Averages returns the mean physical CPU count, free memory and free disk
// across all clients' latest snapshots.
func (r *Registry) Averages() (Averages, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.clients) == 0 {
		return Averages{}, ErrEmptyRegistry
	}

	var cpu, memory, disk float64

	for _, record := range r.clients {
		cpu += float64(record.Snapshot.CPUPhysical)
		memory += float64(record.Snapshot.MemoryFreeGiB)
		disk += float64(record.Snapshot.DiskFreeGiB)
	}

	n := float64(len(r.clients))

	return Averages{
		CPUPhysical:   cpu / n,
		MemoryFreeGiB: memory / n,
		DiskFreeGiB:   disk / n,
		Count:         len(r.clients),
	}, nil
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// CloseAll force-closes every client's connection. Records are left in place;
// each owning session removes its own record as it terminates.
func (r *Registry) CloseAll() {
	r.mu.RLock()

	conns := make([]io.Closer, 0, len(r.clients))
	for _, record := range r.clients {
		if record.conn != nil {
			conns = append(conns, record.conn)
		}
	}

	r.mu.RUnlock()

	for _, c := range conns {
		if err := c.Close(); err != nil && !wire.IsExpectedCloseError(err) {
			r.logger.Debug().Err(err).Msg("Closing client connection")
		}
	}
}

func (r *Registry) notifyRegistered(record *ClientRecord) {
	for _, o := range r.observers {
		o.ClientRegistered(record)
	}
}

func (r *Registry) notifyUpdated(record *ClientRecord) {
	for _, o := range r.observers {
		o.ClientUpdated(record)
	}
}

func (r *Registry) notifyRemoved(key, sessionID string) {
	for _, o := range r.observers {
		o.ClientRemoved(key, sessionID)
	}
}

// compareKeys orders keys by IP address; keys that are not addresses sort
// after all addresses, lexically.
func compareKeys(a, b string) int {
	addrA, errA := netip.ParseAddr(a)
	addrB, errB := netip.ParseAddr(b)

	switch {
	case errA == nil && errB == nil:
		return addrA.Compare(addrB)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
