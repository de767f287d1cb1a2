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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
)

type fakeConn struct {
	closed atomic.Int32
}

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ClientRegistered(r *ClientRecord) { o.add("registered:" + r.Key) }
func (o *recordingObserver) ClientUpdated(r *ClientRecord)    { o.add("updated:" + r.Key) }
func (o *recordingObserver) ClientRemoved(key, _ string)      { o.add("removed:" + key) }

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, e)
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]string(nil), o.events...)
}

func snap(host string, cpu int, mem, disk uint64) *models.Snapshot {
	return &models.Snapshot{
		Host:             host,
		CPULogical:       cpu * 2,
		CPUPhysical:      cpu,
		MemoryFreeGiB:    mem,
		DiskFreeGiB:      disk,
		ActiveInterfaces: map[string][]string{"eth0": {"10.0.0.1"}},
	}
}

func newTestRegistry(opts ...Option) *Registry {
	return New(logger.NewTestLogger(), opts...)
}

func TestDetailOnEmptyRegistry(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	rec, err := r.Detail("203.0.113.9")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, rec)
}

func TestAveragesEmpty(t *testing.T) {
	t.Parallel()

	_, err := newTestRegistry().Averages()
	require.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestAverages(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	require.NoError(t, r.Upsert("10.0.0.1", snap("a", 4, 8, 8)))
	require.NoError(t, r.Upsert("10.0.0.2", snap("b", 8, 4, 4)))

	avg, err := r.Averages()
	require.NoError(t, err)

	assert.InDelta(t, 6.0, avg.CPUPhysical, 1e-9)
	assert.InDelta(t, 6.0, avg.MemoryFreeGiB, 1e-9)
	assert.InDelta(t, 6.0, avg.DiskFreeGiB, 1e-9)
	assert.Equal(t, 2, avg.Count)
}

func TestUpsertReplacesAndStampsTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64

	r := newTestRegistry(WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}))

	require.NoError(t, r.Upsert("10.0.0.1", snap("first", 2, 1, 1)))
	require.NoError(t, r.Upsert("10.0.0.1", snap("second", 2, 1, 1)))

	rec, err := r.Detail("10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "second", rec.Snapshot.Host)
	assert.Equal(t, base.Add(time.Second), rec.RegisteredAt)
	assert.Equal(t, base.Add(2*time.Second), rec.LastUpdatedAt)
	assert.Equal(t, 1, r.Len())
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	require.Error(t, r.Upsert("", snap("a", 1, 1, 1)))
	require.Error(t, r.Upsert("10.0.0.1", nil))
	assert.Equal(t, 0, r.Len())
}

func TestDetailReturnsCopy(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	require.NoError(t, r.Upsert("10.0.0.1", snap("a", 1, 1, 1)))

	rec, err := r.Detail("10.0.0.1")
	require.NoError(t, err)

	rec.Snapshot.Host = "mutated"
	rec.Snapshot.ActiveInterfaces["eth0"][0] = "10.9.9.9"

	again, err := r.Detail("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Snapshot.Host)
	assert.Equal(t, "10.0.0.1", again.Snapshot.ActiveInterfaces["eth0"][0])
}

func TestUpsertStoresCopy(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	s := snap("a", 1, 1, 1)
	require.NoError(t, r.Upsert("10.0.0.1", s))

	s.Host = "changed"

	rec, err := r.Detail("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Snapshot.Host)
}

func TestListSortedByAddress(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	for _, key := range []string{"10.0.0.10", "10.0.0.9", "192.168.1.1", "10.0.0.100", "pipe-peer"} {
		require.NoError(t, r.Upsert(key, snap("h-"+key, 1, 1, 1)))
	}

	list := r.List()
	keys := make([]string, 0, len(list))
	for _, s := range list {
		keys = append(keys, s.Key)
	}

	assert.Equal(t, []string{"10.0.0.9", "10.0.0.10", "10.0.0.100", "192.168.1.1", "pipe-peer"}, keys)
	assert.Equal(t, "h-10.0.0.9", list[0].Host)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	r := newTestRegistry(WithObserver(obs))

	require.NoError(t, r.Upsert("10.0.0.1", snap("a", 1, 1, 1)))
	r.Remove("10.0.0.1")
	r.Remove("10.0.0.1")

	_, err := r.Detail("10.0.0.1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"registered:10.0.0.1", "removed:10.0.0.1"}, obs.snapshot())
}

func TestRegisterReplacesAndClosesPrevious(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	r := newTestRegistry(WithObserver(obs))

	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	replaced, err := r.Register("10.0.0.1", "s1", snap("old", 1, 1, 1), oldConn)
	require.NoError(t, err)
	assert.Empty(t, replaced)

	replaced, err = r.Register("10.0.0.1", "s2", snap("new", 1, 1, 1), newConn)
	require.NoError(t, err)
	assert.Equal(t, "s1", replaced)

	assert.Equal(t, int32(1), oldConn.closed.Load())
	assert.Equal(t, int32(0), newConn.closed.Load())

	rec, err := r.Detail("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "s2", rec.SessionID)
	assert.Equal(t, "new", rec.Snapshot.Host)

	assert.Equal(t, []string{
		"registered:10.0.0.1",
		"removed:10.0.0.1",
		"registered:10.0.0.1",
	}, obs.snapshot())
}

func TestReplacedSessionCannotTouchSuccessor(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	_, err := r.Register("10.0.0.1", "s1", snap("old", 1, 1, 1), &fakeConn{})
	require.NoError(t, err)
	_, err = r.Register("10.0.0.1", "s2", snap("new", 1, 1, 1), &fakeConn{})
	require.NoError(t, err)

	err = r.Update("10.0.0.1", "s1", snap("stale", 1, 1, 1))
	require.ErrorIs(t, err, ErrNotOwner)

	assert.False(t, r.Release("10.0.0.1", "s1"))

	rec, err := r.Detail("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "new", rec.Snapshot.Host)

	assert.True(t, r.Release("10.0.0.1", "s2"))
	assert.Equal(t, 0, r.Len())
}

func TestUpdateMissingRecord(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	err := r.Update("10.0.0.1", "s1", snap("a", 1, 1, 1))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseAll(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := []*fakeConn{{}, {}, {}}

	for i, c := range conns {
		_, err := r.Register(fmt.Sprintf("10.0.0.%d", i+1), fmt.Sprintf("s%d", i), snap("h", 1, 1, 1), c)
		require.NoError(t, err)
	}

	r.CloseAll()

	for _, c := range conns {
		assert.Equal(t, int32(1), c.closed.Load())
	}

	assert.Equal(t, 3, r.Len())
}

// Concurrent writers and readers: List and Detail only ever observe keys
// that a writer committed, and always with a complete snapshot.
func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	const (
		writers    = 8
		iterations = 200
	)

	valid := make(map[string]struct{})
	for w := range writers {
		valid[fmt.Sprintf("10.1.%d.1", w)] = struct{}{}
	}

	var wg sync.WaitGroup

	stop := make(chan struct{})

	for w := range writers {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			key := fmt.Sprintf("10.1.%d.1", w)
			for i := range iterations {
				if i%3 == 2 {
					r.Remove(key)
					continue
				}

				assert.NoError(t, r.Upsert(key, snap(key, i+1, uint64(i), uint64(i))))
			}
		}(w)
	}

	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)

		for {
			select {
			case <-stop:
				return
			default:
			}

			for _, s := range r.List() {
				_, ok := valid[s.Key]
				assert.True(t, ok, "unexpected key %s", s.Key)
				assert.Equal(t, s.Key, s.Host)
			}

			if avg, err := r.Averages(); err == nil {
				assert.Positive(t, avg.Count)
				assert.Positive(t, avg.CPUPhysical)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	assert.LessOrEqual(t, r.Len(), writers)
}
