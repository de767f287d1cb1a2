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

package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostwatch/pkg/logger"
)

var errTestStart = errors.New("bind failed")

type fakeService struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeService) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}

	f.started.Store(true)

	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

func TestRunServiceStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunService(ctx, &ServiceOptions{
			ServiceName: "test",
			Service:     svc,
			Logger:      logger.NewTestLogger(),
		})
	}()

	require.Eventually(t, svc.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunService did not return after cancellation")
	}

	assert.True(t, svc.stopped.Load())
}

func TestRunServiceStartFailure(t *testing.T) {
	t.Parallel()

	svc := &fakeService{startErr: errTestStart}

	err := RunService(context.Background(), &ServiceOptions{ServiceName: "test", Service: svc})
	require.ErrorIs(t, err, errTestStart)
	assert.False(t, svc.stopped.Load())
}

func TestRunServiceRequiresService(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, RunService(context.Background(), &ServiceOptions{}), errServiceRequired)
}

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("agent", &logger.Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = CreateComponentLogger("agent", &logger.Config{Level: "loud"})
	require.Error(t, err)
}

func TestInitializeLoggerConfiguresFallback(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, InitializeLogger(&logger.Config{Level: "info"})) })

	require.NoError(t, InitializeLogger(&logger.Config{Level: "error", Output: "stderr"}))
	assert.False(t, logger.Global().Warn().Enabled())
	assert.True(t, logger.Global().Error().Enabled())

	require.Error(t, InitializeLogger(&logger.Config{Level: "loud"}))
}
