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

package metrics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != MeterName {
			continue
		}

		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}

	return 0
}

func newTestMetrics(t *testing.T, clients func() int) (*CollectorMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewCollectorMetrics(provider.Meter(MeterName), clients)
	require.NoError(t, err)

	return m, reader
}

func TestCollectorMetricsCounters(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t, func() int { return 0 })

	m.RecordRegistration(true)
	m.RecordRegistration(true)
	m.RecordRegistration(false)
	m.RecordPoll("ok", 20*time.Millisecond)
	m.RecordPoll("timeout", 5*time.Second)
	m.RecordSessionTerminated("missed_polls")

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, got[metricRegistrations], "result", "ok"))
	assert.Equal(t, int64(1), sumFor(t, got[metricRegistrations], "result", "failed"))
	assert.Equal(t, int64(1), sumFor(t, got[metricPolls], "result", "timeout"))
	assert.Equal(t, int64(1), sumFor(t, got[metricSessionsTerminated], "cause", "missed_polls"))

	hist, ok := got[metricPollDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}

	assert.Equal(t, uint64(2), count)
	assert.Equal(t, "s", got[metricPollDuration].Unit)
}

func TestCollectorMetricsConnectedGauge(t *testing.T) {
	t.Parallel()

	var clients atomic.Int64
	clients.Store(3)

	m, reader := newTestMetrics(t, func() int { return int(clients.Load()) })

	gauge, ok := collect(t, reader)[metricClientsConnected].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)

	require.NoError(t, m.Close())

	_, present := collect(t, reader)[metricClientsConnected]
	assert.False(t, present)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	t.Parallel()

	_, err := InitializeMetrics(context.Background(), Config{}, "test")
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	_, err = InitializeMetrics(context.Background(), Config{OTel: &OTelConfig{Enabled: true}}, "test")
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	require.NoError(t, Shutdown(context.Background()))
}

func TestSetupTLSConfigMissingCA(t *testing.T) {
	t.Parallel()

	_, err := setupTLSConfig(&TLSConfig{CAFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
}
