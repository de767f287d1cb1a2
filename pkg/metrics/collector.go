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

// Package metrics exposes collector activity as OpenTelemetry instruments.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every collector instrument.
const MeterName = "hostwatch/collector"

const (
	metricClientsConnected   = "hostwatch.clients.connected"
	metricPolls              = "hostwatch.polls"
	metricRegistrations      = "hostwatch.registrations"
	metricSessionsTerminated = "hostwatch.sessions.terminated"
	metricPollDuration       = "hostwatch.poll.duration"
)

// CollectorMetrics records session outcomes. It satisfies collector.Recorder.
type CollectorMetrics struct {
	polls         metric.Int64Counter
	registrations metric.Int64Counter
	terminated    metric.Int64Counter
	pollDuration  metric.Float64Histogram
	registration  metric.Registration
}

// NewCollectorMetrics creates the collector instruments on meter. clients is
// sampled for the connected-clients gauge on every collection.
func NewCollectorMetrics(meter metric.Meter, clients func() int) (*CollectorMetrics, error) {
	m := &CollectorMetrics{}

	var err error

	m.polls, err = meter.Int64Counter(metricPolls,
		metric.WithDescription("Poll cycles by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPolls, err)
	}

	m.registrations, err = meter.Int64Counter(metricRegistrations,
		metric.WithDescription("Client registration attempts by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRegistrations, err)
	}

	m.terminated, err = meter.Int64Counter(metricSessionsTerminated,
		metric.WithDescription("Collector sessions ended, by cause"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSessionsTerminated, err)
	}

	m.pollDuration, err = meter.Float64Histogram(metricPollDuration,
		metric.WithDescription("Time from sending a poll to its outcome"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPollDuration, err)
	}

	connected, err := meter.Int64ObservableGauge(metricClientsConnected,
		metric.WithDescription("Clients currently registered"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricClientsConnected, err)
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(connected, int64(clients()))
		return nil
	}, connected)
	if err != nil {
		return nil, fmt.Errorf("register %s callback: %w", metricClientsConnected, err)
	}

	return m, nil
}

// RecordRegistration counts one registration attempt.
func (m *CollectorMetrics) RecordRegistration(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}

	m.registrations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordPoll counts one poll cycle and its duration.
func (m *CollectorMetrics) RecordPoll(result string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))

	m.polls.Add(context.Background(), 1, attrs)
	m.pollDuration.Record(context.Background(), elapsed.Seconds(), attrs)
}

// RecordSessionTerminated counts one ended session.
func (m *CollectorMetrics) RecordSessionTerminated(cause string) {
	m.terminated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cause", cause)))
}

// Close unregisters the gauge callback.
func (m *CollectorMetrics) Close() error {
	if m.registration == nil {
		return nil
	}

	return m.registration.Unregister()
}
