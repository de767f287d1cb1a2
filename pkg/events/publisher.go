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

// Package events publishes client registry changes as CloudEvents on NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
	"github.com/carverauto/hostwatch/pkg/registry"
)

const (
	eventSource = "hostwatch/collector"

	actionRegistered = "registered"
	actionUpdated    = "updated"
	actionRemoved    = "removed"
)

// Publisher forwards registry changes to JetStream. Observer callbacks only
// enqueue; a single worker publishes, so a slow or unreachable NATS server
// never blocks a collector session. When the queue is full the event is dropped.
type Publisher struct {
	js     jetstream.JetStream
	config Config
	logger logger.Logger
	now    func() time.Time

	queue     chan *models.CloudEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	published uint64
	dropped   uint64
}

var _ registry.Observer = (*Publisher)(nil)

// NewPublisher creates a publisher on an existing JetStream context and starts its worker.
func NewPublisher(js jetstream.JetStream, cfg Config, log logger.Logger) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = models.Duration(defaultPublishTimeout)
	}

	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}

	p := &Publisher{
		js:     js,
		config: cfg,
		logger: log,
		now:    time.Now,
		queue:  make(chan *models.CloudEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	p.wg.Add(1)

	go p.run()

	return p
}

// Connect dials NATS, ensures the events stream exists and returns a running publisher.
// The caller owns the returned connection.
func Connect(ctx context.Context, cfg Config, log logger.Logger, opts ...nats.Option) (*Publisher, *nats.Conn, error) {
	opts = append([]nats.Option{
		nats.Name(eventSource),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}, opts...)

	if cfg.TLS != nil {
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, nil, err
		}

		opts = append(opts, nats.Secure(tlsConfig))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, nil, err
	}

	return NewPublisher(js, cfg, log), nc, nil
}

// EnsureStream creates the events stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	if _, err := js.Stream(ctx, cfg.Stream); err == nil {
		return nil
	}

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: cfg.Subjects(),
	})
	if err != nil {
		return fmt.Errorf("failed to create or get stream %s: %w", cfg.Stream, err)
	}

	return nil
}

// ClientRegistered implements registry.Observer.
func (p *Publisher) ClientRegistered(record *registry.ClientRecord) {
	p.enqueue(actionRegistered, recordData(record, p.now()))
}

// ClientUpdated implements registry.Observer.
func (p *Publisher) ClientUpdated(record *registry.ClientRecord) {
	p.enqueue(actionUpdated, recordData(record, p.now()))
}

// ClientRemoved implements registry.Observer.
func (p *Publisher) ClientRemoved(key, sessionID string) {
	p.enqueue(actionRemoved, models.ClientEventData{
		Key:       key,
		SessionID: sessionID,
		Timestamp: p.now(),
	})
}

// Stats returns the number of events published and dropped so far.
func (p *Publisher) Stats() (published, dropped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.published, p.dropped
}

// Close stops accepting events, publishes whatever is queued and waits for
// the worker, bounded by ctx.
func (p *Publisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	finished := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordData(record *registry.ClientRecord, now time.Time) models.ClientEventData {
	data := models.ClientEventData{
		Key:       record.Key,
		SessionID: record.SessionID,
		Timestamp: now,
	}

	if s := record.Snapshot; s != nil {
		data.Host = s.Host
		data.CPUPhysical = s.CPUPhysical
		data.MemoryFreeGiB = s.MemoryFreeGiB
		data.DiskFreeGiB = s.DiskFreeGiB
	}

	return data
}

func (p *Publisher) enqueue(action string, data models.ClientEventData) {
	event := &models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            "com.carverauto.hostwatch.client." + action,
		DataContentType: "application/json",
		Subject:         p.config.SubjectPrefix + "." + action,
		Time:            &data.Timestamp,
		Data:            data,
	}

	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- event:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()

		p.logger.Warn().
			Str("subject", event.Subject).
			Str("key", data.Key).
			Msg("Event queue full, dropping client event")
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.queue:
			p.publish(event)
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case event := <-p.queue:
			p.publish(event)
		default:
			return
		}
	}
}

func (p *Publisher) publish(event *models.CloudEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", event.Subject).Msg("Failed to marshal client event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.config.PublishTimeout))
	defer cancel()

	ack, err := p.js.Publish(ctx, event.Subject, payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", event.Subject).Msg("Failed to publish client event")
		return
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	p.logger.Debug().
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published client event")
}
