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

// Package agent connects to a hostwatch collector, registers the local host
// with a snapshot and answers every poll with a fresh one. Lost connections
// are re-established after a fixed backoff.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
	"github.com/carverauto/hostwatch/pkg/wire"
)

// DialFunc opens the transport to the collector.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Agent is the client side of the poll protocol. It implements lifecycle.Service.
type Agent struct {
	config    *Config
	collector SnapshotCollector
	logger    logger.Logger
	dial      DialFunc

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Agent.
type Option func(*Agent)

// WithDialer overrides how the collector connection is opened.
func WithDialer(dial DialFunc) Option {
	return func(a *Agent) {
		a.dial = dial
	}
}

// New creates an agent. The configuration must already be validated.
func New(cfg *Config, collector SnapshotCollector, log logger.Logger, opts ...Option) (*Agent, error) {
	if collector == nil {
		return nil, errCollectorRequired
	}

	a := &Agent{
		config:    cfg,
		collector: collector,
		logger:    log,
	}

	dialer := &net.Dialer{Timeout: time.Duration(cfg.ConnectTimeout)}
	a.dial = dialer.DialContext

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// State returns the current connection state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	if prev := State(a.state.Swap(int32(s))); prev != s {
		a.logger.Debug().
			Str("from", prev.String()).
			Str("state", s.String()).
			Msg("Agent state changed")
	}
}

// Run connects, serves and reconnects until ctx is cancelled or Stop is
// called. It returns nil on cancellation.
func (a *Agent) Run(ctx context.Context) error {
	ctx, done, err := a.begin(ctx)
	if err != nil {
		return err
	}

	defer a.end(done)

	a.loop(ctx)

	return nil
}

// Start implements the lifecycle.Service interface. The agent runs in the
// background until Stop.
func (a *Agent) Start(ctx context.Context) error {
	runCtx, done, err := a.begin(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	go func() {
		defer a.end(done)

		a.loop(runCtx)
	}()

	return nil
}

func (a *Agent) begin(parent context.Context) (context.Context, chan struct{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil, nil, errAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.done = make(chan struct{})

	return ctx, a.done, nil
}

func (a *Agent) end(done chan struct{}) {
	a.mu.Lock()
	a.cancel()
	a.cancel = nil
	a.mu.Unlock()

	close(done)
}

func (a *Agent) loop(ctx context.Context) {
	backoff := time.Duration(a.config.ReconnectBackoff)

	a.logger.Info().
		Str("collector", a.config.CollectorEndpoint()).
		Dur("reconnect_backoff", backoff).
		Msg("Agent starting")

	defer func() {
		a.logger.Info().Msg("Agent stopped")
	}()

	for {
		err := a.runSession(ctx)
		if ctx.Err() != nil {
			return
		}

		a.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Collector session ended")

		timer := time.NewTimer(backoff)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels the running loop and waits for it to exit, bounded by ctx.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runSession runs one connection from dial to disconnect.
func (a *Agent) runSession(ctx context.Context) error {
	defer a.setState(StateDisconnected)

	a.setState(StateConnecting)

	conn, err := a.dial(ctx, "tcp", a.config.CollectorEndpoint())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, a.config.CollectorEndpoint(), err)
	}

	ch := wire.NewChannel(conn, wire.WithWriteTimeout(time.Duration(a.config.WriteTimeout)))

	defer func() {
		if err := ch.Close(); err != nil && !wire.IsExpectedCloseError(err) {
			a.logger.Debug().Err(err).Msg("Error closing collector connection")
		}
	}()

	log := logger.New(a.logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger())

	snapshot, err := a.collect(ctx)
	if err != nil {
		return err
	}

	if err := ch.SendSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	a.setState(StateRegistered)
	log.Info().Str("host", snapshot.Host).Msg("Registered with collector")

	return a.serve(ctx, ch, log)
}

func (a *Agent) serve(ctx context.Context, ch *wire.Channel, log logger.Logger) error {
	receiveTimeout := time.Duration(a.config.ReceiveTimeout)
	maxIdle := time.Duration(a.config.MaxIdle)
	lastActivity := time.Now()

	for {
		msg, err := ch.Receive(ctx, receiveTimeout)

		switch {
		case err == nil && msg.IsPoll():
			lastActivity = time.Now()

			if err := a.answerPoll(ctx, ch, log); err != nil {
				return err
			}

		case err == nil:
			lastActivity = time.Now()

			log.Warn().Str("frame", msg.Type.String()).Msg("Ignoring unexpected frame from collector")

		case ctx.Err() != nil:
			return ctx.Err()

		case errors.Is(err, wire.ErrTimeout):
			if maxIdle > 0 && time.Since(lastActivity) >= maxIdle {
				return fmt.Errorf("%w (%s)", errIdleTimeout, maxIdle)
			}

		default:
			return err
		}
	}
}

// answerPoll replies with a fresh snapshot. A failed collection is skipped so
// the collector simply sees a missed poll; a failed send ends the session.
func (a *Agent) answerPoll(ctx context.Context, ch *wire.Channel, log logger.Logger) error {
	snapshot, err := a.collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn().Err(err).Msg("Skipping poll reply")

		return nil
	}

	if err := ch.SendSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("send poll reply: %w", err)
	}

	a.setState(StateServing)

	return nil
}

func (a *Agent) collect(ctx context.Context) (*models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.config.CollectTimeout))
	defer cancel()

	snapshot, err := a.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}

	return snapshot, nil
}
