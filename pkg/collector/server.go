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

// Package collector accepts agent connections, registers each agent in the
// client registry and polls it for fresh snapshots until the session ends.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/registry"
)

const acceptRetryDelay = 100 * time.Millisecond

// KeyFunc derives the registry key for a connection from its peer address.
type KeyFunc func(addr net.Addr) string

// Server is the collector's acceptor. It implements lifecycle.Service.
type Server struct {
	config   *Config
	registry *registry.Registry
	clock    Clock
	recorder Recorder
	keyFunc  KeyFunc
	logger   logger.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	stopOnce sync.Once

	acceptWg  sync.WaitGroup
	sessionWg sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithClock overrides the clock used for poll scheduling.
func WithClock(clock Clock) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithRecorder reports session outcomes to r.
func WithRecorder(r Recorder) ServerOption {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithKeyFunc overrides how connections are keyed in the registry.
func WithKeyFunc(fn KeyFunc) ServerOption {
	return func(s *Server) {
		s.keyFunc = fn
	}
}

// NewServer creates a collector server. The configuration must already be validated.
func NewServer(cfg *Config, reg *registry.Registry, log logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config:   cfg,
		registry: reg,
		clock:    realClock{},
		recorder: nopRecorder{},
		keyFunc:  PeerIP,
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PeerIP keys a connection by the IP of its remote address.
func PeerIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}

// Start binds the listener and starts accepting connections. A bind failure
// is returned; everything after that is handled inside the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errAlreadyStarted
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.listener = ln
	s.cancel = cancel

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Dur("poll_interval", time.Duration(s.config.PollInterval)).
		Dur("poll_timeout", time.Duration(s.config.PollTimeout)).
		Msg("Collector listening")

	s.acceptWg.Add(1)

	go s.acceptLoop(runCtx, ln)

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop stops accepting, ends every session and waits for them to release
// their records, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln, cancel := s.listener, s.cancel
	s.mu.Unlock()

	if ln == nil {
		return errNotStarted
	}

	s.stopOnce.Do(func() {
		cancel()

		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("Error closing listener")
		}

		s.registry.CloseAll()
	})

	done := make(chan struct{})

	go func() {
		s.acceptWg.Wait()
		s.sessionWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Collector stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions to end: %w", ctx.Err())
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.acceptWg.Done()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Warn().Err(err).Msg("Accept failed, retrying")

			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}

			continue
		}

		s.sessionWg.Add(1)

		go func() {
			defer s.sessionWg.Done()

			newSession(s, conn).run(ctx)
		}()
	}
}
