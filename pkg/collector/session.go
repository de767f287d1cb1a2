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

package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/models"
	"github.com/carverauto/hostwatch/pkg/registry"
	"github.com/carverauto/hostwatch/pkg/wire"
)

// Termination causes, reported to the Recorder and logged.
const (
	CauseShutdown    = "shutdown"
	CauseClosed      = "connection_closed"
	CauseMissedPolls = "missed_polls"
	CauseIOErrors    = "io_errors"
	CauseSendFailed  = "send_failed"
	CauseReplaced    = "replaced"
)

// staleReplyWindow bounds the wait for replies that are already in flight
// when a poll cycle starts.
const staleReplyWindow = time.Millisecond

// session serves one agent connection from registration to termination.
type session struct {
	id     string
	key    string
	server *Server
	ch     *wire.Channel
	logger logger.Logger

	missed   int
	ioErrors int
}

func newSession(s *Server, conn net.Conn) *session {
	id := uuid.NewString()
	key := s.keyFunc(conn.RemoteAddr())

	return &session{
		id:     id,
		key:    key,
		server: s,
		ch:     wire.NewChannel(conn, wire.WithWriteTimeout(time.Duration(s.config.WriteTimeout))),
		logger: logger.New(s.logger.With().
			Str("session_id", id).
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger()),
	}
}

func (s *session) run(ctx context.Context) {
	s.logger.Debug().Msg("Connection accepted")

	snapshot, err := s.register(ctx)
	if err != nil {
		s.server.recorder.RecordRegistration(false)
		s.logger.Warn().Err(err).Msg("Client registration failed")
		s.close()

		return
	}

	if _, err := s.server.registry.Register(s.key, s.id, snapshot, s.ch); err != nil {
		s.server.recorder.RecordRegistration(false)
		s.logger.Error().Err(err).Str("key", s.key).Msg("Failed to store client record")
		s.close()

		return
	}

	s.server.recorder.RecordRegistration(true)
	s.logger.Info().
		Str("key", s.key).
		Str("host", snapshot.Host).
		Msg("Client registered")

	cause := s.pollLoop(ctx)
	s.terminate(cause)
}

// register waits for the one registration snapshot a client must send first.
func (s *session) register(ctx context.Context) (*models.Snapshot, error) {
	if s.key == "" {
		return nil, fmt.Errorf("%w: no key for peer", ErrRegistrationFailed)
	}

	msg, err := s.ch.Receive(ctx, time.Duration(s.server.config.RegistrationTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	if msg.Snapshot == nil {
		return nil, fmt.Errorf("%w: expected snapshot, got %s frame", ErrRegistrationFailed, msg.Type)
	}

	return msg.Snapshot, nil
}

func (s *session) pollLoop(ctx context.Context) string {
	ticker := s.server.clock.Ticker(time.Duration(s.server.config.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return CauseShutdown
		case <-ticker.Chan():
			if cause, done := s.poll(ctx); done {
				return cause
			}
		}
	}
}

// poll runs one poll cycle and reports whether the session should end.
func (s *session) poll(ctx context.Context) (string, bool) {
	if cause, done := s.drainLateReplies(ctx); done {
		return cause, true
	}

	cfg := s.server.config
	start := s.server.clock.Now()

	if err := s.ch.SendPoll(ctx); err != nil {
		if ctx.Err() != nil {
			return CauseShutdown, true
		}

		s.logger.Warn().Err(err).Msg("Failed to send poll")

		if errors.Is(err, wire.ErrConnectionClosed) {
			return CauseClosed, true
		}

		return CauseSendFailed, true
	}

	msg, err := s.ch.Receive(ctx, time.Duration(cfg.PollTimeout))
	elapsed := s.server.clock.Now().Sub(start)

	switch {
	case err == nil && msg.Snapshot != nil:
		s.server.recorder.RecordPoll(PollResultOK, elapsed)

		return s.update(msg.Snapshot)

	case err == nil:
		s.server.recorder.RecordPoll(PollResultError, elapsed)
		s.logger.Warn().Str("frame", msg.Type.String()).Msg("Unexpected frame from client")

		return s.countIOError()

	case ctx.Err() != nil:
		return CauseShutdown, true

	case errors.Is(err, wire.ErrTimeout):
		s.server.recorder.RecordPoll(PollResultTimeout, elapsed)
		s.missed++

		s.logger.Debug().Int("missed", s.missed).Msg("Poll reply timed out")

		if cfg.MaxMissedPolls > 0 && s.missed >= cfg.MaxMissedPolls {
			return CauseMissedPolls, true
		}

		return "", false

	case errors.Is(err, wire.ErrConnectionClosed):
		return CauseClosed, true

	default:
		s.server.recorder.RecordPoll(PollResultError, elapsed)
		s.logger.Warn().Err(err).Msg("Poll reply failed")

		return s.countIOError()
	}
}

// drainLateReplies consumes replies that arrived after an earlier poll timed
// out and stores the newest one, so the next reply read answers the next poll.
func (s *session) drainLateReplies(ctx context.Context) (string, bool) {
	var latest *models.Snapshot

	for {
		msg, err := s.ch.Receive(ctx, staleReplyWindow)
		if err == nil {
			if msg.Snapshot != nil {
				latest = msg.Snapshot
			}

			continue
		}

		switch {
		case ctx.Err() != nil:
			return CauseShutdown, true
		case errors.Is(err, wire.ErrConnectionClosed):
			return CauseClosed, true
		case !errors.Is(err, wire.ErrTimeout):
			// sticky errors resurface on the poll's own receive
			s.logger.Debug().Err(err).Msg("Discarded late reply")
		}

		break
	}

	if latest == nil {
		return "", false
	}

	s.logger.Debug().Msg("Stored late poll reply")

	return s.update(latest)
}

func (s *session) update(snapshot *models.Snapshot) (string, bool) {
	if err := s.server.registry.Update(s.key, s.id, snapshot); err != nil {
		if errors.Is(err, registry.ErrNotOwner) || errors.Is(err, registry.ErrNotFound) {
			return CauseReplaced, true
		}

		s.logger.Error().Err(err).Msg("Failed to update client record")

		return "", false
	}

	s.missed = 0
	s.ioErrors = 0

	s.logger.Debug().Str("host", snapshot.Host).Msg("Client snapshot updated")

	return "", false
}

func (s *session) countIOError() (string, bool) {
	s.ioErrors++

	if s.ioErrors >= s.server.config.MaxIOErrors {
		return CauseIOErrors, true
	}

	return "", false
}

// terminate releases the record if this session still owns it and closes the
// transport. It runs exactly once per registered session.
func (s *session) terminate(cause string) {
	released := s.server.registry.Release(s.key, s.id)
	s.close()

	s.server.recorder.RecordSessionTerminated(cause)

	event := s.logger.Info()
	if cause != CauseShutdown && cause != CauseClosed {
		event = s.logger.Warn()
	}

	event.
		Str("key", s.key).
		Str("cause", cause).
		Bool("released", released).
		Msg("Client session ended")
}

func (s *session) close() {
	if err := s.ch.Close(); err != nil && !wire.IsExpectedCloseError(err) {
		s.logger.Debug().Err(err).Msg("Error closing connection")
	}
}
