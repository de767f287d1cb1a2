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

package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/carverauto/hostwatch/pkg/models"
)

const (
	defaultWriteTimeout = 10 * time.Second
	readChunkSize       = 32 * 1024
)

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Message is one decoded frame.
type Message struct {
	Type     FrameType
	Snapshot *models.Snapshot
}

// IsPoll reports whether the message is the poll command.
func (m Message) IsPoll() bool {
	return m.Type == FramePoll
}

// Option configures a Channel.
type Option func(*Channel)

// WithWriteTimeout bounds every send. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.writeTimeout = d
	}
}

// Channel turns a stream connection into a sequence of discrete messages.
// Send and Receive may be called concurrently with each other; concurrent
// sends are serialized, as are concurrent receives.
type Channel struct {
	conn         net.Conn
	writeTimeout time.Duration

	sendMu  sync.Mutex
	sendErr error

	recvMu  sync.Mutex
	pending []byte // bytes read but not yet consumed as a frame
	scratch []byte
	recvErr error // sticky once the inbound stream is unusable
}

// NewChannel wraps conn. The channel owns conn from here on.
func NewChannel(conn net.Conn, opts ...Option) *Channel {
	c := &Channel{
		conn:         conn,
		writeTimeout: defaultWriteTimeout,
		scratch:      make([]byte, readChunkSize),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RemoteAddr returns the peer address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection, unblocking any pending Send or Receive.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// SendSnapshot writes s as a snapshot frame.
func (c *Channel) SendSnapshot(ctx context.Context, s *models.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", ErrIO, err)
	}

	return c.send(ctx, Frame{Type: FrameSnapshot, Payload: payload})
}

// SendPoll writes the poll command.
func (c *Channel) SendPoll(ctx context.Context) error {
	return c.send(ctx, Frame{Type: FramePoll})
}

func (c *Channel) send(ctx context.Context, f Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendErr != nil {
		return c.sendErr
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.sendErr = classify("set write deadline", err)
		return c.sendErr
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := WriteFrame(c.conn, f); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// A partially written frame leaves the peer out of sync, so every
		// write failure is final for this channel.
		if isTimeout(err) {
			c.sendErr = fmt.Errorf("%w: write %s frame: %w", ErrIO, f.Type, err)
		} else {
			c.sendErr = classify("write "+f.Type.String()+" frame", err)
		}

		return c.sendErr
	}

	return nil
}

// Receive blocks until one complete frame is available, timeout elapses, or
// ctx is done. A non-positive timeout waits indefinitely. On ErrTimeout any
// partially received frame is kept and completed by a later call.
func (c *Channel) Receive(ctx context.Context, timeout time.Duration) (Message, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if msg, ok, err := c.decodePending(); err != nil || ok {
		return msg, err
	}

	if c.recvErr != nil {
		return Message{}, c.recvErr
	}

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		c.recvErr = classify("set read deadline", err)
		return Message{}, c.recvErr
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	// The callback may have fired before the deadline above was applied.
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	for {
		n, readErr := c.conn.Read(c.scratch)
		if n > 0 {
			c.pending = append(c.pending, c.scratch[:n]...)

			if msg, ok, err := c.decodePending(); err != nil || ok {
				return msg, err
			}
		}

		if readErr == nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		if isTimeout(readErr) {
			return Message{}, ErrTimeout
		}

		if errors.Is(readErr, io.EOF) && len(c.pending) > 0 {
			c.recvErr = fmt.Errorf("%w: %w (%d bytes buffered)", ErrIO, errTruncatedFrame, len(c.pending))
		} else {
			c.recvErr = classify("read", readErr)
		}

		return Message{}, c.recvErr
	}
}

// decodePending extracts one frame from the pending buffer if a complete one
// is present. Framing violations are sticky; payload decoding errors are not.
func (c *Channel) decodePending() (Message, bool, error) {
	if len(c.pending) < headerLength {
		return Message{}, false, nil
	}

	frameType, size, err := parseHeader(c.pending[:headerLength])
	if err != nil {
		c.recvErr = fmt.Errorf("%w: %w", ErrIO, err)
		c.pending = nil

		return Message{}, false, c.recvErr
	}

	total := headerLength + size
	if len(c.pending) < total {
		return Message{}, false, nil
	}

	msg, decodeErr := decodeMessage(frameType, c.pending[headerLength:total])

	remaining := copy(c.pending, c.pending[total:])
	c.pending = c.pending[:remaining]

	if decodeErr != nil {
		return Message{}, false, decodeErr
	}

	return msg, true, nil
}

func decodeMessage(frameType FrameType, payload []byte) (Message, error) {
	if frameType == FramePoll {
		return Message{Type: FramePoll}, nil
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := snapshot.Validate(); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return Message{Type: FrameSnapshot, Snapshot: &snapshot}, nil
}
