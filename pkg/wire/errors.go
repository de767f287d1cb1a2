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
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrTimeout means no complete frame arrived before the receive timeout.
	// The connection is still usable.
	ErrTimeout = errors.New("receive timed out")
	// ErrConnectionClosed means the peer closed the connection or it was closed locally.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrIO is an abnormal transport or framing failure.
	ErrIO = errors.New("i/o error")
	// ErrMalformed is a well-framed message whose payload could not be decoded.
	// The stream stays in sync, so callers may keep receiving.
	ErrMalformed = fmt.Errorf("%w: malformed message", ErrIO)

	errFrameTooLarge    = errors.New("frame payload exceeds maximum size")
	errUnknownFrameType = errors.New("unknown frame type")
	errPollPayload      = errors.New("poll frame must not carry a payload")
	errTruncatedFrame   = errors.New("connection closed mid-frame")
)

// IsExpectedCloseError reports whether err is a normal connection termination:
// EOF, closed connection, closed pipe, broken pipe, or connection reset.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}

	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify maps a transport error onto the channel's error taxonomy.
func classify(op string, err error) error {
	if IsExpectedCloseError(err) {
		return fmt.Errorf("%w: %s: %w", ErrConnectionClosed, op, err)
	}

	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
