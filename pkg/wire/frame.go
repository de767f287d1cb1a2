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

// Package wire implements the framed message channel shared by hostwatch
// agents and the collector.
//
// Every message is a 5-byte header (1 byte frame type + 4 byte big-endian
// payload length) followed by exactly that many payload bytes. Snapshot
// frames carry a JSON-encoded models.Snapshot; the poll command is the fixed
// zero-payload sequence 02 00 00 00 00, which can never be mistaken for JSON.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameType identifies the content of a frame.
type FrameType byte

const (
	// FrameSnapshot carries a JSON-encoded snapshot. Agent to collector.
	FrameSnapshot FrameType = 0x01
	// FramePoll asks the agent for a fresh snapshot. Collector to agent.
	FramePoll FrameType = 0x02
)

func (t FrameType) String() string {
	switch t {
	case FrameSnapshot:
		return "snapshot"
	case FramePoll:
		return "poll"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// headerLength is the fixed size of a frame header.
const headerLength = 5

// MaxPayloadSize bounds a single frame. Snapshots are a few KiB; anything near
// this limit means the stream is corrupt.
const MaxPayloadSize = 4 * 1024 * 1024

// Frame is one unit on the wire.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// pollFrame is the encoded poll command.
var pollFrame = [headerLength]byte{byte(FramePoll), 0, 0, 0, 0}

// Encode renders the frame as header followed by payload.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(f.Payload))
	}

	if f.Type == FramePoll {
		if len(f.Payload) != 0 {
			return nil, errPollPayload
		}

		out := pollFrame

		return out[:], nil
	}

	buf := make([]byte, headerLength+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[1:headerLength], uint32(len(f.Payload)))
	copy(buf[headerLength:], f.Payload)

	return buf, nil
}

// WriteFrame writes one complete frame to w, retrying short writes until the
// whole frame is out or w fails.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := f.Encode()
	if err != nil {
		return err
	}

	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}

		if n == 0 {
			return io.ErrShortWrite
		}

		buf = buf[n:]
	}

	return nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}

	frameType, size, err := parseHeader(header[:])
	if err != nil {
		return Frame{}, err
	}

	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}

	return Frame{Type: frameType, Payload: payload}, nil
}

func parseHeader(header []byte) (FrameType, int, error) {
	frameType := FrameType(header[0])
	size := binary.BigEndian.Uint32(header[1:headerLength])

	switch frameType {
	case FrameSnapshot:
	case FramePoll:
		if size != 0 {
			return 0, 0, errPollPayload
		}
	default:
		return 0, 0, fmt.Errorf("%w: %s", errUnknownFrameType, frameType)
	}

	if size > MaxPayloadSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", errFrameTooLarge, size)
	}

	return frameType, int(size), nil
}
