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
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortWriter accepts at most limit bytes per call.
type shortWriter struct {
	buf   bytes.Buffer
	limit int
	calls int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++

	if len(p) > w.limit {
		p = p[:w.limit]
	}

	return w.buf.Write(p)
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestFrameTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "snapshot", FrameSnapshot.String())
	assert.Equal(t, "poll", FramePoll.String())
	assert.Equal(t, "unknown(0x09)", FrameType(9).String())
}

func TestEncodePoll(t *testing.T) {
	t.Parallel()

	buf, err := Frame{Type: FramePoll}.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0}, buf)

	// Mutating the result must not affect later encodings.
	buf[0] = 0xff

	again, err := Frame{Type: FramePoll}.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), again[0])
}

func TestEncodeRejectsInvalidFrames(t *testing.T) {
	t.Parallel()

	_, err := Frame{Type: FramePoll, Payload: []byte("x")}.Encode()
	require.ErrorIs(t, err, errPollPayload)

	_, err = Frame{Type: FrameSnapshot, Payload: make([]byte, MaxPayloadSize+1)}.Encode()
	require.ErrorIs(t, err, errFrameTooLarge)
}

func TestWriteFrameRetriesShortWrites(t *testing.T) {
	t.Parallel()

	w := &shortWriter{limit: 3}
	payload := []byte(`{"host":"a"}`)

	require.NoError(t, WriteFrame(w, Frame{Type: FrameSnapshot, Payload: payload}))
	assert.Greater(t, w.calls, 1)

	f, err := ReadFrame(&w.buf)
	require.NoError(t, err)
	assert.Equal(t, FrameSnapshot, f.Type)
	assert.Equal(t, payload, f.Payload)
}

func TestWriteFrameNoProgress(t *testing.T) {
	t.Parallel()

	err := WriteFrame(stuckWriter{}, Frame{Type: FramePoll})
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestReadFrameErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{name: "empty", input: nil, want: io.EOF},
		{name: "short header", input: []byte{0x01, 0x00}, want: io.ErrUnexpectedEOF},
		{name: "short payload", input: []byte{0x01, 0, 0, 0, 4, 'a'}, want: io.ErrUnexpectedEOF},
		{name: "unknown type", input: []byte{0x03, 0, 0, 0, 0}, want: errUnknownFrameType},
		{name: "poll with payload", input: []byte{0x02, 0, 0, 0, 1, 'a'}, want: errPollPayload},
		{name: "too large", input: []byte{0x01, 0x00, 0x40, 0x00, 0x01}, want: errFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadFrame(bytes.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsExpectedCloseError(nil))
	assert.True(t, IsExpectedCloseError(io.EOF))
	assert.True(t, IsExpectedCloseError(io.ErrClosedPipe))
	assert.False(t, IsExpectedCloseError(io.ErrUnexpectedEOF))
	assert.False(t, IsExpectedCloseError(errors.New("boom")))
}
