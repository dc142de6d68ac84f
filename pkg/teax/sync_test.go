// Copyright 2026 The go-tau2 Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package teax

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{Width: 4, Height: 3, BitsPerSample: 14}

// testPix fills a frame with distinct non-zero 14-bit values.
func testPix(g Geometry, seed uint16) [][]uint16 {
	pix := make([][]uint16, g.Height)
	for y := range pix {
		pix[y] = make([]uint16, g.Width)
		for x := range pix[y] {
			pix[y][x] = (seed*101 + uint16(y*g.Width+x) + 1) & 0x3FFF
		}
	}
	return pix
}

func newTestSync(t *testing.T, r io.Reader, opts ...SyncOption) *Synchronizer {
	t.Helper()
	s, err := NewSynchronizer(r, testGeometry, opts...)
	require.NoError(t, err)
	return s
}

// collect reads frames until the stream ends.
func collect(t *testing.T, s *Synchronizer) []*RawFrame {
	t.Helper()
	var out []*RawFrame
	for {
		raw, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		require.LessOrEqual(t, s.Buffered(), testGeometry.FrameLength())
		out = append(out, raw)
	}
}

func TestSynchronizer_SingleFrame(t *testing.T) {
	t.Parallel()
	pix := testPix(testGeometry, 1)
	s := newTestSync(t, bytes.NewReader(EncodeFrame(testGeometry, 42, pix)))

	raw, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(42), raw.Counter())
	assert.Len(t, raw.Payload, testGeometry.PayloadLength())

	f, err := Decode(raw.Payload, testGeometry.Width, testGeometry.Height, testGeometry.BitsPerSample)
	require.NoError(t, err)
	assert.Equal(t, pix, f.Pix)
	assert.Equal(t, StateSearching, s.State())
	assert.Equal(t, 0, s.Buffered())
}

func TestSynchronizer_LeadingGarbageAndFragmentedReads(t *testing.T) {
	t.Parallel()
	var stream []byte
	stream = append(stream, []byte("TEA garbage TE")...)
	stream = append(stream, EncodeFrame(testGeometry, 1, testPix(testGeometry, 1))...)
	stream = append(stream, 0x13, 0x37)
	stream = append(stream, EncodeFrame(testGeometry, 2, testPix(testGeometry, 2))...)

	s := newTestSync(t, iotest.OneByteReader(bytes.NewReader(stream)))
	frames := collect(t, s)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(1), frames[0].Counter())
	assert.Equal(t, uint16(2), frames[1].Counter())

	stats := s.Stats()
	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 0, stats.Corrupt)
	assert.Equal(t, len("TEA garbage TE")+2, stats.DiscardedBytes)
}

func TestSynchronizer_Recovery(t *testing.T) {
	t.Parallel()
	good := EncodeFrame(testGeometry, 7, testPix(testGeometry, 7))

	tests := []struct {
		name        string
		corrupted   func() []byte
		wantCorrupt int
		wantTrunc   int
	}{
		{
			name: "short frame",
			corrupted: func() []byte {
				f := EncodeFrame(testGeometry, 6, testPix(testGeometry, 6))
				return f[:len(f)-5]
			},
			wantTrunc: 1,
		},
		{
			name: "bad footer padding",
			corrupted: func() []byte {
				f := EncodeFrame(testGeometry, 6, testPix(testGeometry, 6))
				f[len(f)-1] = 0x01
				return f
			},
			wantCorrupt: 1,
		},
		{
			name: "inserted bytes",
			corrupted: func() []byte {
				f := EncodeFrame(testGeometry, 6, testPix(testGeometry, 6))
				out := append([]byte(nil), f[:HeaderLength+3]...)
				out = append(out, 0x11, 0x22, 0x33)
				return append(out, f[HeaderLength+3:]...)
			},
			wantCorrupt: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stream := append(tt.corrupted(), good...)
			s := newTestSync(t, bytes.NewReader(stream))

			frames := collect(t, s)
			require.Len(t, frames, 1)
			assert.Equal(t, uint16(7), frames[0].Counter())
			assert.Equal(t, tt.wantCorrupt, s.Stats().Corrupt)
			assert.Equal(t, tt.wantTrunc, s.Stats().Truncated)
		})
	}
}

func TestSynchronizer_MarkerBytesInSamples(t *testing.T) {
	t.Parallel()
	pix := testPix(testGeometry, 2)
	// "TE" and "AX" as little-endian words with bit 14 set
	pix[1][1], pix[1][2] = 0x4554, 0x5841
	stream := append(EncodeFrame(testGeometry, 2, pix), EncodeFrame(testGeometry, 3, testPix(testGeometry, 3))...)
	s := newTestSync(t, bytes.NewReader(stream))

	frames := collect(t, s)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(2), frames[0].Counter())
	assert.Equal(t, uint16(3), frames[1].Counter())
	assert.Zero(t, s.Stats().Truncated)
	assert.Zero(t, s.Stats().Corrupt)
}

// idleReader behaves like a port whose read timeout keeps expiring.
type idleReader struct{}

func (idleReader) Read([]byte) (int, error) { return 0, nil }

func TestSynchronizer_SyncTimeout(t *testing.T) {
	t.Parallel()
	s := newTestSync(t, idleReader{}, WithSyncTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, ErrSyncTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, s.Stats().Timeouts)
}

func TestSynchronizer_TimeoutDropsPartialFrame(t *testing.T) {
	t.Parallel()
	frame := EncodeFrame(testGeometry, 3, testPix(testGeometry, 3))
	r := io.MultiReader(bytes.NewReader(frame[:20]), idleReader{})
	s := newTestSync(t, r, WithSyncTimeout(20*time.Millisecond))

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, ErrSyncTimeout)
	assert.Equal(t, 0, s.Buffered())
	assert.Equal(t, StateSearching, s.State())
}

func TestSynchronizer_ContextCancel(t *testing.T) {
	t.Parallel()
	s := newTestSync(t, idleReader{}, WithSyncTimeout(0))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSynchronizer_Reset(t *testing.T) {
	t.Parallel()
	frame := EncodeFrame(testGeometry, 3, testPix(testGeometry, 3))
	s := newTestSync(t, io.MultiReader(bytes.NewReader(frame[:20]), bytes.NewReader(nil)))

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, StateFilling, s.State())
	assert.Equal(t, 20, s.Buffered())

	s.Reset()
	assert.Equal(t, StateSearching, s.State())
	assert.Equal(t, 0, s.Buffered())
}

func TestNewSynchronizer_InvalidGeometry(t *testing.T) {
	t.Parallel()
	_, err := NewSynchronizer(idleReader{}, Geometry{Width: 0, Height: 1, BitsPerSample: 14})
	require.ErrorIs(t, err, ErrInvalidGeometry)
}
