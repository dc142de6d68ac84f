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
	"fmt"
	"io"
	"time"
)

// State is the synchronizer's position within the current frame.
type State int

// Synchronizer states
const (
	StateSearching State = iota
	StateFilling
	StateValidating
	StateEmit
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateFilling:
		return "filling"
	case StateValidating:
		return "validating"
	case StateEmit:
		return "emit"
	default:
		return "unknown"
	}
}

// Synchronizer defaults
const (
	DefaultSyncTimeout = 200 * time.Millisecond
	DefaultReadChunk   = 8 * 512 // eight FTDI packets
	DefaultIdleBackoff = time.Millisecond
)

// SyncStats counts what the synchronizer has seen since creation.
type SyncStats struct {
	Frames         int // frames emitted
	Truncated      int // frames cut short by the next frame's marker
	Corrupt        int // frames rejected by padding validation
	Timeouts       int
	DiscardedBytes int
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncTimeout bounds how long Next waits for a complete frame.
// Zero waits until the context is done.
func WithSyncTimeout(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		s.timeout = d
	}
}

// WithReadChunk sets the maximum size of a single read from the stream.
func WithReadChunk(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithIdleBackoff sets the pause after a read that returned no bytes.
func WithIdleBackoff(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		s.idle = d
	}
}

// Synchronizer slices a continuous grabber byte stream into frames.
//
// The pending buffer never holds more than one frame length. A frame that
// fails validation or is cut short by a new marker is dropped and the search
// restarts at the next marker; partial frames are never reused.
type Synchronizer struct {
	r        io.Reader
	buf      []byte
	geom     Geometry
	stats    SyncStats
	timeout  time.Duration
	idle     time.Duration
	chunk    int
	frameLen int
	state    State
}

// NewSynchronizer creates a synchronizer reading frames of geometry g from r.
func NewSynchronizer(r io.Reader, g Geometry, opts ...SyncOption) (*Synchronizer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	s := &Synchronizer{
		r:        r,
		geom:     g,
		frameLen: g.FrameLength(),
		timeout:  DefaultSyncTimeout,
		idle:     DefaultIdleBackoff,
		chunk:    DefaultReadChunk,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]byte, 0, s.frameLen)
	return s, nil
}

// Geometry returns the frame geometry.
func (s *Synchronizer) Geometry() Geometry {
	return s.geom
}

// State returns the current state.
func (s *Synchronizer) State() State {
	return s.state
}

// Stats returns a copy of the counters.
func (s *Synchronizer) Stats() SyncStats {
	return s.stats
}

// Buffered returns the number of bytes held in the pending buffer.
func (s *Synchronizer) Buffered() int {
	return len(s.buf)
}

// Reset drops any buffered bytes and returns to searching.
func (s *Synchronizer) Reset() {
	s.discard(len(s.buf))
	s.state = StateSearching
}

// Next blocks until one complete, validated frame has been read.
// On ErrSyncTimeout the partial buffer is dropped.
func (s *Synchronizer) Next(ctx context.Context) (*RawFrame, error) {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}

	for {
		switch s.state {
		case StateSearching:
			if idx := bytes.Index(s.buf, []byte(Marker)); idx >= 0 {
				s.discard(idx)
				s.state = StateFilling
				continue
			}
			if keep := len(Marker) - 1; len(s.buf) > keep {
				s.discard(len(s.buf) - keep)
			}

		case StateFilling:
			if len(s.buf) >= s.frameLen {
				s.state = StateValidating
				continue
			}

		case StateValidating:
			if !s.validPadding() {
				if idx := s.nextMarker(); idx > 0 {
					s.stats.Truncated++
					s.discard(idx)
					s.state = StateFilling
					continue
				}
				s.stats.Corrupt++
				s.discard(len(Marker))
				s.state = StateSearching
				continue
			}
			s.state = StateEmit
			continue

		case StateEmit:
			raw := s.extract()
			s.consume(s.frameLen)
			s.stats.Frames++
			s.state = StateSearching
			return raw, nil
		}

		if err := s.fill(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

// nextMarker returns the offset of a marker after the current header in a
// frame that failed validation, or -1. Sample data may contain the marker
// bytes, so this only runs once padding has ruled the frame out.
func (s *Synchronizer) nextMarker() int {
	if idx := bytes.Index(s.buf[HeaderLength:], []byte(Marker)); idx >= 0 {
		return HeaderLength + idx
	}
	return -1
}

func (s *Synchronizer) validPadding() bool {
	rowBytes := (s.geom.Width + RowPadding) * wordSize
	for y := range s.geom.Height {
		row := s.buf[HeaderLength+y*rowBytes : HeaderLength+(y+1)*rowBytes]
		if row[0] != 0 || row[1] != 0 || row[rowBytes-2] != 0 || row[rowBytes-1] != 0 {
			return false
		}
	}
	return true
}

func (s *Synchronizer) extract() *RawFrame {
	raw := &RawFrame{Payload: make([]byte, s.geom.PayloadLength())}
	copy(raw.Header[:], s.buf[:HeaderLength])

	rowBytes := (s.geom.Width + RowPadding) * wordSize
	dataBytes := s.geom.Width * wordSize
	for y := range s.geom.Height {
		src := HeaderLength + y*rowBytes + wordSize
		copy(raw.Payload[y*dataBytes:(y+1)*dataBytes], s.buf[src:src+dataBytes])
	}
	return raw
}

func (s *Synchronizer) fill(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		state := s.state
		s.stats.Timeouts++
		s.Reset()
		return fmt.Errorf("%w: %v while %s", ErrSyncTimeout, s.timeout, state)
	}

	want := min(s.frameLen-len(s.buf), s.chunk)
	n, err := s.r.Read(s.buf[len(s.buf) : len(s.buf)+want])
	s.buf = s.buf[:len(s.buf)+n]
	if err != nil {
		if errors.Is(err, io.EOF) && n > 0 {
			return nil
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if n == 0 && s.idle > 0 {
		timer := time.NewTimer(s.idle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// consume drops n leading bytes.
func (s *Synchronizer) consume(n int) {
	rest := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:rest]
}

// discard drops n leading bytes that did not belong to an emitted frame.
func (s *Synchronizer) discard(n int) {
	if n <= 0 {
		return
	}
	s.stats.DiscardedBytes += n
	s.consume(n)
}
