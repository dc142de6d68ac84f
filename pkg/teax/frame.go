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
	"encoding/binary"
	"fmt"
	"time"
)

// Frame is one decoded image. Pix rows share a single backing array owned
// by the frame; nothing aliases the synchronizer's buffers.
type Frame struct {
	Timestamp     time.Time
	Pix           [][]uint16
	Seq           uint64
	Width         int
	Height        int
	BitsPerSample int
	Counter       uint16
}

// At returns the sample at column x, row y.
func (f *Frame) At(x, y int) uint16 {
	return f.Pix[y][x]
}

// Stats summarizes the sample values of a frame.
type Stats struct {
	Min  uint16
	Max  uint16
	Mean float64
}

// String formats the summary for logs.
func (s Stats) String() string {
	return fmt.Sprintf("min=%d max=%d mean=%.1f", s.Min, s.Max, s.Mean)
}

// Stats computes min, max and mean over every sample.
func (f *Frame) Stats() Stats {
	if f.Width == 0 || f.Height == 0 {
		return Stats{}
	}
	s := Stats{Min: 0xFFFF}
	var sum uint64
	for _, row := range f.Pix {
		for _, v := range row {
			s.Min = min(s.Min, v)
			s.Max = max(s.Max, v)
			sum += uint64(v)
		}
	}
	s.Mean = float64(sum) / float64(f.Width*f.Height)
	return s
}

// RawFrame is one validated grabber block with header and row padding
// stripped. Payload holds Width*Height little-endian words.
type RawFrame struct {
	Payload []byte
	Header  [HeaderLength]byte
}

// Counter returns the grabber's frame counter from the block header.
func (r *RawFrame) Counter() uint16 {
	return binary.LittleEndian.Uint16(r.Header[counterOffset:]) & sampleMask(DefaultBits)
}

// EncodeFrame builds a grabber block carrying pix, as the grabber emits it.
// Samples are written little-endian; rows shorter than g.Width are zero
// filled. Used by simulators and tests.
func EncodeFrame(g Geometry, counter uint16, pix [][]uint16) []byte {
	out := make([]byte, g.FrameLength())
	copy(out, Marker)
	binary.LittleEndian.PutUint16(out[counterOffset:], counter&sampleMask(DefaultBits))

	rowBytes := (g.Width + RowPadding) * wordSize
	for y := 0; y < g.Height && y < len(pix); y++ {
		row := out[HeaderLength+y*rowBytes:]
		for x := 0; x < g.Width && x < len(pix[y]); x++ {
			binary.LittleEndian.PutUint16(row[(x+1)*wordSize:], pix[y][x])
		}
	}
	return out
}
