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

package testing

import (
	"encoding/binary"

	"github.com/tau2cam/go-tau2/internal/frame"
	"github.com/tau2cam/go-tau2/pkg/teax"
)

// BuildReply creates an OK reply carrying payload
func BuildReply(code frame.Code, payload []byte) []byte {
	return frame.EncodeReply(code, frame.StatusOK, payload)
}

// BuildWordReply creates an OK reply carrying one big-endian word
func BuildWordReply(code frame.Code, v uint16) []byte {
	return BuildReply(code, binary.BigEndian.AppendUint16(nil, v))
}

// BuildStatusReply creates an empty reply with a non-OK status
func BuildStatusReply(code frame.Code, status frame.Status) []byte {
	return frame.EncodeReply(code, status, nil)
}

// CorruptPayloadCRC returns a copy of packet with its last CRC byte flipped
func CorruptPayloadCRC(packet []byte) []byte {
	out := append([]byte(nil), packet...)
	out[len(out)-1] ^= 0xFF
	return out
}

// CorruptHeaderCRC returns a copy of packet with the header CRC flipped
func CorruptHeaderCRC(packet []byte) []byte {
	out := append([]byte(nil), packet...)
	out[frame.HeaderLength] ^= 0xFF
	return out
}

// TestPattern returns deterministic pixels for frame seq, already within
// the geometry's bit depth.
func TestPattern(g teax.Geometry, seq int) [][]uint16 {
	mask := g.Mask()
	pix := make([][]uint16, g.Height)
	for y := range pix {
		pix[y] = make([]uint16, g.Width)
		for x := range pix[y] {
			pix[y][x] = uint16(seq*131+y*g.Width+x+1) & mask
		}
	}
	return pix
}

// BuildFrameStream concatenates n grabber frames carrying TestPattern(g, i).
// noise maps a frame index to bytes inserted before that frame.
func BuildFrameStream(g teax.Geometry, n int, noise map[int][]byte) []byte {
	out := make([]byte, 0, n*g.FrameLength())
	for i := range n {
		out = append(out, noise[i]...)
		out = append(out, teax.EncodeFrame(g, uint16(i), TestPattern(g, i))...)
	}
	return out
}
