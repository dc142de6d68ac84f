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
)

// Decode converts a raw payload of width*height 16-bit words into a frame,
// masking every sample to bitsPerSample. Samples are read little-endian,
// the order the ThermalCapture grabber emits them; use DecodeOrder for a
// source that delivers big-endian words.
func Decode(raw []byte, width, height, bitsPerSample int) (*Frame, error) {
	return DecodeOrder(raw, width, height, bitsPerSample, binary.LittleEndian)
}

// DecodeOrder is Decode with an explicit sample byte order.
func DecodeOrder(raw []byte, width, height, bitsPerSample int, order binary.ByteOrder) (*Frame, error) {
	g := Geometry{Width: width, Height: height, BitsPerSample: bitsPerSample}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(raw) != g.PayloadLength() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%d",
			ErrSizeMismatch, len(raw), g.PayloadLength(), width, height)
	}

	mask := g.Mask()
	backing := make([]uint16, width*height)
	for i := range backing {
		backing[i] = order.Uint16(raw[i*wordSize:]) & mask
	}

	pix := make([][]uint16, height)
	for y := range pix {
		pix[y] = backing[y*width : (y+1)*width : (y+1)*width]
	}

	return &Frame{
		Pix:           pix,
		Width:         width,
		Height:        height,
		BitsPerSample: bitsPerSample,
	}, nil
}
