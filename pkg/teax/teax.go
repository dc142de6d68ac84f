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

// Package teax reads raw image frames from a TeAx ThermalCapture grabber.
//
// The grabber streams fixed-size blocks over the FTDI data channel. Each
// block starts with the ASCII marker "TEAX" and a 10-byte header, followed by
// height rows of width+2 little-endian 16-bit words. The first and last word
// of every row are zero padding.
package teax

import (
	"errors"
	"fmt"
)

// Stream format constants
const (
	Marker         = "TEAX"
	HeaderLength   = 10
	RowPadding     = 2 // padding words per row
	DefaultWidth   = 640
	DefaultHeight  = 512
	DefaultBits    = 14
	wordSize       = 2
	counterOffset  = 8
	maxSampleBits  = 16
	maxFrameLength = 16 << 20
)

// Stream errors
var (
	ErrSyncTimeout     = errors.New("no complete frame within sync timeout")
	ErrSizeMismatch    = errors.New("raw frame size mismatch")
	ErrInvalidGeometry = errors.New("invalid frame geometry")
)

// Geometry describes the pixel layout streamed by the grabber.
type Geometry struct {
	Width         int
	Height        int
	BitsPerSample int
}

// DefaultGeometry returns the Tau2 640 core in 14-bit CMOS mode.
func DefaultGeometry() Geometry {
	return Geometry{Width: DefaultWidth, Height: DefaultHeight, BitsPerSample: DefaultBits}
}

// Validate checks the geometry is usable.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, g.Width, g.Height)
	}
	if g.BitsPerSample <= 0 || g.BitsPerSample > maxSampleBits {
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidGeometry, g.BitsPerSample)
	}
	if g.FrameLength() > maxFrameLength {
		return fmt.Errorf("%w: frame of %d bytes", ErrInvalidGeometry, g.FrameLength())
	}
	return nil
}

// FrameLength is the size in bytes of one grabber block, marker included.
func (g Geometry) FrameLength() int {
	return HeaderLength + g.Height*(g.Width+RowPadding)*wordSize
}

// PayloadLength is the size of the pixel data once header and padding are
// stripped.
func (g Geometry) PayloadLength() int {
	return g.Width * g.Height * wordSize
}

// Mask returns the bit mask applied to every sample.
func (g Geometry) Mask() uint16 {
	return sampleMask(g.BitsPerSample)
}

func sampleMask(bits int) uint16 {
	if bits >= maxSampleBits {
		return 0xFFFF
	}
	return uint16(1)<<bits - 1
}
