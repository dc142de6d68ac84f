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
	"errors"
	"fmt"
	"io"
)

// UART tunnel framing
const (
	TunnelMarker     = "UART"
	tunnelChunkLen   = 6 // marker, length byte, one data byte
	tunnelDataOffset = 5
	maxTunnelWrite   = 255
	tunnelReadChunk  = 512
)

// ErrTunnelWrite is returned for payloads the tunnel header cannot describe.
var ErrTunnelWrite = errors.New("tunnel write too large")

// Tunnel carries camera command traffic through the grabber's data channel.
// Outgoing bytes are prefixed with "UART" and a length byte; the grabber
// returns each camera byte in its own 6-byte "UART" chunk.
type Tunnel struct {
	rw      io.ReadWriter
	raw     []byte
	scratch []byte
}

// NewTunnel wraps rw.
func NewTunnel(rw io.ReadWriter) *Tunnel {
	return &Tunnel{rw: rw, scratch: make([]byte, tunnelReadChunk)}
}

// Write sends p as one tunnel packet.
func (t *Tunnel) Write(p []byte) (int, error) {
	if len(p) > maxTunnelWrite {
		return 0, fmt.Errorf("%w: %d bytes", ErrTunnelWrite, len(p))
	}
	pkt := make([]byte, 0, len(TunnelMarker)+1+len(p))
	pkt = append(pkt, TunnelMarker...)
	pkt = append(pkt, byte(len(p)))
	pkt = append(pkt, p...)
	if _, err := t.rw.Write(pkt); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read performs one read on the underlying stream and returns the camera
// bytes unwrapped so far. It may return 0, nil when no chunk is complete.
func (t *Tunnel) Read(p []byte) (int, error) {
	if n := t.unwrap(p); n > 0 {
		return n, nil
	}
	n, err := t.rw.Read(t.scratch)
	t.raw = append(t.raw, t.scratch[:n]...)
	if got := t.unwrap(p); got > 0 {
		return got, nil
	}
	return 0, err
}

// Reset drops partially received chunks.
func (t *Tunnel) Reset() {
	t.raw = t.raw[:0]
}

func (t *Tunnel) unwrap(p []byte) int {
	n := 0
	for n < len(p) {
		idx := bytes.Index(t.raw, []byte(TunnelMarker))
		if idx < 0 {
			if keep := len(TunnelMarker) - 1; len(t.raw) > keep {
				t.raw = append(t.raw[:0], t.raw[len(t.raw)-keep:]...)
			}
			break
		}
		t.raw = t.raw[idx:]
		if len(t.raw) < tunnelChunkLen {
			break
		}
		p[n] = t.raw[tunnelDataOffset]
		n++
		t.raw = t.raw[tunnelChunkLen:]
	}
	return n
}
