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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopback struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func wrapReply(data []byte) []byte {
	var out []byte
	for _, b := range data {
		out = append(out, TunnelMarker...)
		out = append(out, 0x01, b)
	}
	return out
}

func TestTunnel_Write(t *testing.T) {
	t.Parallel()
	lb := &loopback{in: &bytes.Buffer{}}
	tun := NewTunnel(lb)

	n, err := tun.Write([]byte{0x6E, 0x00, 0x00, 0x0A})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{'U', 'A', 'R', 'T', 0x04, 0x6E, 0x00, 0x00, 0x0A}, lb.out.Bytes())
}

func TestTunnel_WriteTooLarge(t *testing.T) {
	t.Parallel()
	tun := NewTunnel(&loopback{in: &bytes.Buffer{}})
	_, err := tun.Write(make([]byte, 256))
	require.ErrorIs(t, err, ErrTunnelWrite)
}

func TestTunnel_ReadUnwrapsChunks(t *testing.T) {
	t.Parallel()
	want := []byte{0x6E, 0x00, 0x00, 0x0A, 0x00, 0x02}
	stream := append([]byte{0xFF, 'U', 'A'}, wrapReply(want)...)
	lb := &loopback{in: bytes.NewBuffer(stream)}
	tun := NewTunnel(lb)

	got := make([]byte, 0, len(want))
	buf := make([]byte, 4)
	for len(got) < len(want) {
		n, err := tun.Read(buf)
		require.NoError(t, err)
		require.Positive(t, n)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, want, got)
}

func TestTunnel_PartialChunkWaits(t *testing.T) {
	t.Parallel()
	chunk := wrapReply([]byte{0x42})
	lb := &loopback{in: bytes.NewBuffer(chunk[:4])}
	tun := NewTunnel(lb)

	buf := make([]byte, 8)
	n, err := tun.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	lb.in.Write(chunk[4:])
	n, err = tun.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, buf[:n])
}

func TestTunnel_Reset(t *testing.T) {
	t.Parallel()
	chunk := wrapReply([]byte{0x42})
	lb := &loopback{in: bytes.NewBuffer(chunk[:5])}
	tun := NewTunnel(lb)

	_, _ = tun.Read(make([]byte, 1))
	tun.Reset()
	lb.in.Write([]byte{0x43})

	n, _ := tun.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
}
