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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tau2cam/go-tau2/internal/frame"
)

// roundTrip writes one command and decodes the simulator's reply.
func roundTrip(t *testing.T, sim *VirtualTau2, code frame.Code, payload []byte) *frame.Reply {
	t.Helper()
	packet, err := frame.Encode(code, payload)
	require.NoError(t, err)
	_, err = sim.Write(packet)
	require.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	reply, consumed, err := frame.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	return reply
}

func TestVirtualTau2_NoOp(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	reply := roundTrip(t, sim, frame.NoOp, nil)
	assert.Equal(t, frame.NoOp, reply.Code)
	assert.True(t, reply.OK())
	assert.Empty(t, reply.Payload)
	assert.Equal(t, 1, sim.CommandCount(frame.NoOp))
}

func TestVirtualTau2_Registers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    frame.Code
		set     []byte
		get     []byte
		want    []byte
		setEcho bool
	}{
		{name: "gain", code: frame.GainMode, set: []byte{0x00, 0x02}, want: []byte{0x00, 0x02}, setEcho: true},
		{name: "ffc mode", code: frame.FFCModeSelect, set: []byte{0x00, 0x00}, want: []byte{0x00, 0x00}, setEcho: true},
		{name: "lens", code: frame.LensNumber, set: []byte{0x00, 0x01}, want: []byte{0x00, 0x01}, setEcho: true},
		{
			name: "ffc frames", code: frame.FFCModeSelect,
			set: []byte{0x00, 0x02, 0x00, 0x02}, get: []byte{0x00, 0x03, 0x00, 0x00}, want: []byte{0x00, 0x02},
		},
		{
			name: "shutter temp mode", code: frame.ShutterTemp,
			set: []byte{0x00, 0x00, 0x00, 0x02}, get: []byte{0x00, 0x01, 0x00, 0x00}, want: []byte{0x00, 0x02},
		},
		{
			name: "xp mode", code: frame.DigitalOutputMode,
			set: []byte{0x03, 0x02}, get: []byte{0x02, 0x00}, want: []byte{0x00, 0x02},
		},
		{
			name: "cmos depth", code: frame.DigitalOutputMode,
			set: []byte{0x06, 0x03}, get: []byte{0x08, 0x00}, want: []byte{0x00, 0x03},
		},
		{
			name: "tlinear mode", code: frame.TLinear,
			set: []byte{0x00, 0x40, 0x00, 0x01}, get: []byte{0x00, 0x40}, want: []byte{0x00, 0x01},
		},
		{
			name: "tlinear resolution", code: frame.TLinear,
			set: []byte{0x00, 0x10, 0x00, 0x01}, get: []byte{0x00, 0x10}, want: []byte{0x00, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim := NewVirtualTau2()
			setReply := roundTrip(t, sim, tt.code, tt.set)
			require.True(t, setReply.OK())
			if tt.setEcho {
				assert.Equal(t, tt.want, setReply.Payload)
			}

			getReply := roundTrip(t, sim, tt.code, tt.get)
			require.True(t, getReply.OK())
			assert.Equal(t, tt.want, getReply.Payload)
		})
	}
}

func TestVirtualTau2_Sensors(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	state := sim.State()

	fpa := roundTrip(t, sim, frame.ReadSensor, []byte{0x00, 0x00})
	assert.Equal(t, word(uint16(state.FPATempDeci)), fpa.Payload)

	housing := roundTrip(t, sim, frame.ReadSensor, []byte{0x00, 0x0A})
	assert.Equal(t, word(uint16(state.HousingTempCenti)), housing.Payload)

	serial := roundTrip(t, sim, frame.SerialNumber, nil)
	assert.Len(t, serial.Payload, 8)
}

func TestVirtualTau2_LongFFC(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	reply := roundTrip(t, sim, frame.DoFFC, []byte{0x00, 0x01})
	assert.Equal(t, []byte{0xFF, 0xFF}, reply.Payload)

	short := roundTrip(t, sim, frame.DoFFC, nil)
	assert.Empty(t, short.Payload)

	state := sim.State()
	assert.Equal(t, 1, state.LongFFCs)
	assert.Equal(t, 1, state.ShortFFCs)
}

func TestVirtualTau2_RangeError(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	reply := roundTrip(t, sim, frame.GainMode, []byte{0x00, 0x09})
	assert.Equal(t, frame.StatusRangeError, reply.Status)
	assert.Equal(t, uint16(0), sim.State().Gain)
}

func TestVirtualTau2_UnsupportedFunction(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	reply := roundTrip(t, sim, frame.CameraReset, nil)
	assert.Equal(t, frame.StatusUndefinedFunctionError, reply.Status)
}

func TestVirtualTau2_Freeze(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	sim.Freeze(frame.GainMode)

	reply := roundTrip(t, sim, frame.GainMode, []byte{0x00, 0x02})
	assert.Equal(t, []byte{0x00, 0x00}, reply.Payload)
}

func TestVirtualTau2_ErrorInjection(t *testing.T) {
	t.Parallel()

	packet, err := frame.Encode(frame.NoOp, nil)
	require.NoError(t, err)

	readAll := func(sim *VirtualTau2) []byte {
		buf := make([]byte, 1024)
		n, readErr := sim.Read(buf)
		require.NoError(t, readErr)
		return buf[:n]
	}

	t.Run("checksum", func(t *testing.T) {
		t.Parallel()
		sim := NewVirtualTau2()
		sim.InjectChecksumError(1)
		_, _ = sim.Write(packet)
		_, _, err := frame.Decode(readAll(sim))
		require.ErrorIs(t, err, frame.ErrChecksumMismatch)

		_, _ = sim.Write(packet)
		_, _, err = frame.Decode(readAll(sim))
		require.NoError(t, err)
	})

	t.Run("truncation", func(t *testing.T) {
		t.Parallel()
		sim := NewVirtualTau2()
		sim.InjectTruncation(5)
		_, _ = sim.Write(packet)
		assert.Len(t, readAll(sim), 5)
	})

	t.Run("unsolicited", func(t *testing.T) {
		t.Parallel()
		sim := NewVirtualTau2()
		sim.InjectUnsolicited(frame.GainMode)
		_, _ = sim.Write(packet)
		data := readAll(sim)

		first, n, err := frame.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, frame.GainMode, first.Code)
		second, _, err := frame.Decode(data[n:])
		require.NoError(t, err)
		assert.Equal(t, frame.NoOp, second.Code)
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		sim := NewVirtualTau2()
		sim.InjectStatus(frame.StatusNotReady)
		_, _ = sim.Write(packet)
		reply, _, err := frame.Decode(readAll(sim))
		require.NoError(t, err)
		assert.Equal(t, frame.StatusNotReady, reply.Status)
	})

	t.Run("drop", func(t *testing.T) {
		t.Parallel()
		sim := NewVirtualTau2()
		sim.DropReplies(1)
		_, _ = sim.Write(packet)
		assert.False(t, sim.HasPendingResponse())
		assert.Equal(t, 1, sim.CommandCount(frame.NoOp))
	})
}

func TestVirtualTau2_PartialWrites(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	packet, err := frame.Encode(frame.GainMode, nil)
	require.NoError(t, err)

	for _, b := range packet[:len(packet)-1] {
		_, err = sim.Write([]byte{b})
		require.NoError(t, err)
		assert.False(t, sim.HasPendingResponse())
	}
	_, err = sim.Write(packet[len(packet)-1:])
	require.NoError(t, err)
	assert.True(t, sim.HasPendingResponse())
}

func TestVirtualTau2_IgnoresCorruptRequests(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	packet, err := frame.Encode(frame.NoOp, nil)
	require.NoError(t, err)

	_, err = sim.Write(CorruptHeaderCRC(packet))
	require.NoError(t, err)
	assert.False(t, sim.HasPendingResponse())
	assert.Empty(t, sim.CommandLog())
}

func TestVirtualTau2_Closed(t *testing.T) {
	t.Parallel()

	sim := NewVirtualTau2()
	require.NoError(t, sim.Close())
	_, err := sim.Write([]byte{0x6E})
	require.ErrorIs(t, err, ErrClosed)
	_, err = sim.Read(make([]byte, 4))
	require.ErrorIs(t, err, ErrClosed)
}
