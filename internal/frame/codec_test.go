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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(0xA5 ^ i*37)
	}
	return p
}

func TestEncode_KnownPackets(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
		want    []byte
		code    Code
	}{
		{
			name: "no-op",
			code: NoOp,
			want: []byte{0x6E, 0x00, 0x00, 0x00, 0x00, 0x00, 0xDF, 0xBB, 0x00, 0x00},
		},
		{
			name:    "set gain mode high",
			code:    GainMode,
			payload: []byte{0x00, 0x02},
			want:    []byte{0x6E, 0x00, 0x00, 0x0A, 0x00, 0x02, 0x38, 0x38, 0x00, 0x02, 0x20, 0x42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Encode(tt.code, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	t.Parallel()

	_, err := Encode(Code(0xFF), nil)
	require.ErrorIs(t, err, ErrUnknownFunctionCode)

	_, err = Encode(GainMode, []byte{0x01})
	require.ErrorIs(t, err, ErrPayloadLength)

	_, err = Encode(ReadSensor, nil)
	require.ErrorIs(t, err, ErrPayloadLength)
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := Encode(ShutterTemp, []byte{0x08, 0x98})
	require.NoError(t, err)
	b, err := Encode(ShutterTemp, []byte{0x08, 0x98})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_RoundTripAllFunctions(t *testing.T) {
	t.Parallel()
	for _, fn := range Functions() {
		for _, size := range fn.RequestSizes {
			payload := testPayload(size)
			wire, err := Encode(fn.Code, payload)
			require.NoError(t, err, "%s/%d", fn.Name, size)
			assert.Len(t, wire, PacketOverhead+size)

			reply, n, err := Decode(wire)
			require.NoError(t, err, "%s/%d", fn.Name, size)
			assert.Equal(t, len(wire), n)
			assert.Equal(t, fn.Code, reply.Code)
			assert.Equal(t, StatusOK, reply.Status)
			assert.Equal(t, payload, reply.Payload)
		}
	}
}

func TestDecode_SingleBitFlipsDetected(t *testing.T) {
	t.Parallel()
	for _, fn := range Functions() {
		for _, size := range fn.RequestSizes {
			if size > 6 {
				continue
			}
			wire, err := Encode(fn.Code, testPayload(size))
			require.NoError(t, err)

			// Byte 0 is the process code; every other bit is covered by a CRC.
			for i := 1; i < len(wire); i++ {
				for bit := range 8 {
					corrupt := append([]byte(nil), wire...)
					corrupt[i] ^= 1 << bit
					_, _, err := Decode(corrupt)
					require.ErrorIs(t, err, ErrChecksumMismatch,
						"%s size %d byte %d bit %d", fn.Name, size, i, bit)
				}
			}
			for bit := range 8 {
				corrupt := append([]byte(nil), wire...)
				corrupt[0] ^= 1 << bit
				_, _, err := Decode(corrupt)
				require.Error(t, err)
			}
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()
	valid := EncodeReply(GainMode, StatusOK, []byte{0x00, 0x02})

	tests := []struct {
		wantErr      error
		name         string
		buf          []byte
		wantConsumed int
	}{
		{
			name:         "empty",
			buf:          nil,
			wantErr:      ErrTruncated,
			wantConsumed: 0,
		},
		{
			name:         "garbage only",
			buf:          []byte{0x01, 0x02, 0x03},
			wantErr:      ErrTruncated,
			wantConsumed: 3,
		},
		{
			name:         "partial header after garbage",
			buf:          append([]byte{0xFF, 0xFF}, valid[:5]...),
			wantErr:      ErrTruncated,
			wantConsumed: 2,
		},
		{
			name:         "missing payload crc",
			buf:          valid[:len(valid)-1],
			wantErr:      ErrTruncated,
			wantConsumed: 0,
		},
		{
			name:         "stray process code in noise",
			buf:          []byte{0x01, ProcessCode, 0x13, 0x37, 0xAA, 0x01, 0x02, 0x03, 0x04},
			wantErr:      ErrBadHeader,
			wantConsumed: 2,
		},
		{
			name:         "unknown function",
			buf:          EncodeReply(Code(0xFE), StatusOK, nil),
			wantErr:      ErrUnknownFunctionCode,
			wantConsumed: PacketOverhead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply, n, err := Decode(tt.buf)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, reply)
			assert.Equal(t, tt.wantConsumed, n)
		})
	}
}

func TestDecode_PayloadChecksumIsNotBadHeader(t *testing.T) {
	t.Parallel()
	corrupt := EncodeReply(GainMode, StatusOK, []byte{0x00, 0x02})
	corrupt[len(corrupt)-1] ^= 0x01

	_, n, err := Decode(corrupt)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.NotErrorIs(t, err, ErrBadHeader)
	assert.Equal(t, len(corrupt), n)
}

func TestDecode_SkipsLeadingGarbage(t *testing.T) {
	t.Parallel()
	valid := EncodeReply(LensNumber, StatusOK, []byte{0x00, 0x01})
	buf := append([]byte{0x00, 0x13, 0x37}, valid...)
	buf = append(buf, 0xAA)

	reply, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 3+len(valid), n)
	assert.Equal(t, LensNumber, reply.Code)
	assert.Equal(t, []byte{0x00, 0x01}, reply.Payload)
}

func TestDecode_NonOKStatusIsNotAnError(t *testing.T) {
	t.Parallel()
	reply, _, err := Decode(EncodeReply(GainMode, StatusRangeError, nil))
	require.NoError(t, err)
	assert.False(t, reply.OK())
	assert.Equal(t, "camera range error", reply.Status.String())
}

func TestDecode_PayloadIsCopied(t *testing.T) {
	t.Parallel()
	wire := EncodeReply(GainMode, StatusOK, []byte{0x00, 0x02})
	reply, _, err := Decode(wire)
	require.NoError(t, err)
	wire[offPayload] = 0xFF
	assert.Equal(t, []byte{0x00, 0x02}, reply.Payload)
}

func TestReply_Correlates(t *testing.T) {
	t.Parallel()
	r := &Reply{Code: GainMode}
	assert.True(t, r.Correlates(GainMode))
	assert.False(t, r.Correlates(FFCModeSelect))

	var nilReply *Reply
	assert.False(t, nilReply.Correlates(GainMode))
}

func TestCode_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "GAIN_MODE", GainMode.String())
	assert.Equal(t, "0xFE", Code(0xFE).String())
}
