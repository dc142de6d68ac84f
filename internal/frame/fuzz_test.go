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
	"bytes"
	"testing"
)

// Run with: go test -fuzz=FuzzDecode -fuzztime=30s ./internal/frame/

// FuzzDecode feeds arbitrary bytes to the decoder. Garbage from a noisy
// serial line must never panic and must never report consuming more bytes
// than were supplied.
func FuzzDecode(f *testing.F) {
	f.Add(EncodeReply(NoOp, StatusOK, nil))
	f.Add(EncodeReply(GainMode, StatusOK, []byte{0x00, 0x02}))
	f.Add(EncodeReply(SerialNumber, StatusOK, []byte{0, 0, 0x30, 0x39, 0, 0, 0x10, 0x92}))
	f.Add([]byte{})
	f.Add([]byte{ProcessCode})
	f.Add([]byte{ProcessCode, 0, 0, 0x0A, 0xFF, 0xFF, 0, 0})
	f.Add(bytes.Repeat([]byte{ProcessCode}, 32))

	f.Fuzz(func(t *testing.T, buf []byte) {
		reply, n, err := Decode(buf)
		if n < 0 || n > len(buf) {
			t.Fatalf("consumed %d of %d bytes", n, len(buf))
		}
		if err == nil {
			if reply == nil {
				t.Fatal("nil reply without error")
			}
			if len(reply.Payload) > MaxPayloadLength {
				t.Fatalf("payload of %d bytes", len(reply.Payload))
			}
		}
	})
}

// FuzzRoundTrip checks that any valid payload for GAIN_MODE survives the codec.
func FuzzRoundTrip(f *testing.F) {
	f.Add(uint16(0x0002))
	f.Add(uint16(0xFFFF))
	f.Add(uint16(0x6E6E))

	f.Fuzz(func(t *testing.T, v uint16) {
		payload := []byte{byte(v >> 8), byte(v)}
		wire, err := Encode(GainMode, payload)
		if err != nil {
			t.Fatal(err)
		}
		reply, n, err := Decode(wire)
		if err != nil {
			t.Fatal(err)
		}
		if n != len(wire) || !bytes.Equal(reply.Payload, payload) {
			t.Fatalf("round trip mismatch: %x -> %x", payload, reply.Payload)
		}
	})
}
