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
	"encoding/binary"
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	// ErrBadHeader marks a process code whose header does not check out.
	// Decode reports it with a count that skips only that byte.
	ErrBadHeader           = fmt.Errorf("header %w", ErrChecksumMismatch)
	ErrTruncated           = errors.New("truncated packet")
	ErrUnknownFunctionCode = errors.New("unknown function code")
	ErrUnsolicited         = errors.New("unsolicited reply")
	ErrPayloadLength       = errors.New("payload length does not match function schema")
)

// Reply is a decoded packet received from the camera.
type Reply struct {
	Payload []byte
	Code    Code
	Status  Status
}

// Correlates reports whether the reply answers a request for code.
func (r *Reply) Correlates(code Code) bool {
	return r != nil && r.Code == code
}

// OK reports whether the camera accepted the request.
func (r *Reply) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Encode builds a host request packet for code carrying payload.
// The payload length must be one the function schema accepts.
func Encode(code Code, payload []byte) ([]byte, error) {
	fn, ok := Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunctionCode, code)
	}
	if !fn.Accepts(len(payload)) {
		return nil, fmt.Errorf("%w: %s accepts %v bytes, got %d",
			ErrPayloadLength, fn.Name, fn.RequestSizes, len(payload))
	}
	return EncodeReply(code, StatusOK, payload), nil
}

// EncodeReply builds a packet as the camera emits it, without schema checks.
// Used by simulators and tests to produce replies.
func EncodeReply(code Code, status Status, payload []byte) []byte {
	out := make([]byte, PacketOverhead+len(payload))
	out[offProcess] = ProcessCode
	out[offStatus] = byte(status)
	out[offReserved] = Reserved
	out[offFunction] = byte(code)
	binary.BigEndian.PutUint16(out[offCount:], uint16(len(payload))) //nolint:gosec // bounded by callers
	binary.BigEndian.PutUint16(out[offCRC1:], CalculateCRC(out[:HeaderLength]))
	copy(out[offPayload:], payload)
	binary.BigEndian.PutUint16(out[offPayload+len(payload):], CalculateCRC(payload))
	return out
}

// Decode extracts the first packet from buf.
//
// The returned count is the number of bytes of buf that were examined and
// can be dropped: leading garbage plus the packet itself on success, or the
// bytes up to the rejected packet on error. ErrTruncated means more input
// is needed; the packet start (if any) is kept.
func Decode(buf []byte) (*Reply, int, error) {
	start := bytes.IndexByte(buf, ProcessCode)
	if start < 0 {
		return nil, len(buf), fmt.Errorf("%w: no process code in %d bytes", ErrTruncated, len(buf))
	}
	pkt := buf[start:]
	if len(pkt) < HeaderLength+HeaderCRCLength {
		return nil, start, fmt.Errorf("%w: header needs %d bytes, have %d",
			ErrTruncated, HeaderLength+HeaderCRCLength, len(pkt))
	}

	gotCRC := binary.BigEndian.Uint16(pkt[offCRC1:])
	if wantCRC := CalculateCRC(pkt[:HeaderLength]); gotCRC != wantCRC {
		return nil, start + 1, fmt.Errorf("%w: crc 0x%04X, computed 0x%04X",
			ErrBadHeader, gotCRC, wantCRC)
	}

	n := int(binary.BigEndian.Uint16(pkt[offCount:]))
	if n > MaxPayloadLength {
		return nil, start + 1, fmt.Errorf("%w: implausible byte count %d", ErrBadHeader, n)
	}
	total := PacketOverhead + n
	if len(pkt) < total {
		return nil, start, fmt.Errorf("%w: packet needs %d bytes, have %d", ErrTruncated, total, len(pkt))
	}

	payload := pkt[offPayload : offPayload+n]
	gotCRC = binary.BigEndian.Uint16(pkt[offPayload+n:])
	if wantCRC := CalculateCRC(payload); gotCRC != wantCRC {
		return nil, start + total, fmt.Errorf("%w: payload crc 0x%04X, computed 0x%04X",
			ErrChecksumMismatch, gotCRC, wantCRC)
	}

	code := Code(pkt[offFunction])
	if _, ok := Lookup(code); !ok {
		return nil, start + total, fmt.Errorf("%w: %s", ErrUnknownFunctionCode, code)
	}

	return &Reply{
		Code:    code,
		Status:  Status(pkt[offStatus]),
		Payload: bytes.Clone(payload),
	}, start + total, nil
}
