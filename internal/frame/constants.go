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

// Packet markers
const (
	ProcessCode = 0x6E // First byte of every packet, both directions
	Reserved    = 0x00 // Third byte of every packet
)

// CRC-16/CCITT parameters used for both header and payload checksums
const (
	CRCPolynomial = 0x1021
	CRCInitial    = 0x0000
)

// Packet layout
const (
	HeaderLength     = 6  // process code, status, reserved, function, byte count (2)
	HeaderCRCLength  = 2  // CRC over the header
	PayloadCRCLength = 2  // CRC over the payload, present even when the payload is empty
	PacketOverhead   = 10 // HeaderLength + HeaderCRCLength + PayloadCRCLength
	MaxPayloadLength = 512
)

// Byte offsets inside a packet
const (
	offProcess  = 0
	offStatus   = 1
	offReserved = 2
	offFunction = 3
	offCount    = 4
	offCRC1     = 6
	offPayload  = 8
)

// Status is the camera status byte carried by every reply.
type Status byte

// Camera status codes
const (
	StatusOK                     Status = 0x00
	StatusNotReady               Status = 0x02
	StatusRangeError             Status = 0x03
	StatusUndefinedError         Status = 0x04
	StatusUndefinedProcessError  Status = 0x05
	StatusUndefinedFunctionError Status = 0x06
	StatusTimeoutError           Status = 0x07
	StatusByteCountError         Status = 0x09
	StatusFeatureNotEnabled      Status = 0x0A
)

var statusMeanings = map[Status]string{
	StatusOK:                     "response OK",
	StatusNotReady:               "camera not ready",
	StatusRangeError:             "camera range error",
	StatusUndefinedError:         "camera returned an undefined error",
	StatusUndefinedProcessError:  "camera process undefined",
	StatusUndefinedFunctionError: "camera function undefined",
	StatusTimeoutError:           "camera timeout error",
	StatusByteCountError:         "byte count error",
	StatusFeatureNotEnabled:      "feature not enabled",
}

// String returns the human meaning of the status code.
func (s Status) String() string {
	if m, ok := statusMeanings[s]; ok {
		return m
	}
	return "unknown status"
}
