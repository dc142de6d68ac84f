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

// Package testing provides test utilities including a wire-level Tau2
// simulator.
//
// VirtualTau2 implements io.ReadWriter and answers command packets the way
// the camera does: one reply per request, same function code, status byte
// and big-endian payload, CRC-16/CCITT on header and payload.
package testing

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/tau2cam/go-tau2/internal/frame"
	"github.com/tau2cam/go-tau2/internal/syncutil"
)

// Selector words carried in the first two payload bytes.
const (
	selFFCFramesSet   = 0x0002
	selFFCFramesGet   = 0x0003
	selShutterModeGet = 0x0001
	selShutterModeSet = 0x0000
	selXPGet          = 0x02
	selXPSet          = 0x03
	selCMOSGet        = 0x08
	selCMOSSet        = 0x06
	selTLinearMode    = 0x0040
	selTLinearRes     = 0x0010
	selSensorFPA      = 0x0000
	selSensorHousing  = 0x000A
	longFFCDone       = 0xFFFF
)

// ErrClosed is returned by a closed simulator.
var ErrClosed = errors.New("simulator closed")

// CameraState is the simulated camera's configuration.
type CameraState struct {
	ShutterTempCenti int16
	FPATempDeci      int16
	HousingTempCenti int16
	Gain             uint16
	FFCMode          uint16
	FFCFrames        uint16
	Lens             uint16
	ShutterTempMode  uint16
	XPMode           uint16
	CMOSDepth        uint16
	TLinearMode      uint16
	TLinearRes       uint16
	VideoStandard    uint16
	SerialCamera     uint32
	SerialSensor     uint32
	ShortFFCs        int
	LongFFCs         int
}

// DefaultCameraState returns factory defaults: automatic gain, automatic
// FFC over 8 frames, BT656 output.
func DefaultCameraState() CameraState {
	return CameraState{
		Gain:             0x0000,
		FFCMode:          0x0001,
		FFCFrames:        0x0001,
		ShutterTempMode:  0x0001,
		XPMode:           0x0001,
		CMOSDepth:        0x0000,
		VideoStandard:    0x0000,
		ShutterTempCenti: 2500,
		FPATempDeci:      312,
		HousingTempCenti: 3045,
		SerialCamera:     0x0001E240,
		SerialSensor:     0x0000D431,
	}
}

// CommandLogEntry records a command received by the simulator
type CommandLogEntry struct {
	Payload []byte
	Code    frame.Code
}

// VirtualTau2 simulates a Tau2 core at the wire protocol level.
type VirtualTau2 struct {
	rxBuffer    bytes.Buffer
	txBuffer    bytes.Buffer
	frozen      map[frame.Code]bool
	log         []CommandLogEntry
	prefix      []byte
	unsolicited []frame.Code
	state       CameraState
	mu          syncutil.Mutex
	truncateTo  int
	corrupt     int
	drop        int
	status      frame.Status
	closed      bool
}

// NewVirtualTau2 creates a simulator in DefaultCameraState.
func NewVirtualTau2() *VirtualTau2 {
	return &VirtualTau2{
		state:      DefaultCameraState(),
		frozen:     make(map[frame.Code]bool),
		truncateTo: -1,
	}
}

// Write implements io.Writer. Complete command packets are answered
// immediately; partial packets wait for more bytes.
func (v *VirtualTau2) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrClosed
	}
	v.rxBuffer.Write(data)
	v.processInput()
	return len(data), nil
}

// Read implements io.Reader. It returns 0, nil when no reply is pending,
// like a serial port whose read timeout expired.
func (v *VirtualTau2) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrClosed
	}
	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, _ := v.txBuffer.Read(buf)
	return n, nil
}

// Close makes further reads and writes fail.
func (v *VirtualTau2) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

// DiscardOutput drops replies not yet read.
func (v *VirtualTau2) DiscardOutput() {
	v.mu.Lock()
	v.txBuffer.Reset()
	v.mu.Unlock()
}

func (v *VirtualTau2) processInput() {
	for {
		req, consumed, err := frame.Decode(v.rxBuffer.Bytes())
		if errors.Is(err, frame.ErrTruncated) {
			v.rxBuffer.Next(consumed)
			return
		}
		v.rxBuffer.Next(consumed)
		if err != nil {
			continue
		}
		v.log = append(v.log, CommandLogEntry{Code: req.Code, Payload: req.Payload})
		status, payload := v.handle(req.Code, req.Payload)
		v.respond(req.Code, status, payload)
	}
}

// respond queues a reply, applying pending fault injection.
func (v *VirtualTau2) respond(code frame.Code, status frame.Status, payload []byte) {
	if v.drop > 0 {
		v.drop--
		return
	}
	for _, c := range v.unsolicited {
		v.txBuffer.Write(frame.EncodeReply(c, frame.StatusOK, nil))
	}
	v.unsolicited = nil
	if v.prefix != nil {
		v.txBuffer.Write(v.prefix)
		v.prefix = nil
	}
	if v.status != frame.StatusOK {
		status, payload = v.status, nil
		v.status = frame.StatusOK
	}

	reply := frame.EncodeReply(code, status, payload)
	if v.corrupt > 0 {
		v.corrupt--
		reply[len(reply)-1] ^= 0x01
	}
	if v.truncateTo >= 0 && v.truncateTo < len(reply) {
		reply = reply[:v.truncateTo]
		v.truncateTo = -1
	}
	v.txBuffer.Write(reply)
}

//nolint:gocyclo,cyclop // one case per function code
func (v *VirtualTau2) handle(code frame.Code, p []byte) (frame.Status, []byte) {
	s := &v.state
	set := !v.frozen[code]

	switch code {
	case frame.NoOp:
		return frame.StatusOK, nil
	case frame.SerialNumber:
		out := binary.BigEndian.AppendUint32(nil, s.SerialCamera)
		return frame.StatusOK, binary.BigEndian.AppendUint32(out, s.SerialSensor)
	case frame.Revision:
		return frame.StatusOK, []byte{0x00, 0x01, 0x00, 0x07, 0x00, 0x02, 0x00, 0x03}
	case frame.GainMode:
		return v.register(&s.Gain, p, set, 4)
	case frame.LensNumber:
		return v.register(&s.Lens, p, set, 2)
	case frame.VideoStandard:
		return frame.StatusOK, word(s.VideoStandard)
	case frame.FFCModeSelect:
		if len(p) == 4 {
			switch word16(p) {
			case selFFCFramesSet:
				if set {
					s.FFCFrames = word16(p[2:])
				}
				return frame.StatusOK, nil
			case selFFCFramesGet:
				return frame.StatusOK, word(s.FFCFrames)
			}
			return frame.StatusRangeError, nil
		}
		return v.register(&s.FFCMode, p, set, 3)
	case frame.DoFFC:
		if len(p) == 2 {
			s.LongFFCs++
			return frame.StatusOK, word(longFFCDone)
		}
		s.ShortFFCs++
		return frame.StatusOK, nil
	case frame.DigitalOutputMode:
		return v.digitalOutput(p, set)
	case frame.ReadSensor:
		switch word16(p) {
		case selSensorFPA:
			return frame.StatusOK, word(uint16(s.FPATempDeci))
		case selSensorHousing:
			return frame.StatusOK, word(uint16(s.HousingTempCenti))
		}
		return frame.StatusRangeError, nil
	case frame.ShutterTemp:
		return v.shutter(p, set)
	case frame.TLinear:
		return v.tlinear(p, set)
	default:
		return frame.StatusUndefinedFunctionError, nil
	}
}

// register serves a plain get/set word that echoes on set.
func (*VirtualTau2) register(reg *uint16, p []byte, set bool, limit uint16) (frame.Status, []byte) {
	if len(p) == 0 {
		return frame.StatusOK, word(*reg)
	}
	val := word16(p)
	if val >= limit {
		return frame.StatusRangeError, nil
	}
	if set {
		*reg = val
	}
	return frame.StatusOK, word(*reg)
}

func (v *VirtualTau2) digitalOutput(p []byte, set bool) (frame.Status, []byte) {
	s := &v.state
	if len(p) != 2 {
		return frame.StatusOK, word(s.XPMode)
	}
	switch p[0] {
	case selXPGet:
		return frame.StatusOK, word(s.XPMode)
	case selCMOSGet:
		return frame.StatusOK, word(s.CMOSDepth)
	case selXPSet:
		if set {
			s.XPMode = uint16(p[1])
		}
		return frame.StatusOK, append([]byte(nil), p...)
	case selCMOSSet:
		if set {
			s.CMOSDepth = uint16(p[1])
		}
		return frame.StatusOK, append([]byte(nil), p...)
	}
	return frame.StatusRangeError, nil
}

func (v *VirtualTau2) shutter(p []byte, set bool) (frame.Status, []byte) {
	s := &v.state
	switch len(p) {
	case 0:
		return frame.StatusOK, word(uint16(s.ShutterTempCenti))
	case 2:
		if set {
			s.ShutterTempCenti = int16(word16(p))
		}
		return frame.StatusOK, nil
	}
	switch word16(p) {
	case selShutterModeGet:
		return frame.StatusOK, word(s.ShutterTempMode)
	case selShutterModeSet:
		if set {
			s.ShutterTempMode = word16(p[2:])
		}
		return frame.StatusOK, nil
	}
	return frame.StatusRangeError, nil
}

func (v *VirtualTau2) tlinear(p []byte, set bool) (frame.Status, []byte) {
	s := &v.state
	var reg *uint16
	switch word16(p) {
	case selTLinearMode:
		reg = &s.TLinearMode
	case selTLinearRes:
		reg = &s.TLinearRes
	default:
		return frame.StatusRangeError, nil
	}
	if len(p) == 2 {
		return frame.StatusOK, word(*reg)
	}
	if set {
		*reg = word16(p[2:])
	}
	return frame.StatusOK, nil
}

func word(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func word16(p []byte) uint16 {
	if len(p) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// State returns a copy of the simulated camera state
func (v *VirtualTau2) State() CameraState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetState replaces the simulated camera state
func (v *VirtualTau2) SetState(s CameraState) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

// Freeze makes the camera acknowledge sets for code without applying them.
func (v *VirtualTau2) Freeze(code frame.Code) {
	v.mu.Lock()
	v.frozen[code] = true
	v.mu.Unlock()
}

// InjectChecksumError corrupts the payload CRC of the next n replies.
func (v *VirtualTau2) InjectChecksumError(n int) {
	v.mu.Lock()
	v.corrupt = n
	v.mu.Unlock()
}

// InjectTruncation cuts the next reply to n bytes.
func (v *VirtualTau2) InjectTruncation(n int) {
	v.mu.Lock()
	v.truncateTo = n
	v.mu.Unlock()
}

// InjectUnsolicited sends an OK reply for each code before the next reply.
func (v *VirtualTau2) InjectUnsolicited(codes ...frame.Code) {
	v.mu.Lock()
	v.unsolicited = append(v.unsolicited, codes...)
	v.mu.Unlock()
}

// InjectNoise sends raw bytes ahead of the next reply.
func (v *VirtualTau2) InjectNoise(noise []byte) {
	v.mu.Lock()
	v.prefix = append(v.prefix, noise...)
	v.mu.Unlock()
}

// InjectStatus answers the next command with status and no payload.
func (v *VirtualTau2) InjectStatus(status frame.Status) {
	v.mu.Lock()
	v.status = status
	v.mu.Unlock()
}

// DropReplies leaves the next n commands unanswered.
func (v *VirtualTau2) DropReplies(n int) {
	v.mu.Lock()
	v.drop = n
	v.mu.Unlock()
}

// CommandLog returns a copy of the commands received.
func (v *VirtualTau2) CommandLog() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.log...)
}

// CommandCount returns how many times code was received.
func (v *VirtualTau2) CommandCount(code frame.Code) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, e := range v.log {
		if e.Code == code {
			n++
		}
	}
	return n
}

// HasPendingResponse returns true if reply bytes are waiting to be read.
func (v *VirtualTau2) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}
