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
	"fmt"
	"slices"
)

// Code is a camera function code.
type Code byte

// Supported function codes
const (
	NoOp                  Code = 0x00
	SetDefaults           Code = 0x01
	CameraReset           Code = 0x02
	RestoreFactory        Code = 0x03
	SerialNumber          Code = 0x04
	Revision              Code = 0x05
	BaudRate              Code = 0x07
	GainMode              Code = 0x0A
	FFCModeSelect         Code = 0x0B
	DoFFC                 Code = 0x0C
	FFCPeriod             Code = 0x0D
	FFCTempDelta          Code = 0x0E
	DigitalOutputMode     Code = 0x12
	AGCACECorrect         Code = 0x1C
	LensNumber            Code = 0x1E
	ReadSensor            Code = 0x20
	ExternalSync          Code = 0x21
	FFCWarnTime           Code = 0x3C
	ShutterTemp           Code = 0x4D
	ReadArrayAverage      Code = 0x68
	VideoStandard         Code = 0x72
	ShutterPosition       Code = 0x79
	TransferFrame         Code = 0x82
	TLinear               Code = 0x8E
	PlanckCoefficients    Code = 0xB9
	MemoryStatus          Code = 0xC4
	WriteNVFFCTable       Code = 0xC6
	ReadMemory256         Code = 0xD2
	EraseBlock            Code = 0xD4
	GetNVMemorySize       Code = 0xD5
	GetMemoryAddress      Code = 0xD6
	LensResponseParameter Code = 0xE5
)

// Function describes the request schema of one function code.
type Function struct {
	Name string
	// RequestSizes lists every payload length the camera accepts for the code.
	RequestSizes []int
	Code         Code
}

// Accepts reports whether a request payload of n bytes fits the schema.
func (f Function) Accepts(n int) bool {
	return slices.Contains(f.RequestSizes, n)
}

var functions = map[Code]Function{
	NoOp:                  {Code: NoOp, Name: "NO_OP", RequestSizes: []int{0}},
	SetDefaults:           {Code: SetDefaults, Name: "SET_DEFAULTS", RequestSizes: []int{0}},
	CameraReset:           {Code: CameraReset, Name: "CAMERA_RESET", RequestSizes: []int{0}},
	RestoreFactory:        {Code: RestoreFactory, Name: "RESTORE_FACTORY_DEFAULTS", RequestSizes: []int{0}},
	SerialNumber:          {Code: SerialNumber, Name: "SERIAL_NUMBER", RequestSizes: []int{0}},
	Revision:              {Code: Revision, Name: "GET_REVISION", RequestSizes: []int{0}},
	BaudRate:              {Code: BaudRate, Name: "BAUD_RATE", RequestSizes: []int{0, 2}},
	GainMode:              {Code: GainMode, Name: "GAIN_MODE", RequestSizes: []int{0, 2}},
	FFCModeSelect:         {Code: FFCModeSelect, Name: "FFC_MODE_SELECT", RequestSizes: []int{0, 2, 4}},
	DoFFC:                 {Code: DoFFC, Name: "DO_FFC", RequestSizes: []int{0, 2}},
	FFCPeriod:             {Code: FFCPeriod, Name: "FFC_PERIOD", RequestSizes: []int{0, 2, 4}},
	FFCTempDelta:          {Code: FFCTempDelta, Name: "FFC_TEMP_DELTA", RequestSizes: []int{0, 2, 4}},
	DigitalOutputMode:     {Code: DigitalOutputMode, Name: "DIGITAL_OUTPUT_MODE", RequestSizes: []int{0, 2}},
	AGCACECorrect:         {Code: AGCACECorrect, Name: "AGC_ACE_CORRECT", RequestSizes: []int{0, 2}},
	LensNumber:            {Code: LensNumber, Name: "LENS_NUMBER", RequestSizes: []int{0, 2, 4}},
	ReadSensor:            {Code: ReadSensor, Name: "READ_SENSOR", RequestSizes: []int{2}},
	ExternalSync:          {Code: ExternalSync, Name: "EXTERNAL_SYNC", RequestSizes: []int{0, 2}},
	FFCWarnTime:           {Code: FFCWarnTime, Name: "FFC_WARN_TIME", RequestSizes: []int{0, 2}},
	ShutterTemp:           {Code: ShutterTemp, Name: "SHUTTER_TEMP", RequestSizes: []int{0, 2, 4}},
	ReadArrayAverage:      {Code: ReadArrayAverage, Name: "READ_ARRAY_AVERAGE", RequestSizes: []int{0}},
	VideoStandard:         {Code: VideoStandard, Name: "VIDEO_STANDARD", RequestSizes: []int{0, 2}},
	ShutterPosition:       {Code: ShutterPosition, Name: "SHUTTER_POSITION", RequestSizes: []int{0, 2}},
	TransferFrame:         {Code: TransferFrame, Name: "TRANSFER_FRAME", RequestSizes: []int{4}},
	TLinear:               {Code: TLinear, Name: "TLINEAR", RequestSizes: []int{2, 4}},
	PlanckCoefficients:    {Code: PlanckCoefficients, Name: "PLANCK_COEFFICIENTS", RequestSizes: []int{2, 18}},
	MemoryStatus:          {Code: MemoryStatus, Name: "MEMORY_STATUS", RequestSizes: []int{0}},
	WriteNVFFCTable:       {Code: WriteNVFFCTable, Name: "WRITE_NVFFC_TABLE", RequestSizes: []int{0}},
	ReadMemory256:         {Code: ReadMemory256, Name: "READ_MEMORY_256", RequestSizes: []int{6}},
	EraseBlock:            {Code: EraseBlock, Name: "ERASE_BLOCK", RequestSizes: []int{2}},
	GetNVMemorySize:       {Code: GetNVMemorySize, Name: "GET_NV_MEMORY_SIZE", RequestSizes: []int{2}},
	GetMemoryAddress:      {Code: GetMemoryAddress, Name: "GET_MEMORY_ADDRESS", RequestSizes: []int{4}},
	LensResponseParameter: {Code: LensResponseParameter, Name: "LENS_RESPONSE_PARAMS", RequestSizes: []int{2, 4, 6}},
}

// Lookup returns the schema for code.
func Lookup(code Code) (Function, bool) {
	f, ok := functions[code]
	return f, ok
}

// Functions returns every supported function, ordered by code.
func Functions() []Function {
	out := make([]Function, 0, len(functions))
	for _, f := range functions {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Function) int { return int(a.Code) - int(b.Code) })
	return out
}

// String returns the function name, or the hex code if unsupported.
func (c Code) String() string {
	if f, ok := functions[c]; ok {
		return f.Name
	}
	return fmt.Sprintf("0x%02X", byte(c))
}
