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

package tau2

import "github.com/tau2cam/go-tau2/internal/frame"

// Function codes accepted by Execute.
const (
	FuncNoOp                  FunctionCode = frame.NoOp
	FuncSetDefaults           FunctionCode = frame.SetDefaults
	FuncCameraReset           FunctionCode = frame.CameraReset
	FuncRestoreFactory        FunctionCode = frame.RestoreFactory
	FuncSerialNumber          FunctionCode = frame.SerialNumber
	FuncRevision              FunctionCode = frame.Revision
	FuncBaudRate              FunctionCode = frame.BaudRate
	FuncGainMode              FunctionCode = frame.GainMode
	FuncFFCModeSelect         FunctionCode = frame.FFCModeSelect
	FuncDoFFC                 FunctionCode = frame.DoFFC
	FuncFFCPeriod             FunctionCode = frame.FFCPeriod
	FuncFFCTempDelta          FunctionCode = frame.FFCTempDelta
	FuncDigitalOutputMode     FunctionCode = frame.DigitalOutputMode
	FuncAGCACECorrect         FunctionCode = frame.AGCACECorrect
	FuncLensNumber            FunctionCode = frame.LensNumber
	FuncReadSensor            FunctionCode = frame.ReadSensor
	FuncExternalSync          FunctionCode = frame.ExternalSync
	FuncFFCWarnTime           FunctionCode = frame.FFCWarnTime
	FuncShutterTemp           FunctionCode = frame.ShutterTemp
	FuncReadArrayAverage      FunctionCode = frame.ReadArrayAverage
	FuncVideoStandard         FunctionCode = frame.VideoStandard
	FuncShutterPosition       FunctionCode = frame.ShutterPosition
	FuncTransferFrame         FunctionCode = frame.TransferFrame
	FuncTLinear               FunctionCode = frame.TLinear
	FuncPlanckCoefficients    FunctionCode = frame.PlanckCoefficients
	FuncMemoryStatus          FunctionCode = frame.MemoryStatus
	FuncWriteNVFFCTable       FunctionCode = frame.WriteNVFFCTable
	FuncReadMemory256         FunctionCode = frame.ReadMemory256
	FuncEraseBlock            FunctionCode = frame.EraseBlock
	FuncGetNVMemorySize       FunctionCode = frame.GetNVMemorySize
	FuncGetMemoryAddress      FunctionCode = frame.GetMemoryAddress
	FuncLensResponseParameter FunctionCode = frame.LensResponseParameter
)

// LookupFunction returns the name and accepted request payload sizes of code.
func LookupFunction(code FunctionCode) (name string, requestSizes []int, ok bool) {
	f, ok := frame.Lookup(code)
	if !ok {
		return "", nil, false
	}
	return f.Name, append([]int(nil), f.RequestSizes...), true
}
