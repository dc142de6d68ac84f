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

// Mode selects which of the camera's two mutually exclusive channels is
// active.
type Mode int

const (
	// ModeCommand allows command exchanges on the control channel.
	ModeCommand Mode = iota
	// ModeAcquisition hands the link to the frame stream.
	ModeAcquisition
)

func (m Mode) String() string {
	switch m {
	case ModeCommand:
		return "command"
	case ModeAcquisition:
		return "acquisition"
	default:
		return "unknown"
	}
}
