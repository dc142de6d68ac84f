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

import "fmt"

// GainMode selects the camera's dynamic range.
type GainMode uint16

const (
	GainAutomatic GainMode = 0x0000
	GainLow       GainMode = 0x0001
	GainHigh      GainMode = 0x0002
	GainManual    GainMode = 0x0003
)

// Valid reports whether g is a code the camera defines.
func (g GainMode) Valid() bool { return g <= GainManual }

func (g GainMode) String() string {
	switch g {
	case GainAutomatic:
		return "automatic"
	case GainLow:
		return "low gain only"
	case GainHigh:
		return "high gain only"
	case GainManual:
		return "manual"
	default:
		return unknownSetting(uint16(g))
	}
}

// FFCMode selects how flat-field corrections are triggered.
type FFCMode uint16

const (
	FFCManual   FFCMode = 0x0000
	FFCAuto     FFCMode = 0x0001
	FFCExternal FFCMode = 0x0002
)

// Valid reports whether m is a code the camera defines.
func (m FFCMode) Valid() bool { return m <= FFCExternal }

func (m FFCMode) String() string {
	switch m {
	case FFCManual:
		return "manual"
	case FFCAuto:
		return "automatic"
	case FFCExternal:
		return "external"
	default:
		return unknownSetting(uint16(m))
	}
}

// FFCFrames is the number of frames integrated during a flat-field
// correction, encoded as the camera's index.
type FFCFrames uint16

const (
	FFCFrames4  FFCFrames = 0x0000
	FFCFrames8  FFCFrames = 0x0001
	FFCFrames16 FFCFrames = 0x0002
)

// Valid reports whether f is a code the camera defines.
func (f FFCFrames) Valid() bool { return f <= FFCFrames16 }

// Count returns the number of integrated frames, or 0 for an invalid code.
func (f FFCFrames) Count() int {
	if !f.Valid() {
		return 0
	}
	return 4 << f
}

func (f FFCFrames) String() string {
	if !f.Valid() {
		return unknownSetting(uint16(f))
	}
	return fmt.Sprintf("%d frames", f.Count())
}

// ShutterTempMode selects the source of the shutter temperature used by
// flat-field correction.
type ShutterTempMode uint16

const (
	ShutterTempUser   ShutterTempMode = 0x0000
	ShutterTempAuto   ShutterTempMode = 0x0001
	ShutterTempStatic ShutterTempMode = 0x0002
)

// Valid reports whether m is a code the camera defines.
func (m ShutterTempMode) Valid() bool { return m <= ShutterTempStatic }

func (m ShutterTempMode) String() string {
	switch m {
	case ShutterTempUser:
		return "user"
	case ShutterTempAuto:
		return "automatic"
	case ShutterTempStatic:
		return "static"
	default:
		return unknownSetting(uint16(m))
	}
}

// XPMode selects the encoding of the camera's expansion bus output.
type XPMode uint16

const (
	XPDisabled XPMode = 0x0000
	XPBT656    XPMode = 0x0001
	XPCMOS14   XPMode = 0x0002
	XPCMOS8    XPMode = 0x0003
	XPCMOS16   XPMode = 0x0004
)

// Valid reports whether m is a code the camera defines.
func (m XPMode) Valid() bool { return m <= XPCMOS16 }

func (m XPMode) String() string {
	switch m {
	case XPDisabled:
		return "disabled"
	case XPBT656:
		return "BT656"
	case XPCMOS14:
		return "CMOS 14-bit w/ 1 discrete"
	case XPCMOS8:
		return "CMOS 8-bit w/ 8 discretes"
	case XPCMOS16:
		return "CMOS 16-bit"
	default:
		return unknownSetting(uint16(m))
	}
}

// CMOSBitDepth selects the sample format on the CMOS output.
type CMOSBitDepth uint16

const (
	CMOS14Bit       CMOSBitDepth = 0x0000
	CMOS8BitPostAGC CMOSBitDepth = 0x0001
	CMOS8BitBayer   CMOSBitDepth = 0x0002
	CMOS16BitYCbCr  CMOSBitDepth = 0x0003
	CMOS8Bit2xYCbCr CMOSBitDepth = 0x0004
)

// Valid reports whether d is a code the camera defines.
func (d CMOSBitDepth) Valid() bool { return d <= CMOS8Bit2xYCbCr }

func (d CMOSBitDepth) String() string {
	switch d {
	case CMOS14Bit:
		return "14bit"
	case CMOS8BitPostAGC:
		return "8bit post-AGC/pre-colorize"
	case CMOS8BitBayer:
		return "8bit Bayer encoded"
	case CMOS16BitYCbCr:
		return "16bit YCbCr"
	case CMOS8Bit2xYCbCr:
		return "8bit 2x Clock YCbCr"
	default:
		return unknownSetting(uint16(d))
	}
}

// TLinearMode switches output between linear-in-flux and linear-in-temperature.
type TLinearMode uint16

const (
	TLinearDisabled TLinearMode = 0x0000
	TLinearEnabled  TLinearMode = 0x0001
)

// Valid reports whether m is a code the camera defines.
func (m TLinearMode) Valid() bool { return m <= TLinearEnabled }

func (m TLinearMode) String() string {
	switch m {
	case TLinearDisabled:
		return "disabled"
	case TLinearEnabled:
		return "enabled"
	default:
		return unknownSetting(uint16(m))
	}
}

// TLinearResolution is the kelvin-per-count scale in T-linear mode.
type TLinearResolution uint16

const (
	// TLinearLow is 0.4 K per count.
	TLinearLow TLinearResolution = 0x0000
	// TLinearHigh is 0.04 K per count.
	TLinearHigh TLinearResolution = 0x0001
)

// Valid reports whether r is a code the camera defines.
func (r TLinearResolution) Valid() bool { return r <= TLinearHigh }

func (r TLinearResolution) String() string {
	switch r {
	case TLinearLow:
		return "low resolution"
	case TLinearHigh:
		return "high resolution"
	default:
		return unknownSetting(uint16(r))
	}
}

// LensNumber selects one of the two lens calibration tables.
type LensNumber uint16

const (
	Lens0 LensNumber = 0x0000
	Lens1 LensNumber = 0x0001
)

// Valid reports whether l is a code the camera defines.
func (l LensNumber) Valid() bool { return l <= Lens1 }

func (l LensNumber) String() string {
	if !l.Valid() {
		return unknownSetting(uint16(l))
	}
	return fmt.Sprintf("lens %d", uint16(l))
}

// VideoStandard is the analog video frame rate. It is read only.
type VideoStandard uint16

const (
	VideoNTSC30 VideoStandard = 0x0000
	VideoPAL25  VideoStandard = 0x0001
	VideoNTSC60 VideoStandard = 0x0004
	VideoPAL50  VideoStandard = 0x0005
)

func (v VideoStandard) String() string {
	switch v {
	case VideoNTSC30:
		return "NTSC 30Hz"
	case VideoPAL25:
		return "PAL 25Hz"
	case VideoNTSC60:
		return "NTSC 60Hz"
	case VideoPAL50:
		return "PAL 50Hz"
	default:
		return unknownSetting(uint16(v))
	}
}

func unknownSetting(code uint16) string {
	return fmt.Sprintf("unknown (0x%04X)", code)
}

// SettingResult reports whether the camera accepted a written setting.
// A mismatch is not an error; the caller may retry the setting.
type SettingResult struct {
	// Setting is the upper-case setting name, e.g. "GAIN MODE"
	Setting string
	// Requested is the value sent to the camera
	Requested uint16
	// Reported is the value the camera echoed or read back
	Reported uint16
	// Configured is true when Reported equals Requested
	Configured bool
}

func (r SettingResult) String() string {
	if r.Configured {
		return r.Setting + " IS CONFIGURED PROPERLY"
	}
	return r.Setting + " IS NOT CONFIGURED PROPERLY"
}
