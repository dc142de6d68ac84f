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

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tau2cam/go-tau2/internal/frame"
)

// READ_SENSOR selectors
const (
	sensorFPA     = 0x0000
	sensorHousing = 0x000A
)

// Long FFC argument and the reply that reports completion.
const (
	longFFCArgument = 0x0001
	longFFCDone     = 0xFFFF
)

// setting describes how one camera parameter is written and read back.
type setting struct {
	encode func(v uint16) []byte
	query  []byte
	name   string
	code   frame.Code
	echoes bool
}

var (
	gainSetting = setting{
		name: "GAIN MODE", code: frame.GainMode, encode: word, echoes: true,
	}
	ffcModeSetting = setting{
		name: "FFC MODE", code: frame.FFCModeSelect, encode: word, echoes: true,
	}
	ffcFramesSetting = setting{
		name: "FFC FRAMES", code: frame.FFCModeSelect,
		encode: prefixedWord(0x00, 0x02), query: []byte{0x00, 0x03, 0x00, 0x00},
	}
	lensSetting = setting{
		name: "LENS NUMBER", code: frame.LensNumber, encode: word, echoes: true,
	}
	shutterTempModeSetting = setting{
		name: "SHUTTER TEMPERATURE MODE", code: frame.ShutterTemp,
		encode: prefixedWord(0x00, 0x00), query: []byte{0x00, 0x01, 0x00, 0x00},
	}
	xpModeSetting = setting{
		name: "XP MODE", code: frame.DigitalOutputMode,
		encode: prefixedByte(0x03), query: []byte{0x02, 0x00},
	}
	cmosDepthSetting = setting{
		name: "CMOS BITDEPTH", code: frame.DigitalOutputMode,
		encode: prefixedByte(0x06), query: []byte{0x08, 0x00},
	}
	tlinearModeSetting = setting{
		name: "TLINEAR MODE", code: frame.TLinear,
		encode: prefixedWord(0x00, 0x40), query: []byte{0x00, 0x40},
	}
	tlinearResolutionSetting = setting{
		name: "TLINEAR RESOLUTION", code: frame.TLinear,
		encode: prefixedWord(0x00, 0x10), query: []byte{0x00, 0x10},
	}
)

func word(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func prefixedWord(prefix ...byte) func(uint16) []byte {
	return func(v uint16) []byte {
		return binary.BigEndian.AppendUint16(append([]byte(nil), prefix...), v)
	}
}

func prefixedByte(prefix byte) func(uint16) []byte {
	return func(v uint16) []byte {
		return []byte{prefix, byte(v)}
	}
}

// apply writes v and confirms it from the echo or a read back.
func (c *Camera) apply(ctx context.Context, s setting, v uint16) (SettingResult, error) {
	result := SettingResult{Setting: s.name, Requested: v}

	reply, err := c.Execute(ctx, s.code, s.encode(v))
	if err != nil {
		return result, fmt.Errorf("failed to set %s: %w", s.name, err)
	}

	if s.echoes && len(reply.Payload) >= 2 {
		result.Reported = binary.BigEndian.Uint16(reply.Payload)
	} else {
		result.Reported, err = c.read(ctx, s)
		if err != nil {
			return result, err
		}
	}

	result.Configured = result.Reported == result.Requested
	c.report(result)
	return result, nil
}

// read queries the current value of a setting.
func (c *Camera) read(ctx context.Context, s setting) (uint16, error) {
	v, err := c.queryWord(ctx, s.code, s.query)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", s.name, err)
	}
	return v, nil
}

func (*Camera) report(r SettingResult) {
	if r.Configured {
		Infof("CMD : %s", r)
		return
	}
	Warnf("CMD : %s (requested 0x%04X, camera reports 0x%04X)", r, r.Requested, r.Reported)
}

// queryWord executes a command whose reply carries one big-endian word.
func (c *Camera) queryWord(ctx context.Context, code frame.Code, payload []byte) (uint16, error) {
	reply, err := c.Execute(ctx, code, payload)
	if err != nil {
		return 0, err
	}
	if len(reply.Payload) < 2 {
		return 0, fmt.Errorf("%w: %s reply has %d bytes, want 2", ErrInvalidResponse, code, len(reply.Payload))
	}
	return binary.BigEndian.Uint16(reply.Payload), nil
}

func invalid(name string, v fmt.Stringer, code uint16) error {
	return fmt.Errorf("%w: %s 0x%04X (%s)", ErrInvalidSettingValue, name, code, v)
}

// Ping sends NO_OP and waits for the camera's acknowledgement.
func (c *Camera) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, frame.NoOp, nil)
	return err
}

// SetGainMode sets the camera gain mode.
func (c *Camera) SetGainMode(ctx context.Context, mode GainMode) (SettingResult, error) {
	if !mode.Valid() {
		return SettingResult{}, invalid(gainSetting.name, mode, uint16(mode))
	}
	return c.apply(ctx, gainSetting, uint16(mode))
}

// GetGainMode returns the camera gain mode.
func (c *Camera) GetGainMode(ctx context.Context) (GainMode, error) {
	v, err := c.read(ctx, gainSetting)
	return GainMode(v), err
}

// SetFFCMode sets how flat-field corrections are triggered.
func (c *Camera) SetFFCMode(ctx context.Context, mode FFCMode) (SettingResult, error) {
	if !mode.Valid() {
		return SettingResult{}, invalid(ffcModeSetting.name, mode, uint16(mode))
	}
	return c.apply(ctx, ffcModeSetting, uint16(mode))
}

// GetFFCMode returns the flat-field correction mode.
func (c *Camera) GetFFCMode(ctx context.Context) (FFCMode, error) {
	v, err := c.read(ctx, ffcModeSetting)
	return FFCMode(v), err
}

// SetFFCFrames sets the number of frames integrated during FFC.
func (c *Camera) SetFFCFrames(ctx context.Context, frames FFCFrames) (SettingResult, error) {
	if !frames.Valid() {
		return SettingResult{}, invalid(ffcFramesSetting.name, frames, uint16(frames))
	}
	return c.apply(ctx, ffcFramesSetting, uint16(frames))
}

// GetFFCFrames returns the number of frames integrated during FFC.
func (c *Camera) GetFFCFrames(ctx context.Context) (FFCFrames, error) {
	v, err := c.read(ctx, ffcFramesSetting)
	return FFCFrames(v), err
}

// TriggerFFC runs a short flat-field correction.
func (c *Camera) TriggerFFC(ctx context.Context) error {
	if _, err := c.Execute(ctx, frame.DoFFC, nil); err != nil {
		return fmt.Errorf("failed to trigger FFC: %w", err)
	}
	Debugln("short FFC executed")
	return nil
}

// TriggerLongFFC runs a long flat-field correction. The camera blocks for
// several seconds, so the exchange uses LongFFCTimeout.
func (c *Camera) TriggerLongFFC(ctx context.Context) error {
	reply, err := c.execute(ctx, frame.DoFFC, word(longFFCArgument), max(LongFFCTimeout, c.config.CommandTimeout))
	if err != nil {
		return fmt.Errorf("failed to trigger long FFC: %w", err)
	}
	if len(reply.Payload) < 2 || binary.BigEndian.Uint16(reply.Payload) != longFFCDone {
		return fmt.Errorf("%w: long FFC reply % X", ErrInvalidResponse, reply.Payload)
	}
	Debugln("long FFC executed")
	return nil
}

// SetShutterTemperature sets the shutter temperature, in °C, used by FFC in
// user shutter temperature mode. The camera stores hundredths of a degree.
func (c *Camera) SetShutterTemperature(ctx context.Context, celsius float64) (SettingResult, error) {
	const name = "SHUTTER TEMPERATURE"
	centi := math.Round(celsius * 100)
	if math.IsNaN(centi) || centi < math.MinInt16 || centi > math.MaxInt16 {
		return SettingResult{}, fmt.Errorf("%w: %s %v°C", ErrInvalidSettingValue, name, celsius)
	}
	raw := uint16(int16(centi))
	result := SettingResult{Setting: name, Requested: raw}

	if _, err := c.Execute(ctx, frame.ShutterTemp, word(raw)); err != nil {
		return result, fmt.Errorf("failed to set %s: %w", name, err)
	}
	reported, err := c.queryWord(ctx, frame.ShutterTemp, nil)
	if err != nil {
		return result, fmt.Errorf("failed to get %s: %w", name, err)
	}
	result.Reported = reported
	result.Configured = reported == raw
	c.report(result)
	return result, nil
}

// GetShutterTemperature returns the shutter temperature in °C.
func (c *Camera) GetShutterTemperature(ctx context.Context) (float64, error) {
	v, err := c.queryWord(ctx, frame.ShutterTemp, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get shutter temperature: %w", err)
	}
	return float64(int16(v)) / 100, nil
}

// SetShutterTempMode selects the shutter temperature source.
func (c *Camera) SetShutterTempMode(ctx context.Context, mode ShutterTempMode) (SettingResult, error) {
	if !mode.Valid() {
		return SettingResult{}, invalid(shutterTempModeSetting.name, mode, uint16(mode))
	}
	return c.apply(ctx, shutterTempModeSetting, uint16(mode))
}

// GetShutterTempMode returns the shutter temperature source.
func (c *Camera) GetShutterTempMode(ctx context.Context) (ShutterTempMode, error) {
	v, err := c.read(ctx, shutterTempModeSetting)
	return ShutterTempMode(v), err
}

// SetXPMode sets the expansion bus output mode.
func (c *Camera) SetXPMode(ctx context.Context, mode XPMode) (SettingResult, error) {
	if !mode.Valid() {
		return SettingResult{}, invalid(xpModeSetting.name, mode, uint16(mode))
	}
	return c.apply(ctx, xpModeSetting, uint16(mode))
}

// GetXPMode returns the expansion bus output mode.
func (c *Camera) GetXPMode(ctx context.Context) (XPMode, error) {
	v, err := c.read(ctx, xpModeSetting)
	return XPMode(v), err
}

// SetCMOSBitDepth sets the CMOS output sample format.
func (c *Camera) SetCMOSBitDepth(ctx context.Context, depth CMOSBitDepth) (SettingResult, error) {
	if !depth.Valid() {
		return SettingResult{}, invalid(cmosDepthSetting.name, depth, uint16(depth))
	}
	return c.apply(ctx, cmosDepthSetting, uint16(depth))
}

// GetCMOSBitDepth returns the CMOS output sample format.
func (c *Camera) GetCMOSBitDepth(ctx context.Context) (CMOSBitDepth, error) {
	v, err := c.read(ctx, cmosDepthSetting)
	return CMOSBitDepth(v), err
}

// SetTLinearMode enables or disables temperature-linear output.
func (c *Camera) SetTLinearMode(ctx context.Context, mode TLinearMode) (SettingResult, error) {
	if !mode.Valid() {
		return SettingResult{}, invalid(tlinearModeSetting.name, mode, uint16(mode))
	}
	return c.apply(ctx, tlinearModeSetting, uint16(mode))
}

// GetTLinearMode reports whether temperature-linear output is enabled.
func (c *Camera) GetTLinearMode(ctx context.Context) (TLinearMode, error) {
	v, err := c.read(ctx, tlinearModeSetting)
	return TLinearMode(v), err
}

// SetTLinearResolution sets the T-linear output scale.
func (c *Camera) SetTLinearResolution(ctx context.Context, res TLinearResolution) (SettingResult, error) {
	if !res.Valid() {
		return SettingResult{}, invalid(tlinearResolutionSetting.name, res, uint16(res))
	}
	return c.apply(ctx, tlinearResolutionSetting, uint16(res))
}

// GetTLinearResolution returns the T-linear output scale.
func (c *Camera) GetTLinearResolution(ctx context.Context) (TLinearResolution, error) {
	v, err := c.read(ctx, tlinearResolutionSetting)
	return TLinearResolution(v), err
}

// SetLensNumber selects the active lens calibration.
func (c *Camera) SetLensNumber(ctx context.Context, lens LensNumber) (SettingResult, error) {
	if !lens.Valid() {
		return SettingResult{}, invalid(lensSetting.name, lens, uint16(lens))
	}
	return c.apply(ctx, lensSetting, uint16(lens))
}

// GetLensNumber returns the active lens calibration.
func (c *Camera) GetLensNumber(ctx context.Context) (LensNumber, error) {
	v, err := c.read(ctx, lensSetting)
	return LensNumber(v), err
}

// GetVideoStandard returns the analog video standard.
func (c *Camera) GetVideoStandard(ctx context.Context) (VideoStandard, error) {
	v, err := c.queryWord(ctx, frame.VideoStandard, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get video standard: %w", err)
	}
	return VideoStandard(v), nil
}

// GetFPATemperature returns the focal plane array temperature in °C.
func (c *Camera) GetFPATemperature(ctx context.Context) (float64, error) {
	v, err := c.queryWord(ctx, frame.ReadSensor, word(sensorFPA))
	if err != nil {
		return 0, fmt.Errorf("failed to read FPA temperature: %w", err)
	}
	return float64(int16(v)) / 10, nil
}

// GetHousingTemperature returns the camera housing temperature in °C.
func (c *Camera) GetHousingTemperature(ctx context.Context) (float64, error) {
	v, err := c.queryWord(ctx, frame.ReadSensor, word(sensorHousing))
	if err != nil {
		return 0, fmt.Errorf("failed to read housing temperature: %w", err)
	}
	return float64(int16(v)) / 100, nil
}

// SerialNumber holds the camera and sensor serial numbers.
type SerialNumber struct {
	Camera uint32
	Sensor uint32
}

func (s SerialNumber) String() string {
	return fmt.Sprintf("camera %d, sensor %d", s.Camera, s.Sensor)
}

// GetSerialNumber returns the camera and sensor serial numbers.
func (c *Camera) GetSerialNumber(ctx context.Context) (SerialNumber, error) {
	reply, err := c.Execute(ctx, frame.SerialNumber, nil)
	if err != nil {
		return SerialNumber{}, fmt.Errorf("failed to get serial number: %w", err)
	}
	if len(reply.Payload) < 8 {
		return SerialNumber{}, fmt.Errorf("%w: serial number reply has %d bytes", ErrInvalidResponse, len(reply.Payload))
	}
	return SerialNumber{
		Camera: binary.BigEndian.Uint32(reply.Payload[:4]),
		Sensor: binary.BigEndian.Uint32(reply.Payload[4:8]),
	}, nil
}

// Revision holds the camera software and firmware versions.
type Revision struct {
	SoftwareMajor uint16
	SoftwareMinor uint16
	FirmwareMajor uint16
	FirmwareMinor uint16
}

func (r Revision) String() string {
	return fmt.Sprintf("software %d.%d, firmware %d.%d",
		r.SoftwareMajor, r.SoftwareMinor, r.FirmwareMajor, r.FirmwareMinor)
}

// GetRevision returns the camera software and firmware versions.
func (c *Camera) GetRevision(ctx context.Context) (Revision, error) {
	reply, err := c.Execute(ctx, frame.Revision, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to get revision: %w", err)
	}
	p := reply.Payload
	if len(p) < 8 {
		return Revision{}, fmt.Errorf("%w: revision reply has %d bytes", ErrInvalidResponse, len(p))
	}
	return Revision{
		SoftwareMajor: binary.BigEndian.Uint16(p[0:2]),
		SoftwareMinor: binary.BigEndian.Uint16(p[2:4]),
		FirmwareMajor: binary.BigEndian.Uint16(p[4:6]),
		FirmwareMinor: binary.BigEndian.Uint16(p[6:8]),
	}, nil
}
