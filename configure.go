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
	"fmt"
)

// DefaultShutterTemperature is the shutter temperature, in °C, written by
// DefaultSettings.
const DefaultShutterTemperature = 22.0

// Settings is a full acquisition configuration applied by Configure.
type Settings struct {
	ShutterTemperature float64
	GainMode           GainMode
	LensNumber         LensNumber
	ShutterTempMode    ShutterTempMode
	FFCMode            FFCMode
	FFCFrames          FFCFrames
	XPMode             XPMode
	CMOSBitDepth       CMOSBitDepth
	TLinearMode        TLinearMode
}

// DefaultSettings returns the configuration used for raw 14-bit capture
// through the grabber: high gain, lens 0, user shutter temperature of 22°C,
// manual FFC over 16 frames, CMOS 14-bit output and T-linear disabled.
func DefaultSettings() Settings {
	return Settings{
		GainMode:           GainHigh,
		LensNumber:         Lens0,
		ShutterTempMode:    ShutterTempUser,
		ShutterTemperature: DefaultShutterTemperature,
		FFCMode:            FFCManual,
		FFCFrames:          FFCFrames16,
		XPMode:             XPCMOS14,
		CMOSBitDepth:       CMOS14Bit,
		TLinearMode:        TLinearDisabled,
	}
}

// Validate checks every enumerated field before anything is sent.
func (s Settings) Validate() error {
	checks := []struct {
		value fmt.Stringer
		name  string
		valid bool
	}{
		{s.GainMode, gainSetting.name, s.GainMode.Valid()},
		{s.LensNumber, lensSetting.name, s.LensNumber.Valid()},
		{s.ShutterTempMode, shutterTempModeSetting.name, s.ShutterTempMode.Valid()},
		{s.FFCMode, ffcModeSetting.name, s.FFCMode.Valid()},
		{s.FFCFrames, ffcFramesSetting.name, s.FFCFrames.Valid()},
		{s.XPMode, xpModeSetting.name, s.XPMode.Valid()},
		{s.CMOSBitDepth, cmosDepthSetting.name, s.CMOSBitDepth.Valid()},
		{s.TLinearMode, tlinearModeSetting.name, s.TLinearMode.Valid()},
	}
	for _, c := range checks {
		if !c.valid {
			return fmt.Errorf("%w: %s %s", ErrInvalidSettingValue, c.name, c.value)
		}
	}
	return nil
}

// ConfigureResult lists the outcome of each setting written by Configure.
type ConfigureResult []SettingResult

// OK reports whether every setting was confirmed by the camera.
func (r ConfigureResult) OK() bool {
	for _, s := range r {
		if !s.Configured {
			return false
		}
	}
	return true
}

// Configure writes every setting and verifies it. A setting the camera does
// not confirm is reported in the result; an exchange failure stops the
// sequence and is returned with the results gathered so far.
func (c *Camera) Configure(ctx context.Context, s Settings) (ConfigureResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	steps := []func() (SettingResult, error){
		func() (SettingResult, error) { return c.SetGainMode(ctx, s.GainMode) },
		func() (SettingResult, error) { return c.SetLensNumber(ctx, s.LensNumber) },
		func() (SettingResult, error) { return c.SetShutterTempMode(ctx, s.ShutterTempMode) },
		func() (SettingResult, error) { return c.SetShutterTemperature(ctx, s.ShutterTemperature) },
		func() (SettingResult, error) { return c.SetFFCMode(ctx, s.FFCMode) },
		func() (SettingResult, error) { return c.SetFFCFrames(ctx, s.FFCFrames) },
		func() (SettingResult, error) { return c.SetXPMode(ctx, s.XPMode) },
		func() (SettingResult, error) { return c.SetCMOSBitDepth(ctx, s.CMOSBitDepth) },
		func() (SettingResult, error) { return c.SetTLinearMode(ctx, s.TLinearMode) },
	}

	results := make(ConfigureResult, 0, len(steps))
	for _, step := range steps {
		r, err := step()
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
