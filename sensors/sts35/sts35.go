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

// Package sts35 reads the Sensirion STS35 reference thermometers mounted on
// the blackbody and in the camera enclosure.
package sts35

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// 7-bit I2C addresses selected by the ADDR pin
const (
	AddrBlackbody uint16 = 0x4A
	AddrAmbient   uint16 = 0x4B
)

const (
	// measureDelay covers a high-repeatability single shot (max 15ms).
	measureDelay = 20 * time.Millisecond

	crcPolynomial = 0x31
	crcInitial    = 0xFF

	maxClockFreq = 400 * physic.KiloHertz
)

// single shot, high repeatability, clock stretching enabled
var cmdMeasure = []byte{0x2C, 0x06}

// ErrCRC is returned when a measurement fails its checksum.
var ErrCRC = errors.New("sts35: measurement CRC mismatch")

// Dev is one STS35 on an I2C bus.
type Dev struct {
	d     *i2c.Dev
	delay time.Duration
}

// New returns the sensor at addr on bus.
func New(bus i2c.Bus, addr uint16) *Dev {
	return &Dev{d: &i2c.Dev{Bus: bus, Addr: addr}, delay: measureDelay}
}

// Sense triggers a single measurement and returns the temperature.
func (d *Dev) Sense(ctx context.Context) (physic.Temperature, error) {
	if err := d.d.Tx(cmdMeasure, nil); err != nil {
		return 0, fmt.Errorf("sts35 0x%02X: trigger failed: %w", d.d.Addr, err)
	}

	timer := time.NewTimer(d.delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return 0, ctx.Err()
	case <-timer.C:
	}

	var buf [3]byte
	if err := d.d.Tx(nil, buf[:]); err != nil {
		return 0, fmt.Errorf("sts35 0x%02X: read failed: %w", d.d.Addr, err)
	}
	if crc8(buf[:2]) != buf[2] {
		return 0, fmt.Errorf("%w at 0x%02X", ErrCRC, d.d.Addr)
	}
	return toTemperature(uint16(buf[0])<<8 | uint16(buf[1])), nil
}

// SenseCelsius is Sense in degrees Celsius.
func (d *Dev) SenseCelsius(ctx context.Context) (float64, error) {
	t, err := d.Sense(ctx)
	if err != nil {
		return 0, err
	}
	return Celsius(t), nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("STS35{%s}", d.d)
}

// toTemperature applies T = -45 + 175 * raw / 65535 °C.
func toTemperature(raw uint16) physic.Temperature {
	nanoCelsius := int64(raw)*175_000_000_000/65535 - 45_000_000_000
	return physic.ZeroCelsius + physic.Temperature(nanoCelsius)*physic.NanoKelvin
}

// Celsius converts t to degrees Celsius.
func Celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}

func crc8(data []byte) byte {
	crc := byte(crcInitial)
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Reading is one sample of both reference sensors.
type Reading struct {
	Time      time.Time
	Blackbody float64
	Ambient   float64
}

func (r Reading) String() string {
	return fmt.Sprintf("blackbody %.2f °C, ambient %.2f °C", r.Blackbody, r.Ambient)
}

// Pair reads the blackbody and ambient sensors sharing one bus.
type Pair struct {
	Blackbody *Dev
	Ambient   *Dev
	bus       i2c.BusCloser
}

// Open initializes the host drivers and opens busName ("" for the first
// bus found).
func Open(busName string) (*Pair, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	_ = bus.SetSpeed(maxClockFreq)

	p := NewPair(bus)
	p.bus = bus
	return p, nil
}

// NewPair uses the default addresses on bus.
func NewPair(bus i2c.Bus) *Pair {
	return &Pair{
		Blackbody: New(bus, AddrBlackbody),
		Ambient:   New(bus, AddrAmbient),
	}
}

// Read samples both sensors, blackbody first.
func (p *Pair) Read(ctx context.Context) (Reading, error) {
	r := Reading{Time: time.Now()}
	var err error
	if r.Blackbody, err = p.Blackbody.SenseCelsius(ctx); err != nil {
		return r, fmt.Errorf("blackbody sensor: %w", err)
	}
	if r.Ambient, err = p.Ambient.SenseCelsius(ctx); err != nil {
		return r, fmt.Errorf("ambient sensor: %w", err)
	}
	return r, nil
}

// Close releases the bus if Open acquired it.
func (p *Pair) Close() error {
	if p.bus == nil {
		return nil
	}
	if err := p.bus.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus: %w", err)
	}
	return nil
}
