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

package usb

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
	tau2 "github.com/tau2cam/go-tau2"
)

// FTDI SIO vendor requests
const (
	requestTypeOut = 0x40 // vendor, device, host to device

	sioReset           = 0x00
	sioSetLatencyTimer = 0x09
	sioSetBitMode      = 0x0B

	sioPurgeRX = 1
	sioPurgeTX = 2

	// interfaceA is the wIndex of the FT2232H's first channel.
	interfaceA = 1

	// DefaultLatency is the latency timer in milliseconds used for streaming.
	DefaultLatency = 2
)

// controlDevice is the part of *gousb.Device used for vendor requests.
type controlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

// FTDIController sends FT2232H vendor requests on the control endpoint.
type FTDIController struct {
	ctx   *gousb.Context
	dev   controlDevice
	index uint16
}

// OpenController opens the control endpoint of the FT2232H with the given
// serial number, or the first one found when serial is empty.
func OpenController(serial string) (*FTDIController, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == VendorID && uint16(desc.Product) == ProductID
	})
	if err != nil && len(devs) == 0 {
		_ = ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var found *gousb.Device
	for _, dev := range devs {
		if found == nil && matchesSerial(dev, serial) {
			found = dev
			continue
		}
		_ = dev.Close()
	}
	if found == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("%w: FTDI %04x:%04x serial %q", tau2.ErrDeviceNotFound, VendorID, ProductID, serial)
	}

	c := newController(found)
	c.ctx = ctx
	if err := c.SetLatencyTimer(DefaultLatency); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func matchesSerial(dev *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := dev.SerialNumber()
	return err == nil && s == serial
}

func newController(dev controlDevice) *FTDIController {
	return &FTDIController{dev: dev, index: interfaceA}
}

func (c *FTDIController) control(request uint8, val uint16) error {
	if _, err := c.dev.Control(requestTypeOut, request, val, c.index, nil); err != nil {
		return fmt.Errorf("FTDI request 0x%02X (value 0x%04X) failed: %w", request, val, err)
	}
	return nil
}

// SetBitMode implements Controller.
func (c *FTDIController) SetBitMode(mask, mode byte) error {
	return c.control(sioSetBitMode, uint16(mode)<<8|uint16(mask))
}

// Purge implements Controller by clearing both chip FIFOs.
func (c *FTDIController) Purge() error {
	if err := c.control(sioReset, sioPurgeRX); err != nil {
		return err
	}
	return c.control(sioReset, sioPurgeTX)
}

// SetLatencyTimer sets how long the chip holds a partial packet.
func (c *FTDIController) SetLatencyTimer(ms byte) error {
	return c.control(sioSetLatencyTimer, uint16(ms))
}

// Close releases the device and its USB context.
func (c *FTDIController) Close() error {
	var errs []error
	if c.dev != nil {
		if err := c.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close FTDI control device: %w", err))
		}
	}
	if c.ctx != nil {
		if err := c.ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close USB context: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ Controller = (*FTDIController)(nil)
