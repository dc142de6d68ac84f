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

// Package usb implements the grabber's FTDI FT2232H link. In command mode
// camera traffic is tunnelled in "UART" chunks; in acquisition mode the
// bridge runs in synchronous FIFO mode and streams raw frame blocks.
package usb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/karalabe/usb"
	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/detection"
	"github.com/tau2cam/go-tau2/internal/syncutil"
	"github.com/tau2cam/go-tau2/pkg/teax"
)

// FTDI FT2232H identifiers and bulk framing
const (
	VendorID  = 0x0403
	ProductID = 0x6010

	// PacketSize is the high-speed bulk packet size. Every IN packet
	// starts with two modem status bytes.
	PacketSize   = 512
	statusLength = 2

	// DefaultPacketsPerRead matches the FT2232H's usual transfer size.
	DefaultPacketsPerRead = 8
	pendingPackets        = 256
)

// FTDI bit modes
const (
	BitModeReset    byte = 0x00
	BitModeSyncFIFO byte = 0x40
	bitModeMask     byte = 0xFF
)

// Device is a raw USB handle. usb.Device satisfies it.
type Device interface {
	io.ReadWriteCloser
}

// Controller issues FTDI vendor requests on the control endpoint. The raw
// bulk handle cannot, so mode changes are delegated to it when present.
type Controller interface {
	SetBitMode(mask, mode byte) error
	Purge() error
}

// Option configures a Transport.
type Option func(*Transport)

// WithController sets the FTDI control request handler.
func WithController(c Controller) Option {
	return func(t *Transport) {
		t.ctl = c
	}
}

// WithPacketsPerRead sets how many bulk packets each device read requests.
func WithPacketsPerRead(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.packetsPerRead = n
		}
	}
}

// Transport implements tau2.Transport and tau2.ModeSwitcher over the
// grabber's USB link.
type Transport struct {
	dev            Device
	ctl            Controller
	err            error
	tunnel         *teax.Tunnel
	packets        chan []byte
	errs           chan error
	done           chan struct{}
	path           string
	pending        []byte
	timeout        time.Duration
	packetsPerRead int
	mode           tau2.Mode
	mu             syncutil.Mutex
	closed         bool
}

// Open opens the grabber's bulk endpoints at path, or the first grabber
// found when path is empty.
func Open(path string, opts ...Option) (*Transport, error) {
	info, err := find(path)
	if err != nil {
		return nil, err
	}
	dev, err := info.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device %s: %w", info.Path, err)
	}
	return New(dev, info.Path, opts...), nil
}

// OpenGrabber opens the bulk endpoints together with the chip's control
// endpoint. Without the control endpoint the bit mode is left to the
// driver.
func OpenGrabber(path string) (*Transport, error) {
	info, err := find(path)
	if err != nil {
		return nil, err
	}
	var opts []Option
	ctl, err := OpenController(info.Serial)
	if err != nil {
		tau2.Warnf("usb %s: FTDI control endpoint unavailable: %v", info.Path, err)
	} else {
		opts = append(opts, WithController(ctl))
	}

	dev, err := info.Open()
	if err != nil {
		if ctl != nil {
			_ = ctl.Close()
		}
		return nil, fmt.Errorf("failed to open USB device %s: %w", info.Path, err)
	}
	return New(dev, info.Path, opts...), nil
}

// Factory opens the grabber at path as a tau2.TransportFactory.
func Factory(path string) (tau2.Transport, error) {
	return OpenGrabber(path)
}

// FactoryFromDevice opens a grabber found by detection.
func FactoryFromDevice(device detection.DeviceInfo) (tau2.Transport, error) {
	if device.Transport != detection.TransportUSB {
		return nil, fmt.Errorf("%w: %s is not a USB grabber", tau2.ErrDeviceNotFound, device)
	}
	return OpenGrabber(device.Path)
}

func find(path string) (usb.DeviceInfo, error) {
	infos, err := usb.Enumerate(VendorID, ProductID)
	if err != nil {
		return usb.DeviceInfo{}, fmt.Errorf("usb enumerate: %w", err)
	}
	for _, info := range infos {
		if path == "" || info.Path == path {
			return info, nil
		}
	}
	return usb.DeviceInfo{}, fmt.Errorf("%w: FTDI %04x:%04x at %q", tau2.ErrDeviceNotFound, VendorID, ProductID, path)
}

// New wraps an open device. The link starts in command mode.
func New(dev Device, path string, opts ...Option) *Transport {
	t := &Transport{
		dev:            dev,
		path:           path,
		timeout:        tau2.DefaultReadPollInterval,
		packetsPerRead: DefaultPacketsPerRead,
		packets:        make(chan []byte, pendingPackets),
		errs:           make(chan error, 1),
		done:           make(chan struct{}),
		mode:           tau2.ModeCommand,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tunnel = teax.NewTunnel(link{t})
	go t.pump()
	return t
}

// pump moves bulk packets from the device to the packets channel, with the
// modem status bytes removed.
func (t *Transport) pump() {
	buf := make([]byte, t.packetsPerRead*PacketSize)
	for {
		n, err := t.dev.Read(buf)
		if data := StripStatus(buf[:n]); len(data) > 0 {
			select {
			case t.packets <- data:
			case <-t.done:
				return
			}
		}
		if err != nil {
			select {
			case t.errs <- err:
			case <-t.done:
			}
			return
		}
	}
}

// StripStatus removes the two status bytes heading each bulk packet in b.
func StripStatus(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		n := min(len(b), PacketSize)
		if n > statusLength {
			out = append(out, b[statusLength:n]...)
		}
		b = b[n:]
	}
	return out
}

// Read implements tau2.Transport. In command mode it returns unwrapped
// camera bytes; in acquisition mode the raw stream.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, tau2.ErrTransportClosed
	}
	if t.mode == tau2.ModeAcquisition {
		return t.readRaw(p)
	}
	n, err := t.tunnel.Read(p)
	if err != nil {
		return n, fmt.Errorf("tunnel read: %w", err)
	}
	return n, nil
}

// readRaw returns buffered stream bytes, waiting up to the read timeout
// for the next packet. Caller holds t.mu.
func (t *Transport) readRaw(p []byte) (int, error) {
	if len(t.pending) == 0 {
		if t.err != nil {
			return 0, t.err
		}
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		select {
		case data := <-t.packets:
			t.pending = data
		case err := <-t.errs:
			t.err = t.wrap("read", tau2.ErrTransportRead, err)
			return 0, t.err
		case <-timer.C:
			return 0, nil
		}
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Write implements tau2.Transport. Commands are only accepted in command
// mode.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, tau2.ErrTransportClosed
	}
	if t.mode != tau2.ModeCommand {
		return 0, fmt.Errorf("%w: write on %s link in %s mode", tau2.ErrModeConflict, t.path, t.mode)
	}
	n, err := t.tunnel.Write(p)
	if err != nil {
		if errors.Is(err, teax.ErrTunnelWrite) {
			return 0, err
		}
		return n, t.wrap("write", tau2.ErrTransportWrite, err)
	}
	return n, nil
}

// Flush implements tau2.Transport.
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return tau2.ErrTransportClosed
	}
	return t.flushLocked()
}

func (t *Transport) flushLocked() error {
	t.pending = nil
	t.tunnel.Reset()
	for drained := false; !drained; {
		select {
		case <-t.packets:
		default:
			drained = true
		}
	}
	if t.ctl != nil {
		if err := t.ctl.Purge(); err != nil {
			return fmt.Errorf("FTDI purge failed: %w", err)
		}
	}
	return nil
}

// SwitchMode implements tau2.ModeSwitcher: reset bit mode for commands,
// synchronous FIFO for acquisition.
func (t *Transport) SwitchMode(ctx context.Context, mode tau2.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return tau2.ErrTransportClosed
	}
	bitMode := BitModeReset
	if mode == tau2.ModeAcquisition {
		bitMode = BitModeSyncFIFO
	}
	if t.ctl != nil {
		if err := t.ctl.SetBitMode(bitModeMask, bitMode); err != nil {
			return fmt.Errorf("failed to set FTDI bit mode 0x%02X: %w", bitMode, err)
		}
	} else {
		tau2.Debugf("usb %s: no FTDI controller, bit mode 0x%02X left to the driver", t.path, bitMode)
	}
	t.mode = mode
	return t.flushLocked()
}

// SetTimeout implements tau2.Transport.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return tau2.ErrTransportClosed
	}
	t.timeout = timeout
	return nil
}

// Close implements tau2.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	var errs []error
	if err := t.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("USB close failed: %w", err))
	}
	if closer, ok := t.ctl.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsConnected implements tau2.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.err == nil
}

// Type implements tau2.Transport.
func (*Transport) Type() tau2.TransportType {
	return tau2.TransportUSB
}

// Mode returns the link's current framing mode.
func (t *Transport) Mode() tau2.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// String returns the device path, used in wire traces.
func (t *Transport) String() string {
	return t.path
}

// wrap classifies a device error. Any failure of the bulk endpoint ends the
// pump, so read errors are permanent.
func (t *Transport) wrap(op string, sentinel, err error) error {
	errType := tau2.ErrorTypeTransient
	if op == "read" || tau2.IsFatal(err) {
		errType = tau2.ErrorTypePermanent
	}
	return tau2.NewTransportError(op, t.path, fmt.Errorf("%w: %w", sentinel, err), errType)
}

// link gives the tunnel the raw, timeout-bounded view of the device.
// Calls arrive with t.mu held.
type link struct{ t *Transport }

func (l link) Read(p []byte) (int, error)  { return l.t.readRaw(p) }
func (l link) Write(p []byte) (int, error) { return l.t.dev.Write(p) }

var (
	_ tau2.Transport    = (*Transport)(nil)
	_ tau2.ModeSwitcher = (*Transport)(nil)
)
