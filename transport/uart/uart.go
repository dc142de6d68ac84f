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

// Package uart implements the camera's serial control channel.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/detection"
	"github.com/tau2cam/go-tau2/internal/syncutil"
	"go.bug.st/serial"
)

// Serial line settings of the Tau2 control port
const (
	BaudRate = 921600
	DataBits = 8
)

// errPortClosed is reported by reads and writes after Close.
var errPortClosed = errors.New("port closed")

// Transport implements tau2.Transport over a serial port.
type Transport struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex
}

// defaultReadTimeout returns the platform read timeout. Windows drivers
// need longer before a read returns with no data.
func defaultReadTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return tau2.DefaultReadPollInterval
}

// New opens portName at 921600 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(defaultReadTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return newWithPort(port, portName), nil
}

// Factory opens path as a tau2.TransportFactory.
func Factory(path string) (tau2.Transport, error) {
	return New(path)
}

// FactoryFromDevice opens a port found by detection.
func FactoryFromDevice(device detection.DeviceInfo) (tau2.Transport, error) {
	if device.Transport != detection.TransportUART {
		return nil, fmt.Errorf("%w: %s is not a serial port", tau2.ErrDeviceNotFound, device)
	}
	return New(device.Path)
}

func newWithPort(port serial.Port, portName string) *Transport {
	return &Transport{port: port, portName: portName}
}

// Read implements tau2.Transport. An expired read timeout yields 0, nil.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, tau2.ErrTransportClosed
	}
	n, err := t.port.Read(p)
	if err == nil {
		return n, nil
	}
	if isInterruptedSystemCall(err) {
		return n, nil
	}
	return n, t.wrap("read", tau2.ErrTransportRead, err)
}

// Write implements tau2.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, tau2.ErrTransportClosed
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, t.wrap("write", tau2.ErrTransportWrite, err)
	}
	if n != len(p) {
		return n, tau2.NewTransportError("write", t.portName,
			fmt.Errorf("%w: wrote %d of %d bytes", tau2.ErrTransportWrite, n, len(p)), tau2.ErrorTypeTransient)
	}
	return n, t.drainWithRetry("write")
}

// Flush discards pending input and output.
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return tau2.ErrTransportClosed
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("UART input purge failed: %w", err)
	}
	if err := t.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("UART output purge failed: %w", err)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return tau2.ErrTransportClosed
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() tau2.TransportType {
	return tau2.TransportUART
}

// String returns the port name, used in wire traces.
func (t *Transport) String() string {
	return t.portName
}

// wrap classifies a port error. A vanished device is permanent.
func (t *Transport) wrap(op string, sentinel, err error) error {
	errType := tau2.ErrorTypeTransient
	if tau2.IsFatal(err) || errors.Is(err, errPortClosed) {
		errType = tau2.ErrorTypePermanent
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		errType = tau2.ErrorTypePermanent
	}
	return tau2.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", sentinel, err), errType)
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the output buffer to empty, retrying
// interrupted system calls. Caller holds t.mu.
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt))
			continue
		}
		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

var _ tau2.Transport = (*Transport)(nil)
