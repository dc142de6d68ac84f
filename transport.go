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
	"sync"
	"time"

	"github.com/tau2cam/go-tau2/internal/frame"
)

// Transport is a byte-oriented, blocking-with-timeout link to the camera.
// The UART control port and the FTDI data channel both implement it.
type Transport interface {
	// Read reads available bytes. It returns 0, nil when the read timeout
	// expires without data.
	Read(p []byte) (int, error)

	// Write writes p in full or returns an error
	Write(p []byte) (int, error)

	// Flush discards pending input and output
	Flush() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// ModeSwitcher is implemented by transports that must reconfigure the link
// when the camera changes between command and acquisition mode, such as
// the FTDI bridge switching between serial and synchronous FIFO.
type ModeSwitcher interface {
	SwitchMode(ctx context.Context, mode Mode) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents the camera's serial control port.
	TransportUART TransportType = "uart"
	// TransportUSB represents the grabber's FTDI link, which tunnels
	// commands and streams frames.
	TransportUSB TransportType = "usb"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport is a byte-level Transport for tests. Every write is
// recorded; when the write is a command packet the reply queued for its
// function code is made readable. Without a queued reply the mock answers
// with an OK reply echoing the request payload.
type MockTransport struct {
	replies   map[frame.Code][][]byte
	errorMap  map[frame.Code]error
	callCount map[frame.Code]int
	writes    [][]byte
	pending   []byte
	modes     []Mode
	timeout   time.Duration
	flushes   int
	reads     int
	mu        sync.RWMutex
	connected bool
	silent    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		timeout:   time.Millisecond,
		replies:   make(map[frame.Code][][]byte),
		errorMap:  make(map[frame.Code]error),
		callCount: make(map[frame.Code]int),
	}
}

// Read implements Transport. An empty buffer behaves like an expired read
// timeout.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return 0, ErrTransportClosed
	}
	m.reads++
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	timeout := m.timeout
	m.mu.Unlock()

	if n == 0 && timeout > 0 {
		time.Sleep(timeout)
	}
	return n, nil
}

// Write implements Transport.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrTransportClosed
	}
	m.writes = append(m.writes, append([]byte(nil), p...))

	if len(p) < frame.HeaderLength || p[0] != frame.ProcessCode {
		return len(p), nil
	}
	code := frame.Code(p[3])
	m.callCount[code]++

	if err, ok := m.errorMap[code]; ok {
		return 0, err
	}
	if m.silent {
		return len(p), nil
	}
	if queue := m.replies[code]; len(queue) > 0 {
		m.pending = append(m.pending, queue[0]...)
		if len(queue) > 1 {
			m.replies[code] = queue[1:]
		}
		return len(p), nil
	}

	var payload []byte
	if len(p) >= frame.PacketOverhead {
		payload = p[frame.HeaderLength+frame.HeaderCRCLength : len(p)-frame.PayloadCRCLength]
	}
	m.pending = append(m.pending, frame.EncodeReply(code, frame.StatusOK, payload)...)
	return len(p), nil
}

// Flush implements Transport.
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// SetTimeout implements Transport. The mock sleeps for at most a
// millisecond on an empty read so tests stay fast.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = min(timeout, time.Millisecond)
	m.mu.Unlock()
	return nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport.
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements Transport.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SwitchMode implements ModeSwitcher.
func (m *MockTransport) SwitchMode(_ context.Context, mode Mode) error {
	m.mu.Lock()
	m.modes = append(m.modes, mode)
	m.mu.Unlock()
	return nil
}

// Test helper methods

// QueueReply queues raw reply bytes for the next writes of code. The last
// queued reply is repeated for every later write.
func (m *MockTransport) QueueReply(code frame.Code, replies ...[]byte) {
	m.mu.Lock()
	for _, r := range replies {
		m.replies[code] = append(m.replies[code], append([]byte(nil), r...))
	}
	m.mu.Unlock()
}

// SetResponse answers every write of code with an OK reply carrying payload.
func (m *MockTransport) SetResponse(code frame.Code, payload []byte) {
	m.mu.Lock()
	m.replies[code] = [][]byte{frame.EncodeReply(code, frame.StatusOK, payload)}
	m.mu.Unlock()
}

// SetError makes writes of code fail with err.
func (m *MockTransport) SetError(code frame.Code, err error) {
	m.mu.Lock()
	m.errorMap[code] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(code frame.Code) {
	m.mu.Lock()
	delete(m.errorMap, code)
	m.mu.Unlock()
}

// SetSilent stops the mock from answering commands.
func (m *MockTransport) SetSilent(silent bool) {
	m.mu.Lock()
	m.silent = silent
	m.mu.Unlock()
}

// InjectRead appends raw bytes to the readable buffer.
func (m *MockTransport) InjectRead(data []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, data...)
	m.mu.Unlock()
}

// GetCallCount returns how many command packets for code were written.
func (m *MockTransport) GetCallCount(code frame.Code) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[code]
}

// Writes returns a copy of every write.
func (m *MockTransport) Writes() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// ReadCount returns the number of Read calls.
func (m *MockTransport) ReadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

// FlushCount returns the number of Flush calls.
func (m *MockTransport) FlushCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// Modes returns the modes passed to SwitchMode.
func (m *MockTransport) Modes() []Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mode(nil), m.modes...)
}

// IOCount returns the total number of reads, writes and flushes.
func (m *MockTransport) IOCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads + len(m.writes) + m.flushes
}

// Reset clears recorded calls and queued data.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[frame.Code]int)
	m.writes = nil
	m.pending = nil
	m.reads = 0
	m.flushes = 0
	m.modes = nil
	m.connected = true
	m.mu.Unlock()
}

// String describes the mock for trace output.
func (m *MockTransport) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("mock(writes=%d reads=%d)", len(m.writes), m.reads)
}

var _ Transport = (*MockTransport)(nil)
