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

package testing

import (
	"io"
	"time"
)

// SimulatorTransport adapts an io.ReadWriter, usually a VirtualTau2 or a
// jittery connection around one, to the camera's transport method set. Root
// package tests add the Type method.
type SimulatorTransport struct {
	conn      io.ReadWriter
	sim       *VirtualTau2
	timeout   time.Duration
	reads     int
	writes    int
	connected bool
}

// NewSimulatorTransport creates a transport backed by sim. If conn is nil
// the simulator is used directly.
func NewSimulatorTransport(sim *VirtualTau2, conn io.ReadWriter) *SimulatorTransport {
	if conn == nil {
		conn = sim
	}
	return &SimulatorTransport{
		conn:      conn,
		sim:       sim,
		timeout:   time.Millisecond,
		connected: true,
	}
}

// Read returns pending reply bytes, sleeping for the read timeout when
// there are none.
func (t *SimulatorTransport) Read(p []byte) (int, error) {
	if !t.connected {
		return 0, ErrClosed
	}
	t.reads++
	n, err := t.conn.Read(p)
	if n == 0 && err == nil && t.timeout > 0 {
		time.Sleep(t.timeout)
	}
	return n, err //nolint:wrapcheck // pass-through
}

// Write forwards to the simulator.
func (t *SimulatorTransport) Write(p []byte) (int, error) {
	if !t.connected {
		return 0, ErrClosed
	}
	t.writes++
	return t.conn.Write(p) //nolint:wrapcheck // pass-through
}

// Flush drops unread replies.
func (t *SimulatorTransport) Flush() error {
	if c, ok := t.conn.(interface{ ClearBuffer() }); ok {
		c.ClearBuffer()
	}
	t.sim.DiscardOutput()
	return nil
}

// SetTimeout sets the read timeout, capped at a millisecond.
func (t *SimulatorTransport) SetTimeout(timeout time.Duration) error {
	t.timeout = min(timeout, time.Millisecond)
	return nil
}

// Close closes the transport
func (t *SimulatorTransport) Close() error {
	t.connected = false
	return nil
}

// IsConnected returns whether the transport is connected
func (t *SimulatorTransport) IsConnected() bool {
	return t.connected
}

// Simulator returns the underlying VirtualTau2 for test setup
func (t *SimulatorTransport) Simulator() *VirtualTau2 {
	return t.sim
}

// IOCount returns the number of reads and writes.
func (t *SimulatorTransport) IOCount() int {
	return t.reads + t.writes
}
