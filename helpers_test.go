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
	"testing"
	"time"

	testutil "github.com/tau2cam/go-tau2/internal/testing"
	"github.com/stretchr/testify/require"
)

// simTransport gives the wire simulator the full Transport method set.
type simTransport struct {
	*testutil.SimulatorTransport
}

func (simTransport) Type() TransportType {
	return TransportMock
}

// testConfig keeps exchanges fast: no settle delay and short deadlines.
func testConfig() *Config {
	return &Config{
		ModeSwitchRetry: &RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			BackoffMultiplier: 2,
			RetryTimeout:      time.Second,
		},
		CommandTimeout:   200 * time.Millisecond,
		ReadPollInterval: time.Millisecond,
		CommandRetries:   DefaultCommandRetries,
		TraceSize:        16,
	}
}

// newSimCamera returns a camera talking to a fresh VirtualTau2.
func newSimCamera(t *testing.T, opts ...Option) (*Camera, *testutil.VirtualTau2, simTransport) {
	t.Helper()
	sim := testutil.NewVirtualTau2()
	transport := simTransport{testutil.NewSimulatorTransport(sim, nil)}
	cam, err := New(transport, append([]Option{WithConfig(testConfig())}, opts...)...)
	require.NoError(t, err)
	return cam, sim, transport
}

// newMockCamera returns a camera on a MockTransport.
func newMockCamera(t *testing.T, opts ...Option) (*Camera, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	cam, err := New(mock, append([]Option{WithConfig(testConfig())}, opts...)...)
	require.NoError(t, err)
	return cam, mock
}
