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

//nolint:paralleltest // tests replace package-level enumeratePortsFn and probeDeviceFn
package uart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tau2cam/go-tau2/detection"
	"go.bug.st/serial/enumerator"
)

type probeCall struct {
	path string
	mode detection.Mode
}

// stubHost replaces port enumeration and probing. Ports listed in answer
// reply to the probe.
func stubHost(t *testing.T, ports []*enumerator.PortDetails, answer map[string]string) *[]probeCall {
	t.Helper()
	origEnum, origProbe := enumeratePortsFn, probeDeviceFn
	t.Cleanup(func() {
		enumeratePortsFn, probeDeviceFn = origEnum, origProbe
	})

	var calls []probeCall
	enumeratePortsFn = func() ([]*enumerator.PortDetails, error) {
		return ports, nil
	}
	probeDeviceFn = func(_ context.Context, path string, mode detection.Mode) (string, bool) {
		calls = append(calls, probeCall{path: path, mode: mode})
		serial, ok := answer[path]
		return serial, ok
	}
	return &calls
}

func ftdiPort(name, pid, product string) *enumerator.PortDetails {
	return &enumerator.PortDetails{Name: name, IsUSB: true, VID: "0403", PID: pid, Product: product}
}

func options(mode detection.Mode) *detection.Options {
	opts := detection.DefaultOptions()
	opts.Mode = mode
	return &opts
}

func TestDetect_SafeModeKeepsAnsweringPorts(t *testing.T) {
	calls := stubHost(t, []*enumerator.PortDetails{
		ftdiPort("/dev/ttyUSB0", "6015", "FT230X Basic UART"),
		{Name: "/dev/ttyS0"},
	}, map[string]string{"/dev/ttyUSB0": ""})

	devices, err := New().Detect(context.Background(), options(detection.Safe))
	require.NoError(t, err)
	require.Len(t, devices, 1)

	device := devices[0]
	assert.Equal(t, detection.TransportUART, device.Transport)
	assert.Equal(t, "/dev/ttyUSB0", device.Path)
	assert.Equal(t, "FT230X Basic UART", device.Name)
	assert.Equal(t, detection.High, device.Confidence)
	assert.Equal(t, "0403:6015", device.Metadata["vidpid"])
	assert.NotContains(t, device.Metadata, "camera_serial")
	assert.Len(t, *calls, 2)
}

func TestDetect_FullModeRecordsCameraSerial(t *testing.T) {
	stubHost(t, []*enumerator.PortDetails{
		ftdiPort("/dev/ttyUSB0", "6001", ""),
	}, map[string]string{"/dev/ttyUSB0": "271828"})

	devices, err := New().Detect(context.Background(), options(detection.Full))
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "271828", devices[0].Metadata["camera_serial"])
}

func TestDetect_PassiveModeNeverProbes(t *testing.T) {
	calls := stubHost(t, []*enumerator.PortDetails{
		ftdiPort("/dev/ttyUSB0", "6015", ""),
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2E8A", PID: "000A", Product: "Pico"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "10C4", PID: "EA60", Product: "Tau 2 VPC"},
	}, nil)

	devices, err := New().Detect(context.Background(), options(detection.Passive))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, "/dev/ttyUSB1", devices[1].Path)
	assert.Equal(t, detection.Medium, devices[0].Confidence)
	assert.Empty(t, *calls)
}

func TestDetect_SkipsGrabberBlockedAndIgnoredPorts(t *testing.T) {
	calls := stubHost(t, []*enumerator.PortDetails{
		ftdiPort("/dev/ttyUSB0", "6010", "ThermalCapture"),
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"},
		ftdiPort("/dev/ttyUSB2", "6015", ""),
		ftdiPort("/dev/ttyUSB3", "6015", ""),
	}, map[string]string{"/dev/ttyUSB2": "", "/dev/ttyUSB3": ""})

	opts := options(detection.Safe)
	opts.IgnorePaths = []string{"/dev/ttyUSB2"}
	devices, err := New().Detect(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB3", devices[0].Path)
	assert.Equal(t, []probeCall{{path: "/dev/ttyUSB3", mode: detection.Safe}}, *calls)
}

func TestDetect_NothingAnswers(t *testing.T) {
	stubHost(t, []*enumerator.PortDetails{ftdiPort("/dev/ttyUSB0", "6015", "")}, nil)

	_, err := New().Detect(context.Background(), options(detection.Safe))
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_EnumerationError(t *testing.T) {
	stubHost(t, nil, nil)
	enumeratePortsFn = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no udev")
	}

	_, err := New().Detect(context.Background(), options(detection.Safe))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enumerate serial ports")
}

func TestDetect_CanceledContext(t *testing.T) {
	calls := stubHost(t, []*enumerator.PortDetails{ftdiPort("/dev/ttyUSB0", "6015", "")},
		map[string]string{"/dev/ttyUSB0": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Detect(ctx, options(detection.Safe))
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
	assert.Empty(t, *calls)
}

func TestIsLikelyTau2(t *testing.T) {
	tests := []struct {
		port   *enumerator.PortDetails
		name   string
		likely bool
	}{
		{name: "FT232R", port: ftdiPort("a", "6001", ""), likely: true},
		{name: "FT230X lower case", port: &enumerator.PortDetails{IsUSB: true, VID: "0403", PID: "6015"}, likely: true},
		{name: "product keyword", port: &enumerator.PortDetails{Product: "FLIR Camera Link"}, likely: true},
		{name: "teax", port: &enumerator.PortDetails{Product: "TeAx ThermalCapture"}, likely: true},
		{name: "CP210x", port: &enumerator.PortDetails{IsUSB: true, VID: "10C4", PID: "EA60"}, likely: false},
		{name: "built-in", port: &enumerator.PortDetails{Name: "/dev/ttyS0"}, likely: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.likely, isLikelyTau2(tc.port))
		})
	}
}

func TestTransport(t *testing.T) {
	assert.Equal(t, detection.TransportUART, New().Transport())
}
