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

//nolint:paralleltest // tests replace the package registry
package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDetector returns fixed devices and counts calls.
type stubDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	calls     int
}

func (d *stubDetector) Detect(_ context.Context, opts *Options) ([]DeviceInfo, error) {
	d.calls++
	return filterDevices(d.devices, opts), d.err
}

func (d *stubDetector) Transport() string {
	return d.transport
}

type blockingDetector struct{}

func (*blockingDetector) Detect(ctx context.Context, _ *Options) ([]DeviceInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (*blockingDetector) Transport() string {
	return "blocking"
}

// withRegistry installs detectors for the duration of a test.
func withRegistry(t *testing.T, detectors ...Detector) {
	t.Helper()
	saved := registry
	registry = nil
	for _, d := range detectors {
		RegisterDetector(d)
	}
	ClearDetectionCache()
	t.Cleanup(func() {
		registry = saved
		ClearDetectionCache()
	})
}

func noCache() *Options {
	opts := DefaultOptions()
	opts.EnableCache = false
	opts.Timeout = time.Second
	return &opts
}

func TestDeviceInfo_String(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		device   DeviceInfo
	}{
		{
			name:     "serial port",
			device:   DeviceInfo{Transport: TransportUART, Path: "/dev/ttyUSB0", Confidence: Medium},
			expected: "uart device at /dev/ttyUSB0 (confidence: medium)",
		},
		{
			name:     "grabber",
			device:   DeviceInfo{Transport: TransportUSB, Path: "1-2:1.0", Confidence: High},
			expected: "usb device at 1-2:1.0 (confidence: high)",
		},
		{
			name:     "unknown confidence",
			device:   DeviceInfo{Transport: TransportUART, Path: "COM3", Confidence: Confidence(9)},
			expected: "uart device at COM3 (confidence: unknown)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.device.String())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, Safe, opts.Mode)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 2*time.Second, opts.ProbeTimeout)
	assert.True(t, opts.EnableCache)
	assert.Equal(t, 30*time.Second, opts.CacheTTL)
	assert.Contains(t, opts.Blocklist, "1A86:7523")
}

func TestDetectAll_MergesAndSortsByConfidence(t *testing.T) {
	uart := &stubDetector{transport: TransportUART, devices: []DeviceInfo{
		{Transport: TransportUART, Path: "/dev/ttyUSB0", Confidence: Low},
		{Transport: TransportUART, Path: "/dev/ttyUSB1", Confidence: Medium},
	}}
	usb := &stubDetector{transport: TransportUSB, devices: []DeviceInfo{
		{Transport: TransportUSB, Path: "1-2", Confidence: High},
	}}
	withRegistry(t, uart, usb)

	devices, err := DetectAll(context.Background(), noCache())
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "1-2", devices[0].Path)
	assert.Equal(t, "/dev/ttyUSB1", devices[1].Path)
	assert.Equal(t, "/dev/ttyUSB0", devices[2].Path)
}

func TestDetectAll_TransportFilter(t *testing.T) {
	uart := &stubDetector{transport: TransportUART, devices: []DeviceInfo{{Transport: TransportUART, Path: "COM3"}}}
	usb := &stubDetector{transport: TransportUSB, devices: []DeviceInfo{{Transport: TransportUSB, Path: "1-2"}}}
	withRegistry(t, uart, usb)

	opts := noCache()
	opts.Transports = []string{TransportUSB}
	devices, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, TransportUSB, devices[0].Transport)
	assert.Zero(t, uart.calls)
}

func TestDetectAll_NoDetectors(t *testing.T) {
	withRegistry(t)

	opts := noCache()
	opts.Transports = []string{"spi"}
	_, err := DetectAll(context.Background(), opts)
	require.ErrorIs(t, err, ErrNoDetectors)
}

func TestDetectAll_NothingFound(t *testing.T) {
	withRegistry(t, &stubDetector{transport: TransportUART, err: ErrNoDevicesFound})

	_, err := DetectAll(context.Background(), noCache())
	require.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestDetectAll_PartialFailure(t *testing.T) {
	broken := &stubDetector{transport: TransportUSB, err: errors.New("libusb unavailable")}
	uart := &stubDetector{transport: TransportUART, devices: []DeviceInfo{{Transport: TransportUART, Path: "COM3"}}}
	withRegistry(t, broken, uart)

	devices, err := DetectAll(context.Background(), noCache())
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDetectAll_AllFailed(t *testing.T) {
	withRegistry(t, &stubDetector{transport: TransportUSB, err: errors.New("libusb unavailable")})

	_, err := DetectAll(context.Background(), noCache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usb detection: libusb unavailable")
}

func TestDetectAll_Timeout(t *testing.T) {
	withRegistry(t, &blockingDetector{})

	opts := noCache()
	opts.Timeout = 10 * time.Millisecond
	_, err := DetectAll(context.Background(), opts)
	require.ErrorIs(t, err, ErrDetectionTimeout)
}

func TestDetectAll_UsesCache(t *testing.T) {
	uart := &stubDetector{transport: TransportUART, devices: []DeviceInfo{
		{Transport: TransportUART, Path: "/dev/ttyUSB0", Metadata: map[string]string{"vidpid": "0403:6015"}},
	}}
	withRegistry(t, uart)

	opts := DefaultOptions()
	_, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	_, err = DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 1, uart.calls)

	// cached entries still honour the caller's filters
	opts.IgnorePaths = []string{"/dev/ttyUSB0"}
	_, err = DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDevicesFound)
	assert.Equal(t, 1, uart.calls)

	ClearDetectionCacheForTransport(TransportUART)
	opts.IgnorePaths = nil
	_, err = DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 2, uart.calls)
}

func TestDetectAll_EmptyResultNotCached(t *testing.T) {
	uart := &stubDetector{transport: TransportUART}
	withRegistry(t, uart)

	opts := DefaultOptions()
	for range 2 {
		_, err := DetectAll(context.Background(), &opts)
		require.ErrorIs(t, err, ErrNoDevicesFound)
	}
	assert.Equal(t, 2, uart.calls)
}

func TestResultCache(t *testing.T) {
	c := &resultCache{entries: make(map[string]cacheEntry)}
	devices := []DeviceInfo{{Transport: TransportUART, Path: "/dev/ttyUSB0"}}

	_, ok := c.get(TransportUART, time.Minute)
	assert.False(t, ok)

	c.put(TransportUART, devices)
	c.put(TransportUSB, []DeviceInfo{{Transport: TransportUSB, Path: "1-2"}})
	devices[0].Path = "/dev/ttyUSB9"

	got, ok := c.get(TransportUART, time.Minute)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", got[0].Path)
	got[0].Path = "changed"
	again, _ := c.get(TransportUART, time.Minute)
	assert.Equal(t, "/dev/ttyUSB0", again[0].Path)

	time.Sleep(time.Millisecond)
	_, ok = c.get(TransportUART, time.Nanosecond)
	assert.False(t, ok)

	c.forget(TransportUART)
	_, ok = c.get(TransportUART, time.Minute)
	assert.False(t, ok)
	_, ok = c.get(TransportUSB, time.Minute)
	assert.True(t, ok)

	c.reset()
	_, ok = c.get(TransportUSB, time.Minute)
	assert.False(t, ok)
}
