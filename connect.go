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
	"errors"
	"fmt"
	"time"

	"github.com/tau2cam/go-tau2/detection"
)

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// DeviceDetector finds candidate devices for auto-detection
type DeviceDetector func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

// ConnectOption represents a functional option for ConnectCamera
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for camera connection
type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         DeviceDetector
	cameraOptions          []Option
	timeout                time.Duration
	autoDetect             bool
	connectionRetries      int
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithCameraOptions adds camera-level options
func WithCameraOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.cameraOptions = append(c.cameraOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds detection and the initial ping
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets the number of connection retry attempts
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

// WithDeviceDetector sets a custom device detector function for auto-detection
func WithDeviceDetector(detector DeviceDetector) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout:           30 * time.Second,
		connectionRetries: DefaultConnectionRetries,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

// ConnectCamera opens the control transport for path, or for the first
// detected camera, and confirms the camera answers a NO_OP.
//
// Example usage:
//
//	// Connect to a specific port
//	cam, err := tau2.ConnectCamera(ctx, "/dev/ttyUSB0", tau2.WithTransportFactory(uart.Factory))
//
//	// Auto-detect
//	cam, err := tau2.ConnectCamera(ctx, "", tau2.WithAutoDetection(),
//		tau2.WithTransportFromDeviceFactory(uart.FactoryFromDevice))
func ConnectCamera(ctx context.Context, path string, opts ...ConnectOption) (*Camera, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}

	transport, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	cam, err := setupCameraWithRetry(ctx, transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	return cam, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config.transportDeviceFactory, config.deviceDetector)
	}
	return createManualTransport(path, config.transportFactory)
}

func setupCamera(ctx context.Context, transport Transport, config *connectConfig) (*Camera, error) {
	cam, err := New(transport, config.cameraOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create camera: %w", err)
	}
	if err := cam.Ping(ctx); err != nil {
		return nil, fmt.Errorf("camera did not answer: %w", err)
	}
	return cam, nil
}

// setupCameraWithRetry wraps setupCamera with retry logic for connection attempts
func setupCameraWithRetry(ctx context.Context, transport Transport, config *connectConfig) (*Camera, error) {
	// Auto-detection already probed the port
	if config.autoDetect {
		return setupCamera(ctx, transport, config)
	}

	retryConfig := DefaultRetryConfig()
	retryConfig.MaxAttempts = config.connectionRetries

	var cam *Camera
	err := RetryWithConfig(ctx, retryConfig, func() error {
		var err error
		cam, err = setupCamera(ctx, transport, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up camera after %d attempts: %w", config.connectionRetries, err)
	}

	return cam, nil
}

// createManualTransport handles creation of transport for a specific path
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return transport, nil
}

// createAutoDetectedTransport opens the first detected camera
func createAutoDetectedTransport(
	ctx context.Context,
	factory TransportFromDeviceFactory,
	detector DeviceDetector,
) (Transport, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe

	if detector == nil {
		detector = detection.DetectAll
	}
	devices, err := detector(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	device := devices[0]
	Debugf("auto-detected %s", device)
	if factory == nil {
		return nil, errors.New("transport device factory not provided")
	}
	return factory(device)
}
