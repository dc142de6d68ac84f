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

// Package uart detects Tau2 control ports among the host's serial ports.
// Importing it registers the detector with package detection.
package uart

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/detection"
	"github.com/tau2cam/go-tau2/transport/uart"
	"go.bug.st/serial/enumerator"
)

// grabberVIDPID is the TeAx grabber's FT2232H. Its serial interfaces belong
// to the usb detector.
const grabberVIDPID = "0403:6010"

// likelyVIDPIDs are USB-serial bridges used on Tau2 interface boards.
var likelyVIDPIDs = []string{
	"0403:6001", // FTDI FT232R
	"0403:6014", // FTDI FT232H
	"0403:6015", // FTDI FT230X, FLIR VPC module
}

var likelyKeywords = []string{"tau", "flir", "teax", "thermalcapture", "vpc"}

var (
	enumeratePortsFn = enumerator.GetDetailedPortsList
	probeDeviceFn    = probeDevice
)

type detector struct{}

// New returns the serial port detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport implements detection.Detector.
func (*detector) Transport() string {
	return detection.TransportUART
}

// Detect lists serial ports and, unless opts.Mode is Passive, probes each
// candidate with a NO_OP.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := enumeratePortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		if !candidate(port, opts) {
			continue
		}
		if device, ok := d.classify(ctx, port, opts); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// candidate applies the caller's filters and skips the grabber.
func candidate(port *enumerator.PortDetails, opts *detection.Options) bool {
	if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return false
	}
	vidpid := vidPID(port)
	if vidpid == "" {
		return true
	}
	return !strings.EqualFold(vidpid, grabberVIDPID) && !detection.IsBlocked(vidpid, opts.Blocklist)
}

// classify decides a port's confidence. Passive mode keeps only likely
// ports; the other modes keep what answers the probe.
func (*detector) classify(ctx context.Context, port *enumerator.PortDetails,
	opts *detection.Options,
) (detection.DeviceInfo, bool) {
	device := deviceInfo(port)
	likely := isLikelyTau2(port)

	if opts.Mode == detection.Passive {
		if !likely {
			return device, false
		}
		device.Confidence = detection.Medium
		return device, true
	}

	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	camSerial, ok := probeDeviceFn(probeCtx, port.Name, opts.Mode)
	if !ok {
		tau2.Debugf("serial port %s did not answer a NO_OP", port.Name)
		return device, false
	}
	device.Confidence = detection.High
	if camSerial != "" {
		device.Metadata["camera_serial"] = camSerial
	}
	return device, true
}

func deviceInfo(port *enumerator.PortDetails) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  detection.TransportUART,
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}
	if port.Product != "" {
		device.Name = port.Product
		device.Metadata["product"] = port.Product
	}
	if vidpid := vidPID(port); vidpid != "" {
		device.Metadata["vidpid"] = vidpid
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

func vidPID(port *enumerator.PortDetails) string {
	if !port.IsUSB || port.VID == "" || port.PID == "" {
		return ""
	}
	return strings.ToUpper(port.VID + ":" + port.PID)
}

// isLikelyTau2 reports whether the descriptors point at a camera link.
func isLikelyTau2(port *enumerator.PortDetails) bool {
	vidpid := vidPID(port)
	for _, known := range likelyVIDPIDs {
		if strings.EqualFold(vidpid, known) {
			return true
		}
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range likelyKeywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

// probeDevice opens path once and sends a NO_OP. In Full mode it also reads
// the camera serial number. Failed ports are not retried.
func probeDevice(ctx context.Context, path string, mode detection.Mode) (string, bool) {
	transport, err := uart.New(path)
	if err != nil {
		return "", false
	}
	cam, err := tau2.New(transport, tau2.WithRetries(0))
	if err != nil {
		_ = transport.Close()
		return "", false
	}
	defer func() { _ = cam.Close() }()

	if err := cam.Ping(ctx); err != nil {
		return "", false
	}
	if mode != detection.Full {
		return "", true
	}
	sn, err := cam.GetSerialNumber(ctx)
	if err != nil {
		return "", true
	}
	return strconv.FormatUint(uint64(sn.Camera), 10), true
}
