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

// Package usb detects TeAx ThermalCapture grabbers. Importing it registers
// the detector with package detection.
package usb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/karalabe/usb"
	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/detection"
	tau2usb "github.com/tau2cam/go-tau2/transport/usb"
)

var (
	enumerateFn   = usb.Enumerate
	probeDeviceFn = probeDevice
)

type detector struct{}

// New returns the grabber detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport implements detection.Detector.
func (*detector) Transport() string {
	return detection.TransportUSB
}

// Detect enumerates FT2232H chips. A grabber is identified by its USB IDs
// alone, so every match has at least Medium confidence; Safe and Full
// modes raise it to High when the camera behind it answers.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if !usb.Supported() {
		return nil, detection.ErrNoDevicesFound
	}
	infos, err := enumerateFn(tau2usb.VendorID, tau2usb.ProductID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	vidpid := detection.FormatVIDPID(tau2usb.VendorID, tau2usb.ProductID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for i := range infos {
		info := &infos[i]
		// channel B carries no camera data
		if info.Interface != 0 || detection.IsPathIgnored(info.Path, opts.IgnorePaths) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		device := deviceInfo(info, vidpid)
		if opts.Mode != detection.Passive {
			probe(ctx, &device, opts)
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func deviceInfo(info *usb.DeviceInfo, vidpid string) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  detection.TransportUSB,
		Path:       info.Path,
		Name:       "TeAx ThermalCapture",
		Confidence: detection.Medium,
		Metadata:   map[string]string{"vidpid": vidpid},
	}
	if info.Product != "" {
		device.Name = info.Product
		device.Metadata["product"] = info.Product
	}
	if info.Manufacturer != "" {
		device.Metadata["manufacturer"] = info.Manufacturer
	}
	if info.Serial != "" {
		device.Metadata["serial"] = info.Serial
	}
	return device
}

func probe(ctx context.Context, device *detection.DeviceInfo, opts *detection.Options) {
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	camSerial, ok := probeDeviceFn(probeCtx, device.Path, opts.Mode)
	if !ok {
		tau2.Debugf("grabber %s: camera did not answer a NO_OP", device.Path)
		return
	}
	device.Confidence = detection.High
	if camSerial != "" {
		device.Metadata["camera_serial"] = camSerial
	}
}

// probeDevice opens the grabber and pings the camera behind it.
func probeDevice(ctx context.Context, path string, mode detection.Mode) (string, bool) {
	transport, err := tau2usb.OpenGrabber(path)
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
