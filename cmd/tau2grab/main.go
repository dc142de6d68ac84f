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

// Command tau2grab configures a Tau2 camera and captures frames through a
// TeAx grabber, logging per-frame statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/acquire"
	"github.com/tau2cam/go-tau2/detection"
	_ "github.com/tau2cam/go-tau2/detection/uart"
	_ "github.com/tau2cam/go-tau2/detection/usb"
	"github.com/tau2cam/go-tau2/pkg/teax"
	"github.com/tau2cam/go-tau2/sensors/sts35"
	"github.com/tau2cam/go-tau2/transport/uart"
	"github.com/tau2cam/go-tau2/transport/usb"
)

type config struct {
	port       string
	grabber    string
	sensorBus  string
	frames     int
	duration   time.Duration
	configure  bool
	debug      bool
	sessionLog bool
}

func parseConfig(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("tau2grab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.port, "port", "", "Serial control port (commands go through the grabber if empty)")
	fs.StringVar(&cfg.grabber, "grabber", "", `Grabber USB path, "auto" for the first one found`)
	fs.StringVar(&cfg.sensorBus, "sensors", "", "I2C bus of the STS35 reference sensors (skipped if empty)")
	fs.IntVar(&cfg.frames, "frames", 10, "Number of frames to capture (0 = until -duration or Ctrl+C)")
	fs.DurationVar(&cfg.duration, "duration", 0, "Maximum capture time")
	fs.BoolVar(&cfg.configure, "configure", true, "Apply the default camera settings before capturing")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.BoolVar(&cfg.sessionLog, "log", false, "Write a session log file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.frames < 0 {
		return nil, fmt.Errorf("-frames must not be negative, got %d", cfg.frames)
	}
	if cfg.duration < 0 {
		return nil, fmt.Errorf("-duration must not be negative, got %v", cfg.duration)
	}
	return cfg, nil
}

// newTransportFromDevice opens a link found by auto-detection.
func newTransportFromDevice(device detection.DeviceInfo) (tau2.Transport, error) {
	switch device.Transport {
	case detection.TransportUSB:
		return usb.FactoryFromDevice(device)
	case detection.TransportUART:
		return uart.FactoryFromDevice(device)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

func grabberPath(flagValue string) string {
	if flagValue == "auto" {
		return ""
	}
	return flagValue
}

// connect opens the camera. With -port, commands use the serial line and
// frames come from the grabber; otherwise the grabber carries both.
func connect(ctx context.Context, cfg *config) (*tau2.Camera, error) {
	connectOpts := []tau2.ConnectOption{tau2.WithConnectTimeout(10 * time.Second)}

	switch {
	case cfg.port != "":
		grabber, err := usb.OpenGrabber(grabberPath(cfg.grabber))
		if err != nil {
			return nil, fmt.Errorf("failed to open grabber: %w", err)
		}
		connectOpts = append(connectOpts,
			tau2.WithTransportFactory(uart.Factory),
			tau2.WithCameraOptions(tau2.WithDataTransport(grabber)))
		cam, err := tau2.ConnectCamera(ctx, cfg.port, connectOpts...)
		if err != nil {
			_ = grabber.Close()
			return nil, err
		}
		return cam, nil

	case cfg.grabber != "":
		connectOpts = append(connectOpts, tau2.WithTransportFactory(usb.Factory))
		return tau2.ConnectCamera(ctx, grabberPath(cfg.grabber), connectOpts...)

	default:
		tau2.Infof("auto-detecting Tau2 devices")
		connectOpts = append(connectOpts,
			tau2.WithAutoDetection(),
			tau2.WithTransportFromDeviceFactory(newTransportFromDevice))
		return tau2.ConnectCamera(ctx, "", connectOpts...)
	}
}

type sensorReader interface {
	Read(ctx context.Context) (sts35.Reading, error)
	Close() error
}

var (
	connectFn     = connect
	openSensorsFn = func(bus string) (sensorReader, error) { return sts35.Open(bus) }
)

func describe(ctx context.Context, cam *tau2.Camera) {
	if sn, err := cam.GetSerialNumber(ctx); err == nil {
		tau2.Infof("serial number: %s", sn)
	}
	if rev, err := cam.GetRevision(ctx); err == nil {
		tau2.Infof("revision: %s", rev)
	}
	if t, err := cam.GetFPATemperature(ctx); err == nil {
		tau2.Infof("FPA temperature: %.2f °C", t)
	}
}

func configureCamera(ctx context.Context, cam *tau2.Camera) error {
	result, err := cam.Configure(ctx, tau2.DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to configure camera: %w", err)
	}
	if !result.OK() {
		for _, r := range result {
			if !r.Configured {
				tau2.Warnf("%s", r)
			}
		}
	}
	return nil
}

func readSensors(ctx context.Context, bus string) {
	sensors, err := openSensorsFn(bus)
	if err != nil {
		tau2.Warnf("reference sensors unavailable: %v", err)
		return
	}
	defer func() { _ = sensors.Close() }()

	reading, err := sensors.Read(ctx)
	if err != nil {
		tau2.Warnf("reference sensors: %v", err)
		return
	}
	tau2.Logger().WithFields(log.Fields{
		"blackbody": fmt.Sprintf("%.2f", sts35.Celsius(reading.Blackbody)),
		"ambient":   fmt.Sprintf("%.2f", sts35.Celsius(reading.Ambient)),
	}).Info("reference temperatures")
}

func capture(ctx context.Context, cam *tau2.Camera, cfg *config) (*acquire.Result, error) {
	acqConfig := acquire.DefaultConfig()
	acqConfig.DiscardFrames = true
	session, err := acquire.NewSession(cam, acqConfig)
	if err != nil {
		return nil, err
	}

	if err := cam.SetMode(ctx, tau2.ModeAcquisition); err != nil {
		return nil, err
	}
	defer func() {
		// leave the camera usable even when the capture was interrupted
		if err := cam.SetMode(context.WithoutCancel(ctx), tau2.ModeCommand); err != nil {
			tau2.Warnf("failed to return to command mode: %v", err)
		}
	}()

	limit := acquire.Limit{Frames: cfg.frames, Duration: cfg.duration}
	return session.Run(ctx, limit, func(f *teax.Frame) error {
		stats := f.Stats()
		tau2.Logger().WithFields(log.Fields{
			"seq":     f.Seq,
			"counter": f.Counter,
			"min":     stats.Min,
			"max":     stats.Max,
			"mean":    fmt.Sprintf("%.1f", stats.Mean),
		}).Info("frame")
		return nil
	})
}

func run(ctx context.Context, cfg *config) error {
	cam, err := connectFn(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to camera: %w", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			tau2.Warnf("failed to close camera: %v", err)
		}
	}()

	describe(ctx, cam)
	if cfg.configure {
		if err := configureCamera(ctx, cam); err != nil {
			return err
		}
	}
	if cfg.sensorBus != "" {
		readSensors(ctx, cfg.sensorBus)
	}

	result, err := capture(ctx, cam, cfg)
	if result != nil {
		tau2.Infof("capture: %s", result)
	}
	return err
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if cfg.debug {
		tau2.SetDebugEnabled(true)
	}
	if cfg.sessionLog {
		path, err := tau2.InitSessionLog()
		if err != nil {
			tau2.Warnf("%v", err)
		} else {
			tau2.Infof("session log: %s", path)
			defer func() { _ = tau2.CloseSessionLog() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		tau2.Logger().WithError(err).Error("tau2grab failed")
		return 1
	}
	return 0
}
