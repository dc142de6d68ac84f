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
	"sync"

	"github.com/tau2cam/go-tau2/internal/frame"
	"github.com/tau2cam/go-tau2/internal/syncutil"
)

// Camera drives a Tau2 core over a control transport and, optionally, a
// separate data transport carrying the frame stream.
//
// Thread Safety: Camera serializes command exchanges and mode switches.
// While an acquisition holds the stream, any other use of the camera fails
// with ErrModeConflict instead of waiting.
type Camera struct {
	control Transport
	data    Transport
	config  *Config
	rx      []byte
	mu      syncutil.Mutex // serializes exchanges and mode switches

	stateMu   syncutil.Mutex // guards mode and acquiring
	mode      Mode
	acquiring bool
}

// New creates a camera in command mode.
func New(control Transport, opts ...Option) (*Camera, error) {
	if control == nil {
		return nil, errors.New("control transport must not be nil")
	}
	cam := &Camera{
		control: control,
		config:  DefaultConfig(),
		mode:    ModeCommand,
	}
	for _, opt := range opts {
		if err := opt(cam); err != nil {
			return nil, err
		}
	}
	if err := cam.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid camera config: %w", err)
	}
	return cam, nil
}

// Mode returns the active mode.
func (c *Camera) Mode() Mode {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.mode
}

// Acquiring reports whether an acquisition currently holds the stream.
func (c *Camera) Acquiring() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.acquiring
}

// state returns the mode and acquisition flag without touching c.mu.
func (c *Camera) state() (Mode, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.mode, c.acquiring
}

func (c *Camera) setMode(mode Mode) {
	c.stateMu.Lock()
	c.mode = mode
	c.stateMu.Unlock()
}

// Transport returns the control transport
func (c *Camera) Transport() Transport {
	return c.control
}

// DataTransport returns the transport carrying frames. It is the control
// transport when no separate data transport was configured.
func (c *Camera) DataTransport() Transport {
	if c.data != nil {
		return c.data
	}
	return c.control
}

// Config returns a copy of the camera configuration.
func (c *Camera) Config() Config {
	return *c.config
}

// SetMode switches between command and acquisition mode. Entering
// acquisition requires a NO_OP acknowledgement while the control channel is
// still usable; leaving it requires one after the link has been handed back.
// The mode only changes once the switch has fully succeeded.
func (c *Camera) SetMode(ctx context.Context, mode Mode) error {
	if mode != ModeCommand && mode != ModeAcquisition {
		return fmt.Errorf("%w: mode %d", ErrInvalidSettingValue, int(mode))
	}

	if _, acquiring := c.state(); acquiring {
		return fmt.Errorf("%w: switch to %s mode during acquisition", ErrModeConflict, mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, acquiring := c.state()
	if acquiring {
		return fmt.Errorf("%w: switch to %s mode during acquisition", ErrModeConflict, mode)
	}
	if current == mode {
		return nil
	}

	switch mode {
	case ModeAcquisition:
		if err := c.acknowledge(ctx); err != nil {
			return fmt.Errorf("camera did not acknowledge switch to %s mode: %w", mode, err)
		}
		if err := c.switchTransports(ctx, mode); err != nil {
			return err
		}
		if err := c.DataTransport().Flush(); err != nil {
			return fmt.Errorf("failed to purge data transport: %w", err)
		}
	case ModeCommand:
		if err := c.switchTransports(ctx, mode); err != nil {
			return err
		}
		if err := c.control.Flush(); err != nil {
			return fmt.Errorf("failed to purge control transport: %w", err)
		}
		if err := c.acknowledge(ctx); err != nil {
			if restoreErr := c.switchTransports(ctx, current); restoreErr != nil {
				Warnf("failed to restore %s mode: %v", current, restoreErr)
			}
			return fmt.Errorf("camera did not acknowledge switch to %s mode: %w", mode, err)
		}
	}

	Debugf("camera mode %s -> %s", current, mode)
	c.setMode(mode)
	return nil
}

// acknowledge sends NO_OP until the camera answers. Caller holds c.mu.
func (c *Camera) acknowledge(ctx context.Context) error {
	return RetryWithConfig(ctx, c.config.ModeSwitchRetry, func() error {
		_, err := c.exchange(ctx, frame.NoOp, nil, c.config.CommandTimeout)
		return err
	})
}

// switchTransports reconfigures every distinct transport that needs it.
func (c *Camera) switchTransports(ctx context.Context, mode Mode) error {
	transports := []Transport{c.control}
	if c.data != nil && c.data != c.control {
		transports = append(transports, c.data)
	}
	for _, t := range transports {
		switcher, ok := t.(ModeSwitcher)
		if !ok {
			continue
		}
		if err := switcher.SwitchMode(ctx, mode); err != nil {
			return fmt.Errorf("failed to switch %s transport to %s mode: %w", t.Type(), mode, err)
		}
	}
	return nil
}

// BeginAcquisition hands out the data transport for the duration of a
// capture. The camera must be in acquisition mode with no other capture
// running. Until release is called, commands and mode switches fail with
// ErrModeConflict.
func (c *Camera) BeginAcquisition() (stream Transport, release func(), err error) {
	// waits only for an in-flight mode switch
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.mode != ModeAcquisition {
		return nil, nil, fmt.Errorf("%w: acquisition requested in %s mode", ErrModeConflict, c.mode)
	}
	if c.acquiring {
		return nil, nil, fmt.Errorf("%w: acquisition already running", ErrModeConflict)
	}
	c.acquiring = true

	var once sync.Once
	release = func() {
		once.Do(func() {
			c.stateMu.Lock()
			c.acquiring = false
			c.stateMu.Unlock()
		})
	}
	return c.DataTransport(), release, nil
}

// Close closes the camera's transports
func (c *Camera) Close() error {
	var errs []error
	if err := c.control.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close control transport: %w", err))
	}
	if c.data != nil && c.data != c.control {
		if err := c.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close data transport: %w", err))
		}
	}
	return errors.Join(errs...)
}
