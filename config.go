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
	"errors"
	"fmt"
	"time"
)

// Config controls command exchanges and mode switching.
type Config struct {
	// ModeSwitchRetry configures the NO_OP acknowledgement before a mode change
	ModeSwitchRetry *RetryConfig
	// CommandTimeout bounds a single exchange, retries included
	CommandTimeout time.Duration
	// ReadPollInterval is the transport read timeout while waiting for a reply
	ReadPollInterval time.Duration
	// PostCommandDelay is slept after every successful exchange
	PostCommandDelay time.Duration
	// CommandRetries is the number of resends after a corrupted reply
	CommandRetries int
	// TraceSize is the number of wire entries kept for error traces
	TraceSize int
}

// DefaultConfig returns default camera configuration
func DefaultConfig() *Config {
	return &Config{
		ModeSwitchRetry:  ModeSwitchRetryConfig(),
		CommandTimeout:   DefaultCommandTimeout,
		ReadPollInterval: DefaultReadPollInterval,
		PostCommandDelay: DefaultPostCommandDelay,
		CommandRetries:   DefaultCommandRetries,
		TraceSize:        16,
	}
}

// Validate checks the configuration for values the session cannot honor.
func (c *Config) Validate() error {
	switch {
	case c.CommandTimeout <= 0:
		return fmt.Errorf("command timeout must be positive, got %v", c.CommandTimeout)
	case c.ReadPollInterval <= 0:
		return fmt.Errorf("read poll interval must be positive, got %v", c.ReadPollInterval)
	case c.PostCommandDelay < 0:
		return fmt.Errorf("post command delay must not be negative, got %v", c.PostCommandDelay)
	case c.CommandRetries < 0:
		return fmt.Errorf("command retries must not be negative, got %d", c.CommandRetries)
	}
	return nil
}

// Option configures a Camera
type Option func(*Camera) error

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(c *Camera) error {
		if config == nil {
			return errors.New("config must not be nil")
		}
		cfg := *config
		c.config = &cfg
		return nil
	}
}

// WithDataTransport sets a separate transport for the frame stream. Without
// it the control transport carries both channels.
func WithDataTransport(t Transport) Option {
	return func(c *Camera) error {
		c.data = t
		return nil
	}
}

// WithCommandTimeout sets the per-exchange deadline
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Camera) error {
		c.config.CommandTimeout = timeout
		return nil
	}
}

// WithRetries sets the number of resends after a corrupted or truncated reply
func WithRetries(n int) Option {
	return func(c *Camera) error {
		c.config.CommandRetries = n
		return nil
	}
}

// WithPostCommandDelay sets the pause after each exchange
func WithPostCommandDelay(d time.Duration) Option {
	return func(c *Camera) error {
		c.config.PostCommandDelay = d
		return nil
	}
}
