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

package acquire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/tau2cam/go-tau2/pkg/teax"
)

// Config holds acquisition options
type Config struct {
	// ByteOrder of the samples in the grabber stream
	ByteOrder binary.ByteOrder
	// Geometry is the frame layout streamed by the grabber
	Geometry teax.Geometry
	// SyncTimeout bounds the wait for one complete frame
	SyncTimeout time.Duration
	// ReadTimeout is the data transport read timeout
	ReadTimeout time.Duration
	// ReadChunk is the largest single read from the data transport
	ReadChunk int
	// FailFast aborts the run on the first sync timeout or size mismatch
	FailFast bool
	// DiscardFrames stops Result from retaining decoded frames. The frame
	// handler still receives every frame.
	DiscardFrames bool
}

// DefaultConfig returns the configuration for a Tau2 640 core streaming
// 14-bit CMOS frames through the grabber.
func DefaultConfig() *Config {
	return &Config{
		ByteOrder:   binary.LittleEndian,
		Geometry:    teax.DefaultGeometry(),
		SyncTimeout: teax.DefaultSyncTimeout,
		ReadTimeout: 10 * time.Millisecond,
		ReadChunk:   teax.DefaultReadChunk,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("invalid acquisition geometry: %w", err)
	}
	if c.SyncTimeout <= 0 {
		return fmt.Errorf("sync timeout must be positive, got %v", c.SyncTimeout)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", c.ReadTimeout)
	}
	if c.ByteOrder == nil {
		return errors.New("byte order must be set")
	}
	return nil
}

// Limit bounds a run. A zero field is not checked; with both zero the run
// lasts until the context is done.
type Limit struct {
	Frames   int
	Duration time.Duration
}

func (l Limit) String() string {
	switch {
	case l.Frames > 0 && l.Duration > 0:
		return fmt.Sprintf("%d frames or %v", l.Frames, l.Duration)
	case l.Frames > 0:
		return fmt.Sprintf("%d frames", l.Frames)
	case l.Duration > 0:
		return l.Duration.String()
	default:
		return "unbounded"
	}
}
