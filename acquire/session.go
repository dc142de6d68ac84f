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

// Package acquire captures decoded frames from a camera in acquisition mode.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	tau2 "github.com/tau2cam/go-tau2"
	"github.com/tau2cam/go-tau2/internal/syncutil"
	"github.com/tau2cam/go-tau2/pkg/teax"
)

// FrameHandler receives each decoded frame. The frame is owned by the
// handler; returning an error stops the run.
type FrameHandler func(*teax.Frame) error

// Result summarizes one run. Skipped frames are counted, never hidden.
type Result struct {
	Started        time.Time
	Frames         []*teax.Frame
	Sync           teax.SyncStats
	Elapsed        time.Duration
	Delivered      int
	SyncTimeouts   int
	SizeMismatches int
}

// Degraded reports whether any frame was skipped.
func (r *Result) Degraded() bool {
	return r.SyncTimeouts > 0 || r.SizeMismatches > 0 || r.Sync.Corrupt > 0 || r.Sync.Truncated > 0
}

// Rate returns the delivered frames per second.
func (r *Result) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Delivered) / r.Elapsed.Seconds()
}

func (r *Result) String() string {
	return fmt.Sprintf("%d frames in %v (%.1f fps), %d sync timeouts, %d size mismatches, %d corrupt, %d truncated",
		r.Delivered, r.Elapsed.Round(time.Millisecond), r.Rate(),
		r.SyncTimeouts, r.SizeMismatches, r.Sync.Corrupt, r.Sync.Truncated)
}

// Session runs acquisitions on one camera. Sequence numbers continue
// across runs.
type Session struct {
	camera *tau2.Camera
	config *Config
	seq    uint64
	mu     syncutil.Mutex
}

// NewSession creates an acquisition session. A nil config uses DefaultConfig.
func NewSession(camera *tau2.Camera, config *Config) (*Session, error) {
	if camera == nil {
		return nil, errors.New("camera must not be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	return &Session{camera: camera, config: &cfg}, nil
}

// Config returns a copy of the session configuration.
func (s *Session) Config() Config {
	return *s.config
}

// Run captures frames until limit is reached or ctx is done. The camera
// must already be in acquisition mode. Sync timeouts and size mismatches
// are counted and skipped unless Config.FailFast is set. On error the
// partial result is returned with it.
func (s *Session) Run(ctx context.Context, limit Limit, onFrame FrameHandler) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, release, err := s.camera.BeginAcquisition()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := stream.SetTimeout(s.config.ReadTimeout); err != nil {
		return nil, fmt.Errorf("failed to set stream read timeout: %w", err)
	}
	sync, err := teax.NewSynchronizer(stream, s.config.Geometry,
		teax.WithSyncTimeout(s.config.SyncTimeout),
		teax.WithReadChunk(s.config.ReadChunk),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}

	result := &Result{Started: time.Now()}
	defer func() {
		result.Elapsed = time.Since(result.Started)
		result.Sync = sync.Stats()
	}()

	runCtx := ctx
	if limit.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, result.Started.Add(limit.Duration))
		defer cancel()
	}

	tau2.Debugf("acquisition started: %s, %dx%d@%d bits", limit,
		s.config.Geometry.Width, s.config.Geometry.Height, s.config.Geometry.BitsPerSample)

	for limit.Frames <= 0 || result.Delivered < limit.Frames {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if runCtx.Err() != nil {
			break
		}

		frame, err := s.next(runCtx, sync, result)
		if err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				break
			}
			return result, err
		}
		if frame == nil {
			continue
		}

		if onFrame != nil {
			if err := safeCallHandler(onFrame, frame); err != nil {
				return result, err
			}
		}
		result.Delivered++
		if !s.config.DiscardFrames {
			result.Frames = append(result.Frames, frame)
		}
	}

	tau2.Debugf("acquisition finished: %d frames", result.Delivered)
	return result, nil
}

// next reads and decodes one frame. A nil frame with a nil error means a
// frame was skipped.
func (s *Session) next(ctx context.Context, sync *teax.Synchronizer, result *Result) (*teax.Frame, error) {
	raw, err := sync.Next(ctx)
	switch {
	case errors.Is(err, teax.ErrSyncTimeout):
		result.SyncTimeouts++
		tau2.Warnf("frame skipped: %v", err)
		if s.config.FailFast {
			return nil, err
		}
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("acquisition aborted: %w", err)
	}

	g := s.config.Geometry
	frame, err := teax.DecodeOrder(raw.Payload, g.Width, g.Height, g.BitsPerSample, s.config.ByteOrder)
	if errors.Is(err, teax.ErrSizeMismatch) {
		result.SizeMismatches++
		tau2.Warnf("frame skipped: %v", err)
		if s.config.FailFast {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	frame.Seq = s.seq
	s.seq++
	frame.Timestamp = time.Now()
	frame.Counter = raw.Counter()
	return frame, nil
}

// safeCallHandler executes the frame handler with panic recovery
func safeCallHandler(handler FrameHandler, frame *teax.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame handler panicked on frame %d: %v", frame.Seq, r)
		}
	}()
	if err := handler(frame); err != nil {
		return fmt.Errorf("frame handler failed on frame %d: %w", frame.Seq, err)
	}
	return nil
}
