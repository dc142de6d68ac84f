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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callTracker struct {
	calls int
}

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Microsecond,
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetryConfig_DefaultRetryConfig(t *testing.T) {
	t.Parallel()
	config := DefaultRetryConfig()

	assert.Equal(t, DefaultConnectionRetries, config.MaxAttempts)
	assert.Equal(t, ConnectionInitialBackoff, config.InitialBackoff)
	assert.Equal(t, ConnectionMaxBackoff, config.MaxBackoff)
	assert.InDelta(t, ConnectionBackoffMultiplier, config.BackoffMultiplier, 0)
	assert.Equal(t, ConnectionRetryTimeout, config.RetryTimeout)
}

func TestModeSwitchRetryConfig(t *testing.T) {
	t.Parallel()
	config := ModeSwitchRetryConfig()

	assert.Equal(t, ModeSwitchAttempts, config.MaxAttempts)
	assert.Equal(t, ModeSwitchBackoff, config.InitialBackoff)
	assert.Equal(t, ModeSwitchTimeout, config.RetryTimeout)
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config        *RetryConfig
		fn            func(*callTracker) RetryableFunc
		wantErr       error
		name          string
		expectedCalls int
	}{
		{
			name:   "success on first attempt",
			config: fastRetryConfig(3),
			fn: func(c *callTracker) RetryableFunc {
				return func() error { c.calls++; return nil }
			},
			expectedCalls: 1,
		},
		{
			name:   "success after retryable failures",
			config: fastRetryConfig(3),
			fn: func(c *callTracker) RetryableFunc {
				return func() error {
					c.calls++
					if c.calls < 3 {
						return ErrNoResponse
					}
					return nil
				}
			},
			expectedCalls: 3,
		},
		{
			name:   "attempts exhausted",
			config: fastRetryConfig(3),
			fn: func(c *callTracker) RetryableFunc {
				return func() error { c.calls++; return ErrChecksumMismatch }
			},
			wantErr:       ErrChecksumMismatch,
			expectedCalls: 3,
		},
		{
			name:   "non-retryable error stops immediately",
			config: fastRetryConfig(3),
			fn: func(c *callTracker) RetryableFunc {
				return func() error { c.calls++; return ErrInvalidSettingValue }
			},
			wantErr:       ErrInvalidSettingValue,
			expectedCalls: 1,
		},
		{
			name:   "zero attempts runs once",
			config: fastRetryConfig(0),
			fn: func(c *callTracker) RetryableFunc {
				return func() error { c.calls++; return ErrNoResponse }
			},
			wantErr:       ErrNoResponse,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tracker := &callTracker{}

			err := RetryWithConfig(context.Background(), tt.config, tt.fn(tracker))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, tracker.calls)
		})
	}
}

func TestRetryWithConfig_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithConfig_TimeoutReturnsLastError(t *testing.T) {
	t.Parallel()

	config := &RetryConfig{
		MaxAttempts:       100,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 1,
		RetryTimeout:      50 * time.Millisecond,
	}
	last := errors.New("still failing")
	calls := 0
	err := RetryWithConfig(context.Background(), config, func() error {
		calls++
		return NewTransportError("read", "", last, ErrorTypeTransient)
	})
	require.ErrorIs(t, err, last)
	assert.Less(t, calls, 100)
}

func TestJittered(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, base, jittered(base, 0))

	for range 50 {
		d := jittered(base, 0.5)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}
