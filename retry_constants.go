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

import "time"

// Connection retry constants control opening the camera's serial links.
const (
	// DefaultConnectionRetries is the number of attempts to connect to a device.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the initial delay between connection attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff is the maximum delay between connection attempts.
	ConnectionMaxBackoff = 500 * time.Millisecond
	// ConnectionBackoffMultiplier is the exponential backoff multiplier.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random jitter factor (0.0-1.0).
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout is the overall timeout for all connection attempts.
	ConnectionRetryTimeout = 10 * time.Second
)

// Command exchange constants.
const (
	// DefaultCommandRetries is the number of resends after a corrupted or
	// truncated reply, before giving up with ErrNoResponse.
	DefaultCommandRetries = 2
	// DefaultCommandTimeout bounds one exchange, including retries.
	DefaultCommandTimeout = time.Second
	// DefaultReadPollInterval is the transport read timeout used while
	// waiting for reply bytes.
	DefaultReadPollInterval = 20 * time.Millisecond
	// DefaultPostCommandDelay is the pause after each exchange before the
	// next command may be sent.
	DefaultPostCommandDelay = 100 * time.Millisecond
	// LongFFCTimeout covers the long flat-field correction, which blocks
	// the camera for several seconds.
	LongFFCTimeout = 5 * time.Second
)

// Mode switch constants.
const (
	// ModeSwitchAttempts is the number of NO_OP acknowledgements tried.
	ModeSwitchAttempts = 3
	// ModeSwitchBackoff is the delay between acknowledgement attempts.
	ModeSwitchBackoff = 50 * time.Millisecond
	// ModeSwitchTimeout bounds the whole acknowledgement phase.
	ModeSwitchTimeout = 3 * time.Second
)
