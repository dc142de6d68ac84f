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

	"github.com/tau2cam/go-tau2/internal/frame"
)

// ReplyFrame is a decoded camera reply.
type ReplyFrame = frame.Reply

// FunctionCode identifies a camera command.
type FunctionCode = frame.Code

// Status is the camera's status byte in a reply.
type Status = frame.Status

// readChunk is the size of a single control transport read.
const readChunk = 256

// Execute sends one command and waits for its correlated reply. Corrupted
// or truncated replies are discarded and the command resent up to
// Config.CommandRetries times; replies to other commands are dropped while
// waiting. The whole exchange is bounded by Config.CommandTimeout. A reply
// with a non-OK status is returned together with a *CameraError.
func (c *Camera) Execute(ctx context.Context, code FunctionCode, payload []byte) (*ReplyFrame, error) {
	return c.execute(ctx, code, payload, c.config.CommandTimeout)
}

func (c *Camera) execute(
	ctx context.Context, code frame.Code, payload []byte, timeout time.Duration,
) (*frame.Reply, error) {
	if err := c.commandAllowed(code); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// the mode may have changed while waiting for the lock
	if err := c.commandAllowed(code); err != nil {
		return nil, err
	}
	return c.exchange(ctx, code, payload, timeout)
}

// commandAllowed fails with ErrModeConflict outside command mode. It never
// waits on c.mu, so a frame handler can call it during acquisition.
func (c *Camera) commandAllowed(code frame.Code) error {
	mode, acquiring := c.state()
	if acquiring {
		return fmt.Errorf("%w: %s requested during acquisition", ErrModeConflict, code)
	}
	if mode != ModeCommand {
		return fmt.Errorf("%w: %s requested in %s mode", ErrModeConflict, code, mode)
	}
	return nil
}

// exchange runs the request/reply cycle. Caller holds c.mu.
func (c *Camera) exchange(
	parent context.Context, code frame.Code, payload []byte, timeout time.Duration,
) (*frame.Reply, error) {
	packet, err := frame.Encode(code, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", code, err)
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	trace := NewTraceBuffer(string(c.control.Type()), transportName(c.control), c.config.TraceSize)
	if err := c.control.SetTimeout(c.config.ReadPollInterval); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	attempts := 0
	var lastErr error
	for attempts <= c.config.CommandRetries {
		if ctx.Err() != nil {
			break
		}
		if attempts > 0 {
			Debugf("%s: resending (%d/%d) after %v", code, attempts, c.config.CommandRetries, lastErr)
		}
		attempts++

		reply, err := c.attempt(ctx, packet, code, trace)
		if err == nil {
			c.pause(parent)
			if !reply.OK() {
				return reply, trace.WrapError(&CameraError{Function: code, Status: reply.Status})
			}
			return reply, nil
		}

		lastErr = err
		switch {
		case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrTruncated):
			Debugf("%s: discarding reply: %v", code, err)
		case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
			trace.RecordTimeout(code.String())
		default:
			return nil, trace.WrapError(err)
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	if parent.Err() != nil {
		return nil, trace.WrapError(fmt.Errorf("%s: %w", code, parent.Err()))
	}
	return nil, trace.WrapError(fmt.Errorf("%w: %s after %d attempt(s): %w", ErrNoResponse, code, attempts, lastErr))
}

// attempt writes the packet once and reads until a correlated reply, a
// framing error, or the deadline.
func (c *Camera) attempt(ctx context.Context, packet []byte, code frame.Code, trace *TraceBuffer) (*frame.Reply, error) {
	c.rx = c.rx[:0]
	if err := c.control.Flush(); err != nil {
		return nil, NewTransportError("flush", transportName(c.control), err, errorTypeOf(err))
	}

	n, err := c.control.Write(packet)
	if err != nil {
		return nil, NewTransportError("write", transportName(c.control),
			fmt.Errorf("%w: %w", ErrTransportWrite, err), errorTypeOf(err))
	}
	if n != len(packet) {
		return nil, NewTransportError("write", transportName(c.control),
			fmt.Errorf("%w: short write %d/%d bytes", ErrTransportWrite, n, len(packet)), ErrorTypeTransient)
	}
	trace.RecordTX(packet, code.String())

	var buf [readChunk]byte
	// set when a start byte was rejected; a line that then goes quiet
	// spends a retry like any corrupted reply
	var badHeader error
	for {
		reply, consumed, err := frame.Decode(c.rx)
		switch {
		case err == nil:
			c.drop(consumed)
			if reply.Correlates(code) {
				return reply, nil
			}
			Debugf("%s: dropping unsolicited %s reply", code, reply.Code)
			continue
		case errors.Is(err, ErrUnknownFunctionCode):
			c.drop(consumed)
			Debugf("%s: dropping reply: %v", code, err)
			continue
		case errors.Is(err, frame.ErrBadHeader):
			c.drop(consumed)
			badHeader = err
			continue
		case errors.Is(err, ErrChecksumMismatch):
			return nil, fmt.Errorf("%s reply: %w", code, err)
		}

		// Truncated: keep the partial packet, drop what precedes it.
		c.drop(consumed)
		if ctx.Err() != nil {
			return nil, c.readTimeout(ctx, code)
		}

		n, err := c.control.Read(buf[:])
		if err != nil {
			return nil, NewTransportError("read", transportName(c.control),
				fmt.Errorf("%w: %w", ErrTransportRead, err), errorTypeOf(err))
		}
		if n > 0 {
			trace.RecordRX(buf[:n], "")
			c.rx = append(c.rx, buf[:n]...)
			continue
		}
		if len(c.rx) > 0 {
			return nil, fmt.Errorf("%s reply stalled with %d bytes buffered: %w", code, len(c.rx), ErrTruncated)
		}
		if badHeader != nil {
			return nil, fmt.Errorf("%s reply: %w", code, badHeader)
		}
	}
}

func (c *Camera) readTimeout(ctx context.Context, code frame.Code) error {
	if len(c.rx) > 0 {
		return fmt.Errorf("%s reply incomplete at deadline (%d bytes): %w", code, len(c.rx), ErrTruncated)
	}
	return fmt.Errorf("waiting for %s reply: %w", code, ctx.Err())
}

func (c *Camera) drop(n int) {
	c.rx = append(c.rx[:0], c.rx[n:]...)
}

// pause sleeps the post-command delay so the camera can settle.
func (c *Camera) pause(ctx context.Context) {
	if c.config.PostCommandDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.config.PostCommandDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func errorTypeOf(err error) ErrorType {
	if IsFatal(err) {
		return ErrorTypePermanent
	}
	return ErrorTypeTransient
}

func transportName(t Transport) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}
