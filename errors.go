// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

var (
	// ErrBadHandle reports that the owner tag presented with an operation no
	// longer matches the endpoint, or that the endpoint was already closed.
	ErrBadHandle = errors.New("channel: bad handle")

	// ErrPeerClosed reports that the opposite endpoint is gone. It is permanent.
	ErrPeerClosed = errors.New("channel: peer closed")

	// ErrShouldWait reports an empty queue on a live channel.
	// It is iox.ErrWouldBlock, the non-blocking boundary shared with lfq.
	ErrShouldWait = iox.ErrWouldBlock

	// ErrBufferTooSmall reports that the front message does not fit the
	// caller's limits. Read returns it wrapped in a *BufferSizeError.
	ErrBufferTooSmall = errors.New("channel: buffer too small")

	// ErrNoMemory reports that a pair or message budget is exhausted.
	ErrNoMemory = errors.New("channel: no memory")

	// ErrOutOfRange reports a message larger than the configured limits.
	ErrOutOfRange = errors.New("channel: message out of range")

	// ErrTimedOut is the Call outcome when the deadline elapses first.
	ErrTimedOut = errors.New("channel: timed out")

	// ErrCanceled is the Call outcome when the caller is canceled, either by
	// its context or by its own handle being closed.
	ErrCanceled = errors.New("channel: canceled")

	// ErrInterrupted reports that a Call wait was interrupted and must be
	// resumed with ResumeCall on the same Waiter.
	ErrInterrupted = errors.New("channel: interrupted, resume the call")

	// ErrBadState reports a Waiter that is not bound to the endpoint.
	ErrBadState = errors.New("channel: bad state")
)

// BufferSizeError is returned by Read when the front message exceeds the
// caller's limits. Bytes and Refs describe the message that did not fit.
type BufferSizeError struct {
	Bytes int
	Refs  int
}

func (e *BufferSizeError) Error() string {
	return fmt.Sprintf("channel: buffer too small: message has %d bytes and %d refs", e.Bytes, e.Refs)
}

// Unwrap makes errors.Is(err, ErrBufferTooSmall) hold.
func (e *BufferSizeError) Unwrap() error { return ErrBufferTooSmall }

// contextError maps a context failure onto the channel error taxonomy.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimedOut
	}
	return ErrCanceled
}
