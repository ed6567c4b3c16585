// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type waitState uint8

const (
	waitIdle waitState = iota
	waitPending
	waitDelivered
	waitCanceled
)

// Waiter is the per-caller state of one in-flight Call. It doubles as the
// continuation of an interrupted call: after ErrInterrupted the caller
// passes the same Waiter back to ResumeCall.
//
// A Waiter may be reused for any number of sequential calls, but never
// for two at once. Beginning a second call while one is in flight panics.
type Waiter struct {
	// ep is the endpoint of the call in flight. Only the calling
	// goroutine reads or writes it.
	ep *Endpoint

	// Guarded by ep.pair.mu while bound.
	txid  Txid
	state waitState
	err   error
	pkt   packet

	event chan struct{}
	intr  chan struct{}
}

// NewWaiter returns an idle Waiter.
func NewWaiter() *Waiter {
	return &Waiter{
		event: make(chan struct{}, 1),
		intr:  make(chan struct{}, 1),
	}
}

// Busy reports whether a call is in flight on w.
func (w *Waiter) Busy() bool { return w.ep != nil }

// Interrupt makes the current or next wait of the call in flight on w
// return ErrInterrupted. The call stays registered and is continued with
// ResumeCall. An interrupt raised while w is idle is dropped when the
// next call begins.
// Safe to call from any goroutine.
func (w *Waiter) Interrupt() {
	select {
	case w.intr <- struct{}{}:
	default:
	}
}

// begin binds w to ep for a new call.
func (w *Waiter) begin(ep *Endpoint) {
	if w.ep != nil {
		panic("channel: waiter begins a call while another is in flight")
	}
	w.ep = ep
	w.state = waitPending
	w.err = nil
	select {
	case <-w.event:
	default:
	}
	select {
	case <-w.intr:
	default:
	}
}

// detach unbinds w without a result, for calls that never registered.
func (w *Waiter) detach() {
	w.ep = nil
	w.state = waitIdle
}

func (w *Waiter) deliverLocked(p packet) {
	w.pkt = p
	w.state = waitDelivered
	w.signal()
}

func (w *Waiter) cancelLocked(err error) {
	w.err = err
	w.state = waitCanceled
	w.signal()
}

func (w *Waiter) signal() {
	select {
	case w.event <- struct{}{}:
	default:
	}
}

// wait parks until w is signaled, interrupted, canceled through ctx, or the
// deadline passes. A nil result means delivery or cancellation happened;
// the outcome itself is read under the pair lock.
func (w *Waiter) wait(ctx context.Context, deadline time.Time, clk clock.Clock) error {
	select {
	case <-w.event:
		return nil
	default:
	}

	var expired <-chan time.Time
	if !deadline.IsZero() {
		d := deadline.Sub(clk.Now())
		if d <= 0 {
			return ErrTimedOut
		}
		t := clk.Timer(d)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-w.event:
		return nil
	case <-w.intr:
		return ErrInterrupted
	case <-ctx.Done():
		return contextError(ctx.Err())
	case <-expired:
		return ErrTimedOut
	}
}
