// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"math"
	"slices"
	"strings"
)

// Signals is the set of readiness bits observable on an endpoint.
type Signals uint32

const (
	// SignalReadable is asserted while the endpoint's queue is non-empty.
	SignalReadable Signals = 1 << iota
	// SignalWritable is asserted while the peer exists.
	SignalWritable
	// SignalPeerClosed is asserted once the peer is gone. It never clears.
	SignalPeerClosed
)

func (s Signals) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	if s&SignalReadable != 0 {
		parts = append(parts, "readable")
	}
	if s&SignalWritable != 0 {
		parts = append(parts, "writable")
	}
	if s&SignalPeerClosed != 0 {
		parts = append(parts, "peer-closed")
	}
	return strings.Join(parts, "|")
}

// observer receives signal notifications for the bits in mask.
type observer struct {
	mask Signals
	fn   func(Signals)
}

// notification is a snapshot of observers and the signals to report,
// taken under the pair lock and fired after it is released. A closing
// notification reaches every observer regardless of its mask.
type notification struct {
	observers []*observer
	signals   Signals
	closing   bool
}

func (n notification) fire() {
	for _, o := range n.observers {
		if n.closing || n.signals&o.mask != 0 {
			o.fn(n.signals)
		}
	}
}

// raiseLocked asserts bits and returns the signals active before.
func (ep *Endpoint) raiseLocked(bits Signals) Signals {
	prev := ep.signals
	ep.signals |= bits
	return prev
}

// snapshotLocked captures the current observers for a later fire.
func (ep *Endpoint) snapshotLocked(signals Signals) notification {
	if len(ep.observers) == 0 {
		return notification{}
	}
	return notification{observers: slices.Clone(ep.observers), signals: signals}
}

// Signals returns the endpoint's current signal state.
func (ep *Endpoint) Signals() Signals {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return ep.signals
}

// Observe registers fn to run whenever a signal transition is published
// that intersects mask. If mask is already satisfied, fn runs once
// before Observe returns. fn is never called with the pair lock held,
// so it may call back into the endpoint.
// Closing the endpoint runs fn one last time whatever the mask, and
// observing a closed endpoint runs fn at once.
// The returned function removes the observer.
func (ep *Endpoint) Observe(mask Signals, fn func(Signals)) (cancel func()) {
	o := &observer{mask: mask, fn: fn}
	p := ep.pair
	p.mu.Lock()
	closed := ep.closed
	if !closed {
		ep.observers = append(ep.observers, o)
	}
	current := ep.signals
	p.mu.Unlock()

	if closed || current&mask != 0 {
		fn(current)
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, x := range ep.observers {
			if x == o {
				ep.observers = append(ep.observers[:i], ep.observers[i+1:]...)
				return
			}
		}
	}
}

// WaitSignals blocks until any bit in mask is asserted and returns the
// signals observed. Context expiry yields ErrTimedOut or ErrCanceled.
// If the endpoint is closed before or during the wait, it returns
// ErrBadHandle.
func (ep *Endpoint) WaitSignals(ctx context.Context, mask Signals) (Signals, error) {
	if ep.isClosed() {
		return 0, ErrBadHandle
	}

	ready := make(chan Signals, 1)
	cancel := ep.Observe(mask, func(s Signals) {
		select {
		case ready <- s:
		default:
		}
	})
	defer cancel()

	select {
	case s := <-ready:
		if ep.isClosed() {
			return 0, ErrBadHandle
		}
		return s, nil
	case <-ctx.Done():
		return ep.Signals(), contextError(ctx.Err())
	}
}

func (ep *Endpoint) isClosed() bool {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return ep.closed
}

// ReadWait reads the next message, waiting for one to arrive while the
// queue is empty and the peer is alive. There are no size limits.
func (ep *Endpoint) ReadWait(ctx context.Context, owner Owner) (Message, error) {
	for {
		msg, err := ep.Read(owner, math.MaxInt, math.MaxInt, false)
		if err != ErrShouldWait {
			return msg, err
		}
		if _, err := ep.WaitSignals(ctx, SignalReadable|SignalPeerClosed); err != nil {
			return Message{}, err
		}
	}
}
