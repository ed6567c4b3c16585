// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"time"
)

// Call writes msg to the peer under a fresh kernel-generated txid and
// blocks until the matching reply arrives, the peer closes, ctx is done,
// or the deadline passes. A zero deadline never expires.
//
// Outcomes: the reply, ErrPeerClosed, ErrTimedOut, ErrCanceled, or
// ErrInterrupted. After ErrInterrupted the call is still in flight on w
// and must be continued with ResumeCall, not restarted.
//
// w must not be in another call; doing so panics.
func (ep *Endpoint) Call(ctx context.Context, owner Owner, w *Waiter, msg Message, deadline time.Time) (Message, error) {
	if err := ep.BeginCall(owner, w, msg); err != nil {
		return Message{}, err
	}
	return ep.ResumeCall(ctx, w, deadline)
}

// BeginCall registers w and sends msg, without waiting for the reply.
// The call then completes through ResumeCall or PollCall.
func (ep *Endpoint) BeginCall(owner Owner, w *Waiter, msg Message) error {
	d := ep.pair.domain
	w.begin(ep)

	pkt, err := d.newPacket(msg)
	if err != nil {
		w.detach()
		d.observeCall(err)
		return err
	}

	p := ep.pair
	p.mu.Lock()
	if ep.closed || owner != ep.owner {
		p.mu.Unlock()
		w.detach()
		d.release(&pkt)
		d.observeCall(ErrBadHandle)
		return ErrBadHandle
	}
	if ep.peerClosed {
		p.mu.Unlock()
		w.detach()
		d.release(&pkt)
		d.observeCall(ErrPeerClosed)
		return ErrPeerClosed
	}

	txid := ep.allocTxidLocked()
	w.txid = txid
	pkt.msg.Txid = txid
	// Register before the request is visible to the peer, so a reply
	// racing back can always find the waiter.
	if ep.waiters == nil {
		ep.waiters = make(map[Txid]*Waiter)
	}
	ep.waiters[txid] = w
	eff := ep.peer().enqueueLocked(pkt)
	p.mu.Unlock()

	d.traceMessage(ep, &pkt, OpCallWriteRequest)
	eff.run(d)
	return nil
}

// ResumeCall waits for the call in flight on w, as Call does after sending.
// It is the continuation after ErrInterrupted.
func (ep *Endpoint) ResumeCall(ctx context.Context, w *Waiter, deadline time.Time) (Message, error) {
	if w.ep != ep {
		return Message{}, ErrBadState
	}
	d := ep.pair.domain
	outcome := w.wait(ctx, deadline, d.clock)
	if outcome == ErrInterrupted {
		return Message{}, ErrInterrupted
	}

	// Delivery or cancellation may still win the race against a timeout;
	// whichever is recorded under the lock is the result.
	ep.pair.mu.Lock()
	pkt, err := ep.endCallLocked(w, outcome)
	ep.pair.mu.Unlock()
	return ep.finishCall(pkt, err)
}

// PollCall completes the call in flight on w if its outcome is known,
// and returns ErrShouldWait otherwise.
func (ep *Endpoint) PollCall(w *Waiter) (Message, error) {
	if w.ep != ep {
		return Message{}, ErrBadState
	}
	ep.pair.mu.Lock()
	if w.state == waitPending {
		ep.pair.mu.Unlock()
		return Message{}, ErrShouldWait
	}
	pkt, err := ep.endCallLocked(w, nil)
	ep.pair.mu.Unlock()
	return ep.finishCall(pkt, err)
}

// CancelCall abandons the call in flight on w. A reply that already
// arrived is discarded and the call counts as ok, and a call already
// ended by a close keeps that result. w is idle afterwards.
func (ep *Endpoint) CancelCall(w *Waiter) error {
	if w.ep != ep {
		return ErrBadState
	}
	ep.pair.mu.Lock()
	pkt, err := ep.endCallLocked(w, ErrCanceled)
	ep.pair.mu.Unlock()
	if err == nil {
		ep.pair.domain.release(&pkt)
	}
	ep.pair.domain.observeCall(err)
	return nil
}

// PendingCalls returns the number of calls in flight on the endpoint.
func (ep *Endpoint) PendingCalls() int {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return len(ep.waiters)
}

// allocTxidLocked returns a kernel txid not used by any call in flight.
func (ep *Endpoint) allocTxidLocked() Txid {
	for {
		ep.txid++
		txid := ep.txid | MinKernelTxid
		if _, busy := ep.waiters[txid]; !busy {
			return txid
		}
	}
}

// tryDeliverLocked hands pkt to the call waiting for its txid.
func (ep *Endpoint) tryDeliverLocked(pkt packet) bool {
	if len(ep.waiters) == 0 || !IsKernelTxid(pkt.msg.Txid) {
		return false
	}
	w, ok := ep.waiters[pkt.msg.Txid]
	if !ok {
		return false
	}
	delete(ep.waiters, pkt.msg.Txid)
	w.deliverLocked(pkt)
	return true
}

// cancelWaitersLocked ends every call in flight on ep with err.
func (ep *Endpoint) cancelWaitersLocked(err error) {
	for txid, w := range ep.waiters {
		delete(ep.waiters, txid)
		w.cancelLocked(err)
	}
}

// endCallLocked detaches w and returns its result. A call still pending
// is removed from the waiter list and ends with outcome.
func (ep *Endpoint) endCallLocked(w *Waiter, outcome error) (packet, error) {
	var (
		pkt packet
		err error
	)
	switch w.state {
	case waitDelivered:
		pkt, w.pkt = w.pkt, packet{}
	case waitCanceled:
		err = w.err
	default:
		delete(ep.waiters, w.txid)
		err = outcome
	}
	w.detach()
	return pkt, err
}

func (ep *Endpoint) finishCall(pkt packet, err error) (Message, error) {
	d := ep.pair.domain
	d.observeCall(err)
	if err != nil {
		return Message{}, err
	}
	d.release(&pkt)
	d.traceMessage(ep, &pkt, OpCallReadResponse)
	return pkt.msg, nil
}
