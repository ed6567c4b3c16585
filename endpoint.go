// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"sync"

	"go.uber.org/multierr"
)

// Endpoint is one side of a channel pair.
//
// An endpoint owns the queue of messages written by its peer and the list
// of calls it has in flight. Both endpoints of a pair share one lock, so
// the peer's queue can be touched without a second lock acquisition.
type Endpoint struct {
	pair *endpointPair
	side int
	koid Koid

	// Guarded by pair.mu.
	owner      Owner
	refs       int
	closed     bool
	peerClosed bool
	signals    Signals
	queue      messageQueue
	waiters    map[Txid]*Waiter
	observers  []*observer
	maxDepth   int
	txid       uint32
}

// endpointPair holds both endpoints and their shared lock in a single
// allocation. Each endpoint reaches its peer by index, never by pointer
// reassignment.
type endpointPair struct {
	mu     sync.Mutex
	domain *Domain
	ends   [2]Endpoint
	live   int
}

// peer returns the sibling endpoint. Its state must be read under pair.mu.
func (ep *Endpoint) peer() *Endpoint {
	return &ep.pair.ends[1-ep.side]
}

// Koid returns the endpoint's kernel object id.
func (ep *Endpoint) Koid() Koid { return ep.koid }

// PeerKoid returns the koid of the other endpoint of the pair.
func (ep *Endpoint) PeerKoid() Koid { return ep.peer().koid }

// Domain returns the domain the endpoint was created in.
func (ep *Endpoint) Domain() *Domain { return ep.pair.domain }

// Owner returns the endpoint's current owner tag.
func (ep *Endpoint) Owner() Owner {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return ep.owner
}

// SetOwner moves the endpoint to a new owner. Operations still presenting
// the previous owner fail with ErrBadHandle. OwnerNone is ignored.
func (ep *Endpoint) SetOwner(owner Owner) {
	if owner == OwnerNone {
		return
	}
	ep.pair.mu.Lock()
	ep.owner = owner
	ep.pair.mu.Unlock()
}

// Retain adds a reference to the endpoint. Every Retain is balanced by a
// Close; the endpoint is destroyed when the last reference is closed.
func (ep *Endpoint) Retain() error {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	if ep.closed {
		return ErrBadHandle
	}
	ep.refs++
	return nil
}

// Write sends msg to the peer without blocking.
//
// A reply whose kernel-generated txid matches a call in flight on the peer
// completes that call directly. Any other message is appended to the
// peer's queue. Crossing the queue thresholds is reported to the domain's
// Policy, but the message is still queued.
func (ep *Endpoint) Write(owner Owner, msg Message) error {
	d := ep.pair.domain
	pkt, err := d.newPacket(msg)
	if err != nil {
		return err
	}
	d.traceMessage(ep, &pkt, OpWrite)

	p := ep.pair
	p.mu.Lock()
	// A mismatch here means another goroutine moved the handle while this
	// write was in flight.
	if ep.closed || owner != ep.owner {
		p.mu.Unlock()
		d.release(&pkt)
		return ErrBadHandle
	}
	if ep.peerClosed {
		p.mu.Unlock()
		d.release(&pkt)
		return ErrPeerClosed
	}
	peer := ep.peer()
	if peer.tryDeliverLocked(pkt) {
		p.mu.Unlock()
		return nil
	}
	eff := peer.enqueueLocked(pkt)
	p.mu.Unlock()

	eff.run(d)
	return nil
}

// Read dequeues the oldest message without blocking.
//
// An empty queue yields ErrShouldWait, or ErrPeerClosed once the peer is
// gone. If the front message exceeds maxBytes or maxRefs, Read returns a
// *BufferSizeError; the message stays queued unless mayDiscard is set,
// in which case it is dropped.
func (ep *Endpoint) Read(owner Owner, maxBytes, maxRefs int, mayDiscard bool) (Message, error) {
	d := ep.pair.domain
	p := ep.pair
	p.mu.Lock()
	if ep.closed || owner != ep.owner {
		p.mu.Unlock()
		return Message{}, ErrBadHandle
	}
	if ep.queue.len() == 0 {
		peerClosed := ep.peerClosed
		p.mu.Unlock()
		if peerClosed {
			return Message{}, ErrPeerClosed
		}
		return Message{}, ErrShouldWait
	}

	front := ep.queue.front()
	var err error
	if front.msg.Size() > maxBytes || front.msg.RefCount() > maxRefs {
		err = &BufferSizeError{Bytes: front.msg.Size(), Refs: front.msg.RefCount()}
		if !mayDiscard {
			p.mu.Unlock()
			return Message{}, err
		}
	}
	pkt := ep.queue.pop()
	if ep.queue.len() == 0 {
		ep.signals &^= SignalReadable
	}
	p.mu.Unlock()

	d.release(&pkt)
	if err != nil {
		return Message{}, err
	}
	d.traceMessage(ep, &pkt, OpRead)
	return pkt.msg, nil
}

// Close releases one reference. Releasing the last one destroys the
// endpoint: its queue is discarded, its own calls in flight end with
// ErrCanceled, and the peer observes SignalPeerClosed with every call it
// has in flight ending in ErrPeerClosed.
func (ep *Endpoint) Close() error {
	p := ep.pair
	d := p.domain
	p.mu.Lock()
	if ep.closed {
		p.mu.Unlock()
		return ErrBadHandle
	}
	ep.refs--
	if ep.refs > 0 {
		p.mu.Unlock()
		return nil
	}

	ep.closed = true
	ep.peerClosed = true
	ep.cancelWaitersLocked(ErrCanceled)
	drained := ep.queue.drain()
	ep.signals &^= SignalReadable
	own := notification{observers: ep.observers, signals: ep.signals, closing: true}
	ep.observers = nil

	var note notification
	peer := ep.peer()
	if !peer.closed {
		peer.peerClosed = true
		peer.signals = (peer.signals &^ SignalWritable) | SignalPeerClosed
		note = peer.snapshotLocked(peer.signals)
		peer.cancelWaitersLocked(ErrPeerClosed)
	}
	p.live--
	last := p.live == 0
	maxDepth := ep.maxDepth
	p.mu.Unlock()

	for i := range drained {
		d.release(&drained[i])
	}
	own.fire()
	note.fire()
	d.endpointDestroyed(ep, maxDepth, len(drained), last)
	return nil
}

// ClosePair closes both endpoints and combines their errors.
func ClosePair(a, b *Endpoint) error {
	return multierr.Append(a.Close(), b.Close())
}

// Pending returns the number of messages queued for reading.
func (ep *Endpoint) Pending() int {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return ep.queue.len()
}

// MaxDepth returns the deepest the endpoint's queue has been.
func (ep *Endpoint) MaxDepth() int {
	ep.pair.mu.Lock()
	defer ep.pair.mu.Unlock()
	return ep.maxDepth
}

// enqueueLocked appends pkt and computes the effects to publish once the
// pair lock is released.
func (ep *Endpoint) enqueueLocked(pkt packet) writeEffects {
	ep.queue.push(pkt)
	prev := ep.raiseLocked(SignalReadable)

	depth := ep.queue.len()
	if depth > ep.maxDepth {
		ep.maxDepth = depth
	}
	eff := writeEffects{
		koid:   ep.koid,
		writer: ep.peer().owner,
		depth:  depth,
	}
	// Observers waiting for readable are already satisfied if it was set.
	if prev&SignalReadable == 0 {
		eff.note = ep.snapshotLocked(ep.signals)
	}

	cfg := &ep.pair.domain.cfg
	switch {
	case depth == cfg.WarnPendingMessages:
		eff.warn = true
	case depth > cfg.MaxPendingMessages:
		eff.full = cfg.QuotaReportEvery || depth == cfg.MaxPendingMessages+1
	}
	return eff
}

// writeEffects carries everything Write must publish after unlocking.
type writeEffects struct {
	note   notification
	koid   Koid
	writer Owner
	depth  int
	warn   bool
	full   bool
}

func (e writeEffects) run(d *Domain) {
	e.note.fire()
	if e.warn {
		d.queueWarning(e.koid, e.writer, e.depth)
	}
	if e.full {
		d.quotaExceeded(e.koid, e.writer, e.depth)
	}
}
