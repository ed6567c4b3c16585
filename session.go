// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Session is the context protocol operations are dispatched in: an
// endpoint, the owner tag presented with every operation, and the waiter
// used by Call. A Session belongs to one goroutine at a time.
type Session struct {
	ep     *Endpoint
	owner  Owner
	waiter *Waiter
}

// NewSession returns a session acting on ep as owner.
func NewSession(ep *Endpoint, owner Owner) *Session {
	return &Session{ep: ep, owner: owner, waiter: NewWaiter()}
}

// Endpoint returns the session's endpoint.
func (s *Session) Endpoint() *Endpoint { return s.ep }

// channelDispatcher is the structural interface for channel operations.
// DispatchChannel is non-blocking: it returns ErrShouldWait when the
// operation cannot complete yet, and is retried with the same session.
type channelDispatcher interface {
	DispatchChannel(s *Session) (kont.Resumed, error)
}

// dispatchWait retries op until it completes or fails, backing off with
// iox.Backoff while it would block. When ctx ends first, a call in flight
// is abandoned.
func dispatchWait(ctx context.Context, s *Session, op channelDispatcher) (kont.Resumed, error) {
	var bo iox.Backoff
	for {
		v, err := op.DispatchChannel(s)
		if !iox.IsWouldBlock(err) {
			return v, err
		}
		if ctx.Err() != nil {
			if s.waiter.Busy() {
				_ = s.ep.CancelCall(s.waiter)
			}
			return nil, contextError(ctx.Err())
		}
		bo.Wait()
	}
}
