// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"math"

	"code.hybscloud.com/kont"
)

// Send is the effect operation for writing a message to the peer.
type Send struct {
	kont.Phantom[struct{}]
	Msg Message
}

// DispatchChannel writes s.Msg. Write never waits.
func (op Send) DispatchChannel(s *Session) (kont.Resumed, error) {
	if err := s.ep.Write(s.owner, op.Msg); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// Recv is the effect operation for reading the next message.
type Recv struct {
	kont.Phantom[Message]
}

// DispatchChannel reads without size limits.
// It returns ErrShouldWait while the queue is empty.
func (Recv) DispatchChannel(s *Session) (kont.Resumed, error) {
	msg, err := s.ep.Read(s.owner, math.MaxInt, math.MaxInt, false)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Call is the effect operation for a request and its reply.
type Call struct {
	kont.Phantom[Message]
	Msg Message
}

// DispatchChannel sends the request on the first dispatch and polls for
// the reply on every later one, returning ErrShouldWait until it arrives.
func (op Call) DispatchChannel(s *Session) (kont.Resumed, error) {
	if !s.waiter.Busy() {
		if err := s.ep.BeginCall(s.owner, s.waiter, op.Msg); err != nil {
			return nil, err
		}
	}
	reply, err := s.ep.PollCall(s.waiter)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Close is the effect operation for releasing the session's endpoint.
type Close struct {
	kont.Phantom[struct{}]
}

// DispatchChannel closes the endpoint. It never waits.
func (Close) DispatchChannel(s *Session) (kont.Resumed, error) {
	if err := s.ep.Close(); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
