// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Step evaluates a protocol until its first effect.
// It returns (result, nil) when the protocol completes without effects,
// or (zero, suspension) otherwise.
func Step[R any](protocol kont.Expr[R]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]]) {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	return kont.StepExpr(wrapped)
}

// Advance dispatches the suspended operation on s without blocking.
//
// On ErrShouldWait the suspension is returned unconsumed and may be
// retried once the peer has made progress. A channel failure or a thrown
// error discards the suspension and completes the protocol with Left.
// Otherwise the protocol advances to its next effect or completes.
func Advance[R any](s *Session, susp *kont.Suspension[kont.Either[error, R]]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]], error) {
	if cop, ok := susp.Op().(channelDispatcher); ok {
		v, err := cop.DispatchChannel(s)
		if iox.IsWouldBlock(err) {
			var zero kont.Either[error, R]
			return zero, susp, err
		}
		if err != nil {
			susp.Discard()
			return kont.Left[error, R](err), nil, nil
		}
		result, next := susp.Resume(v)
		return result, next, nil
	}
	if eop, ok := susp.Op().(errorDispatcher); ok {
		var ctx kont.ErrorContext[error]
		v, _ := eop.DispatchError(&ctx)
		if ctx.HasErr {
			susp.Discard()
			return kont.Left[error, R](ctx.Err), nil, nil
		}
		result, next := susp.Resume(v)
		return result, next, nil
	}
	panic("channel: unhandled effect in Advance")
}
