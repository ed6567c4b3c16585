// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"

	"code.hybscloud.com/kont"
)

// errorDispatcher is the structural interface of kont error operations.
type errorDispatcher interface {
	DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
}

// channelHandler handles channel and error effects.
// Channel ops wait past ErrShouldWait; a channel failure or a thrown error
// short-circuits the protocol with Left.
type channelHandler[R any] struct {
	ctx    context.Context
	s      *Session
	errCtx *kont.ErrorContext[error]
}

// Dispatch implements kont.Handler. Dispatch order: Channel → Error.
func (h channelHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	if cop, ok := op.(channelDispatcher); ok {
		v, err := dispatchWait(h.ctx, h.s, cop)
		if err != nil {
			return kont.Left[error, R](err), false
		}
		return v, true
	}
	if eop, ok := op.(errorDispatcher); ok {
		v, _ := eop.DispatchError(h.errCtx)
		if h.errCtx.HasErr {
			return kont.Left[error, R](h.errCtx.Err), false
		}
		return v, true
	}
	panic("channel: unhandled effect in channelHandler")
}

// Exec runs a Cont-world protocol on s, blocking until it completes, a
// channel operation fails, or ctx ends. Failures are returned as Left.
func Exec[R any](ctx context.Context, s *Session, protocol kont.Eff[R]) kont.Either[error, R] {
	wrapped := kont.Map[kont.Resumed, R, kont.Either[error, R]](protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	var errCtx kont.ErrorContext[error]
	h := channelHandler[R]{ctx: ctx, s: s, errCtx: &errCtx}
	return kont.Handle(wrapped, h)
}

// ExecExpr runs an Expr-world protocol on s. See Exec.
func ExecExpr[R any](ctx context.Context, s *Session, protocol kont.Expr[R]) kont.Either[error, R] {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	var errCtx kont.ErrorContext[error]
	h := channelHandler[R]{ctx: ctx, s: s, errCtx: &errCtx}
	return kont.HandleExpr(wrapped, h)
}
