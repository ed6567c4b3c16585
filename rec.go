// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"code.hybscloud.com/kont"
)

// Loop runs a recursive protocol (Cont-world).
// step returns Left(nextState) to continue or Right(result) to finish.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if next, ok := e.GetLeft(); ok {
			return Loop(next, step)
		}
		result, _ := e.GetRight()
		return kont.Pure(result)
	})
}

// ExprLoop runs a recursive protocol (Expr-world).
// step returns Left(nextState) to continue or Right(result) to finish.
// An iteration that performs no effect is unrolled without a frame.
func ExprLoop[S, A any](initial S, step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	m := step(initial)
	if _, ok := m.Frame.(kont.ReturnFrame); ok {
		if next, ok := m.Value.GetLeft(); ok {
			return ExprLoop(next, step)
		}
		result, _ := m.Value.GetRight()
		return kont.ExprReturn(result)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(v kont.Erased) kont.Expr[kont.Erased] {
		e := v.(kont.Either[S, A])
		if next, ok := e.GetLeft(); ok {
			rest := ExprLoop(next, step)
			return kont.Expr[kont.Erased]{Value: kont.Erased(rest.Value), Frame: rest.Frame}
		}
		result, _ := e.GetRight()
		return kont.Expr[kont.Erased]{Value: kont.Erased(result), Frame: exprReturnFrame}
	}
	bf.Next = exprReturnFrame
	var zero A
	return kont.Expr[A]{Value: zero, Frame: kont.ChainFrames(m.Frame, bf)}
}

// Serve answers n requests: each message read is replied to, under its
// txid, with the payload handle returns. It returns the number served.
func Serve(n int, handle func(req Message) []byte) kont.Eff[int] {
	return Loop(0, func(i int) kont.Eff[kont.Either[int, int]] {
		if i == n {
			return kont.Pure(kont.Right[int, int](i))
		}
		return RecvBind(func(req Message) kont.Eff[kont.Either[int, int]] {
			return SendThen(Reply(req, handle(req)), kont.Pure(kont.Left[int, int](i+1)))
		})
	})
}

// ExprServe is the Expr-world form of Serve.
func ExprServe(n int, handle func(req Message) []byte) kont.Expr[int] {
	return ExprLoop(0, func(i int) kont.Expr[kont.Either[int, int]] {
		if i == n {
			return kont.ExprReturn(kont.Right[int, int](i))
		}
		return ExprRecvBind(func(req Message) kont.Expr[kont.Either[int, int]] {
			return ExprSendThen(Reply(req, handle(req)), kont.ExprReturn(kont.Left[int, int](i+1)))
		})
	})
}
