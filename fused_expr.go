// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"code.hybscloud.com/kont"
)

// Operations without fields are boxed once.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprRecv        kont.Erased = Recv{}
	exprClose       kont.Erased = Close{}
)

func identityResume(v kont.Erased) kont.Erased { return v }

// thenEffect performs op and then continues with next.
func thenEffect[B any](op kont.Erased, next kont.Expr[B]) kont.Expr[B] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = op
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[B](ef)
}

func messageBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func(Message) kont.Expr[B])
	result := f(current.(Message))
	return kont.Erased(result.Value), result.Frame
}

// bindMessage performs op, which resumes with a Message, and passes it to f.
func bindMessage[B any](op kont.Erased, f func(Message) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = messageBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = op
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

// ExprSendThen writes msg and then continues with next.
func ExprSendThen[B any](msg Message, next kont.Expr[B]) kont.Expr[B] {
	return thenEffect(Send{Msg: msg}, next)
}

// ExprRecvBind reads the next message and passes it to f.
func ExprRecvBind[B any](f func(Message) kont.Expr[B]) kont.Expr[B] {
	return bindMessage(exprRecv, f)
}

// ExprCallBind sends msg as a call and passes the reply to f.
func ExprCallBind[B any](msg Message, f func(Message) kont.Expr[B]) kont.Expr[B] {
	return bindMessage(Call{Msg: msg}, f)
}

// ExprCloseDone closes the endpoint and returns a.
func ExprCloseDone[A any](a A) kont.Expr[A] {
	return thenEffect(exprClose, kont.Expr[A]{Value: a, Frame: exprReturnFrame})
}
