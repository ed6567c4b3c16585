// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"code.hybscloud.com/kont"
)

// SendThen writes msg and then continues with next.
func SendThen[B any](msg Message, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Send{Msg: msg}), next)
}

// RecvBind reads the next message and passes it to f.
func RecvBind[B any](f func(Message) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Recv{}), f)
}

// CallBind sends msg as a call and passes the reply to f.
func CallBind[B any](msg Message, f func(Message) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Call{Msg: msg}), f)
}

// CloseDone closes the endpoint and returns a.
func CloseDone[A any](a A) kont.Eff[A] {
	return kont.Then(kont.Perform(Close{}), kont.Pure(a))
}
