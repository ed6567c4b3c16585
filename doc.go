// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package channel provides bidirectional message channels modeled on
// kernel channel objects: a pair of endpoints, each delivering messages
// written on the other in FIFO order, with a synchronous request/reply
// Call correlated by transaction id.
//
// # Architecture
//
//   - Pair: [Domain.CreatePair] (or [New] on the default domain) returns two
//     [Endpoint] values sharing a single lock. Each endpoint owns the queue
//     of messages its peer writes.
//   - Non-blocking: [Endpoint.Write] never waits; [Endpoint.Read] returns
//     [ErrShouldWait] on an empty queue. [Endpoint.Call] is the only
//     blocking operation and takes a context and an absolute deadline.
//   - Ownership: every operation presents an [Owner] tag. A tag that no
//     longer matches, because the handle moved, fails with [ErrBadHandle].
//   - Lifecycle: closing the last reference discards the queue, ends the
//     endpoint's own calls with [ErrCanceled], and marks the peer
//     [SignalPeerClosed], ending the peer's calls with [ErrPeerClosed].
//   - Diagnostics: queue depth crossings go to the domain's [Policy] and
//     zap logger, counters to prometheus via [Metrics], and message flows
//     to a [FlowSink] such as [FlowRecorder].
//
// # Calls
//
// A [Waiter] carries one call at a time. Reply to a request with [Reply],
// which keeps the request's txid; a reply whose txid matches a call in
// flight completes it directly without being queued.
//
//	a, b := channel.New()
//	go func() {
//		req, _ := b.ReadWait(ctx, channel.OwnerNone)
//		_ = b.Write(channel.OwnerNone, channel.Reply(req, []byte("pong")))
//	}()
//	reply, err := a.Call(ctx, channel.OwnerNone, channel.NewWaiter(),
//		channel.NewMessage([]byte("ping")), time.Time{})
//
// A wait interrupted with [Waiter.Interrupt] returns [ErrInterrupted] and
// is continued with [Endpoint.ResumeCall].
//
// # Protocols
//
// Channel operations are also effects on [code.hybscloud.com/kont]:
// [Send], [Recv], [Call] and [Close], dispatched on a [Session].
//
//   - Cont-world: [SendThen], [RecvBind], [CallBind], [CloseDone].
//   - Expr-world: [ExprSendThen], [ExprRecvBind], [ExprCallBind],
//     [ExprCloseDone]. Bridge via [Reify] and [Reflect].
//   - Recursive: [Loop], [ExprLoop], and the request loops [Serve] and
//     [ExprServe].
//   - Stepping: [Step] and [Advance] evaluate one effect at a time.
//   - Blocking: [Exec] and [ExecExpr] wait past [ErrShouldWait] with
//     adaptive backoff; [Run] and [RunExpr] drive both ends of a new pair on
//     one goroutine.
//
// Channel failures complete a protocol with a Left value of
// [code.hybscloud.com/kont.Either], as does kont.ThrowError.
package channel
