// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"code.hybscloud.com/channel"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// echo answers one request on ep with payload.
func echo(ctx context.Context, ep *channel.Endpoint, payload string) error {
	req, err := ep.ReadWait(ctx, channel.OwnerNone)
	if err != nil {
		return err
	}
	return ep.Write(channel.OwnerNone, channel.Reply(req, []byte(payload)))
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCallRoundTrip(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	var g errgroup.Group
	g.Go(func() error {
		req, err := b.ReadWait(ctx, channel.OwnerNone)
		if err != nil {
			return err
		}
		if string(req.Payload) != "ping" || !channel.IsKernelTxid(req.Txid) {
			return fmt.Errorf("unexpected request %q txid %#x", req.Payload, req.Txid)
		}
		return b.Write(channel.OwnerNone, channel.Reply(req, []byte("pong")))
	})

	w := channel.NewWaiter()
	reply, err := a.Call(ctx, channel.OwnerNone, w, text("ping"), time.Time{})
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Equal(t, "pong", string(reply.Payload))
	assert.True(t, channel.IsKernelTxid(reply.Txid))
	assert.False(t, w.Busy())
	assert.Equal(t, 0, a.PendingCalls())
	assert.Equal(t, 0, a.Pending(), "reply must not be queued")
	assert.Zero(t, d.InflightBytes())
}

func TestCallWaiterReuse(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	w := channel.NewWaiter()
	var txids []channel.Txid
	for i := range 3 {
		var g errgroup.Group
		g.Go(func() error { return echo(ctx, b, fmt.Sprint(i)) })
		reply, err := a.Call(ctx, channel.OwnerNone, w, text("req"), time.Time{})
		require.NoError(t, err)
		require.NoError(t, g.Wait())
		assert.Equal(t, fmt.Sprint(i), string(reply.Payload))
		txids = append(txids, reply.Txid)
	}
	assert.Len(t, txids, 3)
	assert.NotEqual(t, txids[0], txids[1])
	assert.NotEqual(t, txids[1], txids[2])
}

func TestCallPeerClosesWhileWaiting(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b, err := d.CreatePair()
	require.NoError(t, err)
	defer a.Close()
	ctx := testContext(t)

	var g errgroup.Group
	g.Go(func() error {
		if _, err := b.ReadWait(ctx, channel.OwnerNone); err != nil {
			return err
		}
		return b.Close()
	})

	w := channel.NewWaiter()
	_, err = a.Call(ctx, channel.OwnerNone, w, text("ping"), time.Time{})
	assert.ErrorIs(t, err, channel.ErrPeerClosed)
	require.NoError(t, g.Wait())
	assert.False(t, w.Busy())
	assert.Equal(t, 0, a.PendingCalls())
}

func TestCallPeerAlreadyClosed(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b, err := d.CreatePair()
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, b.Close())

	w := channel.NewWaiter()
	_, err = a.Call(context.Background(), channel.OwnerNone, w, text("ping"), time.Time{})
	assert.ErrorIs(t, err, channel.ErrPeerClosed)
	assert.False(t, w.Busy())
}

func TestCallBadHandle(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	a.SetOwner(3)

	w := channel.NewWaiter()
	_, err := a.Call(context.Background(), 1, w, text("ping"), time.Time{})
	assert.ErrorIs(t, err, channel.ErrBadHandle)
	assert.False(t, w.Busy())
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 0, a.PendingCalls())
}

func TestCallTimeout(t *testing.T) {
	mock := clock.NewMock()
	d := newDomain(t, channel.DefaultConfig(), channel.WithClock(mock))
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	deadline := mock.Now().Add(time.Second)
	errc := make(chan error, 1)
	go func() {
		_, err := a.Call(context.Background(), channel.OwnerNone, w, text("ping"), deadline)
		errc <- err
	}()

	var err error
	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		select {
		case err = <-errc:
			return true
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, err, channel.ErrTimedOut)
	assert.Equal(t, 0, a.PendingCalls())

	// A reply arriving after the timeout is an ordinary message.
	req, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	require.NoError(t, b.Write(channel.OwnerNone, channel.Reply(req, []byte("late"))))
	assert.Equal(t, "late", readText(t, a))
}

func TestCallPastDeadline(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	_, err := a.Call(context.Background(), channel.OwnerNone, w, text("ping"), time.Now().Add(-time.Second))
	assert.ErrorIs(t, err, channel.ErrTimedOut)
	assert.False(t, w.Busy())
	assert.Equal(t, 1, b.Pending(), "request is still delivered")
}

func TestCallContextCanceled(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, _ := newPair(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Call(ctx, channel.OwnerNone, channel.NewWaiter(), text("ping"), time.Time{})
	assert.ErrorIs(t, err, channel.ErrCanceled)

	ctx, cancel = context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err = a.Call(ctx, channel.OwnerNone, channel.NewWaiter(), text("ping"), time.Time{})
	assert.ErrorIs(t, err, channel.ErrTimedOut)
	assert.Equal(t, 0, a.PendingCalls())
}

func TestCallOwnCloseCancels(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	errc := make(chan error, 1)
	go func() {
		_, err := a.Call(ctx, channel.OwnerNone, channel.NewWaiter(), text("ping"), time.Time{})
		errc <- err
	}()
	require.Eventually(t, func() bool { return a.PendingCalls() == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, <-errc, channel.ErrCanceled)
	assert.Equal(t, channel.SignalReadable|channel.SignalPeerClosed, b.Signals())
}

func TestCallInterruptResume(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	w := channel.NewWaiter()
	errc := make(chan error, 1)
	go func() {
		_, err := a.Call(ctx, channel.OwnerNone, w, text("ping"), time.Time{})
		errc <- err
	}()
	require.Eventually(t, func() bool { return a.PendingCalls() == 1 }, 5*time.Second, time.Millisecond)

	w.Interrupt()
	assert.ErrorIs(t, <-errc, channel.ErrInterrupted)
	assert.True(t, w.Busy())
	assert.Equal(t, 1, a.PendingCalls())

	require.NoError(t, echo(ctx, b, "pong"))
	reply, err := a.ResumeCall(ctx, w, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply.Payload))
	assert.False(t, w.Busy())
}

func TestResumeCallWrongEndpoint(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	_, err := a.ResumeCall(context.Background(), w, time.Time{})
	assert.ErrorIs(t, err, channel.ErrBadState)

	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("ping")))
	_, err = b.ResumeCall(context.Background(), w, time.Time{})
	assert.ErrorIs(t, err, channel.ErrBadState)
	_, err = b.PollCall(w)
	assert.ErrorIs(t, err, channel.ErrBadState)
	require.NoError(t, a.CancelCall(w))
}

func TestWaiterDoubleBeginPanics(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, _ := newPair(t, d)

	w := channel.NewWaiter()
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("one")))
	assert.PanicsWithValue(t, "channel: waiter begins a call while another is in flight", func() {
		_ = a.BeginCall(channel.OwnerNone, w, text("two"))
	})
	require.NoError(t, a.CancelCall(w))
	assert.False(t, w.Busy())
}

func TestPollCall(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("ping")))
	_, err := a.PollCall(w)
	assert.ErrorIs(t, err, channel.ErrShouldWait)

	req, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	require.NoError(t, b.Write(channel.OwnerNone, channel.Reply(req, []byte("pong"))))

	reply, err := a.PollCall(w)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply.Payload))
	assert.False(t, w.Busy())
}

func TestCancelCall(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("ping")))
	require.NoError(t, a.CancelCall(w))
	assert.Equal(t, 0, a.PendingCalls())
	assert.False(t, w.Busy())
	assert.ErrorIs(t, a.CancelCall(w), channel.ErrBadState)

	req, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	require.NoError(t, b.Write(channel.OwnerNone, channel.Reply(req, []byte("late"))))
	assert.Equal(t, 1, a.Pending())
}

func TestCallCancelDiscardsDeliveredReply(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("ping")))
	require.NoError(t, echo(context.Background(), b, "pong"))
	assert.Equal(t, int64(len("pong")), d.InflightBytes())

	require.NoError(t, a.CancelCall(w))
	assert.Zero(t, d.InflightBytes())
	assert.Equal(t, 0, a.Pending())
}

func TestTxidsDistinct(t *testing.T) {
	const calls = 100
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	waiters := make([]*channel.Waiter, calls)
	for i := range waiters {
		waiters[i] = channel.NewWaiter()
		require.NoError(t, a.BeginCall(channel.OwnerNone, waiters[i], text(fmt.Sprint(i))))
	}
	assert.Equal(t, calls, a.PendingCalls())

	seen := make(map[channel.Txid]bool)
	reqs := make([]channel.Message, calls)
	for i := range reqs {
		req, err := b.Read(channel.OwnerNone, 64, 0, false)
		require.NoError(t, err)
		require.True(t, channel.IsKernelTxid(req.Txid))
		require.False(t, seen[req.Txid], "duplicate txid %#x", req.Txid)
		seen[req.Txid] = true
		reqs[i] = req
	}

	// Replies in reverse order still reach their own callers.
	for i := calls - 1; i >= 0; i-- {
		require.NoError(t, b.Write(channel.OwnerNone, channel.Reply(reqs[i], append([]byte("re:"), reqs[i].Payload...))))
	}
	for i, w := range waiters {
		reply, err := a.PollCall(w)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("re:%d", i), string(reply.Payload))
	}
	assert.Equal(t, 0, a.Pending())
}

func TestTxidSkipsCallsInFlight(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w1, w2 := channel.NewWaiter(), channel.NewWaiter()
	channel.SetTxidCounter(a, 0)
	require.NoError(t, a.BeginCall(channel.OwnerNone, w1, text("one")))
	channel.SetTxidCounter(a, 0)
	require.NoError(t, a.BeginCall(channel.OwnerNone, w2, text("two")))

	r1, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	r2, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	assert.Equal(t, channel.MinKernelTxid|1, r1.Txid)
	assert.Equal(t, channel.MinKernelTxid|2, r2.Txid)

	require.NoError(t, a.CancelCall(w1))
	require.NoError(t, a.CancelCall(w2))
}

func TestTxidWrapsWithinKernelRange(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	channel.SetTxidCounter(a, 0xffffffff)
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("wrap")))
	req, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)
	assert.Equal(t, channel.MinKernelTxid, req.Txid)
	require.NoError(t, a.CancelCall(w))
}

func TestUserTxidIsQueued(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)

	w := channel.NewWaiter()
	require.NoError(t, a.BeginCall(channel.OwnerNone, w, text("ping")))
	req, err := b.Read(channel.OwnerNone, 64, 0, false)
	require.NoError(t, err)

	user := channel.Message{Txid: req.Txid &^ channel.MinKernelTxid, Payload: []byte("user")}
	require.NoError(t, b.Write(channel.OwnerNone, user))
	assert.Equal(t, 1, a.Pending())
	_, err = a.PollCall(w)
	assert.ErrorIs(t, err, channel.ErrShouldWait)

	require.NoError(t, a.CancelCall(w))
}

func TestConcurrentCalls(t *testing.T) {
	const callers, rounds = 8, 25
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	var server errgroup.Group
	server.Go(func() error {
		for range callers * rounds {
			req, err := b.ReadWait(ctx, channel.OwnerNone)
			if err != nil {
				return err
			}
			if err := b.Write(channel.OwnerNone, channel.Reply(req, req.Payload)); err != nil {
				return err
			}
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	for c := range callers {
		g.Go(func() error {
			w := channel.NewWaiter()
			for r := range rounds {
				want := fmt.Sprintf("%d/%d", c, r)
				reply, err := a.Call(gctx, channel.OwnerNone, w, text(want), time.Time{})
				if err != nil {
					return err
				}
				if string(reply.Payload) != want {
					return fmt.Errorf("caller %d got %q, want %q", c, reply.Payload, want)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, server.Wait())
	assert.Equal(t, 0, a.PendingCalls())
	assert.Equal(t, 0, a.Pending())
}

func TestInterruptWhileIdleDropped(t *testing.T) {
	d := newDomain(t, channel.DefaultConfig())
	a, b := newPair(t, d)
	ctx := testContext(t)

	w := channel.NewWaiter()
	w.Interrupt()

	errc := make(chan error, 1)
	go func() { errc <- echo(ctx, b, "pong") }()
	reply, err := a.Call(ctx, channel.OwnerNone, w, text("ping"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply.Payload))
	require.NoError(t, <-errc)
}
