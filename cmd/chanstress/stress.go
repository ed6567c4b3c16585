// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/channel"
	"code.hybscloud.com/kont"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, opts options) (err error) {
	var (
		d   *channel.Domain
		rec *channel.FlowRecorder
		log *zap.Logger
	)
	app := fx.New(module(opts), fx.Populate(&d, &rec, &log))
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, app.Stop(stopCtx))
		_ = log.Sync()
	}()

	recCtx, stopRecorder := context.WithCancel(context.Background())
	var recorder errgroup.Group
	recorder.Go(func() error { return rec.Run(recCtx) })

	start := time.Now()
	completed, err := stress(ctx, d, opts)
	elapsed := time.Since(start)

	stopRecorder()
	err = multierr.Append(err, recorder.Wait())

	log.Info("stress finished",
		zap.Uint64("calls", completed),
		zap.Duration("elapsed", elapsed),
		zap.Float64("calls_per_sec", float64(completed)/elapsed.Seconds()),
		zap.Uint64("quota_reports", d.FullCount()),
		zap.Uint64("flow_events_dropped", rec.Dropped()),
		zap.Int64("inflight_bytes", d.InflightBytes()),
	)
	return err
}

// stress runs one echo server and one caller per pair and returns the
// number of calls answered.
func stress(ctx context.Context, d *channel.Domain, opts options) (uint64, error) {
	var completed atomix.Uint64
	g, ctx := errgroup.WithContext(ctx)
	payload := bytes.Repeat([]byte{'x'}, opts.payload)

	for i := range opts.pairs {
		client, server, err := d.CreatePair()
		if err != nil {
			return 0, fmt.Errorf("create pair %d: %w", i, err)
		}
		clientOwner, serverOwner := channel.Owner(2*i+1), channel.Owner(2*i+2)
		client.SetOwner(clientOwner)
		server.SetOwner(serverOwner)

		g.Go(func() error {
			defer server.Close()
			result := channel.Exec(ctx, channel.NewSession(server, serverOwner),
				channel.Serve(opts.calls, func(req channel.Message) []byte { return req.Payload }))
			if err, ok := result.GetLeft(); ok {
				return fmt.Errorf("server %d: %w", i, err)
			}
			return nil
		})
		g.Go(func() error {
			defer client.Close()
			var err error
			if opts.protocol {
				err = callProtocol(ctx, client, clientOwner, payload, opts.calls, &completed)
			} else {
				err = callDirect(ctx, client, clientOwner, payload, opts, &completed)
			}
			if err != nil {
				return fmt.Errorf("client %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return completed.Load(), err
}

func callDirect(ctx context.Context, ep *channel.Endpoint, owner channel.Owner, payload []byte, opts options, completed *atomix.Uint64) error {
	w := channel.NewWaiter()
	for range opts.calls {
		reply, err := ep.Call(ctx, owner, w, channel.NewMessage(payload), time.Now().Add(opts.callTimeout))
		if err != nil {
			return err
		}
		if !bytes.Equal(reply.Payload, payload) {
			return fmt.Errorf("reply of %d bytes does not echo the request", reply.Size())
		}
		completed.Add(1)
	}
	return nil
}

func callProtocol(ctx context.Context, ep *channel.Endpoint, owner channel.Owner, payload []byte, calls int, completed *atomix.Uint64) error {
	protocol := channel.Loop(0, func(i int) kont.Eff[kont.Either[int, int]] {
		if i == calls {
			return kont.Pure(kont.Right[int, int](i))
		}
		return channel.CallBind(channel.NewMessage(payload), func(channel.Message) kont.Eff[kont.Either[int, int]] {
			completed.Add(1)
			return kont.Pure(kont.Left[int, int](i + 1))
		})
	})
	if err, ok := channel.Exec(ctx, channel.NewSession(ep, owner), protocol).GetLeft(); ok {
		return err
	}
	return nil
}
