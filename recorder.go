// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"strconv"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName names the tracer flow spans are recorded with.
const instrumentationName = "code.hybscloud.com/channel"

// FlowRecorder is a FlowSink that exports flow events as OpenTelemetry
// spans. Producers enqueue into a bounded lock-free MPSC queue and never
// block; an event that does not fit is counted as dropped. A single
// consumer exports them with Run or Flush.
type FlowRecorder struct {
	q       lfq.Queue[FlowEvent]
	tracer  trace.Tracer
	dropped atomix.Uint64
	closed  atomix.Uint32
}

// NewFlowRecorder returns a recorder buffering up to size events, rounded
// up to a power of two, and exporting to tp.
func NewFlowRecorder(tp trace.TracerProvider, size int) *FlowRecorder {
	return &FlowRecorder{
		q:      lfq.BuildMPSC[FlowEvent](lfq.New(size).SingleConsumer()),
		tracer: tp.Tracer(instrumentationName),
	}
}

// Flow implements FlowSink.
func (r *FlowRecorder) Flow(ev FlowEvent) {
	if r.closed.Load() != 0 {
		r.dropped.Add(1)
		return
	}
	if err := r.q.Enqueue(&ev); err != nil {
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue or a closed
// recorder.
func (r *FlowRecorder) Dropped() uint64 { return r.dropped.Load() }

// Flush exports the events that can be dequeued now and returns how many
// it exported.
func (r *FlowRecorder) Flush() int {
	n := 0
	for {
		ev, err := r.q.Dequeue()
		if err != nil {
			return n
		}
		r.export(ev)
		n++
	}
}

// Run exports events until ctx is done, then closes the recorder.
// It is the recorder's only consumer while it runs.
func (r *FlowRecorder) Run(ctx context.Context) error {
	var bo iox.Backoff
	for ctx.Err() == nil {
		if r.Flush() == 0 {
			bo.Wait()
			continue
		}
		bo.Reset()
	}
	r.Close()
	return nil
}

// Close stops accepting events and exports everything still queued.
// It must not run concurrently with Run or Flush.
func (r *FlowRecorder) Close() int {
	r.closed.Add(1)
	if d, ok := r.q.(lfq.Drainer); ok {
		d.Drain()
	}
	return r.Flush()
}

func (r *FlowRecorder) export(ev FlowEvent) {
	_, span := r.tracer.Start(context.Background(), "channel."+ev.Op.String(),
		trace.WithTimestamp(ev.At),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("channel.flow_id", strconv.FormatUint(ev.ID, 16)),
			attribute.String("channel.flow_phase", ev.Phase.String()),
			attribute.Int64("channel.koid", int64(ev.Koid)),
			attribute.Int64("channel.txid", int64(ev.Txid)),
			attribute.Int("channel.size", ev.Size),
		),
	)
	span.End(trace.WithTimestamp(ev.At))
}
