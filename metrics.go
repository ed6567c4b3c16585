// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// depthBuckets mirror the kernel's channel depth counters:
// 1, 2-4, 5-16, 17-64, 65-256 and unbounded.
var depthBuckets = []float64{1, 4, 16, 64, 256}

// Metrics holds the channel collectors of a Domain.
type Metrics struct {
	maxDepth  prometheus.Histogram
	full      prometheus.Counter
	created   prometheus.Counter
	destroyed prometheus.Counter
	calls     *prometheus.CounterVec
}

// NewMetrics builds the channel collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		maxDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "channel",
			Name:      "max_depth",
			Help:      "Deepest queue reached by each destroyed endpoint.",
			Buckets:   depthBuckets,
		}),
		full: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Name:      "full_total",
			Help:      "Writes reported over the pending message quota.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Name:      "endpoints_created_total",
			Help:      "Endpoints created.",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Name:      "endpoints_destroyed_total",
			Help:      "Endpoints destroyed.",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "channel",
			Name:      "calls_total",
			Help:      "Completed calls by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.maxDepth, m.full, m.created, m.destroyed, m.calls)
	}
	return m
}

// callResult is the calls_total label for err.
func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPeerClosed):
		return "peer_closed"
	case errors.Is(err, ErrTimedOut):
		return "timed_out"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrBadHandle):
		return "bad_handle"
	case errors.Is(err, ErrNoMemory):
		return "no_memory"
	default:
		return "error"
	}
}

func (d *Domain) observeCall(err error) {
	d.metrics.calls.WithLabelValues(callResult(err)).Inc()
}
