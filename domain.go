// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Domain is the environment channel pairs are created in. It carries the
// thresholds and budgets, and the sinks every endpoint of the domain
// reports to: logger, policy, flow tracing and metrics.
//
// A Domain is safe for concurrent use.
type Domain struct {
	cfg     Config
	log     *zap.Logger
	policy  Policy
	flows   FlowSink
	metrics *Metrics
	clock   clock.Clock

	pairs    atomix.Int64
	inflight atomix.Int64
	full     atomix.Uint64
}

// Option configures a Domain.
type Option func(*Domain)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(d *Domain) { d.log = log }
}

// WithPolicy sets the receiver of queue-depth reports.
func WithPolicy(p Policy) Option {
	return func(d *Domain) { d.policy = p }
}

// WithFlowSink sets the receiver of message flow events.
func WithFlowSink(s FlowSink) Option {
	return func(d *Domain) { d.flows = s }
}

// WithMetrics sets the collectors updated by the domain.
func WithMetrics(m *Metrics) Option {
	return func(d *Domain) { d.metrics = m }
}

// WithClock sets the clock Call deadlines are measured against.
func WithClock(c clock.Clock) Option {
	return func(d *Domain) { d.clock = c }
}

// NewDomain returns a Domain with cfg applied. Without options it logs
// nowhere, ignores policy reports, traces nothing and keeps unregistered
// metrics.
func NewDomain(cfg Config, opts ...Option) (*Domain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("channel: invalid config: %w", err)
	}
	d := &Domain{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.policy == nil {
		d.policy = nopPolicy{}
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	if d.clock == nil {
		d.clock = clock.New()
	}
	return d, nil
}

var defaultDomain = sync.OnceValue(func() *Domain {
	d, err := NewDomain(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return d
})

// Default returns the process-wide domain used by New.
func Default() *Domain {
	return defaultDomain()
}

// New creates a connected endpoint pair in the default domain.
// The default domain has no pair budget, so New does not fail.
func New() (*Endpoint, *Endpoint) {
	a, b, err := Default().CreatePair()
	if err != nil {
		panic(err)
	}
	return a, b
}

// Config returns the domain's configuration.
func (d *Domain) Config() Config { return d.cfg }

// CreatePair creates two connected endpoints. Both start writable, not
// readable and not peer-closed, with a reference count of one.
// It fails with ErrNoMemory when the pair budget is exhausted, in which
// case no endpoint exists.
func (d *Domain) CreatePair() (*Endpoint, *Endpoint, error) {
	n := d.pairs.Add(1)
	if d.cfg.MaxPairs > 0 && n > int64(d.cfg.MaxPairs) {
		d.pairs.Add(-1)
		return nil, nil, ErrNoMemory
	}

	p := &endpointPair{domain: d, live: 2}
	for side := range p.ends {
		p.ends[side] = Endpoint{
			pair:    p,
			side:    side,
			koid:    nextKoid(),
			refs:    1,
			signals: SignalWritable,
		}
	}
	a, b := &p.ends[0], &p.ends[1]

	d.metrics.created.Add(2)
	d.log.Debug("channel pair created",
		zap.Uint64("koid", uint64(a.koid)),
		zap.Uint64("peer_koid", uint64(b.koid)),
	)
	return a, b, nil
}

// Pairs returns the number of pairs with at least one live endpoint.
func (d *Domain) Pairs() int { return int(d.pairs.Load()) }

// InflightBytes returns the bytes held by queued messages and replies not
// yet collected by their callers.
func (d *Domain) InflightBytes() int64 { return d.inflight.Load() }

// FullCount returns how many times a queue was reported over quota.
func (d *Domain) FullCount() uint64 { return d.full.Load() }

// newPacket checks msg against the message limits and the in-flight budget
// and takes a private copy of it.
func (d *Domain) newPacket(msg Message) (packet, error) {
	if d.cfg.MaxMessageBytes > 0 && msg.Size() > d.cfg.MaxMessageBytes {
		return packet{}, ErrOutOfRange
	}
	if d.cfg.MaxMessageRefs > 0 && msg.RefCount() > d.cfg.MaxMessageRefs {
		return packet{}, ErrOutOfRange
	}
	size := footprint(msg)
	n := d.inflight.Add(int64(size))
	if d.cfg.MaxInflightBytes > 0 && n > d.cfg.MaxInflightBytes {
		d.inflight.Add(-int64(size))
		return packet{}, ErrNoMemory
	}
	return packet{msg: seal(msg), seq: nextSeq(), size: size}, nil
}

// release returns pkt's bytes to the in-flight budget. It is idempotent.
func (d *Domain) release(pkt *packet) {
	if pkt.size == 0 {
		return
	}
	d.inflight.Add(-int64(pkt.size))
	pkt.size = 0
}

func (d *Domain) endpointDestroyed(ep *Endpoint, maxDepth, discarded int, last bool) {
	d.metrics.maxDepth.Observe(float64(maxDepth))
	d.metrics.destroyed.Inc()
	if last {
		d.pairs.Add(-1)
	}
	d.log.Debug("channel endpoint destroyed",
		zap.Uint64("koid", uint64(ep.koid)),
		zap.Uint64("peer_koid", uint64(ep.PeerKoid())),
		zap.Int("max_depth", maxDepth),
		zap.Int("discarded", discarded),
	)
}
