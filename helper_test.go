// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel_test

import (
	"slices"
	"sync"
	"testing"

	"code.hybscloud.com/channel"
	"code.hybscloud.com/kont"
	"github.com/stretchr/testify/require"
)

type policyReport struct {
	Kind   string
	Koid   channel.Koid
	Writer channel.Owner
	Depth  int
}

// recordingPolicy keeps every report it receives.
type recordingPolicy struct {
	mu      sync.Mutex
	reports []policyReport
}

func (p *recordingPolicy) QueueWarning(koid channel.Koid, writer channel.Owner, depth int) {
	p.add(policyReport{Kind: "warning", Koid: koid, Writer: writer, Depth: depth})
}

func (p *recordingPolicy) QuotaExceeded(koid channel.Koid, writer channel.Owner, depth int) {
	p.add(policyReport{Kind: "quota", Koid: koid, Writer: writer, Depth: depth})
}

func (p *recordingPolicy) add(r policyReport) {
	p.mu.Lock()
	p.reports = append(p.reports, r)
	p.mu.Unlock()
}

func (p *recordingPolicy) Reports() []policyReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.reports)
}

func newDomain(tb testing.TB, cfg channel.Config, opts ...channel.Option) *channel.Domain {
	tb.Helper()
	d, err := channel.NewDomain(cfg, opts...)
	require.NoError(tb, err)
	return d
}

// newPair creates a pair in d that is closed when the test ends.
func newPair(tb testing.TB, d *channel.Domain) (*channel.Endpoint, *channel.Endpoint) {
	tb.Helper()
	a, b, err := d.CreatePair()
	require.NoError(tb, err)
	tb.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func text(s string) channel.Message {
	return channel.NewMessage([]byte(s))
}

func readText(tb testing.TB, ep *channel.Endpoint) string {
	tb.Helper()
	msg, err := ep.Read(channel.OwnerNone, 1<<20, 64, false)
	require.NoError(tb, err)
	return string(msg.Payload)
}

// drive runs a protocol to completion on s via Step and Advance, retrying
// on ErrShouldWait. The peer must be able to make progress on its own.
func drive[R any](s *channel.Session, protocol kont.Expr[R]) kont.Either[error, R] {
	result, susp := channel.Step(protocol)
	for susp != nil {
		var err error
		result, susp, err = channel.Advance(s, susp)
		if err != nil {
			continue
		}
	}
	return result
}
