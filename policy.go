// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import "go.uber.org/zap"

// Policy receives queue-depth reports. QuotaExceeded is where an embedding
// runtime raises its policy exception against the writer; the channel
// itself never drops the message or stops the writer.
//
// Both methods run after the pair lock is released.
type Policy interface {
	QueueWarning(koid Koid, writer Owner, depth int)
	QuotaExceeded(koid Koid, writer Owner, depth int)
}

type nopPolicy struct{}

func (nopPolicy) QueueWarning(Koid, Owner, int)  {}
func (nopPolicy) QuotaExceeded(Koid, Owner, int) {}

func (d *Domain) queueWarning(koid Koid, writer Owner, depth int) {
	d.log.Warn("channel has many pending messages",
		zap.Uint64("koid", uint64(koid)),
		zap.Uint64("writer", uint64(writer)),
		zap.Int("depth", depth),
	)
	d.policy.QueueWarning(koid, writer, depth)
}

func (d *Domain) quotaExceeded(koid Koid, writer Owner, depth int) {
	d.log.Error("channel is over its pending message quota",
		zap.Uint64("koid", uint64(koid)),
		zap.Uint64("writer", uint64(writer)),
		zap.Int("depth", depth),
		zap.Int("quota", d.cfg.MaxPendingMessages),
	)
	d.full.Add(1)
	d.metrics.full.Inc()
	d.policy.QuotaExceeded(koid, writer, depth)
}
