// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import "code.hybscloud.com/atomix"

// Koid is a kernel object id. Each endpoint gets a distinct koid that is
// never reused within the process.
type Koid uint64

// KoidInvalid is never assigned to an endpoint.
const KoidInvalid Koid = 0

// Owner tags the handle-table entry currently allowed to operate on an
// endpoint. Operations presenting a stale owner fail with ErrBadHandle.
type Owner uint64

// OwnerNone is the owner of a freshly created endpoint.
// SetOwner ignores it.
const OwnerNone Owner = 0

var (
	// koidCounter is the global monotonic source of endpoint koids.
	koidCounter atomix.Uint64
	// seqCounter numbers packets for flow correlation of unsolicited messages.
	seqCounter atomix.Uint64
)

// nextKoid returns the next monotonically increasing koid.
func nextKoid() Koid {
	return Koid(koidCounter.Add(1))
}

// nextSeq returns the next packet sequence number.
func nextSeq() uint64 {
	return seqCounter.Add(1)
}
