// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

// SetTxidCounter rewinds the endpoint's txid generator so the next call
// is allocated v+1, or the next free txid after it.
func SetTxidCounter(ep *Endpoint, v uint32) {
	ep.pair.mu.Lock()
	ep.txid = v
	ep.pair.mu.Unlock()
}
