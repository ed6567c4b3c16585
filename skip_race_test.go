// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package channel_test

import "testing"

// skipRace skips tests that drain a FlowRecorder's lfq MPSC queue.
// The race detector cannot see the queue's cross-variable memory
// ordering (store-release on the slot, load-acquire on the index) and
// reports false positives.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: MPSC uses cross-variable memory ordering")
}
