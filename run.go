// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Run creates a pair in the default domain and runs a on one endpoint and
// b on the other, interleaving both on the calling goroutine. See RunExpr.
func Run[A, B any](a kont.Eff[A], b kont.Eff[B]) (kont.Either[error, A], kont.Either[error, B]) {
	return RunExpr(Reify(a), Reify(b))
}

// RunExpr creates a pair in the default domain and runs a on one endpoint
// and b on the other. Both sides are advanced in turn on the calling
// goroutine, backing off with iox.Backoff while neither can make progress.
// A side's endpoint is closed as soon as its protocol finishes, so a peer
// still waiting on it ends with ErrPeerClosed instead of blocking.
func RunExpr[A, B any](a kont.Expr[A], b kont.Expr[B]) (kont.Either[error, A], kont.Either[error, B]) {
	epA, epB := New()
	defer func() {
		_ = epA.Close()
		_ = epB.Close()
	}()
	return runPair(NewSession(epA, OwnerNone), NewSession(epB, OwnerNone), a, b)
}

func runPair[A, B any](sa, sb *Session, a kont.Expr[A], b kont.Expr[B]) (kont.Either[error, A], kont.Either[error, B]) {
	resultA, suspA := Step(a)
	resultB, suspB := Step(b)
	doneA, doneB := false, false
	finish := func() {
		if suspA == nil && !doneA {
			doneA = true
			_ = sa.Endpoint().Close()
		}
		if suspB == nil && !doneB {
			doneB = true
			_ = sb.Endpoint().Close()
		}
	}
	finish()
	var bo iox.Backoff
	for suspA != nil || suspB != nil {
		progress := false
		if suspA != nil {
			var err error
			resultA, suspA, err = Advance(sa, suspA)
			if err == nil {
				progress = true
			}
		}
		if suspB != nil {
			var err error
			resultB, suspB, err = Advance(sb, suspB)
			if err == nil {
				progress = true
			}
		}
		finish()
		if !progress {
			bo.Wait()
		} else {
			bo.Reset()
		}
	}
	return resultA, resultB
}
