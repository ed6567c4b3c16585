// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"encoding/binary"
	"time"

	"github.com/spaolacci/murmur3"
)

// MessageOp names the point in a message's life a flow event marks.
type MessageOp uint8

const (
	OpWrite MessageOp = iota
	OpRead
	OpCallWriteRequest
	OpCallReadResponse
)

func (op MessageOp) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpCallWriteRequest:
		return "call_write_request"
	case OpCallReadResponse:
		return "call_read_response"
	}
	return "unknown"
}

// FlowPhase places an event within its flow.
type FlowPhase uint8

const (
	FlowBegin FlowPhase = iota
	FlowStep
	FlowEnd
)

func (p FlowPhase) String() string {
	switch p {
	case FlowBegin:
		return "begin"
	case FlowStep:
		return "step"
	case FlowEnd:
		return "end"
	}
	return "unknown"
}

// phaseOf maps an operation to its flow phase. A call is bounded by its
// request write and response read; the peer's read of the request and
// write of the reply are steps in between.
func phaseOf(op MessageOp, txid Txid) FlowPhase {
	switch op {
	case OpWrite:
		if IsKernelTxid(txid) {
			return FlowStep
		}
		return FlowBegin
	case OpRead:
		if IsKernelTxid(txid) {
			return FlowStep
		}
		return FlowEnd
	case OpCallWriteRequest:
		return FlowBegin
	default:
		return FlowEnd
	}
}

// FlowEvent is one traced message operation.
type FlowEvent struct {
	ID    uint64
	Phase FlowPhase
	Op    MessageOp
	Koid  Koid
	Txid  Txid
	Size  int
	At    time.Time
}

// FlowSink receives flow events. Flow is called on the message path of
// arbitrary goroutines and must not block.
type FlowSink interface {
	Flow(FlowEvent)
}

// flowSeed separates the message-id hash from the pair hash.
const flowSeed = 0x9e3779b9

// isTxidFlow marks flow ids derived from a txid rather than a packet.
const isTxidFlow = 1 << 31

// FlowID derives the flow id of a message on the pair whose smaller koid
// is minKoid. Messages carrying a txid hash (txid, koid) so the request
// and its reply share a flow; unsolicited messages hash their packet
// sequence number. Both endpoints of a pair compute the same id.
func FlowID(minKoid Koid, txid Txid, seq uint64) uint64 {
	var kb [8]byte
	binary.LittleEndian.PutUint64(kb[:], uint64(minKoid))
	high := murmur3.Sum32(kb[:])

	var low uint32
	if txid == 0 {
		var sb [8]byte
		binary.LittleEndian.PutUint64(sb[:], seq)
		low = murmur3.Sum32WithSeed(sb[:], flowSeed) &^ isTxidFlow
	} else {
		var tb [8]byte
		binary.LittleEndian.PutUint32(tb[:4], txid)
		binary.LittleEndian.PutUint32(tb[4:], uint32(minKoid))
		low = murmur3.Sum32WithSeed(tb[:], flowSeed) | isTxidFlow
	}
	return uint64(high)<<32 | uint64(low)
}

// traceMessage reports op on pkt to the domain's flow sink.
func (d *Domain) traceMessage(ep *Endpoint, pkt *packet, op MessageOp) {
	if d.flows == nil {
		return
	}
	minKoid := min(ep.koid, ep.PeerKoid())
	txid := pkt.msg.Txid
	d.flows.Flow(FlowEvent{
		ID:    FlowID(minKoid, txid, pkt.seq),
		Phase: phaseOf(op, txid),
		Op:    op,
		Koid:  ep.koid,
		Txid:  txid,
		Size:  pkt.msg.Size(),
		At:    d.clock.Now(),
	})
}
