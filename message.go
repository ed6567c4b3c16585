// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"bytes"
	"slices"
)

// Txid correlates a Call request with its reply. Zero means unsolicited.
type Txid = uint32

// MinKernelTxid is the first transaction id generated by Call.
// Values in 1..MinKernelTxid-1 belong to the caller's own protocols.
const MinKernelTxid Txid = 0x80000000

// IsKernelTxid reports whether txid was generated by Call.
// Only such txids are eligible for direct delivery to a waiting caller.
func IsKernelTxid(txid Txid) bool { return txid >= MinKernelTxid }

// Ref is an opaque transferable object reference carried by a message.
type Ref uint32

// refBytes is the accounting footprint of one Ref.
const refBytes = 4

// Message is the unit of transfer: a byte payload, attached references,
// and the transaction id used by the call protocol.
type Message struct {
	Txid    Txid
	Payload []byte
	Refs    []Ref
}

// NewMessage builds an unsolicited message.
func NewMessage(payload []byte, refs ...Ref) Message {
	return Message{Payload: payload, Refs: refs}
}

// Reply builds the response to req, echoing its transaction id.
func Reply(req Message, payload []byte, refs ...Ref) Message {
	return Message{Txid: req.Txid, Payload: payload, Refs: refs}
}

// Size returns the payload length in bytes.
func (m Message) Size() int { return len(m.Payload) }

// RefCount returns the number of attached references.
func (m Message) RefCount() int { return len(m.Refs) }

// packet is a Message owned by a queue or a waiter.
// seq identifies the packet for flow tracing when Txid is zero.
type packet struct {
	msg  Message
	seq  uint64
	size uint64
}

// footprint is the number of budget bytes charged for m.
func footprint(m Message) uint64 {
	return uint64(len(m.Payload) + refBytes*len(m.Refs))
}

// seal copies the caller's buffers so the queued message is immutable.
func seal(m Message) Message {
	return Message{
		Txid:    m.Txid,
		Payload: bytes.Clone(m.Payload),
		Refs:    slices.Clone(m.Refs),
	}
}
