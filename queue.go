// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

// compactAt is the consumed-prefix length after which the queue
// slides its live tail back to the front of the backing array.
const compactAt = 64

// messageQueue is an unbounded FIFO of packets.
// Guarded by the owning pair's lock; never used concurrently.
type messageQueue struct {
	buf  []packet
	head int
}

func (q *messageQueue) len() int { return len(q.buf) - q.head }

func (q *messageQueue) push(p packet) { q.buf = append(q.buf, p) }

// front returns the oldest packet. The queue must not be empty.
func (q *messageQueue) front() *packet { return &q.buf[q.head] }

// pop removes and returns the oldest packet. The queue must not be empty.
func (q *messageQueue) pop() packet {
	p := q.buf[q.head]
	q.buf[q.head] = packet{}
	q.head++
	switch {
	case q.head == len(q.buf):
		q.buf = q.buf[:0]
		q.head = 0
	case q.head >= compactAt && q.head*2 >= len(q.buf):
		n := copy(q.buf, q.buf[q.head:])
		clear(q.buf[n:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	return p
}

// drain empties the queue and returns what it held, oldest first.
func (q *messageQueue) drain() []packet {
	out := q.buf[q.head:]
	q.buf = nil
	q.head = 0
	return out
}
