package pxi

import "sync/atomic"

type packet struct {
	word Word
	sum  uint8
}

// queue passes words from any number of sending goroutines to the single
// dispatcher of one link direction. One slot is always kept empty to tell a
// full ring from an empty one.
type queue struct {
	ring              []packet
	start, end, write atomic.Int32
}

func newQueue(depth int) *queue {
	return &queue{ring: make([]packet, depth+1)}
}

// push returns false if the ring is full.
func (q *queue) push(p packet) bool {
retry:
	start := q.start.Load()
	end := q.end.Load()
	next := (end + 1) % int32(len(q.ring))
	if next == start {
		return false
	}

	if !q.write.CompareAndSwap(end, next) {
		goto retry
	}

	q.ring[end] = p

	if !q.end.CompareAndSwap(end, next) {
		panic("pxi: queue corrupted")
	}
	return true
}

func (q *queue) pop() (p packet, ok bool) {
	start := q.start.Load()
	end := q.end.Load()
	if end == start {
		return p, false
	}

	p = q.ring[start]
	q.ring[start] = packet{}

	if !q.start.CompareAndSwap(start, (start+1)%int32(len(q.ring))) {
		panic("pxi: multiple readers")
	}
	return p, true
}

func (q *queue) len() int {
	n := int32(len(q.ring))
	return int((q.end.Load() - q.start.Load() + n) % n)
}
