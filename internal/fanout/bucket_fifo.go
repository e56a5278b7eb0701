// File: internal/fanout/bucket_fifo.go
// Package fanout implements the priority/bucket fan-out table.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// bucketFIFO is a lock-free MPMC ring buffer, adapted from the teacher's
// core/concurrency.RingBuffer[T]. Spec §9 explicitly sanctions this
// redesign: "a rewrite may replace the fan-out FIFOs with a purpose-built
// MPMC ring... provided enqueue/dequeue retain FIFO and linearizability."
// Sized generously per (priority, bucket) so that command-record
// re-enqueue (which the spec treats as infallible, aborting the process
// otherwise) never races the pool's fixed capacity.
package fanout

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/dplane-sched/api"
)

var _ api.Ring[int] = (*bucketFIFO[int])(nil)

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// bucketFIFO is a bounded MPMC ring sized to a power of two.
type bucketFIFO[T any] struct {
	head uint64
	_    cpu.CacheLinePad
	tail uint64
	_    cpu.CacheLinePad
	mask  uint64
	cells []cell[T]
}

func newBucketFIFO[T any](capacity int) *bucketFIFO[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	r := &bucketFIFO[T]{
		mask:  uint64(size - 1),
		cells: make([]cell[T], size),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// Enqueue adds item; returns false if full.
func (r *bucketFIFO[T]) Enqueue(item T) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		idx := tail & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				c.data = item
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false
		default:
			// tail moved under us, retry
		}
	}
}

// Dequeue removes and returns the oldest item; ok is false if empty.
func (r *bucketFIFO[T]) Dequeue() (T, bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		idx := head & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				item := c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + r.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false
		default:
			// head moved under us, retry
		}
	}
}

// Len returns an approximate number of items currently queued.
func (r *bucketFIFO[T]) Len() int {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	return int(tail - head)
}

// Cap returns the fixed ring capacity.
func (r *bucketFIFO[T]) Cap() int {
	return len(r.cells)
}
