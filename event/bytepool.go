// File: event/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BytePool backs Pool's payload buffers, separating the backing []byte
// from the *Event header so a buffer sized once survives many Get/Put
// cycles without being walked by Event.Reset.
package event

import (
	"sync"

	"github.com/momentics/dplane-sched/api"
)

// BytePool is a sync.Pool-backed allocator for reusable []byte buffers,
// the concrete realization of api.BytePool this package needs for event
// payloads.
type BytePool struct {
	sp sync.Pool
}

// NewBytePool creates a BytePool whose Acquire calls default to buffers
// of at least capHint bytes when the pool is empty.
func NewBytePool(capHint int) *BytePool {
	bp := &BytePool{}
	bp.sp.New = func() any {
		return make([]byte, 0, capHint)
	}
	return bp
}

// Acquire returns a zero-length slice with capacity at least n, reusing
// a pooled buffer when one is large enough.
func (bp *BytePool) Acquire(n int) []byte {
	buf := bp.sp.Get().([]byte)
	if cap(buf) < n {
		return make([]byte, 0, n)
	}
	return buf[:0]
}

// Release returns buf to the pool for reuse.
func (bp *BytePool) Release(buf []byte) {
	bp.sp.Put(buf[:0])
}

var _ api.BytePool = (*BytePool)(nil)
