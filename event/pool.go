// File: event/pool.go
// Package event — reference zero-alloc event pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapted from pool.SyncPool[T] (pool/objpool.go): a thin generic wrapper
// over sync.Pool, specialized here to stamp the owning pool back onto
// each Event so Event.Release needs no caller-side bookkeeping.
package event

import (
	"sync"

	"github.com/momentics/dplane-sched/api"
)

// Pool is a reusable source of *Event values sized for a fixed payload
// capacity. The *Event headers and their backing []byte payloads are
// pooled separately, via an internal BytePool, so a payload buffer
// survives independently of the header it happens to be attached to.
type Pool struct {
	sp      sync.Pool
	bytes   *BytePool
	payload int
}

// NewPool creates a pool whose events carry a payload buffer of at least
// payloadCap bytes.
func NewPool(payloadCap int) *Pool {
	p := &Pool{payload: payloadCap, bytes: NewBytePool(payloadCap)}
	p.sp.New = func() any {
		return &Event{}
	}
	return p
}

// Get returns an Event ready for reuse, with Reset already applied and a
// payload buffer acquired from the byte pool.
func (p *Pool) Get() *Event {
	ev := p.sp.Get().(*Event)
	ev.Reset()
	ev.Payload = p.bytes.Acquire(p.payload)
	ev.pool = p
	return ev
}

// Put returns ev to the pool. Safe to call directly; Event.Release is the
// usual call site.
func (p *Pool) Put(ev *Event) {
	p.bytes.Release(ev.Payload)
	ev.Payload = nil
	ev.pool = nil
	p.sp.Put(ev)
}

var _ api.ObjectPool[*Event] = (*Pool)(nil)
