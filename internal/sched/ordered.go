// File: internal/sched/ordered.go
// Implements the atomic/ordered release protocol and the per-lock
// ordered-lock primitives (spec §4.4, component 7 "Ordered Context
// Protocol").
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import "github.com/momentics/dplane-sched/rt"

// ReleaseAtomic re-enqueues a held atomic queue's command once the local
// cache has drained (spec §4.4 release_atomic). A non-empty cache defers
// the release: the thread is still processing events from that queue.
//
// A destroy can land while the command is held here — neither in a
// fan-out FIFO nor visible via the queue's own Len(), so the dispatch
// walk's destroyed check never sees it. Finalize directly instead of
// re-arming in that case (spec §8 command conservation): re-enqueuing a
// destroyed queue's command would hand it back to the walk only for the
// walk's own destroyed check to finalize it one extra round-trip later,
// or — if the bucket's registration already dropped in the meantime —
// leave it unreachable.
func (e *Engine) ReleaseAtomic() {
	ctx := &e.ctx
	if !ctx.holding || ctx.num != 0 {
		return
	}
	if qe, ok := ctx.heldCmd.Payload.(*queueEntry); ok && qe.destroyed.Load() {
		e.reg.finalizeQueue(qe)
		ctx.holding = false
		return
	}
	if !e.reg.table.Enqueue(ctx.heldPrio, ctx.heldBucket, ctx.heldCmd) {
		panic("dplane-sched: fan-out FIFO full releasing an atomic queue, command pool invariant violated")
	}
	ctx.holding = false
}

// ReleaseOrdered advances the origin queue's ordered context (spec §4.4
// release_ordered, release_order(origin, order, pool, enq_called)).
// release_order may report "not yet" (an earlier event's lock is still
// outstanding, or this batch forwarded an event under enq_called and an
// unlocked index is now that forward's responsibility); per spec §9 Open
// Question (b) this is a retry hint, not looped here — the next
// ReleaseContext call (at the top of every scheduleOnce) retries it.
func (e *Engine) ReleaseOrdered() {
	ctx := &e.ctx
	if ctx.origin == nil {
		return
	}
	if ctx.origin.releaseOrder(ctx.order, ctx.numLocks, ctx.enqCalled) {
		ctx.origin = nil
	}
}

// ReleaseContext resolves whichever context — ordered or atomic — the
// previous batch left behind (spec §4.4 release_context). If an ordered
// origin is set, ReleaseAtomic is not consulted at all: a thread holds
// at most one kind of context at a time.
func (e *Engine) ReleaseContext() {
	if e.ctx.origin != nil {
		e.ReleaseOrdered()
		return
	}
	e.ReleaseAtomic()
}

// OrderLock blocks until lock index i has reached this context's stamped
// sequence number (spec §4.4 order_lock). A no-op outside an ordered
// context or for an index beyond the queue's declared lock count.
func (e *Engine) OrderLock(i int) {
	ctx := &e.ctx
	if ctx.origin == nil || i < 0 || i >= ctx.numLocks {
		return
	}
	want := ctx.sync[i]
	origin := ctx.origin
	rt.SpinWait(e.reg.cfg.SpinPauseEvery, func() bool {
		return origin.syncOut[i].Load() == want
	})
}

// OrderUnlock releases lock index i, letting the next waiter (or
// release_order) proceed (spec §4.4 order_unlock).
func (e *Engine) OrderUnlock(i int) {
	ctx := &e.ctx
	if ctx.origin == nil || i < 0 || i >= ctx.numLocks {
		return
	}
	ctx.origin.syncOut[i].Add(1)
}
