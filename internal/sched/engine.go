// File: internal/sched/engine.go
// Package sched implements the scheduling engine: the priority walk,
// bucket rotation, command dispatch, and per-discipline post-processing
// (spec §4.3, component 6 "Scheduling Engine").
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/internal/fanout"
	"github.com/momentics/dplane-sched/rt"
)

// Engine is a worker thread's scheduling handle, returned by
// Registry.InitLocal. It owns a threadContext and is never shared across
// goroutines (spec §3 "Per-thread context is single-writer").
type Engine struct {
	reg      *Registry
	ctx      threadContext
	threadID int
	role     api.GroupID
}

// InitLocal sets up per-worker state (spec §6 init_local). role must be
// one of GroupAll (no built-in membership), GroupWorker, or
// GroupControl; InitLocal populates the corresponding built-in mask so
// the engine's thread-group gating check (step 6) can later evaluate
// group-bound queues.
func (r *Registry) InitLocal(role api.GroupID) (*Engine, error) {
	if role != api.GroupAll && role != api.GroupWorker && role != api.GroupControl {
		return nil, api.ErrInvalidArgument
	}
	e := &Engine{
		reg:      r,
		threadID: rt.RegisterThread(),
		role:     role,
	}
	e.ctx.cache = make([]*event.Event, r.cfg.MaxDeq)
	if role != api.GroupAll {
		r.groups.JoinBuiltin(role, e.threadID)
	}
	return e, nil
}

// TermLocal tears down a worker's context (spec §6 term_local). It fails
// if the local cache is non-empty or an atomic/ordered context is still
// held, matching spec §3's teardown requirement.
func (e *Engine) TermLocal() error {
	if e.ctx.num != 0 || e.ctx.holding || e.ctx.origin != nil {
		return api.ErrContextNotEmpty
	}
	if e.role != api.GroupAll {
		e.reg.groups.LeaveBuiltin(e.role, e.threadID)
	}
	rt.UnregisterThread(e.threadID)
	return nil
}

// ThreadID returns this engine's scheduler thread id, used by tests and
// by callers that need to correlate dispatch with a specific worker.
func (e *Engine) ThreadID() int { return e.threadID }

// Pause sets the per-thread pause flag (spec §6 schedule_pause);
// idempotent, matching the "pause idempotence" testable property.
func (e *Engine) Pause() { e.ctx.pause = true }

// Resume clears the pause flag (spec §6 schedule_resume).
func (e *Engine) Resume() { e.ctx.pause = false }

// Prefetch is a no-op placeholder kept for call-site parity with the
// public API (spec §6 prefetch(n)).
func (e *Engine) Prefetch(n int) {}

// Enqueue appends ev to producer queue h. If this engine currently holds
// an ordered context, the enqueue is recorded (spec §4.5
// sched_enq_called) so a later ReleaseOrdered knows a forward occurred,
// and ev is stamped with that context (spec §4.5 get_sched_order) so a
// downstream consumer of the destination queue can pick up the original
// source ordering via AdoptOrderedContext instead of losing it to
// whatever discipline the destination queue applies on its own.
func (e *Engine) Enqueue(h QueueHandle, ev *event.Event) error {
	if origin, order, ok := e.getSchedOrder(); ok {
		e.ctx.enqCalled = true
		ev.OrderOrigin = origin
		ev.OrderValue = order
	}
	return e.reg.Enqueue(h, ev)
}

// getSchedOrder returns this thread's current ordered context for
// propagation onto a forwarded event (spec §4.5 get_sched_order), or
// ok=false if the thread holds no ordered context.
func (e *Engine) getSchedOrder() (origin *queueEntry, order uint64, ok bool) {
	if e.ctx.origin == nil {
		return nil, 0, false
	}
	return e.ctx.origin, e.ctx.order, true
}

// AdoptOrderedContext lets a thread that just dequeued a forwarded event
// (one carrying a propagated ordering context stamped by some other
// thread's Enqueue) take over that context as its own, so OrderLock,
// OrderUnlock, and ReleaseOrdered serialize against the event's original
// source order instead of whatever discipline the destination queue
// applies. No-op if ev carries no propagated context, or if this thread
// already holds a context of its own.
func (e *Engine) AdoptOrderedContext(ev *event.Event) {
	ctx := &e.ctx
	if ctx.origin != nil || ctx.holding {
		return
	}
	origin, ok := ev.OrderOrigin.(*queueEntry)
	if !ok || origin == nil {
		return
	}
	ctx.origin = origin
	ctx.order = ev.OrderValue
	ctx.numLocks = origin.lockCount
	for i := 0; i < origin.lockCount; i++ {
		ctx.sync[i] = ev.OrderValue
	}
	ctx.enqCalled = false
}

// Schedule is the single-event pull API (spec §6 schedule).
func (e *Engine) Schedule(wait api.WaitSpec) (QueueHandle, *event.Event, bool) {
	out := make([]*event.Event, 1)
	qh, n := e.ScheduleLoop(wait, out)
	if n == 0 {
		return 0, nil, false
	}
	return qh, out[0], true
}

// ScheduleMulti is the batch pull API (spec §6 schedule_multi).
func (e *Engine) ScheduleMulti(wait api.WaitSpec, out []*event.Event) (QueueHandle, int) {
	return e.ScheduleLoop(wait, out)
}

// ScheduleLoop retries scheduleOnce according to wait's policy (spec §4.3
// closing paragraph, schedule_loop).
func (e *Engine) ScheduleLoop(wait api.WaitSpec, out []*event.Event) (QueueHandle, int) {
	var startCycle uint64
	for {
		qh, n := e.scheduleOnce(out)
		if n != 0 {
			return qh, n
		}
		switch wait.Kind {
		case api.WaitForeverKind:
			continue
		case api.NoWaitKind:
			return 0, 0
		default:
			budget := rt.WaitTime(wait.Duration)
			if startCycle == 0 {
				startCycle = rt.Cycles()
				continue
			}
			if budget < rt.Cycles()-startCycle {
				return 0, 0
			}
		}
	}
}

// scheduleOnce is the `schedule` operation (spec §4.3 steps 1-9).
func (e *Engine) scheduleOnce(out []*event.Event) (QueueHandle, int) {
	ctx := &e.ctx

	if ctx.num > 0 {
		return ctx.qe.handle, copyEvents(ctx, out)
	}

	e.ReleaseContext()

	if ctx.pause {
		return 0, 0
	}

	table := e.reg.table
	P, B := e.reg.cfg.P, e.reg.cfg.B

	for p := 0; p < P; p++ {
		if table.MaskIsZero(p) {
			continue
		}

		id := e.threadID & (B - 1)
		for j := 0; j < B; j++ {
			if id >= B {
				id = 0
			}
			cur := id
			id++

			if !table.BitSet(p, cur) {
				continue
			}
			cmd, ok := table.Dequeue(p, cur)
			if !ok {
				continue
			}

			if cmd.Tag == fanout.CmdPollPktin {
				e.dispatchPktin(p, cur, cmd)
				continue
			}

			qh, n, done := e.dispatchQueue(p, cur, cmd, out)
			if done {
				return qh, n
			}
		}
	}

	return 0, 0
}

// dispatchPktin implements step 6's POLL_PKTIN branch.
func (e *Engine) dispatchPktin(p, id int, cmd fanout.Command) {
	pe := cmd.Payload.(*pktioEntry)
	if pe.poller.Poll() {
		e.reg.finalizePktio(pe)
		return
	}
	if !e.reg.table.Enqueue(p, id, cmd) {
		panic("dplane-sched: fan-out FIFO full re-enqueuing a pktio, command pool invariant violated")
	}
}

// dispatchQueue implements step 6's DEQUEUE branch through step 8's
// post-dispatch policy. done reports whether scheduleOnce should return
// (qh, n) immediately; when done is false the priority walk continues.
func (e *Engine) dispatchQueue(p, id int, cmd fanout.Command, out []*event.Event) (qh QueueHandle, n int, done bool) {
	qe := cmd.Payload.(*queueEntry)
	ctx := &e.ctx

	if qe.destroyed.Load() {
		e.reg.finalizeQueue(qe)
		return 0, 0, false
	}

	if qe.group > api.GroupAll && !e.reg.groups.IsMember(qe.group, e.threadID) {
		if !e.reg.table.Enqueue(p, id, cmd) {
			panic("dplane-sched: fan-out FIFO full re-enqueuing a group-gated queue, command pool invariant violated")
		}
		return 0, 0, false
	}

	maxDeq := e.reg.cfg.MaxDeq
	if qe.discipline == api.Ordered {
		maxDeq = 1
	}

	got := qe.queue.DequeueBatch(ctx.cache, maxDeq)
	if got < 0 {
		e.reg.finalizeQueue(qe)
		return 0, 0, false
	}
	if got == 0 {
		// No command is outstanding for qe anymore; the next enqueue's
		// empty-to-non-empty hook re-arms it.
		qe.scheduled.Store(false)
		return 0, 0, false
	}

	ctx.num = got
	ctx.index = 0
	ctx.qe = qe
	copied := copyEvents(ctx, out)
	qe.dispatched.Add(uint64(copied))

	// A destroy can race in between the top-of-function check above and
	// this point. The already-dequeued events are still valid and must
	// reach the caller, but the command record must not be re-armed (or
	// held) once destroyed — finalize it instead (spec §8 command
	// conservation), same as the top-of-walk check does for a destroy
	// observed earlier.
	if qe.destroyed.Load() {
		e.reg.finalizeQueue(qe)
		return qe.handle, copied, true
	}

	switch qe.discipline {
	case api.Ordered:
		if !e.reg.table.Enqueue(p, id, cmd) {
			panic("dplane-sched: fan-out FIFO full re-enqueuing an ordered queue, command pool invariant violated")
		}
		ctx.origin = qe
		ctx.order = ctx.cache[0].Order
		ctx.numLocks = qe.lockCount
		for k := 0; k < qe.lockCount; k++ {
			ctx.sync[k] = ctx.cache[0].Sync[k]
		}
		ctx.enqCalled = false
	case api.Atomic:
		ctx.holding = true
		ctx.heldPrio = p
		ctx.heldBucket = id
		ctx.heldCmd = cmd
	default: // Parallel
		if !e.reg.table.Enqueue(p, id, cmd) {
			panic("dplane-sched: fan-out FIFO full re-enqueuing a parallel queue, command pool invariant violated")
		}
	}

	return qe.handle, copied, true
}
