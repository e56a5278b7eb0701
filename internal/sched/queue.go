// File: internal/sched/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"sync/atomic"
	"time"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/fifo"
	"github.com/momentics/dplane-sched/internal/fanout"
)

// QueueHandle identifies a producer queue registered with the scheduler.
type QueueHandle uint32

// queueEntry is the scheduler's full record for one registered producer
// queue (spec §3 "Producer queue Q").
type queueEntry struct {
	handle     QueueHandle
	prio       int
	discipline api.Discipline
	group      api.GroupID
	lockCount  int
	bucketID   int

	queue *fifo.Queue // application-facing event FIFO

	orderCtr atomic.Uint64
	syncOut  [event.MaxOrderedLocks]atomic.Uint64

	cmd       fanout.Command // stored command record, reused for the life of the registration
	scheduled atomic.Bool    // true iff the command record is outstanding (in a FIFO or held)
	destroyed atomic.Bool
	finalized atomic.Bool

	registeredAt time.Time
	dispatched   atomic.Uint64

	reg *Registry
}

// QueueStats is a point-in-time snapshot of a producer queue's lifetime
// counters, exposed to callers via Registry.QueueStats.
type QueueStats struct {
	RegisteredAt time.Time
	Dispatched   uint64
}

// OnBecomesNonEmpty implements fifo.ScheduleHook. It is an optimization
// hint only (fired on the FIFO's empty-to-non-empty transition); the
// scheduled flag's compare-and-swap is the actual gate preventing two
// outstanding command records for the same queue, since a parallel
// dispatch re-enqueues its command before the queue necessarily drains
// (spec §4.2 queue_schedule, §4.5).
func (qe *queueEntry) OnBecomesNonEmpty() {
	if qe.scheduled.CompareAndSwap(false, true) {
		qe.reg.scheduleQueue(qe)
	}
}

// stampOrdered assigns this queue's next order number to ev and, for an
// ordered discipline, replicates it across the declared lock count (spec
// §4.4 rationale: "each event... is stamped at source with monotonically
// increasing sync[i] values").
func (qe *queueEntry) stampOrdered(ev *event.Event) {
	if qe.discipline != api.Ordered {
		return
	}
	order := qe.orderCtr.Add(1) - 1
	ev.Order = order
	ev.NumLocks = qe.lockCount
	for i := 0; i < qe.lockCount; i++ {
		ev.Sync[i] = order
	}
}

// releaseOrder advances syncOut[i] past order for every lock index this
// event's batch declared, provided no earlier event's lock is still
// outstanding. Returns false ("not yet") if an earlier lock still blocks
// the advance, matching spec §4.4's "release_order may return not yet".
//
// enqCalled is the thread-local sched_enq_called flag (spec §4.4's
// release_order(origin, order, pool, enq_called) signature): when the
// handler forwarded this batch's event into another queue while holding
// this ordered context, an index that was never explicitly locked is no
// longer safe to auto-advance here — responsibility for eventually
// unblocking it has moved downstream, onto the forwarded event's own
// propagated context (consumed via Engine.AdoptOrderedContext and
// released the normal way with OrderLock/OrderUnlock, or tidied up by
// resolveForwarded once that forward's order is otherwise satisfied).
// Without enqCalled, an unlocked index is assumed to need no
// serialization at all and is advanced immediately.
func (qe *queueEntry) releaseOrder(order uint64, numLocks int, enqCalled bool) bool {
	resolved := true
	for i := 0; i < numLocks; i++ {
		for {
			cur := qe.syncOut[i].Load()
			if cur < order {
				resolved = false
				break
			}
			if cur == order {
				if enqCalled {
					resolved = false
					break
				}
				if qe.syncOut[i].CompareAndSwap(cur, cur+1) {
					break
				}
				continue
			}
			break // cur > order: already advanced past this event by an explicit unlock
		}
	}
	return resolved
}

// resolveForwarded implements sched_order_resolved (spec §4.5): called by
// the queue layer whenever any event is enqueued, it clears a forwarded
// event's propagated ordering context once that context's own source
// order has already been satisfied on every lock it declared — the
// buffer no longer needs to drag stale origin state through further
// forwards. A no-op for events that carry no propagated context, or
// whose origin is still outstanding on at least one lock.
func resolveForwarded(ev *event.Event) {
	origin, ok := ev.OrderOrigin.(*queueEntry)
	if !ok || origin == nil {
		return
	}
	for i := 0; i < origin.lockCount; i++ {
		if origin.syncOut[i].Load() <= ev.OrderValue {
			return
		}
	}
	ev.OrderOrigin = nil
	ev.OrderValue = 0
}

// pktioEntry is the scheduler's record for a registered packet-input
// interface (spec §3 "Packet-input producer I").
type pktioEntry struct {
	handle   PktioHandle
	prio     int
	bucketID int
	poller   Poller

	cmd fanout.Command
}

// PktioHandle identifies a registered packet-input interface.
type PktioHandle uint32

// Poller is the pktio driver collaborator (spec §1(c)); mirrors
// pktio.Poller so internal/sched does not need to import pktio directly.
type Poller interface {
	Poll() (stopped bool)
}
