// File: internal/sched/scenarios_test.go
// End-to-end exercises for the concrete scenarios the priority walk,
// pktio lifecycle, and destroy-in-flight path must handle together,
// as opposed to the single-mechanism unit tests in engine_test.go and
// registry_test.go.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"testing"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/pktio"
)

// Scenario 1: priority preemption. A lower-priority queue (larger prio
// number, scanned later in the walk) has events pending when a
// higher-priority queue also becomes schedulable; the next schedule
// call must favor the higher-priority queue even though the
// lower-priority one still has work waiting.
func TestScenarioPriorityPreemption(t *testing.T) {
	r := NewRegistry(Config{P: 4, B: 2, MaxDeq: 4, MaxQueues: 4})
	e, _ := r.InitLocal(api.GroupWorker)

	hLow, _ := r.RegisterQueue(3, api.Parallel, api.GroupAll, 0)
	hHigh, _ := r.RegisterQueue(1, api.Parallel, api.GroupAll, 0)

	r.Enqueue(hLow, &event.Event{Payload: []byte("low-1")})
	qh, _, ok := e.Schedule(api.NoWait())
	if !ok || qh != hLow {
		t.Fatalf("expected the only schedulable queue %d, got qh=%d ok=%v", hLow, qh, ok)
	}

	// hLow still has a second event outstanding once hHigh also arrives.
	r.Enqueue(hLow, &event.Event{Payload: []byte("low-2")})
	r.Enqueue(hHigh, &event.Event{Payload: []byte("high-1")})

	qh2, _, ok2 := e.Schedule(api.NoWait())
	if !ok2 || qh2 != hHigh {
		t.Fatalf("expected priority walk to prefer %d over %d, got qh=%d ok=%v", hHigh, hLow, qh2, ok2)
	}
}

// Scenario 4: a pktio interface reports stopped on the poll that
// encounters it. The command record must be freed and the fan-out
// table's mask bit for its bucket must clear, since no other
// registrant shares that (priority, bucket) pair.
func TestScenarioPktioStopFreesCommandAndClearsMask(t *testing.T) {
	r := NewRegistry(Config{P: 1, B: 1, MaxPktios: 4})
	e, _ := r.InitLocal(api.GroupWorker)

	poller := pktio.NewMemoryPoller()
	h, err := r.RegisterPktio(0, poller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.table.MaskSnapshot()[0] == 0 {
		t.Fatal("expected mask bit set while pktio is registered")
	}

	poller.Stop()
	if _, _, ok := e.Schedule(api.NoWait()); ok {
		t.Fatal("expected no event from a stopped pktio's poll")
	}

	if r.table.MaskSnapshot()[0] != 0 {
		t.Fatal("expected mask bit to clear once the stopped pktio's command is freed")
	}
	r.mu.Lock()
	_, stillRegistered := r.pktios[h]
	outstanding := r.outstanding
	r.mu.Unlock()
	if stillRegistered {
		t.Fatal("expected pktio entry to be removed from the registry")
	}
	if outstanding != 0 {
		t.Fatalf("expected pool slot released, outstanding=%d", outstanding)
	}
}

// Scenario 6: destroy-in-flight. A parallel-discipline queue's command
// record is re-enqueued into the fan-out table (per the usual parallel
// post-dispatch policy) while application events remain behind it in
// the queue's own FIFO. DestroyQueue is called while that command record
// is still outstanding, so it cannot finalize immediately; the next thread
// to dequeue the stale command record must observe destroyed and
// finalize the queue instead of draining it further.
func TestScenarioDestroyInFlight(t *testing.T) {
	r := NewRegistry(Config{P: 1, B: 1, MaxDeq: 1, MaxQueues: 4})
	a, _ := r.InitLocal(api.GroupWorker)
	b, _ := r.InitLocal(api.GroupWorker)

	h, _ := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0)
	for i := 0; i < 3; i++ {
		r.Enqueue(h, &event.Event{})
	}

	qh, _, ok := a.Schedule(api.NoWait())
	if !ok || qh != h {
		t.Fatalf("expected first dispatch from %d, got qh=%d ok=%v", h, qh, ok)
	}

	if err := r.DestroyQueue(h); err != nil {
		t.Fatalf("unexpected destroy error: %v", err)
	}
	r.mu.Lock()
	outstandingBeforeEncounter := r.outstanding
	r.mu.Unlock()
	if outstandingBeforeEncounter != 1 {
		t.Fatalf("expected destroy to defer finalization while the command record is outstanding, outstanding=%d", outstandingBeforeEncounter)
	}

	qh2, ev2, ok2 := b.Schedule(api.NoWait())
	if ok2 {
		t.Fatalf("expected the destroyed queue's stale command to yield nothing, got qh=%d ev=%v", qh2, ev2)
	}

	r.mu.Lock()
	outstandingAfter := r.outstanding
	r.mu.Unlock()
	if outstandingAfter != 0 {
		t.Fatalf("expected finalize on encountering the destroyed command, outstanding=%d", outstandingAfter)
	}
}

// Scenario 6b: destroy while an atomic queue's command is held. Unlike
// Parallel/Ordered, a held Atomic command sits in neither a fan-out FIFO
// nor the queue's own event FIFO — Len() alone would say "idle" the
// instant the drain empties it, well before the holding thread calls
// ReleaseAtomic. DestroyQueue must defer finalization until the release,
// and the release must finalize rather than re-arm a stale command.
func TestScenarioDestroyWhileAtomicHeld(t *testing.T) {
	r := NewRegistry(Config{P: 1, B: 1, MaxDeq: 4, MaxQueues: 4})
	a, _ := r.InitLocal(api.GroupWorker)

	h, _ := r.RegisterQueue(0, api.Atomic, api.GroupAll, 0)
	r.Enqueue(h, &event.Event{})

	qh, _, ok := a.Schedule(api.NoWait())
	if !ok || qh != h {
		t.Fatalf("expected dispatch from %d, got qh=%d ok=%v", h, qh, ok)
	}
	if !a.ctx.holding {
		t.Fatal("expected the atomic command to be held after a full drain")
	}

	if err := r.DestroyQueue(h); err != nil {
		t.Fatalf("unexpected destroy error: %v", err)
	}
	r.mu.Lock()
	outstandingWhileHeld := r.outstanding
	r.mu.Unlock()
	if outstandingWhileHeld != 1 {
		t.Fatalf("expected destroy to defer finalization while the command is held, outstanding=%d", outstandingWhileHeld)
	}

	a.ReleaseAtomic()
	if a.ctx.holding {
		t.Fatal("expected release to clear holding even when finalizing instead of re-arming")
	}

	r.mu.Lock()
	outstandingAfter := r.outstanding
	r.mu.Unlock()
	if outstandingAfter != 0 {
		t.Fatalf("expected finalize on release of the destroyed command, outstanding=%d", outstandingAfter)
	}
	if r.table.MaskSnapshot()[0] != 0 {
		t.Fatal("expected mask bit to clear once the held command finalizes")
	}
}

// Scenario 9: cross-queue ordered-context propagation. A handler that
// dequeues an event from an ordered queue and forwards it into a second
// (Parallel) queue must not lose the original source ordering: the
// forwarded event carries the origin/order (spec §4.5 get_sched_order),
// and a consumer of the destination queue can adopt it and serialize via
// OrderLock/OrderUnlock against the original ordered queue.
func TestScenarioForwardedEventPropagatesOrderedContext(t *testing.T) {
	r := NewRegistry(Config{P: 2, B: 1, MaxDeq: 4, MaxQueues: 4})
	producer, _ := r.InitLocal(api.GroupWorker)
	consumer, _ := r.InitLocal(api.GroupWorker)

	ordered, _ := r.RegisterQueue(0, api.Ordered, api.GroupAll, 1)
	fanIn, _ := r.RegisterQueue(1, api.Parallel, api.GroupAll, 0)

	r.Enqueue(ordered, &event.Event{Payload: []byte("first")})

	_, ev, ok := producer.Schedule(api.NoWait())
	if !ok || producer.ctx.origin == nil {
		t.Fatal("expected producer to hold the ordered origin after dispatch")
	}

	forwarded := &event.Event{Payload: ev.Payload}
	if err := producer.Enqueue(fanIn, forwarded); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if !producer.ctx.enqCalled {
		t.Fatal("expected the forward to set enqCalled on the producer's context")
	}

	qh, got, ok2 := consumer.Schedule(api.NoWait())
	if !ok2 || qh != fanIn {
		t.Fatalf("expected the forwarded event from %d, got qh=%d ok=%v", fanIn, qh, ok2)
	}
	if got.OrderOrigin == nil {
		t.Fatal("expected the forwarded event to carry a propagated ordering context")
	}

	consumer.AdoptOrderedContext(got)
	if consumer.ctx.origin == nil {
		t.Fatal("expected AdoptOrderedContext to install the origin's ordered context")
	}

	// Because enqCalled was set, the producer's release must not
	// auto-advance the lock the forward's consumer now owns.
	producer.ReleaseOrdered()
	if producer.ctx.origin == nil {
		t.Fatal("expected the producer's origin to remain held: the forward's lock is unresolved")
	}

	consumer.OrderLock(0)
	consumer.OrderUnlock(0)

	producer.ReleaseOrdered()
	if producer.ctx.origin != nil {
		t.Fatal("expected the producer's origin to clear once the forward's consumer unlocked")
	}
}
