// File: fifo/queue.go
// Package fifo provides the generic multi-producer/multi-consumer FIFO the
// scheduler core treats as an external collaborator (spec §1): "a
// multi-producer/multi-consumer FIFO with enqueue and dequeue".
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// github.com/eapache/queue is a plain growable ring buffer, not safe for
// concurrent use on its own; Queue adds the mutex the spec's contract
// requires so application code can enqueue from many goroutines while a
// worker drains it.
package fifo

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/dplane-sched/event"
)

// ScheduleHook is notified each time a Queue transitions from empty to
// non-empty, so the scheduler can re-arm the queue's command record
// (spec §4.5, queue_schedule).
type ScheduleHook interface {
	OnBecomesNonEmpty()
}

// Queue is the application-facing FIFO of events backing a single
// producer queue registration.
type Queue struct {
	mu       sync.Mutex
	q        *queue.Queue
	hook     ScheduleHook
	draining bool // true once a destroy has been requested
}

// New creates an empty producer-queue FIFO. hook may be nil if the caller
// does not need the non-empty notification (e.g. in tests).
func New(hook ScheduleHook) *Queue {
	return &Queue{q: queue.New(), hook: hook}
}

// Enqueue appends ev. If the queue was empty, the registered hook fires
// after the event has been added and the queue's lock released, so the
// event is already visible to a concurrent Dequeue when the hook runs,
// matching the spec's "first successful enqueue-into-Q" transition.
func (fq *Queue) Enqueue(ev *event.Event) {
	fq.mu.Lock()
	wasEmpty := fq.q.Length() == 0
	fq.q.Add(ev)
	hook := fq.hook
	fq.mu.Unlock()

	if wasEmpty && hook != nil {
		hook.OnBecomesNonEmpty()
	}
}

// DequeueBatch removes up to n events into out, returning the number
// copied. Returns -1 if the queue has been marked for destruction and is
// now empty (the "destroyed, now drained" signal the engine expects from
// queue_dequeue_batch).
func (fq *Queue) DequeueBatch(out []*event.Event, n int) int {
	fq.mu.Lock()
	defer fq.mu.Unlock()

	if n > len(out) {
		n = len(out)
	}
	count := 0
	for count < n && fq.q.Length() > 0 {
		out[count] = fq.q.Peek().(*event.Event)
		fq.q.Remove()
		count++
	}
	if count == 0 && fq.draining {
		return -1
	}
	return count
}

// Len returns the current number of queued events.
func (fq *Queue) Len() int {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return fq.q.Length()
}

// MarkDraining flags the queue as destroyed; once it empties,
// DequeueBatch reports -1 so the engine can finalize it.
func (fq *Queue) MarkDraining() {
	fq.mu.Lock()
	fq.draining = true
	fq.mu.Unlock()
}
