// File: internal/sched/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/internal/fanout"
)

// threadContext is the hot per-worker state (spec §3 "Per-thread context
// T"). It is owned exclusively by the Engine that embeds it; no other
// goroutine ever touches it, which is why it carries no locks.
type threadContext struct {
	cache []*event.Event
	num   int
	index int
	qe    *queueEntry

	holding    bool
	heldPrio   int
	heldBucket int
	heldCmd    fanout.Command

	origin    *queueEntry
	order     uint64
	sync      [event.MaxOrderedLocks]uint64
	numLocks  int
	enqCalled bool

	pause bool
}

// copyEvents drains up to len(out) events from ctx's cache in arrival
// order (spec §4.3 step 1, copy_events).
func copyEvents(ctx *threadContext, out []*event.Event) int {
	n := 0
	for ctx.num > 0 && n < len(out) {
		out[n] = ctx.cache[ctx.index]
		ctx.index++
		ctx.num--
		n++
	}
	return n
}
