// File: internal/fanout/table.go
// Package fanout implements the priority fan-out table (spec §4.1).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package fanout

import (
	"sync"

	"github.com/momentics/dplane-sched/api"
)

// CmdTag discriminates a Command's payload, the Go realization of the C
// core's tagged sched_cmd_t (spec §9: "model as a tagged sum with two
// payload variants").
type CmdTag uint8

const (
	// CmdDequeue names a producer queue to pull events from.
	CmdDequeue CmdTag = iota
	// CmdPollPktin names a packet-input interface to poll.
	CmdPollPktin
)

// Command is a schedule command record. Payload is opaque to this package
// (it holds a *sched.queueEntry or *sched.pktioEntry); fanout only ever
// moves Commands between FIFOs, never inspects Payload.
type Command struct {
	Tag     CmdTag
	Payload any
}

// Table is the two-dimensional (priority x bucket) array of fan-out FIFOs,
// the mask/count bookkeeping that lets the engine's priority walk skip
// empty bands in O(1), and the single lock ("mask lock") serializing
// register/unregister (spec §4.1, §5).
type Table struct {
	p, b int

	mu    sync.Mutex
	mask  []uint32
	count [][]int32

	fifos [][]*bucketFIFO[Command]
}

// New builds a fan-out table for p priorities and b buckets per priority.
// fifoCapacity bounds each (priority, bucket) FIFO and should be at least
// MaxQueues+MaxPktios so a re-enqueue (treated as infallible by the core,
// spec §7 "Fatal internal inconsistency") can never observe a full ring.
func New(p, b, fifoCapacity int) *Table {
	t := &Table{
		p:     p,
		b:     b,
		mask:  make([]uint32, p),
		count: make([][]int32, p),
		fifos: make([][]*bucketFIFO[Command], p),
	}
	for i := 0; i < p; i++ {
		t.count[i] = make([]int32, b)
		t.fifos[i] = make([]*bucketFIFO[Command], b)
		for j := 0; j < b; j++ {
			t.fifos[i][j] = newBucketFIFO[Command](fifoCapacity)
		}
	}
	return t
}

// Priorities returns the configured number of priority levels.
func (t *Table) Priorities() int { return t.p }

// Buckets returns the configured number of buckets per priority.
func (t *Table) Buckets() int { return t.b }

// BucketID maps a handle's low bits onto a bucket index, matching the
// C core's pri_id_queue/pri_id_pktio masking (original_source:
// "(QUEUES_PER_PRIO-1) & (handle)") rather than a generic hash.
func (t *Table) BucketID(h api.Handle) int {
	return int(uint32(h) & uint32(t.b-1))
}

// Register marks (p, id) as having one more registrant and returns the
// FIFO handle to enqueue commands into. Infallible: caller supplies a
// valid p/id (spec §4.1 "Failure: none").
func (t *Table) Register(id, p int) *bucketFIFO[Command] {
	t.mu.Lock()
	t.mask[p] |= 1 << uint(id)
	t.count[p][id]++
	fifo := t.fifos[p][id]
	t.mu.Unlock()
	return fifo
}

// Unregister removes one registrant from (p, id), clearing the mask bit
// once the count reaches zero.
func (t *Table) Unregister(id, p int) {
	t.mu.Lock()
	t.count[p][id]--
	if t.count[p][id] == 0 {
		t.mask[p] &^= 1 << uint(id)
	}
	t.mu.Unlock()
}

// MaskSnapshot returns a copy of the per-priority non-empty-bucket masks,
// used only by tests asserting the mask-accuracy invariant.
func (t *Table) MaskSnapshot() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint32, t.p)
	copy(out, t.mask)
	return out
}

// CountSnapshot returns a copy of the per-(priority,bucket) registration
// counts, for the same testing purpose as MaskSnapshot.
func (t *Table) CountSnapshot() [][]int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]int32, t.p)
	for i := range out {
		out[i] = make([]int32, t.b)
		copy(out[i], t.count[i])
	}
	return out
}

// MaskIsZero reports whether priority p currently has no registered
// bucket (its mask is zero). It reads the mask under the mask lock.
func (t *Table) MaskIsZero(p int) bool {
	return t.loadMask(p) == 0
}

func (t *Table) loadMask(p int) uint32 {
	t.mu.Lock()
	m := t.mask[p]
	t.mu.Unlock()
	return m
}

// BitSet reports whether bucket id at priority p is marked non-empty.
func (t *Table) BitSet(p, id int) bool {
	return t.loadMask(p)&(1<<uint(id)) != 0
}

// Enqueue pushes cmd into the FIFO at (p, id). Returns false only if the
// ring is at capacity, which the engine treats as a fatal invariant
// violation (spec §7).
func (t *Table) Enqueue(p, id int, cmd Command) bool {
	return t.fifos[p][id].Enqueue(cmd)
}

// Dequeue pops one command from (p, id), if any.
func (t *Table) Dequeue(p, id int) (Command, bool) {
	return t.fifos[p][id].Dequeue()
}
