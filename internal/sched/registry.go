// File: internal/sched/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"sync"
	"time"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/fifo"
	"github.com/momentics/dplane-sched/internal/fanout"
	"github.com/momentics/dplane-sched/internal/group"
)

// Registry is the process-wide scheduler state: the fan-out table, the
// thread-group registry, and the producer-queue / pktio registrations
// (spec §3 "Producer queue Q", "Packet-input producer I", components
// 1, 3, 4).
type Registry struct {
	cfg    Config
	table  *fanout.Table
	groups *group.Registry

	mu          sync.Mutex
	queues      map[QueueHandle]*queueEntry
	pktios      map[PktioHandle]*pktioEntry
	nextQueue   uint32
	nextPktio   uint32
	outstanding int
	poolCap     int
}

// NewRegistry allocates the scheduler's process-wide state (spec §6
// init_global): the fan-out table, the command-record pool bound, and
// the group registry.
func NewRegistry(cfg Config) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		cfg:     cfg,
		table:   fanout.New(cfg.P, cfg.B, cfg.MaxQueues+cfg.MaxPktios),
		groups:  group.New(cfg.MaxGroups),
		queues:  make(map[QueueHandle]*queueEntry),
		pktios:  make(map[PktioHandle]*pktioEntry),
		poolCap: cfg.MaxQueues + cfg.MaxPktios,
	}
}

// Config returns the resolved configuration this registry was built with.
func (r *Registry) Config() Config { return r.cfg }

// Table exposes the fan-out table for the engine's priority walk.
func (r *Registry) Table() *fanout.Table { return r.table }

// Groups exposes the thread-group registry for the engine's gating check.
func (r *Registry) Groups() *group.Registry { return r.groups }

// RegisterQueue allocates a command record and a bucket registration for
// a new producer queue (spec §4.2 queue_register). It does not enqueue
// anything: the queue becomes schedulable on its first non-empty
// transition.
func (r *Registry) RegisterQueue(prio int, discipline api.Discipline, grp api.GroupID, lockCount int) (QueueHandle, error) {
	if lockCount < 0 || lockCount > r.cfg.MaxOrderedLocks {
		return 0, api.ErrInvalidArgument
	}
	if prio < 0 || prio >= r.cfg.P {
		return 0, api.ErrInvalidArgument
	}

	r.mu.Lock()
	if r.outstanding >= r.poolCap {
		r.mu.Unlock()
		return 0, api.ErrResourceExhausted
	}
	h := QueueHandle(r.nextQueue)
	r.nextQueue++
	r.outstanding++

	qe := &queueEntry{
		handle:       h,
		prio:         prio,
		discipline:   discipline,
		group:        grp,
		lockCount:    lockCount,
		bucketID:     r.table.BucketID(api.Handle(h)),
		registeredAt: time.Now(),
		reg:          r,
	}
	qe.cmd = fanout.Command{Tag: fanout.CmdDequeue, Payload: qe}
	qe.queue = fifo.New(qe)
	r.queues[h] = qe
	r.mu.Unlock()

	r.table.Register(qe.bucketID, qe.prio)
	return h, nil
}

// DestroyQueue marks a producer queue for teardown (spec §4.2
// queue_unregister, §4.3 step 7's destroy path). If no command record is
// currently outstanding for the queue — scheduled is false, meaning it
// is sitting in no fan-out FIFO and held by no thread's atomic context —
// teardown completes immediately; otherwise it completes the next time
// the engine's priority walk or release path encounters the destroyed
// queue's command (scenario 6, "Destroy-in-flight").
//
// The event FIFO's own length is the wrong signal for this: a
// Parallel-discipline command is re-enqueued into the fan-out table on
// every dispatch regardless of whether the drain left the FIFO empty,
// and an Atomic-discipline command can sit held (not re-enqueued at
// all, not visible in Len()) for an arbitrary stretch between dispatch
// and the releasing thread's ReleaseAtomic. scheduled is the only field
// that tracks "is this queue's one command record currently
// outstanding somewhere" (spec §8 command conservation).
func (r *Registry) DestroyQueue(h QueueHandle) error {
	r.mu.Lock()
	qe, ok := r.queues[h]
	if !ok {
		r.mu.Unlock()
		return api.ErrNotFound
	}
	delete(r.queues, h)
	r.mu.Unlock()

	qe.destroyed.Store(true)
	qe.queue.MarkDraining()
	if !qe.scheduled.Load() {
		r.finalizeQueue(qe)
	}
	return nil
}

// finalizeQueue releases a destroyed queue's bucket registration and pool
// slot (spec §4.3 step 7's queue_destroy_finalize). Guarded against
// running twice: DestroyQueue's immediate-idle path and a racing
// in-flight dispatch can both observe the same destroyed queue.
func (r *Registry) finalizeQueue(qe *queueEntry) {
	if !qe.finalized.CompareAndSwap(false, true) {
		return
	}
	r.table.Unregister(qe.bucketID, qe.prio)
	r.mu.Lock()
	r.outstanding--
	r.mu.Unlock()
}

// Enqueue appends ev to the producer queue h, stamping ordered-discipline
// order/sync fields at source (spec §3, §4.4 rationale) and clearing any
// already-resolved propagated ordering context ev carries from an
// earlier forward (spec §4.5 sched_order_resolved).
func (r *Registry) Enqueue(h QueueHandle, ev *event.Event) error {
	r.mu.Lock()
	qe, ok := r.queues[h]
	r.mu.Unlock()
	if !ok {
		return api.ErrNotFound
	}
	resolveForwarded(ev)
	qe.stampOrdered(ev)
	qe.queue.Enqueue(ev)
	return nil
}

// scheduleQueue re-arms qe's command record in its fan-out FIFO (spec
// §4.2 queue_schedule), called by queueEntry.OnBecomesNonEmpty the first
// time an enqueue finds the queue empty.
func (r *Registry) scheduleQueue(qe *queueEntry) {
	if !r.table.Enqueue(qe.prio, qe.bucketID, qe.cmd) {
		panic("dplane-sched: fan-out FIFO full scheduling a producer queue, command pool invariant violated")
	}
}

// RegisterPktio allocates a POLL_PKTIN command record and enqueues it
// immediately — pktios are always schedulable until they stop (spec
// §4.2 pktio_start).
func (r *Registry) RegisterPktio(prio int, p Poller) (PktioHandle, error) {
	if prio < 0 || prio >= r.cfg.P {
		return 0, api.ErrInvalidArgument
	}

	r.mu.Lock()
	if r.outstanding >= r.poolCap {
		r.mu.Unlock()
		return 0, api.ErrResourceExhausted
	}
	h := PktioHandle(r.nextPktio)
	r.nextPktio++
	r.outstanding++

	pe := &pktioEntry{
		handle:   h,
		prio:     prio,
		bucketID: r.table.BucketID(api.Handle(h)),
		poller:   p,
	}
	pe.cmd = fanout.Command{Tag: fanout.CmdPollPktin, Payload: pe}
	r.pktios[h] = pe
	r.mu.Unlock()

	r.table.Register(pe.bucketID, pe.prio)
	if !r.table.Enqueue(pe.prio, pe.bucketID, pe.cmd) {
		panic("dplane-sched: fan-out FIFO full enqueuing a pktio, command pool invariant violated")
	}
	return h, nil
}

// finalizePktio releases a stopped pktio's bucket registration and pool
// slot (spec §4.3 step 6's "if it reports stopped" path).
func (r *Registry) finalizePktio(pe *pktioEntry) {
	r.table.Unregister(pe.bucketID, pe.prio)
	r.mu.Lock()
	delete(r.pktios, pe.handle)
	r.outstanding--
	r.mu.Unlock()
}

// Outstanding returns the number of command-record pool slots currently
// occupied by registered producer queues and pktios.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// QueueCountsByDiscipline returns the number of currently registered
// producer queues for each discipline, keyed by its String() form.
func (r *Registry) QueueCountsByDiscipline() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, 3)
	for _, qe := range r.queues {
		out[qe.discipline.String()]++
	}
	return out
}

// QueueStats returns h's registration time and cumulative dispatched
// event count (spec §3 EXPANSION).
func (r *Registry) QueueStats(h QueueHandle) (QueueStats, error) {
	r.mu.Lock()
	qe, ok := r.queues[h]
	r.mu.Unlock()
	if !ok {
		return QueueStats{}, api.ErrNotFound
	}
	return QueueStats{RegisteredAt: qe.registeredAt, Dispatched: qe.dispatched.Load()}, nil
}

// Group delegation (spec §4.6), exported for the sched facade.

func (r *Registry) CreateGroup(name string, mask group.Mask) (api.GroupID, error) {
	return r.groups.Create(name, mask)
}

func (r *Registry) DestroyGroup(g api.GroupID) error { return r.groups.Destroy(g) }

func (r *Registry) LookupGroup(name string) api.GroupID { return r.groups.Lookup(name) }

func (r *Registry) JoinGroup(g api.GroupID, mask group.Mask) error { return r.groups.Join(g, mask) }

func (r *Registry) LeaveGroup(g api.GroupID, mask group.Mask) error { return r.groups.Leave(g, mask) }

func (r *Registry) ThrmaskGroup(g api.GroupID) (group.Mask, error) { return r.groups.Thrmask(g) }
