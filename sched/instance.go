// File: sched/instance.go
// Package sched is the public facade over the scheduling engine: it
// aggregates the producer-queue/pktio registry, the thread-group table,
// and the Control surface (config, metrics, debug probes) behind a
// single entry point, the way facade.HioloadWS aggregates transport,
// pooling, and session management for the websocket stack.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/control"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/internal/group"
	intsched "github.com/momentics/dplane-sched/internal/sched"
	"github.com/momentics/dplane-sched/pktio"
	"github.com/momentics/dplane-sched/rt"
)

// serviceName and serviceVersion populate Info(), the ServiceInfo
// snapshot (spec §3 EXPANSION).
const (
	serviceName    = "dplane-sched"
	serviceVersion = "0.1.0"
)

// Config is the scheduler's build-time configuration: priority/bucket
// counts, dequeue batch size, and the fixed pool capacities. Re-exported
// from internal/sched so callers never need to import an internal
// package directly.
type Config = intsched.Config

// Scheduler is the process-wide scheduler instance: one fan-out table,
// one group registry, one Control surface. Worker handles obtained via
// InitLocal are the per-thread pull API and must not be shared across
// goroutines.
type Scheduler struct {
	reg *intsched.Registry

	configStore *control.ConfigStore
	metrics     *control.MetricsRegistry
	debug       *control.DebugProbes
	ctrl        api.Control

	startedAt time.Time

	pktioMu sync.Mutex
	pktios  map[api.Handle]pktio.Entry

	enqueued    atomic.Uint64
	pauseCount  atomic.Uint64
	resumeCount atomic.Uint64
}

// New builds a Scheduler from cfg. Zero-valued fields in cfg fall back
// to the engine's defaults (8 priorities, 4 buckets, batch size 4).
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		reg:         intsched.NewRegistry(cfg),
		configStore: control.NewConfigStore(),
		metrics:     control.NewMetricsRegistry(),
		debug:       control.NewDebugProbes(),
		startedAt:   time.Now(),
		pktios:      make(map[api.Handle]pktio.Entry),
	}
	resolved := s.reg.Config()
	s.configStore.SetConfig(map[string]any{
		"priorities": resolved.P,
		"buckets":    resolved.B,
		"max_deq":    resolved.MaxDeq,
		"max_queues": resolved.MaxQueues,
		"max_pktios": resolved.MaxPktios,
		"max_groups": resolved.MaxGroups,
	})
	s.debug.RegisterProbe("scheduler.mask", func() any { return s.reg.Table().MaskSnapshot() })
	s.debug.RegisterProbe("scheduler.counts", func() any { return s.reg.Table().CountSnapshot() })
	s.debug.RegisterProbe("scheduler.pktios", func() any { return s.PktioEntries() })
	s.debug.RegisterProbe("scheduler.info", func() any { return s.Info() })
	control.RegisterPlatformProbes(s.debug)
	s.ctrl = &controlAdapter{config: s.configStore, metrics: s.metrics, debug: s.debug}
	s.publishQueueMetrics()
	return s
}

// Info returns a ServiceInfo snapshot describing this scheduler instance,
// mirroring the teacher's facade-level service metadata (spec §3
// EXPANSION).
func (s *Scheduler) Info() api.ServiceInfo {
	return api.ServiceInfo{Name: serviceName, Version: serviceVersion, StartedAt: s.startedAt}
}

// publishQueueMetrics snapshots Registry-level counters into the metrics
// registry. Called after any operation that changes the registered-queue
// population.
func (s *Scheduler) publishQueueMetrics() {
	s.metrics.Set("scheduler.outstanding", s.reg.Outstanding())
	s.metrics.Set("scheduler.queues_by_discipline", s.reg.QueueCountsByDiscipline())
}

// Control exposes the scheduler's config/metrics/debug surface, the same
// Control contract the websocket facade hands out for hot-reload and
// observability wiring.
func (s *Scheduler) Control() api.Control { return s.ctrl }

// Worker is a per-thread scheduling handle obtained from InitLocal. It
// embeds the engine's pull API directly; adapters.SchedulerAdapter wraps
// it to satisfy api.Scheduler for callers that want the boxed-event
// contract instead of *event.Event.
type Worker struct {
	*intsched.Engine
	sched *Scheduler
}

// InitLocal registers the calling thread with role (api.GroupAll,
// api.GroupWorker, or api.GroupControl) and returns its Worker handle
// (spec §6 init_local).
func (s *Scheduler) InitLocal(role api.GroupID) (*Worker, error) {
	e, err := s.reg.InitLocal(role)
	if err != nil {
		return nil, err
	}
	return &Worker{Engine: e, sched: s}, nil
}

// Pause sets the per-thread pause flag and bumps the scheduler-wide pause
// counter (spec §6 schedule_pause, §3 EXPANSION pause/resume metrics).
// Shadows the embedded Engine.Pause so callers going through Worker
// always update the counter; Engine.Pause remains reachable directly for
// callers that only hold the internal handle.
func (w *Worker) Pause() {
	w.Engine.Pause()
	w.sched.metrics.Set("scheduler.pause_count", w.sched.pauseCount.Add(1))
}

// Resume clears the pause flag and bumps the scheduler-wide resume
// counter (spec §6 schedule_resume).
func (w *Worker) Resume() {
	w.Engine.Resume()
	w.sched.metrics.Set("scheduler.resume_count", w.sched.resumeCount.Add(1))
}

// RunWorker is the idiomatic Go entry point a worker goroutine uses
// instead of a raw platform thread-create loop: it registers the calling
// goroutine with role, optionally pins it to cpuID, runs body, and always
// tears down via TermLocal before returning — even if body returns early
// on ctx cancellation. Pass cpuID < 0 to skip pinning.
func (s *Scheduler) RunWorker(ctx context.Context, role api.GroupID, cpuID int, body func(ctx context.Context, w *Worker)) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	w, initErr := s.InitLocal(role)
	if initErr != nil {
		return initErr
	}
	defer func() {
		if termErr := w.TermLocal(); termErr != nil && err == nil {
			err = termErr
		}
	}()

	if cpuID >= 0 {
		if pinErr := rt.PinWorker(cpuID); pinErr != nil {
			return pinErr
		}
	}

	body(ctx, w)
	return nil
}

// RegisterQueue registers a new producer queue (spec §4.2
// queue_register).
func (s *Scheduler) RegisterQueue(prio int, discipline api.Discipline, grp api.GroupID, lockCount int) (api.Handle, error) {
	h, err := s.reg.RegisterQueue(prio, discipline, grp, lockCount)
	if err != nil {
		return 0, err
	}
	s.publishQueueMetrics()
	return api.Handle(h), nil
}

// DestroyQueue tears down a producer queue (spec §4.2 queue_unregister).
func (s *Scheduler) DestroyQueue(h api.Handle) error {
	if err := s.reg.DestroyQueue(intsched.QueueHandle(h)); err != nil {
		return err
	}
	s.publishQueueMetrics()
	return nil
}

// Enqueue appends ev to producer queue h.
func (s *Scheduler) Enqueue(h api.Handle, ev *event.Event) error {
	if err := s.reg.Enqueue(intsched.QueueHandle(h), ev); err != nil {
		return err
	}
	s.metrics.Set("scheduler.events_enqueued", s.enqueued.Add(1))
	return nil
}

// Metrics returns the scheduler's queue-level metrics surface.
func (s *Scheduler) Metrics() *Metrics { return &Metrics{reg: s.reg} }

// RegisterPktio registers a packet-input interface for polling (spec
// §4.2 pktio_start). The registration is also recorded as a pktio.Entry
// for introspection via the "scheduler.pktios" debug probe, removed
// again once the poller reports itself stopped.
func (s *Scheduler) RegisterPktio(prio int, p intsched.Poller) (api.Handle, error) {
	tracked := &trackedPoller{inner: p}
	h, err := s.reg.RegisterPktio(prio, tracked)
	if err != nil {
		return 0, err
	}
	handle := api.Handle(h)
	tracked.onStop = func() {
		s.pktioMu.Lock()
		delete(s.pktios, handle)
		s.pktioMu.Unlock()
	}

	s.pktioMu.Lock()
	s.pktios[handle] = pktio.Entry{Handle: pktio.Handle(handle), Prio: prio, Poller: p}
	s.pktioMu.Unlock()
	return handle, nil
}

// PktioEntries returns a snapshot of currently registered packet-input
// interfaces (spec §3's "Packet-input producer I" bookkeeping).
func (s *Scheduler) PktioEntries() []pktio.Entry {
	s.pktioMu.Lock()
	defer s.pktioMu.Unlock()
	out := make([]pktio.Entry, 0, len(s.pktios))
	for _, e := range s.pktios {
		out = append(out, e)
	}
	return out
}

// trackedPoller wraps a poller passed to RegisterPktio so RegisterPktio
// can prune the pktio.Entry bookkeeping map the moment the interface
// reports itself stopped, instead of leaving a stale entry behind.
type trackedPoller struct {
	inner  intsched.Poller
	onStop func()
}

func (t *trackedPoller) Poll() bool {
	stopped := t.inner.Poll()
	if stopped && t.onStop != nil {
		t.onStop()
	}
	return stopped
}

// CreateGroup creates a named thread group (spec §4.6).
func (s *Scheduler) CreateGroup(name string, mask group.Mask) (api.GroupID, error) {
	return s.reg.CreateGroup(name, mask)
}

// DestroyGroup destroys a named thread group.
func (s *Scheduler) DestroyGroup(g api.GroupID) error { return s.reg.DestroyGroup(g) }

// LookupGroup resolves a group name to its id, or api.GroupInvalid.
func (s *Scheduler) LookupGroup(name string) api.GroupID { return s.reg.LookupGroup(name) }

// JoinGroup adds threads in mask to named group g.
func (s *Scheduler) JoinGroup(g api.GroupID, mask group.Mask) error { return s.reg.JoinGroup(g, mask) }

// LeaveGroup removes threads in mask from named group g.
func (s *Scheduler) LeaveGroup(g api.GroupID, mask group.Mask) error {
	return s.reg.LeaveGroup(g, mask)
}

// ThrmaskGroup returns named group g's current thread mask.
func (s *Scheduler) ThrmaskGroup(g api.GroupID) (group.Mask, error) { return s.reg.ThrmaskGroup(g) }

var (
	globalMu sync.Mutex
	global   *Scheduler
)

// InitGlobal installs cfg as the process-wide scheduler, replacing any
// previous instance. Intended for process startup, before any Global()
// call latches a default.
func InitGlobal(cfg Config) *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = New(cfg)
	return global
}

// Global returns the process-wide scheduler, lazily constructing one
// with default configuration on first use — the same role
// pool.DefaultManager plays for buffer pools.
func Global() *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(Config{})
	}
	return global
}

// TermGlobal discards the process-wide scheduler. Chiefly for tests that
// need a clean instance between cases.
func TermGlobal() {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()
}
