// File: adapters/scheduler_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SchedulerAdapter wraps a *sched.Worker to satisfy api.Scheduler for
// callers that want the boxed-any event contract instead of the
// concrete *event.Event the engine itself deals in, mirroring how the
// sched package's controlAdapter wraps the control package's primitives
// behind api.Control.
package adapters

import (
	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/sched"
)

// SchedulerAdapter adapts a single worker thread's *sched.Worker to
// api.Scheduler. Like the Worker it wraps, a SchedulerAdapter must never
// be called from more than one goroutine.
type SchedulerAdapter struct {
	w *sched.Worker
}

// NewSchedulerAdapter wraps w.
func NewSchedulerAdapter(w *sched.Worker) api.Scheduler {
	return &SchedulerAdapter{w: w}
}

func (s *SchedulerAdapter) Schedule(wait api.WaitSpec) (api.Handle, []any, bool) {
	qh, ev, ok := s.w.Schedule(wait)
	if !ok {
		return 0, nil, false
	}
	return api.Handle(qh), []any{ev}, true
}

func (s *SchedulerAdapter) ScheduleMulti(wait api.WaitSpec, out []any) (api.Handle, int) {
	events := make([]*event.Event, len(out))
	qh, n := s.w.ScheduleMulti(wait, events)
	for i := 0; i < n; i++ {
		out[i] = events[i]
	}
	return api.Handle(qh), n
}

func (s *SchedulerAdapter) Pause()            { s.w.Pause() }
func (s *SchedulerAdapter) Resume()           { s.w.Resume() }
func (s *SchedulerAdapter) ReleaseAtomic()    { s.w.ReleaseAtomic() }
func (s *SchedulerAdapter) ReleaseOrdered()   { s.w.ReleaseOrdered() }
func (s *SchedulerAdapter) ReleaseContext()   { s.w.ReleaseContext() }
func (s *SchedulerAdapter) OrderLock(i int)   { s.w.OrderLock(i) }
func (s *SchedulerAdapter) OrderUnlock(i int) { s.w.OrderUnlock(i) }
func (s *SchedulerAdapter) Prefetch(n int)    { s.w.Prefetch(n) }

var _ api.Scheduler = (*SchedulerAdapter)(nil)
