package adapters

import (
	"testing"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/sched"
)

func TestSchedulerAdapterRoundTrip(t *testing.T) {
	s := sched.New(sched.Config{P: 1, B: 1, MaxQueues: 4})
	w, err := s.InitLocal(api.GroupWorker)
	if err != nil {
		t.Fatalf("unexpected InitLocal error: %v", err)
	}
	defer w.TermLocal()

	var scheduler api.Scheduler = NewSchedulerAdapter(w)

	h, err := s.RegisterQueue(0, api.Parallel, api.GroupAll, 0)
	if err != nil {
		t.Fatalf("unexpected RegisterQueue error: %v", err)
	}
	if err := s.Enqueue(h, &event.Event{Payload: []byte("boxed")}); err != nil {
		t.Fatalf("unexpected Enqueue error: %v", err)
	}

	qh, events, ok := scheduler.Schedule(api.NoWait())
	if !ok || qh != h || len(events) != 1 {
		t.Fatalf("expected one boxed event from %d, got qh=%d n=%d ok=%v", h, qh, len(events), ok)
	}
	ev, isEvent := events[0].(*event.Event)
	if !isEvent || string(ev.Payload) != "boxed" {
		t.Fatalf("expected boxed *event.Event with payload \"boxed\", got %v", events[0])
	}
	scheduler.ReleaseContext()
}

func TestSchedulerAdapterScheduleMultiFillsOutSlice(t *testing.T) {
	s := sched.New(sched.Config{P: 1, B: 1, MaxDeq: 4, MaxQueues: 4})
	w, _ := s.InitLocal(api.GroupWorker)
	defer w.TermLocal()
	var scheduler api.Scheduler = NewSchedulerAdapter(w)

	h, _ := s.RegisterQueue(0, api.Atomic, api.GroupAll, 0)
	for i := 0; i < 3; i++ {
		s.Enqueue(h, &event.Event{})
	}

	out := make([]any, 3)
	qh, n := scheduler.ScheduleMulti(api.NoWait(), out)
	if qh != h || n != 3 {
		t.Fatalf("expected 3 boxed events from %d, got qh=%d n=%d", h, qh, n)
	}
	for i := 0; i < n; i++ {
		if _, isEvent := out[i].(*event.Event); !isEvent {
			t.Fatalf("expected out[%d] to hold a *event.Event, got %v", i, out[i])
		}
	}
	scheduler.ReleaseAtomic()
}
