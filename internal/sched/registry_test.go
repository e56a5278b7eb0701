package sched

import (
	"testing"

	"github.com/momentics/dplane-sched/api"
	"github.com/momentics/dplane-sched/event"
	"github.com/momentics/dplane-sched/internal/fanout"
	"github.com/momentics/dplane-sched/pktio"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Config{P: 2, B: 2, MaxDeq: 4, MaxQueues: 4, MaxPktios: 4})
}

func TestRegisterQueueRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	before := r.table.MaskSnapshot()

	h, err := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.DestroyQueue(h); err != nil {
		t.Fatalf("unexpected destroy error: %v", err)
	}

	after := r.table.MaskSnapshot()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("mask[%d] changed across register/unregister: %d -> %d", i, before[i], after[i])
		}
	}
}

func TestRegisterQueuePoolExhaustion(t *testing.T) {
	r := NewRegistry(Config{P: 1, B: 1, MaxQueues: 1, MaxPktios: 1})
	if _, err := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0); err != api.ErrResourceExhausted {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
}

func TestEnqueueIdleQueueArmsCommand(t *testing.T) {
	r := newTestRegistry(t)
	h, err := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.table.MaskSnapshot()[0] == 0 {
		t.Fatal("expected mask bit set immediately on register")
	}

	if err := r.Enqueue(h, &event.Event{Payload: []byte("x")}); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	cmd, ok := r.table.Dequeue(0, r.table.BucketID(api.Handle(h)))
	if !ok || cmd.Tag != fanout.CmdDequeue {
		t.Fatalf("expected the enqueue to arm the queue's command record, got %+v ok=%v", cmd, ok)
	}
}

func TestDestroyIdleQueueFinalizesImmediately(t *testing.T) {
	r := newTestRegistry(t)
	h, _ := r.RegisterQueue(0, api.Parallel, api.GroupAll, 0)

	if err := r.DestroyQueue(h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.outstanding != 0 {
		t.Fatalf("expected pool slot released, outstanding=%d", r.outstanding)
	}
}

func TestRegisterPktioEnqueuesImmediately(t *testing.T) {
	r := newTestRegistry(t)
	poller := pktio.NewMemoryPoller()
	h, err := r.RegisterPktio(0, poller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != 0 {
		t.Fatalf("expected first pktio handle 0, got %d", h)
	}
	cmd, ok := r.table.Dequeue(0, r.table.BucketID(api.Handle(h)))
	if !ok {
		t.Fatal("expected pktio command to be immediately enqueued")
	}
	if cmd.Tag != fanout.CmdPollPktin {
		t.Fatalf("expected CmdPollPktin, got %v", cmd.Tag)
	}
}
