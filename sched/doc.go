// Package sched is the public entry point for the event scheduling
// core: producer-queue and pktio registration, thread-group management,
// and the per-thread Worker pull API, with a process-wide Control
// surface for configuration, metrics, and debug probes.
//
// A typical worker loop:
//
//	s := sched.Global()
//	w, _ := s.InitLocal(api.GroupWorker)
//	defer w.TermLocal()
//	for {
//	    qh, ev, ok := w.Schedule(api.WaitForever())
//	    if !ok {
//	        continue
//	    }
//	    handle(qh, ev)
//	    w.ReleaseContext()
//	}
package sched
