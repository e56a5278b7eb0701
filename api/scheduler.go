// Package api
// Author: momentics
//
// Scheduler contract for the multi-producer event scheduling core: priority
// fan-out, per-thread local cache, and the atomic/ordered/parallel
// dispatch disciplines.

package api

// Scheduler is the per-worker-thread pull API. A single implementation
// instance must never be called from more than one goroutine: its hot
// state (local cache, held atomic/ordered context) is single-writer.
type Scheduler interface {
	// Schedule pulls at most one batch of events, honoring wait.
	Schedule(wait WaitSpec) (queue Handle, events []any, ok bool)

	// ScheduleMulti is Schedule with an explicit output buffer so callers
	// control the per-call allocation.
	ScheduleMulti(wait WaitSpec, out []any) (queue Handle, n int)

	// Pause stops this thread from dispatching until Resume is called.
	Pause()
	// Resume re-enables dispatching for this thread.
	Resume()

	// ReleaseAtomic releases a held atomic queue's command, if the local
	// cache has drained.
	ReleaseAtomic()
	// ReleaseOrdered attempts to resolve and release the current ordered
	// context.
	ReleaseOrdered()
	// ReleaseContext calls ReleaseOrdered if an ordered context is held,
	// else ReleaseAtomic.
	ReleaseContext()

	// OrderLock blocks until this thread's sequence number for lock index
	// i is next in line. No-op if no ordered context is held.
	OrderLock(i int)
	// OrderUnlock advances the sequence counter for lock index i.
	OrderUnlock(i int)

	// Prefetch is a placeholder matching the C core's no-op hint.
	Prefetch(n int)
}
