// File: rt/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rt

import (
	"runtime"
	"time"
)

// clockBase anchors Cycles to a monotonic clock reading taken at package
// initialization.
var clockBase = time.Now()

// Cycles returns a monotonically increasing tick count standing in for
// odp_time_cycles(). Go exposes no portable cycle counter, so nanoseconds
// of monotonic time elapsed since clockBase serve the same purpose: a
// never-decreasing value usable only for computing elapsed budgets.
func Cycles() uint64 {
	return uint64(time.Since(clockBase))
}

// WaitTime converts a nanosecond budget into the same unit Cycles()
// returns, mirroring odp_schedule_wait_time(ns).
func WaitTime(d time.Duration) uint64 {
	if d < 0 {
		d = 0
	}
	return uint64(d.Nanoseconds())
}

// SpinWait busy-waits until cond reports true, yielding the scheduler
// every pauseEvery iterations so a spinning goroutine does not starve
// others sharing its OS thread. Grounded on the core's order_lock
// spin-wait (spec §4.4): "not a lock... purely a sequence-number gate".
func SpinWait(pauseEvery int, cond func() bool) {
	if pauseEvery <= 0 {
		pauseEvery = 64
	}
	for i := 0; !cond(); i++ {
		if i%pauseEvery == 0 {
			runtime.Gosched()
		}
	}
}
