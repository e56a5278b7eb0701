// File: rt/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rt

import (
	"runtime"

	"github.com/momentics/dplane-sched/affinity"
)

// PinWorker locks the calling goroutine to its current OS thread and pins
// that thread to cpuID, so a worker's bucket-rotation locality (spec §4.3
// step 4, "thread-id-seeded rotation spreads contention evenly") is not
// undone by the Go scheduler migrating it between cores mid-loop.
func PinWorker(cpuID int) error {
	runtime.LockOSThread()
	return affinity.SetAffinity(cpuID)
}
