//go:build !linux && !windows
// +build !linux,!windows

// control/platform_stub.go
// Author: momentics <momentics@gmail.com>
//
// Fallback platform metrics for platforms without a dedicated probe set.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets the platform-neutral debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
