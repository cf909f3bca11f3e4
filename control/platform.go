// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host facts worth having next to latency numbers.

package control

import (
	"runtime"
)

// RegisterPlatformProbes adds CPU and scheduler probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
