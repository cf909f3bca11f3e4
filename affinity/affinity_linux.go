//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
)

// setAffinityPlatform restricts the calling thread to cpuID with
// sched_setaffinity(2).
func setAffinityPlatform(cpuID int) error {
	if cpuID < 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "affinity: negative cpu", api.ErrInvalidArgument).
			WithContext("cpu", cpuID)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if set.Count() == 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "affinity: cpu out of range", api.ErrInvalidArgument).
			WithContext("cpu", cpuID)
	}
	// pid 0 targets the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return api.WrapError(api.ErrCodeSetup, fmt.Sprintf("affinity: sched_setaffinity cpu %d", cpuID), err)
	}
	return nil
}
