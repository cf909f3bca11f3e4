//go:build !linux
// +build !linux

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-lowlat/api"

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(int) error {
	return api.ErrNotSupported
}
