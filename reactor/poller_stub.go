//go:build !linux
// +build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-lowlat/api"

// NewPoller returns api.ErrNotSupported on this platform.
func NewPoller() (Poller, error) {
	return nil, api.ErrNotSupported
}
