// File: internal/transport/socket_other.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/api"
)

// MaxTCPServerBacklog bounds the pending-accept queue of listeners.
const MaxTCPServerBacklog = 1024

// CreateSocket is not supported on this platform.
func CreateSocket(_ *zap.Logger, _ api.SocketConfig) (int, error) {
	return -1, api.ErrNotSupported
}

func SetNonBlocking(int) error { return api.ErrNotSupported }
func DisableNagle(int) error   { return api.ErrNotSupported }
func SetSOTimestamp(int) error { return api.ErrNotSupported }
func Join(int, string, string) error { return api.ErrNotSupported }
