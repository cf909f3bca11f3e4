//go:build !linux
// +build !linux

// File: reactor/accept_other.go
// Author: momentics <momentics@gmail.com>

package reactor

import "github.com/momentics/hioload-lowlat/api"

func acceptConn(int) (int, string, error) {
	return -1, "", api.ErrNotSupported
}
