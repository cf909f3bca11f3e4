//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import "github.com/momentics/hioload-lowlat/api"

func oobSize() int { return 0 }

// SendAndRecv is not supported on this platform.
func (s *Socket) SendAndRecv() (bool, error) { return false, api.ErrNotSupported }

// Flush is not supported on this platform.
func (s *Socket) Flush() (int, error) { return 0, api.ErrNotSupported }

// EnableTimestamps is not supported on this platform.
func (s *Socket) EnableTimestamps() error { return api.ErrNotSupported }

// Join is not supported on this platform.
func (s *Socket) Join(string) error { return api.ErrNotSupported }

// LocalPort is not supported on this platform.
func (s *Socket) LocalPort() (int, error) { return 0, api.ErrNotSupported }

// Close is a no-op; no descriptor can be opened on this platform.
func (s *Socket) Close() error { return nil }
