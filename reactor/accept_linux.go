//go:build linux
// +build linux

// File: reactor/accept_linux.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
	"github.com/momentics/hioload-lowlat/internal/transport"
)

// acceptConn accepts one connection and prepares it for the reactor:
// non-blocking with Nagle disabled. It returns errNoPendingConn once the
// backlog is empty.
func acceptConn(lfd int) (int, string, error) {
	for {
		fd, sa, err := unix.Accept4(lfd, unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
				return -1, "", errNoPendingConn
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			case errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE):
				return -1, "", api.WrapError(api.ErrCodeResourceExhausted, "accept",
					fmt.Errorf("%w: %w", api.ErrResourceExhausted, err))
			default:
				return -1, "", api.WrapError(api.ErrCodeSetup, "accept", err)
			}
		}
		if err := transport.SetNonBlocking(fd); err != nil {
			unix.Close(fd)
			return -1, "", api.WrapError(api.ErrCodeSetup, "set non-blocking", err)
		}
		if err := transport.DisableNagle(fd); err != nil {
			unix.Close(fd)
			return -1, "", api.WrapError(api.ErrCodeSetup, "disable nagle", err)
		}
		return fd, remoteAddr(sa), nil
	}
}

func remoteAddr(sa unix.Sockaddr) string {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.JoinHostPort(net.IP(in4.Addr[:]).String(), strconv.Itoa(in4.Port))
	}
	return ""
}
