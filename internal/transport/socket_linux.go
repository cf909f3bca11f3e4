// File: internal/transport/socket_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
)

// MaxTCPServerBacklog bounds the pending-accept queue of listeners.
const MaxTCPServerBacklog = 1024

// CreateSocket creates, configures and (for listeners) binds a socket per
// cfg. Connecting TCP sockets return while the handshake is still in
// flight. Every failure is an api.ErrCodeSetup error and leaves no
// descriptor open.
func CreateSocket(logger *zap.Logger, cfg api.SocketConfig) (int, error) {
	logger.Info("creating socket", zap.Stringer("cfg", cfg))

	if cfg.Port < 0 || cfg.Port > 65535 {
		return -1, setupError("port out of range", cfg, api.ErrInvalidArgument)
	}
	addr, err := ResolveIPv4(cfg)
	if err != nil {
		return -1, err
	}

	typ, proto := unix.SOCK_STREAM, unix.IPPROTO_TCP
	if cfg.Protocol == api.ProtocolUDP {
		typ, proto = unix.SOCK_DGRAM, unix.IPPROTO_UDP
	}

	fd, err := unix.Socket(unix.AF_INET, typ|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return -1, setupError("socket()", cfg, err)
	}
	if err := configure(fd, cfg, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func configure(fd int, cfg api.SocketConfig, addr [4]byte) error {
	if err := SetNonBlocking(fd); err != nil {
		return setupError("setNonBlocking()", cfg, err)
	}
	if cfg.Protocol == api.ProtocolTCP {
		if err := DisableNagle(fd); err != nil {
			return setupError("disableNagle()", cfg, err)
		}
	}

	sa := &unix.SockaddrInet4{Port: cfg.Port, Addr: addr}
	if !cfg.Listening {
		if err := unix.Connect(fd, sa); err != nil && !errors.Is(err, unix.EINPROGRESS) {
			return setupError("connect()", cfg, err)
		}
	} else {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return setupError("setsockopt(SO_REUSEADDR)", cfg, err)
		}
		bindAddr := sa
		if cfg.Protocol == api.ProtocolUDP {
			bindAddr = &unix.SockaddrInet4{Port: cfg.Port}
		}
		if err := unix.Bind(fd, bindAddr); err != nil {
			return setupError("bind()", cfg, err)
		}
		if cfg.Protocol == api.ProtocolTCP {
			if err := unix.Listen(fd, MaxTCPServerBacklog); err != nil {
				return setupError("listen()", cfg, err)
			}
		}
	}

	if cfg.Timestamping {
		if err := SetSOTimestamp(fd); err != nil {
			return setupError("setSOTimestamp()", cfg, err)
		}
	}
	return nil
}

// SetNonBlocking makes reads and writes on fd return EAGAIN instead of
// suspending the thread.
func SetNonBlocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// DisableNagle sets TCP_NODELAY.
func DisableNagle(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetSOTimestamp enables software receive timestamps (SCM_TIMESTAMP).
func SetSOTimestamp(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMP, 1)
}

// Join adds fd to the IPv4 multicast group on the interface owning ifaceIP,
// or on the kernel's choice of interface when ifaceIP is empty.
func Join(fd int, group, ifaceIP string) error {
	addr, err := ResolveIPv4(api.SocketConfig{IP: group})
	if err != nil {
		return err
	}
	mreq := &unix.IPMreq{Multiaddr: addr}
	if ifaceIP != "" {
		if mreq.Interface, err = ResolveIPv4(api.SocketConfig{IP: ifaceIP}); err != nil {
			return err
		}
	}
	return unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
}

func setupError(op string, cfg api.SocketConfig, err error) error {
	return api.WrapError(api.ErrCodeSetup, op+" failed", err).WithContext("cfg", cfg.String())
}
