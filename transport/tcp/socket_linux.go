//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"errors"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
	"github.com/momentics/hioload-lowlat/clock"
	"github.com/momentics/hioload-lowlat/internal/transport"
)

var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

func oobSize() int {
	return unix.CmsgSpace(timevalSize)
}

// SendAndRecv performs one receive+send cycle:
//
//  1. a single non-blocking recvmsg into the free part of the inbound arena,
//     decoding the SCM_TIMESTAMP control message when present;
//  2. if bytes arrived, one synchronous call of the receive callback;
//  3. if outbound bytes are pending, a single non-blocking send.
//
// The inbound arena is reset before returning. It reports whether bytes were
// received. EAGAIN is not an error; an orderly shutdown by the peer returns
// api.ErrPeerClosed and other socket failures are api.ErrCodePeer errors.
func (s *Socket) SendAndRecv() (bool, error) {
	if s.fd < 0 {
		return false, api.ErrSocketClosed
	}
	defer s.inbound.reset()

	received, err := s.recv()
	if err != nil {
		return false, err
	}
	if s.outbound.len() > 0 {
		if _, err := s.Flush(); err != nil {
			return received, err
		}
	}
	return received, nil
}

func (s *Socket) recv() (bool, error) {
	n, oobn, _, _, err := unix.Recvmsg(s.fd, s.inbound.free(), s.oob, unix.MSG_DONTWAIT)
	if err != nil {
		if isTransient(err) {
			s.recvBlocked = !errors.Is(err, unix.EINTR)
			return false, nil
		}
		return false, api.WrapError(api.ErrCodePeer, "recvmsg() failed", err).WithContext("fd", s.fd)
	}
	s.recvBlocked = false
	if n == 0 {
		if s.cfg.Protocol == api.ProtocolUDP {
			return false, nil
		}
		return false, api.ErrPeerClosed
	}
	s.inbound.advance(n)

	var kernelTime clock.Nanos
	if s.timestamping {
		kernelTime = kernelTimestamp(s.oob[:oobn])
	}
	userTime := clock.Now()

	if ce := s.logger.Check(zap.DebugLevel, "read socket"); ce != nil {
		ce.Write(
			zap.Int("fd", s.fd),
			zap.Int("len", s.inbound.len()),
			zap.Int64("utime", userTime),
			zap.Int64("ktime", kernelTime),
			zap.Int64("diff", userTime-kernelTime),
		)
	}
	var latency int64
	if kernelTime > 0 {
		latency = userTime - kernelTime
	}
	s.metrics.ObserveReceive(n, latency)

	if s.recvCallback != nil {
		s.recvCallback(s, kernelTime)
	}
	return true, nil
}

// Flush makes one non-blocking attempt to hand pending outbound bytes to the
// kernel. Unsent bytes move to the front of the arena for the next attempt.
func (s *Socket) Flush() (int, error) {
	if s.fd < 0 {
		return 0, api.ErrSocketClosed
	}
	pending := s.outbound.bytes()
	if len(pending) == 0 {
		return 0, nil
	}
	n, err := unix.SendmsgN(s.fd, pending, nil, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
	if err != nil {
		if isTransient(err) {
			s.sendBlocked = !errors.Is(err, unix.EINTR)
			return 0, nil
		}
		return 0, api.WrapError(api.ErrCodePeer, "send() failed", err).WithContext("fd", s.fd)
	}
	s.sendBlocked = n < len(pending)
	s.outbound.consume(n)
	s.metrics.ObserveSend(n)

	if ce := s.logger.Check(zap.DebugLevel, "send socket"); ce != nil {
		ce.Write(zap.Int("fd", s.fd), zap.Int("len", n), zap.Int("pending", s.outbound.len()))
	}
	return n, nil
}

// EnableTimestamps turns on SO_TIMESTAMP for an already open socket.
func (s *Socket) EnableTimestamps() error {
	if s.fd < 0 {
		return api.ErrSocketClosed
	}
	if err := transport.SetSOTimestamp(s.fd); err != nil {
		return api.WrapError(api.ErrCodeSetup, "setSOTimestamp() failed", err)
	}
	s.timestamping = true
	return nil
}

// Join subscribes a UDP socket to an IPv4 multicast group on the interface
// the socket was configured with.
func (s *Socket) Join(group string) error {
	if s.fd < 0 {
		return api.ErrSocketClosed
	}
	local := s.cfg.IP
	if local == "" && s.cfg.Iface != "" {
		local = transport.IfaceIP(s.cfg.Iface)
	}
	if err := transport.Join(s.fd, group, local); err != nil {
		return api.WrapError(api.ErrCodeSetup, "join() failed", err).WithContext("group", group)
	}
	return nil
}

// LocalPort returns the bound local port.
func (s *Socket) LocalPort() (int, error) {
	if s.fd < 0 {
		return 0, api.ErrSocketClosed
	}
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return 0, err
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return in4.Port, nil
	}
	return 0, api.ErrNotSupported
}

// Close releases the descriptor. Closing twice is a no-op.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// kernelTimestamp scans control messages for SCM_TIMESTAMP and converts its
// {seconds, microseconds} payload to nanoseconds. It returns 0 when absent.
func kernelTimestamp(oob []byte) clock.Nanos {
	for len(oob) > 0 {
		hdr, data, rest, err := unix.ParseOneSocketControlMessage(oob)
		if err != nil {
			return 0
		}
		if hdr.Level == unix.SOL_SOCKET && hdr.Type == unix.SCM_TIMESTAMP && len(data) >= timevalSize {
			tv := (*unix.Timeval)(unsafe.Pointer(&data[0]))
			return clock.FromTimeval(int64(tv.Sec), int64(tv.Usec))
		}
		oob = rest
	}
	return 0
}
