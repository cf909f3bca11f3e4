// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/api"
	"github.com/momentics/hioload-lowlat/clock"
	"github.com/momentics/hioload-lowlat/control"
	"github.com/momentics/hioload-lowlat/internal/transport"
)

// DefaultBufferSize is the default size of each socket arena.
const DefaultBufferSize = 1 << 20

// RecvCallback receives a socket whose Inbound() holds freshly received
// bytes, and the kernel receive timestamp (0 when unavailable). It runs on
// the goroutine that called SendAndRecv and must not retain Inbound().
type RecvCallback func(s *Socket, rxTime clock.Nanos)

// Socket is a non-blocking endpoint owning its descriptor and both arenas.
type Socket struct {
	fd       int
	cfg      api.SocketConfig
	remote   string
	inbound  arena
	outbound arena
	oob      []byte

	recvCallback RecvCallback
	timestamping bool

	recvBlocked bool
	sendBlocked bool

	logger  *zap.Logger
	metrics *control.Metrics
}

// Option customizes a Socket.
type Option func(*Socket)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Socket) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Socket) { s.metrics = m }
}

// WithBufferSizes overrides the inbound and outbound arena sizes.
func WithBufferSizes(inbound, outbound int) Option {
	return func(s *Socket) {
		if inbound > 0 {
			s.inbound = newArena(inbound)
		}
		if outbound > 0 {
			s.outbound = newArena(outbound)
		}
	}
}

// WithRecvCallback sets the receive callback.
func WithRecvCallback(cb RecvCallback) Option {
	return func(s *Socket) { s.recvCallback = cb }
}

// New returns an unconnected Socket; call Connect or use Open.
func New(opts ...Option) *Socket {
	s := &Socket{
		fd:     -1,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inbound.buf == nil {
		s.inbound = newArena(DefaultBufferSize)
	}
	if s.outbound.buf == nil {
		s.outbound = newArena(DefaultBufferSize)
	}
	s.oob = make([]byte, oobSize())
	return s
}

// Open creates a socket described by cfg.
func Open(cfg api.SocketConfig, opts ...Option) (*Socket, error) {
	s := New(opts...)
	if _, err := s.open(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// FromFD wraps an already connected, non-blocking descriptor, typically one
// returned by accept.
func FromFD(fd int, remote string, opts ...Option) *Socket {
	s := New(opts...)
	s.fd = fd
	s.remote = remote
	s.cfg = api.SocketConfig{Protocol: api.ProtocolTCP}
	return s
}

// Connect creates a TCP socket with receive timestamps enabled. An explicit
// ip takes precedence over the address of iface. Listening sockets are bound
// and put into listen mode; connecting sockets start a non-blocking connect.
// Failures are api.ErrCodeSetup errors.
func (s *Socket) Connect(ip, iface string, port int, listening bool) (int, error) {
	return s.open(api.SocketConfig{
		IP:           ip,
		Iface:        iface,
		Port:         port,
		Protocol:     api.ProtocolTCP,
		Listening:    listening,
		Timestamping: true,
	})
}

func (s *Socket) open(cfg api.SocketConfig) (int, error) {
	if s.fd >= 0 {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "socket already open").
			WithContext("fd", s.fd)
	}
	fd, err := transport.CreateSocket(s.logger, cfg)
	if err != nil {
		return -1, err
	}
	s.fd = fd
	s.cfg = cfg
	s.timestamping = cfg.Timestamping
	if !cfg.Listening {
		ip := cfg.IP
		if ip == "" {
			ip = transport.IfaceIP(cfg.Iface)
		}
		s.remote = net.JoinHostPort(ip, strconv.Itoa(cfg.Port))
	}
	return fd, nil
}

// Send appends p to the outbound arena. It copies nothing and returns
// api.ErrOutboundFull when p does not fit in the remaining space.
func (s *Socket) Send(p []byte) error {
	if !s.outbound.append(p) {
		return api.WrapError(api.ErrCodeResourceExhausted, "send", api.ErrOutboundFull).
			WithContext("fd", s.fd).
			WithContext("pending", s.outbound.len()).
			WithContext("len", len(p))
	}
	return nil
}

// Inbound returns the bytes received in the current cycle. Valid only inside
// the receive callback.
func (s *Socket) Inbound() []byte { return s.inbound.bytes() }

// Pending returns the number of outbound bytes not yet accepted by the kernel.
func (s *Socket) Pending() int { return s.outbound.len() }

// OutboundFree returns how many more bytes Send can accept.
func (s *Socket) OutboundFree() int { return s.outbound.cap() - s.outbound.len() }

// Fd returns the descriptor, or -1 when closed.
func (s *Socket) Fd() int { return s.fd }

// Config returns the configuration the socket was opened with.
func (s *Socket) Config() api.SocketConfig { return s.cfg }

// RemoteAddr returns the peer address as host:port, empty for listeners.
func (s *Socket) RemoteAddr() string { return s.remote }

// SetRecvCallback replaces the receive callback.
func (s *Socket) SetRecvCallback(cb RecvCallback) { s.recvCallback = cb }

// Timestamping reports whether kernel receive timestamps are enabled.
func (s *Socket) Timestamping() bool { return s.timestamping }

// RecvBlocked reports whether the last receive attempt found no data.
func (s *Socket) RecvBlocked() bool { return s.recvBlocked }

// SendBlocked reports whether the last flush left bytes the kernel would
// not take.
func (s *Socket) SendBlocked() bool { return s.sendBlocked }
