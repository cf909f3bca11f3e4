// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/control"
	"github.com/momentics/hioload-lowlat/core/concurrency"
	"github.com/momentics/hioload-lowlat/reactor"
	"github.com/momentics/hioload-lowlat/transport/tcp"
)

// ErrAlreadyRunning is returned by a second concurrent Run.
var ErrAlreadyRunning = errors.New("server already running")

// New validates cfg, builds the logger and metrics, and starts listening.
// Accepted sockets deliver received bytes to cb on the reactor thread. A nil
// cfg means control.DefaultConfig().
func New(cfg *control.Config, cb tcp.RecvCallback, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:   cfg,
		debug: control.NewDebugProbes(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		logger, err := control.NewLogger(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		s.logger = logger
	}

	s.metrics = control.NewMetrics(cfg.Metrics.Namespace)
	if s.registerer != nil {
		if err := s.metrics.Register(s.registerer); err != nil {
			return nil, err
		}
	}

	s.reactor = reactor.NewServer(cb,
		reactor.WithLogger(s.logger),
		reactor.WithMetrics(s.metrics),
		reactor.WithBufferSizes(cfg.Socket.InboundSize, cfg.Socket.OutboundSize),
		reactor.WithTimestamping(cfg.Listen.Timestamping),
		reactor.WithDisconnectCallback(s.disconnected),
	)
	if err := s.reactor.ListenAddr(cfg.Listen.IP, cfg.Listen.Iface, cfg.Listen.Port); err != nil {
		return nil, err
	}
	port, err := s.reactor.Port()
	if err != nil {
		s.reactor.Close()
		return nil, err
	}
	s.port = port

	control.RegisterPlatformProbes(s.debug)
	s.debug.RegisterProbe("reactor.port", func() any { return s.port })
	s.debug.RegisterProbe("reactor.sockets", func() any { return s.sockets.Load() })
	s.debug.RegisterProbe("reactor.cycles", func() any { return s.cycles.Load() })
	s.debug.RegisterProbe("reactor.core", func() any { return s.cfg.Reactor.CoreID })
	return s, nil
}

// disconnected forwards to the user callback and releases the socket.
func (s *Server) disconnected(sock *tcp.Socket, err error) {
	if s.onDisconnect != nil {
		s.onDisconnect(sock, err)
	} else {
		s.logger.Info("peer disconnected",
			zap.String("remote", sock.RemoteAddr()),
			zap.Error(err),
		)
	}
	s.reactor.Release(sock)
}

// Port returns the bound listening port.
func (s *Server) Port() int { return s.port }

// Config returns the effective configuration.
func (s *Server) Config() *control.Config { return s.cfg }

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger { return s.logger }

// Metrics returns the server collectors.
func (s *Server) Metrics() *control.Metrics { return s.metrics }

// Debug exposes the runtime probes.
func (s *Server) Debug() *control.DebugProbes { return s.debug }

// NewRing returns a handoff ring sized by the configured queue capacity.
func NewRing[T any](cfg *control.Config) *concurrency.RingBuffer[T] {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	return concurrency.NewRingBuffer[T](cfg.Queue.Capacity)
}
