// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/reactor"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger overrides the logger built from the configured level.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRegisterer registers the server metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.registerer = reg
	}
}

// WithDisconnectCallback observes sockets lost to peer errors. The socket is
// released after cb returns.
func WithDisconnectCallback(cb reactor.DisconnectCallback) ServerOption {
	return func(s *Server) {
		s.onDisconnect = cb
	}
}
