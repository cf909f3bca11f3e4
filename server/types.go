// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/control"
	"github.com/momentics/hioload-lowlat/reactor"
)

// Server is the high-level facade running a reactor on a dedicated, optionally
// pinned, OS thread.
type Server struct {
	cfg     *control.Config
	reactor *reactor.Server
	port    int

	logger     *zap.Logger
	metrics    *control.Metrics
	registerer prometheus.Registerer
	debug      *control.DebugProbes

	onDisconnect reactor.DisconnectCallback

	running atomic.Bool
	cycles  atomic.Uint64
	sockets atomic.Int64
}
