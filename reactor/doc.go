// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the edge-triggered readiness poller and Server,
// the single-threaded reactor that owns a listening socket, accepts
// connections and dispatches receive+send cycles to ready sockets.
//
// Every notification is edge-triggered, so work is drained to EAGAIN: the
// accept loop runs until the listener reports no pending connection, and a
// socket keeps its read-ready (write-ready) membership until a receive
// (flush) attempt reports EAGAIN. Poll and SendAndRecv never block and must
// be called from one goroutine.
package reactor
