// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket setup primitives shared by the socket wrapper and the reactor:
// address resolution, descriptor creation and option toggles
// (non-blocking, TCP_NODELAY, SO_TIMESTAMP, multicast membership).
// Linux implementations live behind build tags; other platforms report
// api.ErrNotSupported.

package transport
