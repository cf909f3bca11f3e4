// Package control
// Author: momentics <momentics@gmail.com>
//
// Ambient runtime layer for hioload-lowlat: configuration loading, logger
// construction, Prometheus metrics and debug probes.
//
// Nothing here sits on the hot path except metric increments; sockets and the
// reactor receive a *zap.Logger and *Metrics through options and never touch
// process-wide state.
package control
