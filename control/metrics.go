// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the socket and reactor layer.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters updated by sockets and the reactor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AcceptedConnections prometheus.Counter
	ActiveConnections   prometheus.Gauge
	ReleasedConnections prometheus.Counter
	Disconnects         prometheus.Counter
	BytesReceived       prometheus.Counter
	BytesSent           prometheus.Counter
	ReceiveEvents       prometheus.Counter
	PollEvents          prometheus.Counter
	ReceiveLatency      prometheus.Histogram
}

// NewMetrics creates unregistered collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AcceptedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactor",
			Name:      "accepted_connections_total",
			Help:      "Connections accepted by the reactor.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reactor",
			Name:      "active_connections",
			Help:      "Accepted connections currently registered.",
		}),
		ReleasedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactor",
			Name:      "released_connections_total",
			Help:      "Connections deregistered and closed through Release.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactor",
			Name:      "peer_disconnects_total",
			Help:      "Peer hangups and resets observed on receive.",
		}),
		PollEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactor",
			Name:      "poll_events_total",
			Help:      "Readiness events returned by epoll.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "received_bytes_total",
			Help:      "Bytes received into inbound buffers.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "sent_bytes_total",
			Help:      "Bytes accepted by the kernel from outbound buffers.",
		}),
		ReceiveEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "receive_events_total",
			Help:      "Receives that delivered bytes.",
		}),
		ReceiveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "kernel_to_user_seconds",
			Help:      "Delay between the kernel receive timestamp and user-space pickup.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 20),
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AcceptedConnections,
		m.ActiveConnections,
		m.ReleasedConnections,
		m.Disconnects,
		m.PollEvents,
		m.BytesReceived,
		m.BytesSent,
		m.ReceiveEvents,
		m.ReceiveLatency,
	}
}

// ObserveReceive records one receive of n bytes. latencyNs is skipped when
// the kernel supplied no timestamp.
func (m *Metrics) ObserveReceive(n int, latencyNs int64) {
	if m == nil {
		return
	}
	m.ReceiveEvents.Inc()
	m.BytesReceived.Add(float64(n))
	if latencyNs > 0 {
		m.ReceiveLatency.Observe(float64(latencyNs) / 1e9)
	}
}

// ObserveSend records n bytes handed to the kernel.
func (m *Metrics) ObserveSend(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesSent.Add(float64(n))
}

// ObserveAccept records a newly registered connection.
func (m *Metrics) ObserveAccept() {
	if m == nil {
		return
	}
	m.AcceptedConnections.Inc()
	m.ActiveConnections.Inc()
}

// ObserveRelease records a connection leaving the reactor.
func (m *Metrics) ObserveRelease() {
	if m == nil {
		return
	}
	m.ReleasedConnections.Inc()
	m.ActiveConnections.Dec()
}

// ObserveDisconnect records a peer-initiated error.
func (m *Metrics) ObserveDisconnect() {
	if m == nil {
		return
	}
	m.Disconnects.Inc()
}

// ObservePoll records n readiness events.
func (m *Metrics) ObservePoll(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PollEvents.Add(float64(n))
}
