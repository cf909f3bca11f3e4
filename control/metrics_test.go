package control_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-lowlat/control"
)

func TestMetrics_RegisterAndObserve(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := control.NewMetrics("test")
	require.NoError(t, m.Register(reg))

	m.ObserveAccept()
	m.ObserveAccept()
	m.ObserveRelease()
	m.ObserveReceive(100, 2500)
	m.ObserveReceive(50, 0)
	m.ObserveSend(40)
	m.ObserveSend(0)
	m.ObserveDisconnect()
	m.ObservePoll(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AcceptedConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReleasedConnections))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceiveEvents))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.BytesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Disconnects))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PollEvents))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReceiveLatency))
	assert.Contains(t, m.ReceiveEvents.Desc().String(), "Receives that delivered bytes.")

	// Registering twice on the same registry is rejected.
	assert.Error(t, m.Register(reg))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *control.Metrics
	assert.NotPanics(t, func() {
		m.ObserveAccept()
		m.ObserveRelease()
		m.ObserveReceive(1, 1)
		m.ObserveSend(1)
		m.ObserveDisconnect()
		m.ObservePoll(1)
	})
}
