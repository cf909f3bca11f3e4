//go:build linux

package reactor_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
	"github.com/momentics/hioload-lowlat/clock"
	"github.com/momentics/hioload-lowlat/control"
	"github.com/momentics/hioload-lowlat/core/concurrency"
	"github.com/momentics/hioload-lowlat/reactor"
	"github.com/momentics/hioload-lowlat/transport/tcp"
)

const testTimeout = 5 * time.Second

func listen(t *testing.T, cb tcp.RecvCallback, opts ...reactor.Option) (*reactor.Server, string) {
	t.Helper()
	opts = append([]reactor.Option{
		reactor.WithLogger(zaptest.NewLogger(t)),
		reactor.WithBufferSizes(64<<10, 64<<10),
	}, opts...)
	srv := reactor.NewServer(cb, opts...)
	require.NoError(t, srv.Listen("lo", 0))
	t.Cleanup(func() { _ = srv.Close() })

	port, err := srv.Port()
	require.NoError(t, err)
	require.NotZero(t, port)
	return srv, net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// spin runs reactor cycles until done returns true.
func spin(t *testing.T, srv *reactor.Server, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !done() {
		require.NoError(t, srv.Poll())
		srv.SendAndRecv()
		require.True(t, time.Now().Before(deadline), "reactor timed out")
	}
}

func TestServer_AcceptRegistersOnce(t *testing.T) {
	srv, addr := listen(t, nil)
	dial(t, addr)

	deadline := time.Now().Add(testTimeout)
	for srv.Sockets() == 0 {
		require.NoError(t, srv.Poll())
		require.True(t, time.Now().Before(deadline), "accept timed out")
	}
	assert.Equal(t, 1, srv.Sockets())
	require.Len(t, srv.ReadReady(), 1)
	sock := srv.ReadReady()[0]
	assert.True(t, sock.Timestamping())
	assert.NotEmpty(t, sock.RemoteAddr())

	// Further polls never duplicate membership.
	for i := 0; i < 3; i++ {
		require.NoError(t, srv.Poll())
	}
	assert.Equal(t, 1, srv.Sockets())
	assert.Len(t, srv.ReadReady(), 1)
	assert.Len(t, srv.WriteReady(), 1, "initial EPOLLOUT edge")
}

func TestServer_AcceptsBacklogInOnePoll(t *testing.T) {
	srv, addr := listen(t, nil)
	for i := 0; i < 3; i++ {
		dial(t, addr)
	}
	deadline := time.Now().Add(testTimeout)
	for srv.Sockets() < 3 {
		require.NoError(t, srv.Poll())
		require.True(t, time.Now().Before(deadline), "accept timed out")
	}
	assert.Equal(t, 3, srv.Sockets())
	assert.Len(t, srv.ReadReady(), 3)
}

func TestServer_ReadReadyDrainsToEAGAIN(t *testing.T) {
	var received []byte
	srv, addr := listen(t, func(s *tcp.Socket, _ clock.Nanos) {
		received = append(received, s.Inbound()...)
	})
	conn := dial(t, addr)

	spin(t, srv, func() bool { return srv.Sockets() == 1 })
	// Nothing was sent, so the first receive blocks and the socket leaves the set.
	spin(t, srv, func() bool { return len(srv.ReadReady()) == 0 })

	_, err := conn.Write([]byte("tick"))
	require.NoError(t, err)
	spin(t, srv, func() bool { return string(received) == "tick" })
}

func TestServer_Echo(t *testing.T) {
	var rxTimes []clock.Nanos
	srv, addr := listen(t, func(s *tcp.Socket, rx clock.Nanos) {
		rxTimes = append(rxTimes, rx)
		require.NoError(t, s.Send(s.Inbound()))
	})
	conn := dial(t, addr)

	_, err := conn.Write([]byte("ping"))
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 4)
		_ = conn.SetReadDeadline(time.Now().Add(testTimeout))
		n, _ := readFull(conn, buf)
		got <- string(buf[:n])
	}()

	var reply string
	spin(t, srv, func() bool {
		select {
		case reply = <-got:
			return true
		default:
			return false
		}
	})
	assert.Equal(t, "ping", reply)
	assert.NotEmpty(t, rxTimes)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		n, err := conn.Read(buf[off:])
		off += n
		if err != nil {
			return off, err
		}
	}
	return off, nil
}

func TestServer_DisconnectAndRelease(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := control.NewMetrics("test")
	require.NoError(t, m.Register(reg))

	var (
		srv       *reactor.Server
		lostErr   error
		lostCalls int
	)
	srv, addr := listen(t, nil,
		reactor.WithMetrics(m),
		reactor.WithDisconnectCallback(func(s *tcp.Socket, err error) {
			lostCalls++
			lostErr = err
			srv.Release(s)
		}),
	)
	conn := dial(t, addr)
	spin(t, srv, func() bool { return srv.Sockets() == 1 })
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))

	require.NoError(t, conn.Close())
	spin(t, srv, func() bool { return lostCalls > 0 })

	assert.Equal(t, 1, lostCalls)
	assert.True(t, api.IsPeer(lostErr))
	assert.Zero(t, srv.Sockets())
	assert.Empty(t, srv.ReadReady())
	assert.Empty(t, srv.WriteReady())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcceptedConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReleasedConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Disconnects))
	assert.Zero(t, testutil.ToFloat64(m.ActiveConnections))

	// Stale releases are ignored.
	srv.Release(nil)
	require.NoError(t, srv.Poll())
	assert.Zero(t, srv.Sockets())
}

func TestServer_ResetByPeer(t *testing.T) {
	var (
		srv     *reactor.Server
		lostErr error
		lost    int
	)
	srv, addr := listen(t, nil,
		reactor.WithDisconnectCallback(func(s *tcp.Socket, err error) {
			lost++
			lostErr = err
			srv.Release(s)
		}),
	)
	conn := dial(t, addr)
	spin(t, srv, func() bool { return srv.Sockets() == 1 })

	// Zero linger turns Close into a RST.
	require.NoError(t, conn.(*net.TCPConn).SetLinger(0))
	require.NoError(t, conn.Close())
	spin(t, srv, func() bool { return lost > 0 })

	assert.Equal(t, 1, lost)
	assert.Equal(t, api.ErrCodePeer, api.CodeOf(lostErr))
	assert.True(t, api.IsPeer(lostErr))
	assert.NotErrorIs(t, lostErr, api.ErrPeerClosed)
	assert.ErrorIs(t, lostErr, unix.ECONNRESET)
	assert.Zero(t, srv.Sockets())
	assert.Empty(t, srv.ReadReady())
	assert.Empty(t, srv.WriteReady())
}

// lowestFreeFd returns the descriptor the next open would get.
func lowestFreeFd(t *testing.T) int {
	t.Helper()
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	require.NoError(t, unix.Close(fd))
	return fd
}

func TestServer_AcceptResumesAfterDescriptorLimit(t *testing.T) {
	srv, addr := listen(t, nil)
	dial(t, addr)
	dial(t, addr)

	var saved unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &saved))
	t.Cleanup(func() { _ = unix.Setrlimit(unix.RLIMIT_NOFILE, &saved) })

	limited := unix.Rlimit{Cur: uint64(lowestFreeFd(t)), Max: saved.Max}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &limited))
	err := srv.Poll()
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &saved))

	require.Error(t, err)
	assert.Equal(t, api.ErrCodeResourceExhausted, api.CodeOf(err))
	assert.ErrorIs(t, err, api.ErrResourceExhausted)
	assert.True(t, errors.Is(err, unix.EMFILE))
	assert.Zero(t, srv.Sockets())

	// No new connection arrives, so only the kept drain can pick up the backlog.
	deadline := time.Now().Add(testTimeout)
	for srv.Sockets() < 2 {
		require.NoError(t, srv.Poll())
		srv.SendAndRecv()
		require.True(t, time.Now().Before(deadline), "backlog stranded")
	}
	assert.Equal(t, 2, srv.Sockets())
	require.NoError(t, srv.Poll())
	assert.Equal(t, 2, srv.Sockets())
}

func TestServer_ReleaseOutsideCycle(t *testing.T) {
	srv, addr := listen(t, nil)
	dial(t, addr)
	spin(t, srv, func() bool { return srv.Sockets() == 1 })

	require.NoError(t, srv.Poll())
	srv.SendAndRecv()
	ready := srv.WriteReady()
	require.Len(t, ready, 1)

	srv.Release(ready[0])
	assert.Zero(t, srv.Sockets())
	assert.Empty(t, srv.WriteReady())
	assert.Equal(t, -1, ready[0].Fd())

	srv.Release(ready[0])
	assert.Zero(t, srv.Sockets())
}

func TestServer_RingHandoff(t *testing.T) {
	ring := concurrency.NewRingBuffer[[]byte](64)
	srv, addr := listen(t, func(s *tcp.Socket, _ clock.Nanos) {
		msg := append([]byte(nil), s.Inbound()...)
		if !ring.Enqueue(msg) {
			t.Error("ring full")
		}
	})
	conn := dial(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []byte
	)
	consumed := make(chan error, 1)
	go func() {
		consumed <- concurrency.Consume[[]byte](ctx, ring, func(b *[]byte) {
			mu.Lock()
			seen = append(seen, *b...)
			mu.Unlock()
		})
	}()

	_, err := conn.Write([]byte("market-data"))
	require.NoError(t, err)
	spin(t, srv, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return string(seen) == "market-data"
	})
	cancel()
	assert.ErrorIs(t, <-consumed, context.Canceled)
}

func TestServer_LifecycleErrors(t *testing.T) {
	srv := reactor.NewServer(nil, reactor.WithLogger(zaptest.NewLogger(t)))
	assert.ErrorIs(t, srv.Poll(), api.ErrNotListening)
	_, err := srv.Port()
	assert.ErrorIs(t, err, api.ErrNotListening)

	err = srv.Listen("no-such-iface0", 0)
	require.Error(t, err)
	assert.True(t, api.IsSetup(err))

	require.NoError(t, srv.ListenAddr("127.0.0.1", "", 0))
	assert.ErrorIs(t, srv.Listen("lo", 0), api.ErrAlreadyListening)
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
}
