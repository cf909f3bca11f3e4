// File: reactor/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-threaded edge-triggered reactor owning a listener and the sockets
// it accepts.

package reactor

import (
	"errors"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/api"
	"github.com/momentics/hioload-lowlat/control"
	"github.com/momentics/hioload-lowlat/transport/tcp"
)

// DisconnectCallback is invoked once when a socket reports a peer error or
// orderly shutdown. The socket stays registered until Release is called.
type DisconnectCallback func(s *tcp.Socket, err error)

// Server accepts TCP connections and drives receive+send cycles on the
// sockets the poller reports ready. All methods must be called from the
// goroutine that owns the reactor.
type Server struct {
	poller   Poller
	listener *tcp.Socket

	sockets map[int]*tcp.Socket

	readReady  []*tcp.Socket
	writeReady []*tcp.Socket
	inRead     map[*tcp.Socket]struct{}
	inWrite    map[*tcp.Socket]struct{}

	events []Event

	// acceptPending stays set until the listener backlog was drained to
	// EAGAIN, so an interrupted drain resumes on the next Poll.
	acceptPending bool

	// releases holds sockets whose removal is deferred until no set is
	// being iterated.
	releases  *queue.Queue
	releasing map[*tcp.Socket]struct{}
	iterating bool

	recvCallback       tcp.RecvCallback
	disconnectCallback DisconnectCallback

	inboundSize  int
	outboundSize int
	timestamping bool

	logger  *zap.Logger
	metrics *control.Metrics
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors, shared with accepted sockets.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBufferSizes sets the arena sizes of accepted sockets.
func WithBufferSizes(inbound, outbound int) Option {
	return func(s *Server) {
		s.inboundSize = inbound
		s.outboundSize = outbound
	}
}

// WithDisconnectCallback sets the handler for sockets that report a peer
// error.
func WithDisconnectCallback(cb DisconnectCallback) Option {
	return func(s *Server) { s.disconnectCallback = cb }
}

// WithTimestamping controls SO_TIMESTAMP on accepted sockets. Enabled by
// default.
func WithTimestamping(enabled bool) Option {
	return func(s *Server) { s.timestamping = enabled }
}

// NewServer creates a Server whose accepted sockets deliver received bytes
// to cb. Call Listen before Poll.
func NewServer(cb tcp.RecvCallback, opts ...Option) *Server {
	s := &Server{
		sockets:      make(map[int]*tcp.Socket),
		inRead:       make(map[*tcp.Socket]struct{}),
		inWrite:      make(map[*tcp.Socket]struct{}),
		releases:     queue.New(),
		releasing:    make(map[*tcp.Socket]struct{}),
		recvCallback: cb,
		inboundSize:  tcp.DefaultBufferSize,
		outboundSize: tcp.DefaultBufferSize,
		timestamping: true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen opens a listening TCP socket on the address of iface.
func (s *Server) Listen(iface string, port int) error {
	return s.ListenAddr("", iface, port)
}

// ListenAddr opens a listening TCP socket. An explicit ip takes precedence
// over iface; with neither, the listener binds all interfaces. Port 0 picks
// an ephemeral port, see Port.
func (s *Server) ListenAddr(ip, iface string, port int) error {
	if s.poller != nil {
		return api.ErrAlreadyListening
	}
	poller, err := NewPoller()
	if err != nil {
		return api.WrapError(api.ErrCodeSetup, "create poller", err)
	}
	listener := tcp.New(tcp.WithLogger(s.logger), tcp.WithBufferSizes(1, 1))
	if _, err := listener.Connect(ip, iface, port, true); err != nil {
		poller.Close()
		return err
	}
	if err := poller.Register(listener.Fd(), EventRead); err != nil {
		listener.Close()
		poller.Close()
		return api.WrapError(api.ErrCodeSetup, "register listener", err)
	}
	s.poller = poller
	s.listener = listener

	bound, _ := listener.LocalPort()
	s.logger.Info("reactor listening",
		zap.String("ip", ip),
		zap.String("iface", iface),
		zap.Int("port", bound),
	)
	return nil
}

// Poll performs one non-blocking readiness check. New connections are
// accepted until none remain and each enters the read-ready set; readable
// or failed sockets join the read-ready set and writable ones the
// write-ready set. Membership is idempotent.
//
// An accept failure leaves the drain pending for the next Poll. Failures
// coded api.ErrCodeResourceExhausted (descriptor limits) are transient.
func (s *Server) Poll() error {
	if s.poller == nil {
		return api.ErrNotListening
	}
	s.applyReleases()

	need := 1 + len(s.sockets)
	if cap(s.events) < need {
		s.events = make([]Event, need)
	}
	events := s.events[:need]

	n, err := s.poller.Wait(events)
	if err != nil {
		return api.WrapError(api.ErrCodeInternal, "poll", err)
	}
	s.metrics.ObservePoll(n)

	lfd := s.listener.Fd()
	for _, ev := range events[:n] {
		if ev.Fd == lfd {
			if ev.Events&EventError != 0 {
				s.logger.Warn("listener reported error condition")
			}
			if ev.Events&EventRead != 0 {
				s.acceptPending = true
			}
			continue
		}
		sock, ok := s.sockets[ev.Fd]
		if !ok {
			continue
		}
		if ev.Events&(EventRead|EventError) != 0 {
			s.markReadReady(sock)
		}
		if ev.Events&EventWrite != 0 {
			s.markWriteReady(sock)
		}
	}

	if s.acceptPending {
		return s.acceptAll()
	}
	return nil
}

// acceptAll drains the listener backlog. A connection that cannot be
// registered is dropped and the drain continues.
func (s *Server) acceptAll() error {
	for {
		fd, remote, err := acceptConn(s.listener.Fd())
		if err != nil {
			if errors.Is(err, errNoPendingConn) {
				s.acceptPending = false
				return nil
			}
			if ce := s.logger.Check(zap.DebugLevel, "accept failed, backlog kept"); ce != nil {
				ce.Write(zap.Error(err))
			}
			return err
		}
		if err := s.register(fd, remote); err != nil {
			s.logger.Warn("connection dropped",
				zap.String("remote", remote),
				zap.Error(err),
			)
		}
	}
}

func (s *Server) register(fd int, remote string) error {
	sock := tcp.FromFD(fd, remote,
		tcp.WithLogger(s.logger),
		tcp.WithMetrics(s.metrics),
		tcp.WithBufferSizes(s.inboundSize, s.outboundSize),
		tcp.WithRecvCallback(s.recvCallback),
	)
	if s.timestamping {
		if err := sock.EnableTimestamps(); err != nil {
			sock.Close()
			return err
		}
	}
	if err := s.poller.Register(fd, EventRead|EventWrite); err != nil {
		sock.Close()
		return api.WrapError(api.ErrCodeSetup, "register connection", err).
			WithContext("remote", remote)
	}
	s.sockets[fd] = sock
	s.markReadReady(sock)
	s.metrics.ObserveAccept()
	s.logger.Info("connection accepted",
		zap.Int("fd", fd),
		zap.String("remote", remote),
	)
	return nil
}

// SendAndRecv runs one cycle on every read-ready socket, then flushes
// pending output on write-ready sockets. A socket leaves the read-ready set
// once a receive reports EAGAIN and the write-ready set once a flush does.
// Sockets reporting a peer error leave both sets and are handed to the
// disconnect callback.
func (s *Server) SendAndRecv() {
	s.iterating = true

	kept := s.readReady[:0]
	for _, sock := range s.readReady {
		if s.isReleasing(sock) {
			delete(s.inRead, sock)
			continue
		}
		if _, err := sock.SendAndRecv(); err != nil {
			delete(s.inRead, sock)
			s.disconnect(sock, err)
			continue
		}
		if sock.RecvBlocked() {
			delete(s.inRead, sock)
			continue
		}
		kept = append(kept, sock)
	}
	clearTail(s.readReady, len(kept))
	s.readReady = kept

	keptW := s.writeReady[:0]
	for _, sock := range s.writeReady {
		if s.isReleasing(sock) {
			delete(s.inWrite, sock)
			continue
		}
		if sock.Pending() > 0 {
			if _, err := sock.Flush(); err != nil {
				delete(s.inWrite, sock)
				s.disconnect(sock, err)
				continue
			}
		}
		if sock.SendBlocked() {
			delete(s.inWrite, sock)
			continue
		}
		keptW = append(keptW, sock)
	}
	clearTail(s.writeReady, len(keptW))
	s.writeReady = keptW

	s.iterating = false
	s.applyReleases()
}

func (s *Server) disconnect(sock *tcp.Socket, err error) {
	s.removeFrom(&s.writeReady, s.inWrite, sock)
	s.metrics.ObserveDisconnect()
	if s.disconnectCallback != nil {
		s.disconnectCallback(sock, err)
		return
	}
	s.logger.Warn("connection lost",
		zap.Int("fd", sock.Fd()),
		zap.String("remote", sock.RemoteAddr()),
		zap.Error(err),
	)
}

// Release unregisters and closes an accepted socket. Inside SendAndRecv,
// including from callbacks, the removal is queued and applied once the
// cycle completes.
func (s *Server) Release(sock *tcp.Socket) {
	if sock == nil || s.isReleasing(sock) {
		return
	}
	if cur, ok := s.sockets[sock.Fd()]; !ok || cur != sock {
		return
	}
	s.releasing[sock] = struct{}{}
	s.releases.Add(sock)
	if !s.iterating {
		s.applyReleases()
	}
}

func (s *Server) isReleasing(sock *tcp.Socket) bool {
	_, ok := s.releasing[sock]
	return ok
}

func (s *Server) applyReleases() {
	for s.releases.Length() > 0 {
		sock := s.releases.Remove().(*tcp.Socket)
		delete(s.releasing, sock)
		s.remove(sock)
	}
}

func (s *Server) remove(sock *tcp.Socket) {
	fd := sock.Fd()
	if err := s.poller.Unregister(fd); err != nil {
		s.logger.Debug("unregister failed", zap.Int("fd", fd), zap.Error(err))
	}
	delete(s.sockets, fd)
	s.removeFrom(&s.readReady, s.inRead, sock)
	s.removeFrom(&s.writeReady, s.inWrite, sock)
	if err := sock.Close(); err != nil {
		s.logger.Debug("close failed", zap.Int("fd", fd), zap.Error(err))
	}
	s.metrics.ObserveRelease()
	s.logger.Info("connection released",
		zap.Int("fd", fd),
		zap.String("remote", sock.RemoteAddr()),
	)
}

func (s *Server) markReadReady(sock *tcp.Socket) {
	if _, ok := s.inRead[sock]; ok {
		return
	}
	s.inRead[sock] = struct{}{}
	s.readReady = append(s.readReady, sock)
}

func (s *Server) markWriteReady(sock *tcp.Socket) {
	if _, ok := s.inWrite[sock]; ok {
		return
	}
	s.inWrite[sock] = struct{}{}
	s.writeReady = append(s.writeReady, sock)
}

// removeFrom drops sock from a ready set. Not used while that set is being
// iterated.
func (s *Server) removeFrom(list *[]*tcp.Socket, set map[*tcp.Socket]struct{}, sock *tcp.Socket) {
	if _, ok := set[sock]; !ok {
		return
	}
	delete(set, sock)
	l := *list
	for i, cur := range l {
		if cur == sock {
			copy(l[i:], l[i+1:])
			l[len(l)-1] = nil
			*list = l[:len(l)-1]
			return
		}
	}
}

func clearTail(l []*tcp.Socket, from int) {
	for i := from; i < len(l); i++ {
		l[i] = nil
	}
}

// Port returns the bound listening port.
func (s *Server) Port() (int, error) {
	if s.listener == nil {
		return 0, api.ErrNotListening
	}
	return s.listener.LocalPort()
}

// Busy reports whether the next SendAndRecv has work: a read-ready socket
// or pending output on a write-ready one.
func (s *Server) Busy() bool {
	if len(s.readReady) > 0 {
		return true
	}
	for _, sock := range s.writeReady {
		if sock.Pending() > 0 {
			return true
		}
	}
	return false
}

// Sockets returns the number of registered accepted sockets.
func (s *Server) Sockets() int { return len(s.sockets) }

// ReadReady returns a snapshot of the read-ready set.
func (s *Server) ReadReady() []*tcp.Socket {
	return append([]*tcp.Socket(nil), s.readReady...)
}

// WriteReady returns a snapshot of the write-ready set.
func (s *Server) WriteReady() []*tcp.Socket {
	return append([]*tcp.Socket(nil), s.writeReady...)
}

// Close releases every accepted socket, the listener and the poller.
func (s *Server) Close() error {
	if s.poller == nil {
		return nil
	}
	for _, sock := range s.sockets {
		s.Release(sock)
	}
	s.applyReleases()

	var errs []error
	if err := s.listener.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.poller.Close(); err != nil {
		errs = append(errs, err)
	}
	s.poller = nil
	s.listener = nil
	s.logger.Info("reactor closed")
	return errors.Join(errs...)
}
