// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor loop on a dedicated OS thread.

package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-lowlat/affinity"
	"github.com/momentics/hioload-lowlat/api"
)

// Run drives Poll and SendAndRecv on a thread pinned to the configured core
// until ctx is cancelled, then closes the reactor. It returns an error if the
// thread cannot be pinned or a poll fails. A Server runs at most once.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var loopErr error
	th, err := affinity.Go(s.cfg.Reactor.CoreID, "reactor", func() {
		loopErr = s.loop(ctx)
	}, s.logger)
	if err != nil {
		s.reactor.Close()
		return err
	}
	th.Wait()

	s.debug.Log(s.logger, "reactor stopped")
	if err := s.reactor.Close(); err != nil {
		s.logger.Warn("reactor close failed", zap.Error(err))
	}
	return loopErr
}

func (s *Server) loop(ctx context.Context) error {
	idle := s.cfg.Reactor.IdleSleep
	degraded := false
	for ctx.Err() == nil {
		if err := s.reactor.Poll(); err != nil {
			if fatal(err) {
				s.logger.Error("poll failed", zap.Error(err))
				return err
			}
			if !degraded {
				s.logger.Warn("accept degraded, serving existing connections", zap.Error(err))
			}
			degraded = true
		} else if degraded {
			s.logger.Info("accept recovered")
			degraded = false
		}
		s.reactor.SendAndRecv()

		s.cycles.Add(1)
		s.sockets.Store(int64(s.reactor.Sockets()))

		if idle > 0 && !s.reactor.Busy() {
			time.Sleep(idle)
		}
	}
	return nil
}

// fatal reports whether a Poll error must stop the reactor. Descriptor
// exhaustion clears once sockets are released, so the loop keeps serving.
func fatal(err error) bool {
	return api.CodeOf(err) != api.ErrCodeResourceExhausted
}

// Close releases the listener when Run was never called.
func (s *Server) Close() error {
	if s.running.Load() {
		return nil
	}
	return s.reactor.Close()
}
