// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity and pinned thread launch.
// Platform-specific implementations are located in separate files guarded by
// build tags.

package affinity

import (
	"runtime"

	"go.uber.org/zap"
)

// SetAffinity pins the calling OS thread to a given logical CPU. The caller
// must hold runtime.LockOSThread. On unsupported platforms returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Thread is a goroutine locked to its own OS thread, optionally pinned.
type Thread struct {
	name string
	core int
	done chan struct{}
}

// Go runs fn on a dedicated OS thread pinned to coreID (a negative coreID
// leaves placement to the OS). It returns once the thread is running, or
// with the pinning error if it could not be placed, in which case fn never
// runs.
func Go(coreID int, name string, fn func(), logger *zap.Logger) (*Thread, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Thread{name: name, core: coreID, done: make(chan struct{})}
	started := make(chan error, 1)

	go func() {
		defer close(t.done)
		runtime.LockOSThread()
		pinned := false
		// A pinned thread is discarded on exit rather than returned to the
		// scheduler pool with a narrowed CPU mask.
		defer func() {
			if !pinned {
				runtime.UnlockOSThread()
			}
		}()

		if coreID >= 0 {
			if err := SetAffinity(coreID); err != nil {
				started <- err
				return
			}
			pinned = true
		}
		started <- nil
		logger.Info("thread started", zap.String("name", name), zap.Int("core", coreID))
		fn()
		logger.Info("thread finished", zap.String("name", name))
	}()

	if err := <-started; err != nil {
		<-t.done
		logger.Error("thread pinning failed",
			zap.String("name", name),
			zap.Int("core", coreID),
			zap.Error(err),
		)
		return nil, err
	}
	return t, nil
}

// Name returns the thread name given to Go.
func (t *Thread) Name() string { return t.name }

// Core returns the requested core, negative when unpinned.
func (t *Thread) Core() int { return t.core }

// Done is closed once fn returns.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Wait blocks until fn returns.
func (t *Thread) Wait() { <-t.done }
