// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named state probes dumped into the log on demand, e.g. ready-set sizes of
// a reactor or depth of a handoff ring.

package control

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook, replacing any previous one.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// Log writes one line with every probe as a field, in name order.
func (dp *DebugProbes) Log(logger *zap.Logger, msg string) {
	state := dp.DumpState()
	names := make([]string, 0, len(state))
	for k := range state {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]zap.Field, 0, len(names))
	for _, k := range names {
		fields = append(fields, zap.Any(k, state[k]))
	}
	logger.Info(msg, fields...)
}
