// File: core/concurrency/consumer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Consumer-side polling loop with adaptive backoff. The ring has no wake-up
// mechanism, so waiting for data means polling Size/PeekReadSlot.

package concurrency

import (
	"context"
	"runtime"
	"time"
)

const (
	spinBudget = 256
	maxBackoff = time.Millisecond
)

// Consume drains r on the calling goroutine until ctx is done, invoking fn
// for every element in FIFO order. The slot passed to fn is only valid for
// the duration of the call. The caller becomes the ring's sole consumer.
func Consume[T any](ctx context.Context, r *RingBuffer[T], fn func(*T)) error {
	var b backoff
	for {
		if slot := r.PeekReadSlot(); slot != nil {
			fn(slot)
			r.CommitRead()
			b.reset()
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.wait()
	}
}

// backoff spins first, then yields, then sleeps with exponential growth.
type backoff struct {
	misses int
	sleep  time.Duration
}

func (b *backoff) reset() {
	b.misses = 0
	b.sleep = 0
}

func (b *backoff) wait() {
	b.misses++
	switch {
	case b.misses < spinBudget:
		return
	case b.misses < 2*spinBudget:
		runtime.Gosched()
		return
	}
	if b.sleep == 0 {
		b.sleep = time.Microsecond
	} else if b.sleep < maxBackoff {
		b.sleep *= 2
		if b.sleep > maxBackoff {
			b.sleep = maxBackoff
		}
	}
	time.Sleep(b.sleep)
}
