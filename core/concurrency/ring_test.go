package concurrency

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(t *testing.T, r *RingBuffer[int], v int) {
	t.Helper()
	slot, ok := r.ReserveWriteSlot()
	require.True(t, ok, "ring unexpectedly full writing %d", v)
	*slot = v
	r.CommitWrite()
}

func pop(t *testing.T, r *RingBuffer[int]) int {
	t.Helper()
	slot := r.PeekReadSlot()
	require.NotNil(t, slot, "ring unexpectedly empty")
	v := *slot
	r.CommitRead()
	return v
}

func TestRingBuffer_SizeAfterWritesAndReads(t *testing.T) {
	const n = 8
	for k := 0; k <= n; k++ {
		for j := 0; j <= k; j++ {
			r := NewRingBuffer[int](n)
			for i := 0; i < k; i++ {
				push(t, r, i)
			}
			assert.Equal(t, k, r.Size())
			for i := 0; i < j; i++ {
				assert.Equal(t, i, pop(t, r))
			}
			assert.Equal(t, k-j, r.Size())
		}
	}
}

func TestRingBuffer_PeekDoesNotAdvance(t *testing.T) {
	r := NewRingBuffer[string](2)
	assert.Nil(t, r.PeekReadSlot())

	slot, ok := r.ReserveWriteSlot()
	require.True(t, ok)
	*slot = "a"
	r.CommitWrite()

	assert.Equal(t, "a", *r.PeekReadSlot())
	assert.Equal(t, "a", *r.PeekReadSlot())
	assert.Equal(t, 1, r.Size())
}

func TestRingBuffer_RejectsWhenFull(t *testing.T) {
	r := NewRingBuffer[int](3)
	for i := 1; i <= 3; i++ {
		push(t, r, i)
	}
	slot, ok := r.ReserveWriteSlot()
	assert.False(t, ok)
	assert.Nil(t, slot)
	assert.False(t, r.Enqueue(4))
	assert.Equal(t, 3, r.Size())

	// Oldest element survives.
	assert.Equal(t, 1, pop(t, r))
	assert.True(t, r.Enqueue(4))
	assert.Equal(t, []int{2, 3, 4}, []int{pop(t, r), pop(t, r), pop(t, r)})
}

func TestRingBuffer_OverflowKeepsSizeAtCapacity(t *testing.T) {
	const n = 5
	r := NewRingBuffer[int](n)
	accepted := 0
	for i := 0; i < n+1; i++ {
		if r.Enqueue(i) {
			accepted++
		}
	}
	assert.Equal(t, n, accepted)
	assert.Equal(t, n, r.Size())
	assert.Equal(t, 0, pop(t, r), "oldest element must not be overwritten")
}

func TestRingBuffer_CapacityFourScenario(t *testing.T) {
	r := NewRingBuffer[int](4)
	push(t, r, 10)
	push(t, r, 20)
	push(t, r, 30)
	require.Equal(t, 3, r.Size())

	assert.Equal(t, 10, pop(t, r))
	require.Equal(t, 2, r.Size())

	push(t, r, 40)
	push(t, r, 50)
	assert.Equal(t, 4, r.Size())

	// A fifth pending element is rejected; 20 is still readable.
	assert.False(t, r.Enqueue(60))
	assert.Equal(t, 20, *r.PeekReadSlot())
	assert.Equal(t, []int{20, 30, 40, 50}, []int{pop(t, r), pop(t, r), pop(t, r), pop(t, r)})
	assert.Equal(t, 0, r.Size())
}

func TestRingBuffer_WrapAround(t *testing.T) {
	r := NewRingBuffer[int](3)
	for i := 0; i < 100; i++ {
		push(t, r, i)
		push(t, r, i+1000)
		assert.Equal(t, i, pop(t, r))
		assert.Equal(t, i+1000, pop(t, r))
	}
	assert.Equal(t, 0, r.Size())
}

func TestRingBuffer_CommitReadOnEmptyPanics(t *testing.T) {
	r := NewRingBuffer[int](2)
	assert.Panics(t, r.CommitRead)
}

func TestRingBuffer_CommitWriteOnFullPanics(t *testing.T) {
	r := NewRingBuffer[int](1)
	push(t, r, 1)
	assert.Panics(t, r.CommitWrite)
}

func TestRingBuffer_InvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { NewRingBuffer[int](0) })
	assert.Panics(t, func() { NewRingBuffer[int](-1) })
}

func TestRingBuffer_EnqueueDequeue(t *testing.T) {
	r := NewRingBuffer[int](2)
	_, ok := r.Dequeue()
	assert.False(t, ok)
	assert.True(t, r.Enqueue(7))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, r.Cap())
	v, ok := r.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestRingBuffer_ConcurrentSPSC(t *testing.T) {
	const (
		capacity = 64
		total    = 50_000
	)
	r := NewRingBuffer[int](capacity)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			slot, ok := r.ReserveWriteSlot()
			if !ok {
				runtime.Gosched()
				continue
			}
			*slot = i
			r.CommitWrite()
			i++
		}
	}()

	errs := make(chan string, 1)
	go func() {
		defer wg.Done()
		for want := 0; want < total; {
			size := r.Size()
			if size < 0 || size > capacity {
				errs <- "size out of range"
				return
			}
			slot := r.PeekReadSlot()
			if slot == nil {
				runtime.Gosched()
				continue
			}
			if *slot != want {
				errs <- "out of order"
				return
			}
			r.CommitRead()
			want++
		}
	}()

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
	assert.Equal(t, 0, r.Size())
}

func TestConsume_DeliversInOrderAndStops(t *testing.T) {
	r := NewRingBuffer[int](16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const total = 1000
	got := make([]int, 0, total)
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, r, func(v *int) {
			got = append(got, *v)
			if len(got) == total {
				cancel()
			}
		})
	}()

	for i := 0; i < total; {
		if r.Enqueue(i) {
			i++
		}
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	require.Len(t, got, total)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
