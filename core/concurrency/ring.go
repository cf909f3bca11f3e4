// File: core/concurrency/ring.go
// Package concurrency implements the lock-free single-producer/single-consumer ring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingBuffer is a fixed-capacity circular buffer shared by exactly one
// producer goroutine and exactly one consumer goroutine. Each side owns its
// cursor; the atomic element count is the only cross-thread signal.
// Writes into a full ring are rejected rather than overwriting unread slots.

package concurrency

import (
	"sync/atomic"

	"github.com/momentics/hioload-lowlat/api"
)

const cacheLineSize = 64

// Ensure compile-time interface compliance.
var (
	_ api.Ring[any]     = (*RingBuffer[any])(nil)
	_ api.SlotRing[any] = (*RingBuffer[any])(nil)
)

// RingBuffer is a lock-free ring buffer (single-producer, single-consumer safe).
type RingBuffer[T any] struct {
	store []T

	_     [cacheLineSize]byte
	write int // producer-owned
	_     [cacheLineSize - 8]byte
	read  int // consumer-owned
	_     [cacheLineSize - 8]byte
	count atomic.Int64
	_     [cacheLineSize - 8]byte
}

// NewRingBuffer allocates a ring holding up to capacity elements.
// Any positive capacity is accepted; it does not need to be a power of two.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &RingBuffer[T]{store: make([]T, capacity)}
}

// ReserveWriteSlot returns the next slot for the producer to fill in place.
// It returns false when the ring already holds Cap() unread elements.
// Producer only.
func (r *RingBuffer[T]) ReserveWriteSlot() (*T, bool) {
	if int(r.count.Load()) == len(r.store) {
		return nil, false
	}
	return &r.store[r.write], true
}

// CommitWrite publishes the slot returned by the last ReserveWriteSlot.
// The count increment happens after the slot was written, so a consumer that
// observes the new count also observes the slot contents.
// Producer only; panics if the ring is full.
func (r *RingBuffer[T]) CommitWrite() {
	if int(r.count.Load()) == len(r.store) {
		panic("ring: CommitWrite on full ring")
	}
	r.write = r.next(r.write)
	r.count.Add(1)
}

// PeekReadSlot returns the oldest unread element, or nil when empty.
// Consumer only.
func (r *RingBuffer[T]) PeekReadSlot() *T {
	if r.count.Load() == 0 {
		return nil
	}
	return &r.store[r.read]
}

// CommitRead releases the slot returned by PeekReadSlot back to the producer.
// Consumer only; panics when the ring is empty.
func (r *RingBuffer[T]) CommitRead() {
	if r.count.Load() == 0 {
		panic("ring: CommitRead on empty ring")
	}
	var zero T
	r.store[r.read] = zero
	r.read = r.next(r.read)
	r.count.Add(-1)
}

// Size returns the number of unread elements. Safe from either side.
func (r *RingBuffer[T]) Size() int {
	return int(r.count.Load())
}

// Enqueue copies item into the ring; returns false if full.
func (r *RingBuffer[T]) Enqueue(item T) bool {
	slot, ok := r.ReserveWriteSlot()
	if !ok {
		return false
	}
	*slot = item
	r.CommitWrite()
	return true
}

// Dequeue removes and returns the oldest item; ok false if empty.
func (r *RingBuffer[T]) Dequeue() (T, bool) {
	slot := r.PeekReadSlot()
	if slot == nil {
		var zero T
		return zero, false
	}
	item := *slot
	r.CommitRead()
	return item, true
}

// Len returns number of items currently in buffer.
func (r *RingBuffer[T]) Len() int {
	return r.Size()
}

// Cap returns fixed buffer capacity.
func (r *RingBuffer[T]) Cap() int {
	return len(r.store)
}

func (r *RingBuffer[T]) next(i int) int {
	i++
	if i == len(r.store) {
		return 0
	}
	return i
}
