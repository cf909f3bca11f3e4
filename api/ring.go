// Package api
// Author: momentics@gmail.com
//
// Lock-free ring buffer contract for cross-thread producer/consumer handoff.

package api

// Ring is a copy-in/copy-out queue contract.
type Ring[T any] interface {
	// Enqueue adds an item, returns false if full.
	Enqueue(item T) bool
	// Dequeue removes oldest item, returns false if empty.
	Dequeue() (T, bool)
	// Len returns current number of items.
	Len() int
	// Cap returns buffer capacity.
	Cap() int
}

// SlotRing is the zero-copy side of a single-producer/single-consumer ring.
// The producer fills the slot returned by ReserveWriteSlot in place and
// publishes it with CommitWrite; the consumer reads PeekReadSlot and
// releases it with CommitRead.
type SlotRing[T any] interface {
	ReserveWriteSlot() (*T, bool)
	CommitWrite()
	PeekReadSlot() *T
	CommitRead()
	Size() int
}
