// Package objectpool provides a generic, fixed-capacity object pool with
// reference-counted handles and deterministic reclamation.
//
// # Overview
//
// The pool preallocates all of its slots at construction and never grows.
// Acquiring a slot constructs the value in place and returns a shared
// Handle; when the last handle referencing a slot is released, the pool's
// finalizer runs exactly once, synchronously, and the slot becomes
// available again. Nothing is left to the garbage collector's discretion:
// reclamation happens on the releasing goroutine, at release time.
//
// This is the storage layer for gateway terminals: channel copies clone
// the terminal handles, so a terminal outlives every channel copy in
// circulation and is torn down the moment the last copy is dropped.
//
// # Core Concepts
//
// Bounded capacity:
//
// Acquire fails with ErrPoolExhausted when all slots are occupied. It
// never blocks and never allocates beyond the preallocated arena, which
// keeps the hot forwarding path free of dynamic allocation.
//
// Shared handles:
//
// A Handle is a reference-counted ownership wrapper. Clone increments the
// count, Release decrements it, and the slot is reclaimed when the count
// reaches zero. Acquire from one goroutine while another goroutine
// releases is safe; the count is maintained with atomic operations.
//
// Unpooled handles:
//
// Wrap produces a handle around an externally-managed value with the same
// clone/release semantics but no backing slot. This supports callers that
// construct terminals themselves and only want the shared-lifetime
// contract.
//
// # Usage
//
//	pool := objectpool.New[Subscriber](64, func(s *Subscriber) {
//	    s.Close()
//	})
//
//	handle, err := pool.Acquire(func(s *Subscriber) error {
//	    return s.Open(subject)
//	})
//	if err != nil {
//	    // pool exhausted or init failed
//	}
//
//	other := handle.Clone() // share ownership
//	handle.Release()
//	other.Release() // finalizer runs here, slot returns to the pool
package objectpool
