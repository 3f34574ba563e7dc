package objectpool

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Finalizer is invoked exactly once when the last handle referencing a
// value is released. For pooled values it runs before the slot is marked
// free.
type Finalizer[T any] func(*T)

// Pool is a fixed-capacity arena of preallocated slots for values of type
// T. All storage is allocated at construction; Acquire and Release only
// move slots between the free and in-use states.
type Pool[T any] struct {
	mu        sync.Mutex
	slots     []slot[T]
	finalizer Finalizer[T]
	inUse     int
}

type slot[T any] struct {
	value T
	used  bool
}

// New creates a pool with the given capacity. The finalizer may be nil if
// values need no teardown. Capacity must be positive.
func New[T any](capacity int, finalizer Finalizer[T]) *Pool[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("objectpool: capacity must be positive, got %d", capacity))
	}
	return &Pool[T]{
		slots:     make([]slot[T], capacity),
		finalizer: finalizer,
	}
}

// Acquire reserves one free slot, constructs the value in place via init,
// and returns a shared handle with a reference count of one. It fails with
// ErrPoolExhausted when all slots are occupied and never blocks. If init
// returns an error the slot is released again and the error is returned
// unchanged.
//
// No ordering is guaranteed between slot indices; a released slot may be
// handed out again in any order.
func (p *Pool[T]) Acquire(init func(*T) error) (*Handle[T], error) {
	p.mu.Lock()
	idx := -1
	for i := range p.slots {
		if !p.slots[i].used {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	s := &p.slots[idx]
	s.used = true
	var zero T
	s.value = zero
	p.inUse++
	p.mu.Unlock()

	if init != nil {
		if err := init(&s.value); err != nil {
			p.free(idx)
			return nil, err
		}
	}

	h := &Handle[T]{value: &s.value}
	h.refs.Store(1)
	h.onRelease = func() {
		if p.finalizer != nil {
			p.finalizer(&s.value)
		}
		p.free(idx)
	}
	return h, nil
}

// Capacity returns the fixed number of slots
func (p *Pool[T]) Capacity() int {
	return len(p.slots)
}

// InUse returns the number of currently occupied slots
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

func (p *Pool[T]) free(idx int) {
	p.mu.Lock()
	p.slots[idx].used = false
	p.inUse--
	p.mu.Unlock()
}

// Handle is a reference-counted shared owner of a value. The zero value is
// not usable; handles come from Pool.Acquire or Wrap.
type Handle[T any] struct {
	value     *T
	refs      atomic.Int64
	onRelease func()
}

// Wrap creates an unpooled handle around an externally-managed value. The
// finalizer, if non-nil, runs exactly once when the last clone is
// released. No pool interaction takes place.
func Wrap[T any](value *T, finalizer Finalizer[T]) *Handle[T] {
	h := &Handle[T]{value: value}
	h.refs.Store(1)
	if finalizer != nil {
		h.onRelease = func() { finalizer(value) }
	}
	return h
}

// Get returns the underlying value. The pointer stays valid until the last
// handle referencing the value is released.
func (h *Handle[T]) Get() *T {
	return h.value
}

// Clone returns the same handle with the reference count incremented.
// Cloning a fully released handle is a lifetime bug and panics.
func (h *Handle[T]) Clone() *Handle[T] {
	if h.refs.Add(1) <= 1 {
		panic("objectpool: clone of released handle")
	}
	return h
}

// Release drops one reference. When the count reaches zero the finalizer
// runs synchronously on the calling goroutine and, for pooled values, the
// slot returns to the pool. Releasing more times than the handle was
// acquired or cloned panics.
func (h *Handle[T]) Release() {
	n := h.refs.Add(-1)
	switch {
	case n == 0:
		if h.onRelease != nil {
			h.onRelease()
		}
	case n < 0:
		panic("objectpool: release of already released handle")
	}
}

// Refs returns the current reference count. Intended for tests and
// diagnostics; the value may be stale by the time it is observed.
func (h *Handle[T]) Refs() int64 {
	return h.refs.Load()
}
