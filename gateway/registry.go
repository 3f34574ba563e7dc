package gateway

import (
	"sync"

	"github.com/c360/streambridge/types"
)

// channelRegistry is the one shared-mutable-state boundary between the
// discovery loop and the forwarding loop: a bounded sequence of channels
// behind a single mutex. Every method holds the guard for its whole
// duration, so no interleaving of two registry operations is observable
// and an enumeration always sees a consistent snapshot.
//
// The guard is not reentrant. Visitors passed to forEach must not call
// insert, remove, or any other registry method; doing so deadlocks. This
// is a contract, not a convention: the engine's ForEachChannel documents
// it for concrete gateways.
type channelRegistry[L, E any] struct {
	mu       sync.Mutex
	channels []Channel[L, E]
	capacity int
}

func newChannelRegistry[L, E any](capacity int) *channelRegistry[L, E] {
	return &channelRegistry[L, E]{
		channels: make([]Channel[L, E], 0, capacity),
		capacity: capacity,
	}
}

// insert stores the registry's own copy of the channel. Returns false when
// the registry is at capacity; the caller keeps ownership of the channel
// in that case.
func (r *channelRegistry[L, E]) insert(ch Channel[L, E]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.channels) >= r.capacity {
		return false
	}
	r.channels = append(r.channels, ch)
	return true
}

// find returns a clone of the channel for the given service. The caller
// owns the clone and must release it.
func (r *channelRegistry[L, E]) find(service types.ServiceDescription) (Channel[L, E], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.channels {
		if ch.Service() == service {
			return ch.Clone(), true
		}
	}
	return Channel[L, E]{}, false
}

// remove drops the registry's copy of the channel for the given service.
// The channel and its terminals stay alive for any holder of a prior
// clone; only the registry's reference is released here.
func (r *channelRegistry[L, E]) remove(service types.ServiceDescription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ch := range r.channels {
		if ch.Service() == service {
			last := len(r.channels) - 1
			r.channels[i] = r.channels[last]
			r.channels = r.channels[:last]
			ch.Release()
			return true
		}
	}
	return false
}

// forEach applies fn to every channel under the guard. fn must not
// re-enter the registry.
func (r *channelRegistry[L, E]) forEach(fn func(*Channel[L, E])) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.channels {
		fn(&r.channels[i])
	}
}

// size returns the current number of channels
func (r *channelRegistry[L, E]) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// drain releases every remaining channel and empties the registry. Used on
// the shutdown path so pool-backed terminals are reclaimed with the
// gateway.
func (r *channelRegistry[L, E]) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.channels {
		ch.Release()
	}
	r.channels = r.channels[:0]
}
