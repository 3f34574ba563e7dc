package gateway

import (
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/pkg/objectpool"
	"github.com/c360/streambridge/types"
)

// Channel couples one local-bus terminal and one external-domain terminal
// for a single named service. Channels are lightweight: they hold the
// service description and two shared handles, so copies are cheap and the
// terminals themselves are never duplicated.
//
// A Channel is always fully formed. Both handles are valid for the
// channel's entire lifetime; there is no constructor that leaves one
// terminal missing. Clone duplicates the handle pair (incrementing both
// reference counts) and Release drops it; the terminals are reclaimed when
// the last clone is released, regardless of registry membership.
type Channel[L, E any] struct {
	service  types.ServiceDescription
	local    *objectpool.Handle[L]
	external *objectpool.Handle[E]
}

// TerminalInit constructs a terminal in place for the given service. It is
// the domain-specific construction hook: busclient and wsclient provide
// implementations for their terminal types.
type TerminalInit[T any] func(types.ServiceDescription, *T) error

// NewChannel couples two externally-managed terminal handles into a
// channel. No pool interaction takes place and the call never fails; the
// channel takes over the caller's reference on both handles.
func NewChannel[L, E any](
	service types.ServiceDescription,
	local *objectpool.Handle[L],
	external *objectpool.Handle[E],
) Channel[L, E] {
	return Channel[L, E]{
		service:  service,
		local:    local,
		external: external,
	}
}

// CreateChannel acquires one slot from each terminal pool, constructs both
// terminals via their init hooks, and returns the fully-formed channel.
//
// On any failure no slot is leaked: if the local terminal was acquired but
// the external acquisition or construction fails, the local slot is
// released before the error is returned.
func CreateChannel[L, E any](
	service types.ServiceDescription,
	localPool *objectpool.Pool[L],
	externalPool *objectpool.Pool[E],
	localInit TerminalInit[L],
	externalInit TerminalInit[E],
) (Channel[L, E], error) {
	local, err := localPool.Acquire(func(t *L) error {
		if localInit == nil {
			return nil
		}
		return localInit(service, t)
	})
	if err != nil {
		return Channel[L, E]{}, errors.Wrap(err, "Channel", "CreateChannel", "local terminal acquisition")
	}

	external, err := externalPool.Acquire(func(t *E) error {
		if externalInit == nil {
			return nil
		}
		return externalInit(service, t)
	})
	if err != nil {
		// Roll back the slot already taken on the local side
		local.Release()
		return Channel[L, E]{}, errors.Wrap(err, "Channel", "CreateChannel", "external terminal acquisition")
	}

	return NewChannel(service, local, external), nil
}

// Service returns the immutable service description this channel bridges
func (c Channel[L, E]) Service() types.ServiceDescription {
	return c.service
}

// LocalTerminal returns the shared handle to the local-bus terminal
func (c Channel[L, E]) LocalTerminal() *objectpool.Handle[L] {
	return c.local
}

// ExternalTerminal returns the shared handle to the external-domain terminal
func (c Channel[L, E]) ExternalTerminal() *objectpool.Handle[E] {
	return c.external
}

// Clone returns a copy of the channel owning its own reference on both
// terminals. Safe to call from any goroutine holding a live channel.
func (c Channel[L, E]) Clone() Channel[L, E] {
	c.local.Clone()
	c.external.Clone()
	return c
}

// Release drops this copy's reference on both terminals. When the last
// copy of a channel is released, pool-backed terminals are finalized and
// their slots return to the pools.
func (c Channel[L, E]) Release() {
	c.local.Release()
	c.external.Release()
}
