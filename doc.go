// Package streambridge is the generic gateway core of an inter-process
// pub/sub middleware. It bridges a local publish/subscribe bus (NATS) to an
// external messaging domain (a WebSocket endpoint) by discovering services
// on one side and forwarding their payloads to matching endpoints on the
// other.
//
// # Architecture
//
// The core is a generic bridging engine built from four pieces, leaf first:
//
//	┌─────────────────────────────────────┐
//	│         Gateway Engine              │  discovery + forwarding loops,
//	│  (gateway.Gateway[L, E])            │  public channel management API
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌─────────────────────────────────────┐
//	│     Channel Registry                │  one mutex-guarded bounded
//	│  (bounded, mutually exclusive)      │  collection, shared by both loops
//	└─────────────────────────────────────┘
//	           ↓ stores
//	┌─────────────────────────────────────┐
//	│         Channels                    │  service + paired terminal
//	│  (gateway.Channel[L, E])            │  handles, freely cloneable
//	└─────────────────────────────────────┘
//	           ↓ handles come from
//	┌─────────────────────────────────────┐
//	│     Bounded Object Pool             │  preallocated terminal slots,
//	│  (objectpool.Pool[T])               │  reference-counted reclamation
//	└─────────────────────────────────────┘
//
// A concrete gateway supplies the two terminal types and the extension
// points (LoadConfiguration, Discover, Forward); the engine supplies the
// loops, the lifetime management, and the capacity bounds. The bridge
// package contains the two shipped gateways: Outbound (bus subscriber to
// WebSocket writer) and Inbound (WebSocket reader to bus publisher).
//
// # Lifetime model
//
// Terminals live in fixed-capacity object pools and are reclaimed
// deterministically: every Channel copy clones the underlying handles, and
// the terminal's finalizer runs exactly once when the last handle is
// released. A channel discarded from the registry stays valid for any
// goroutine still holding a clone, so the forwarding loop is never torn
// down mid-forward.
//
// # Package map
//
//   - gateway: channel, registry, and the generic engine
//   - pkg/objectpool: bounded pool and reference-counted handles
//   - busclient: NATS local-bus terminals and discovery sources
//   - wsclient: WebSocket external-domain terminals
//   - bridge: the shipped concrete gateways
//   - types: service descriptions
//   - config, errors, metric, pkg/retry: ambient concerns
package streambridge
