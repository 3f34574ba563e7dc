// Package gateway implements the generic bridging engine of StreamBridge:
// the channel abstraction, the bounded concurrent channel registry, and the
// two control loops (discovery and forwarding) that drive a concrete
// gateway.
//
// # Overview
//
// A Gateway is generic over its two terminal types: L, the local-bus side
// (for example busclient.Subscriber), and E, the external-domain side (for
// example wsclient.Writer). A concrete gateway supplies an Implementation
// with three extension points:
//
//   - LoadConfiguration: apply process configuration before the loops start
//   - Discover: react to one discovery event, typically by calling
//     AddChannel or DiscardChannel
//   - Forward: move available payloads across one channel, once per
//     forwarding tick
//
// The engine owns everything else: the bounded terminal pools, the channel
// registry, the worker goroutines, and cooperative shutdown.
//
// # Concurrency model
//
// Exactly two long-lived goroutines run per gateway: the discovery loop
// (consumes events from a DiscoverySource with a bounded wait, so shutdown
// is always observed promptly) and the forwarding loop (ticks on a fixed
// cadence and visits every live channel). Management calls (AddChannel,
// FindChannel, DiscardChannel) may come from any goroutine. The registry is
// the only shared-mutable state between them and every access goes through
// its guard.
//
// Channels are reference counted: a channel discarded from the registry
// stays fully usable for any goroutine still holding a clone, and its
// terminals are reclaimed the moment the last clone is released.
package gateway
