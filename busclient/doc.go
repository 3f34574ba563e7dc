// Package busclient provides the local-bus side of StreamBridge on top of
// NATS: connection management, the Subscriber and Publisher terminal
// types, and the discovery sources consumed by the gateway's discovery
// loop.
//
// # Terminals
//
// Subscriber receives payloads for one service on its data subject into a
// bounded pending queue and hands them out with a non-blocking Take, which
// is what the forwarding loop needs: draining available data without ever
// blocking on an idle service. Publisher is its inbound counterpart and
// publishes payloads onto a service's data subject.
//
// Both types are designed to live inside objectpool slots: the zero value
// plus Open is a complete initialization, and Close is the pool finalizer.
//
// # Discovery
//
// Services announce themselves with msgpack-encoded announcements on the
// discovery subject (see Announcer). Source consumes them with a plain
// synchronous subscription; JetStreamSource consumes them through a
// JetStream stream instead, so a gateway that starts late still replays
// the announcements that are retained in the stream. Both satisfy
// gateway.DiscoverySource with a bounded wait.
package busclient
