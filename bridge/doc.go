// Package bridge provides the two concrete gateways of StreamBridge, both
// built on the generic engine in package gateway.
//
// Outbound bridges local bus traffic out to the domain link: its channels
// couple a busclient.Subscriber with a wsclient.Writer, and each
// forwarding tick drains the subscriber's pending payloads onto the link.
// Inbound is the mirror image, coupling a wsclient.Reader with a
// busclient.Publisher to republish domain traffic on the local bus.
//
// Both react to the same discovery events: an offer opens a channel for
// the service (once), a revoke discards it. Forwarding is best-effort:
// errors on one channel are logged and counted, never propagated, so a
// failing service cannot stall the rest of the registry.
package bridge
