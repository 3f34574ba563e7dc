// Package wsclient provides the external side of StreamBridge: a single
// WebSocket connection to the remote domain endpoint, multiplexing the
// payloads of every bridged service.
//
// Payloads travel as msgpack-encoded Envelopes tagged with their service
// description. The Client owns the connection: writes from any number of
// Writer terminals are serialized onto it, and a read pump demultiplexes
// incoming envelopes into per-service bounded queues consumed by Reader
// terminals.
//
// Writer and Reader follow the same pool-slot shape as the busclient
// terminals: zero value plus Open initializes, Close finalizes.
package wsclient
