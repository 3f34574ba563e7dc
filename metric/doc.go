// Package metric provides Prometheus-based observability for the gateway
// core and its terminals.
//
// The package wraps a dedicated prometheus.Registry so the process exposes
// only StreamBridge metrics plus the Go runtime collectors. Core gateway
// metrics (channel counts, forwarding throughput, discovery events, loop
// durations) are created once at registry construction; components register
// their own collectors under a "component.metric" key so duplicate
// registrations are caught with a useful error instead of a prometheus
// panic.
package metric
