package gateway

import (
	"time"

	"github.com/c360/streambridge/types"
)

// EventType classifies a discovery event from the local bus
type EventType uint8

const (
	// EventOffer announces that a service became available on the bus
	EventOffer EventType = iota
	// EventRevoke announces that a service disappeared from the bus
	EventRevoke
)

// String returns the string representation of EventType
func (t EventType) String() string {
	switch t {
	case EventOffer:
		return "offer"
	case EventRevoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// DiscoveryEvent is one service-availability notification consumed by the
// discovery loop and handed to the concrete gateway's Discover hook.
type DiscoveryEvent struct {
	Type    EventType
	Service types.ServiceDescription
}

// DiscoverySource supplies discovery events to the discovery loop.
//
// Next blocks for at most the given timeout. When no event arrived in time
// it returns errors.ErrNoDiscoveryMessage so the loop can re-check its
// running flag; the timeout is the upper bound on shutdown latency of the
// discovery loop and is configurable for that reason.
type DiscoverySource interface {
	Next(timeout time.Duration) (DiscoveryEvent, error)
}
