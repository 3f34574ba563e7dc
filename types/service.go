// Package types contains shared domain types used across the StreamBridge
// platform.
package types

import (
	"fmt"

	"github.com/c360/streambridge/errors"
)

// Wildcard is the placeholder used in service descriptions to match any
// value for a field. Wildcard descriptions are valid in queries and
// discovery filters but are never valid channel keys.
const Wildcard = "*"

// ServiceDescription identifies one pub/sub service on the local bus.
// It is an immutable comparable value type and is used as the lookup key
// for gateway channels.
type ServiceDescription struct {
	Service  string `json:"service" msgpack:"service"`
	Instance string `json:"instance" msgpack:"instance"`
	Event    string `json:"event" msgpack:"event"`
}

// NewServiceDescription creates a fully specified service description
func NewServiceDescription(service, instance, event string) ServiceDescription {
	return ServiceDescription{
		Service:  service,
		Instance: instance,
		Event:    event,
	}
}

// IsWildcard reports whether any field of the description is a wildcard
// or empty. Wildcard descriptions can never be bridged by a channel.
func (s ServiceDescription) IsWildcard() bool {
	return s.Service == Wildcard || s.Instance == Wildcard || s.Event == Wildcard ||
		s.Service == "" || s.Instance == "" || s.Event == ""
}

// Validate ensures the description can serve as a channel key
func (s ServiceDescription) Validate() error {
	if s.IsWildcard() {
		return errors.WrapInvalid(
			errors.ErrUnsupportedServiceType,
			"ServiceDescription", "Validate", "wildcard or empty field check")
	}
	return nil
}

// String returns the canonical "service/instance/event" form
func (s ServiceDescription) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Service, s.Instance, s.Event)
}
