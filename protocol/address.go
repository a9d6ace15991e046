// Package protocol holds the wire-message value objects the session
// builder consumes and produces: the remote address, the first inbound
// pre-key message, and the interactive key-exchange message. Wire-format
// parsing itself is out of scope (spec.md §1) — these are plain in-memory
// structs the caller is responsible for decoding into and encoding from.
package protocol

import "fmt"

// Address identifies a remote session counterpart by (name, device id).
// Immutable once constructed.
type Address struct {
	name     string
	deviceID uint32
}

// NewAddress constructs an Address.
func NewAddress(name string, deviceID uint32) Address {
	return Address{name: name, deviceID: deviceID}
}

// Name returns the remote party's name.
func (a Address) Name() string { return a.name }

// DeviceID returns the remote party's device id.
func (a Address) DeviceID() uint32 { return a.deviceID }

// String renders a stable key suitable for map lookups / log fields.
func (a Address) String() string {
	return fmt.Sprintf("%s.%d", a.name, a.deviceID)
}
