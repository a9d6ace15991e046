// Package session is the core of this module: SessionBuilder, the
// orchestrator that turns one of three inbound stimuli — a pre-key
// bundle, a first inbound message carrying an embedded pre-key, or an
// interactive key-exchange message — into negotiated session state
// (spec.md §4.2). Grounded line-for-line on
// vendor/go.mau.fi/libsignal/session/Session.go's Builder.
package session

import (
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/state/store"
)

// Builder is bound to one (stores, remote address) pair for its lifetime,
// the contract spec.md §5 asks higher layers to serialize per address.
// Sessions are constructed per (name, device-id) tuple; one logical
// remote identity can have many physical devices, each with its own
// Builder/session.
type Builder struct {
	stores        store.All
	remoteAddress protocol.Address
}

// NewBuilder constructs a Builder bound to stores and remoteAddress.
//
// context.Context is accepted on every entry point because the store
// interfaces may perform I/O (spec.md §5); the builder itself never blocks
// on anything else and spawns no goroutines.
func NewBuilder(stores store.All, remoteAddress protocol.Address) *Builder {
	return &Builder{stores: stores, remoteAddress: remoteAddress}
}
