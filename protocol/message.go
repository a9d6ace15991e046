package protocol

import (
	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/util/optional"
)

// PreKeySignalMessage is the first inbound protocol message: it embeds the
// initiator's ephemeral base key plus enough pre-key identifiers for the
// responder to locate the matching private material (spec.md §3).
type PreKeySignalMessage struct {
	Version        int
	RegistrationID uint32
	PreKeyID       optional.Uint32
	SignedPreKeyID uint32 // only meaningful for Version >= 3
	BaseKey        ecc.PublicKey
	IdentityKey    identity.Key

	// Ciphertext is the embedded SignalMessage payload. Decrypting it is
	// the symmetric-ratchet path, out of scope for this core; it is
	// carried through unopened.
	Ciphertext []byte
}

// KeyExchangeMessage is the interactive exchange frame (spec.md §3).
type KeyExchangeMessage struct {
	Version      uint32
	MaxVersion   uint32
	Sequence     uint32
	Flags        uint32
	BaseKey      ecc.PublicKey
	BaseKeySig   []byte
	RatchetKey   ecc.PublicKey
	IdentityKey  identity.Key
}

// HasFlag reports whether flag is set.
func (m KeyExchangeMessage) HasFlag(flag uint32) bool {
	return m.Flags&flag != 0
}

// IsInitiate reports whether this message carries the INITIATE flag.
func (m KeyExchangeMessage) IsInitiate() bool {
	return m.HasFlag(KeyExchangeInitiate)
}

// IsResponseForSimultaneousInitiate reports whether this response carries
// the SIMULTANEOUS_INITIATE flag — the peer's own initiate collided with
// ours and lost.
func (m KeyExchangeMessage) IsResponseForSimultaneousInitiate() bool {
	return m.HasFlag(KeyExchangeSimultaneousInitiate)
}
