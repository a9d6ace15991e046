package ratchet

import (
	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
)

// AliceParameters carries the initiator's inputs to ratchet
// initialization: our fresh ephemeral base key plus everything pulled from
// the peer's pre-key bundle.
type AliceParameters struct {
	OurBaseKey        *ecc.ECKeyPair
	OurIdentityKey    *identity.KeyPair
	TheirIdentityKey  identity.Key
	TheirSignedPreKey ecc.PublicKey
	TheirRatchetKey   ecc.PublicKey // always equal to TheirSignedPreKey for the bundle path
	TheirOneTimePreKey *ecc.PublicKey
}

// BobParameters carries the responder's inputs to ratchet initialization:
// our loaded pre-key material plus the base key pulled from the
// initiator's first message.
type BobParameters struct {
	OurIdentityKey     *identity.KeyPair
	OurSignedPreKey    *ecc.ECKeyPair
	OurRatchetKey      *ecc.ECKeyPair // always equal to OurSignedPreKey for the message path
	OurOneTimePreKey   *ecc.ECKeyPair // nil if the message carried no one-time pre-key id
	TheirIdentityKey   identity.Key
	TheirBaseKey       ecc.PublicKey
}

// SymmetricParameters carries both sides' contributions for an interactive
// key exchange, where neither side is a priori the bundle-initiator.
type SymmetricParameters struct {
	OurBaseKey       *ecc.ECKeyPair
	OurRatchetKey    *ecc.ECKeyPair
	OurIdentityKey   *identity.KeyPair
	TheirBaseKey     ecc.PublicKey
	TheirRatchetKey  ecc.PublicKey
	TheirIdentityKey identity.Key
}
