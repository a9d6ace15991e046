// Package prekey holds the pre-key value objects: one-time pre-keys,
// signed pre-keys, and the inbound bundle a directory publishes them in.
package prekey

import (
	"time"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/util/optional"
)

// Record is a published one-time pre-key: an id plus an ephemeral
// Curve25519 key pair. Consumed exactly once on successful inbound session
// build (spec.md §3), then removed from the store.
type Record struct {
	ID      uint32
	KeyPair *ecc.ECKeyPair
}

// SignedRecord is a medium-lived pre-key signed by the owning identity.
type SignedRecord struct {
	ID        uint32
	KeyPair   *ecc.ECKeyPair
	Signature []byte
	Timestamp time.Time
}

// Bundle is the inbound value object retrieved from a pre-key directory
// (spec.md §3). Either SignedPreKey or PreKey must be present; PreKeyID is
// only meaningful when PreKey is.
type Bundle struct {
	RegistrationID      uint32
	DeviceID            uint32
	PreKeyID            optional.Uint32
	PreKey              *ecc.PublicKey
	SignedPreKeyID      uint32
	SignedPreKey        ecc.PublicKey
	SignedPreKeySig     []byte
	IdentityKey         identity.Key
	hasSignedPreKey     bool
}

// NewBundle constructs a bundle, recording whether a signed pre-key is
// present (a zero-value SignedPreKey field is ambiguous with "absent").
func NewBundle(registrationID, deviceID uint32, preKeyID optional.Uint32, preKey *ecc.PublicKey,
	signedPreKeyID uint32, signedPreKey ecc.PublicKey, signedPreKeySig []byte, hasSignedPreKey bool,
	idKey identity.Key) Bundle {
	return Bundle{
		RegistrationID:  registrationID,
		DeviceID:        deviceID,
		PreKeyID:        preKeyID,
		PreKey:          preKey,
		SignedPreKeyID:  signedPreKeyID,
		SignedPreKey:    signedPreKey,
		SignedPreKeySig: signedPreKeySig,
		IdentityKey:     idKey,
		hasSignedPreKey: hasSignedPreKey,
	}
}

// HasSignedPreKey reports whether the bundle carries a signed pre-key.
func (b Bundle) HasSignedPreKey() bool {
	return b.hasSignedPreKey
}

// HasOneTimePreKey reports whether the bundle carries a one-time pre-key.
func (b Bundle) HasOneTimePreKey() bool {
	return b.PreKey != nil
}
