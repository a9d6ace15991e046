// Package identity implements long-term identity keys: one Curve25519 pair
// for ECDH contribution to ratchet initialization, and one Ed25519 pair for
// signing signed-pre-keys and key-exchange base keys.
//
// Real Signal reuses a single Curve25519 scalar for both roles via XEdDSA.
// This module keeps the two keys independent instead of hand-rolling the
// Montgomery<->Edwards birational conversion XEdDSA needs — see DESIGN.md,
// Open Question 4.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mikalv/libaxolotl/ecc"
)

// Key is a long-term identity's public material: the Curve25519 point used
// for ECDH plus the Ed25519 point used to verify its signatures.
type Key struct {
	ECPublic  ecc.PublicKey
	SignPublic ed25519.PublicKey
}

// Equal reports whether two identity keys are bit-for-bit identical. This
// is the comparison the trust-pinning invariant (spec.md §3 invariant 4)
// relies on.
func (k Key) Equal(other Key) bool {
	return k.ECPublic == other.ECPublic && bytes.Equal(k.SignPublic, other.SignPublic)
}

// KeyPair is a long-term identity's full key material: the local identity's
// private halves alongside the public Key.
type KeyPair struct {
	Public  Key
	ECPrivate   ecc.PrivateKey
	SignPrivate ed25519.PrivateKey
}

// PublicKey returns the public identity key.
func (p *KeyPair) PublicKey() Key {
	return p.Public
}

// GenerateKeyPair creates a fresh identity key pair. Called once per local
// identity, at install time (spec.md §3).
func GenerateKeyPair() (*KeyPair, error) {
	ecKP, err := ecc.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("identity: generating EC key pair: %w", err)
	}
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generating Ed25519 key pair: %w", err)
	}
	return &KeyPair{
		Public: Key{
			ECPublic:   ecKP.Public,
			SignPublic: signPub,
		},
		ECPrivate:   ecKP.Private,
		SignPrivate: signPriv,
	}, nil
}

// Sign signs message under the identity's private signing key. Used to
// sign a signed-pre-key's public point, and (v3 key exchange) a
// KeyExchangeMessage's base key.
func (p *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(p.SignPrivate, message)
}

// VerifySignature verifies signature over message under the public
// identity key's signing half.
func VerifySignature(key Key, message, signature []byte) bool {
	return ed25519.Verify(key.SignPublic, message, signature)
}
