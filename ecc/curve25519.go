// Package ecc implements the Curve25519 key-primitive boundary: key
// generation and ECDH. Signature generation/verification lives in
// keys/identity, since in this module only identity keys sign anything.
//
// These are the pure functions spec.md §1 calls "KeyPrimitives (external)" —
// treated as a dependency the session core calls, not part of the core
// itself.
package ecc

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length in bytes of a Curve25519 scalar or point.
const KeySize = curve25519.ScalarSize

// PublicKey is a serialized Curve25519 point.
type PublicKey [KeySize]byte

// Serialize returns a copy of the public key bytes.
func (k PublicKey) Serialize() []byte {
	out := make([]byte, KeySize)
	copy(out, k[:])
	return out
}

// MarshalJSON encodes the point as a JSON string instead of an array of
// 32 numbers, for compact storage in JSON-backed columns (dbutil.JSON).
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Serialize())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePublicKey(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PrivateKey is a clamped Curve25519 scalar.
type PrivateKey [KeySize]byte

// MarshalJSON encodes the scalar as a JSON string instead of an array of
// 32 numbers.
func (k PrivateKey) MarshalJSON() ([]byte, error) {
	out := make([]byte, KeySize)
	copy(out, k[:])
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (k *PrivateKey) UnmarshalJSON(data []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != KeySize {
		return fmt.Errorf("ecc: private key must be %d bytes, got %d", KeySize, len(raw))
	}
	copy(k[:], raw)
	return nil
}

// ECKeyPair is an ephemeral or long-term Curve25519 key pair.
type ECKeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair produces a fresh, clamped Curve25519 key pair.
func GenerateKeyPair() (*ECKeyPair, error) {
	var priv PrivateKey
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("ecc: generating private scalar: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("ecc: deriving public point: %w", err)
	}

	kp := &ECKeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// ECDH computes the shared secret between priv and pub.
func ECDH(priv PrivateKey, pub PublicKey) ([]byte, error) {
	secret, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return nil, fmt.Errorf("ecc: ECDH: %w", err)
	}
	return secret, nil
}

// ParsePublicKey validates and wraps a serialized public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != KeySize {
		return pk, fmt.Errorf("ecc: public key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}
