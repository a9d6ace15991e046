// Package ratchet is the RatchetInitializer boundary (spec.md §4, "Ratchet
// Initializer (external)"): pure functions that, given Alice/Bob/Symmetric
// parameters, derive the root key and initial chain key the Double Ratchet
// proper (out of scope for this core) grows from. The negotiated version is
// not an input: the derivation is the same for every version, and the
// session builder records the version on the session state itself. The HKDF derivation chain is grounded on
// _examples/ericlagergren-dr/djb.go's KDFrk.
package ratchet

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/mikalv/libaxolotl/ecc"
)

const keySize = 32

// RootKey is the Double Ratchet root key.
type RootKey [keySize]byte

// ChainKey is a Double Ratchet chain key (sending or receiving).
type ChainKey [keySize]byte

// DerivedSecrets is the output of the X3DH-style agreement: a root key and
// the chain key attributed to the peer's initial ratchet key.
type DerivedSecrets struct {
	RootKey  RootKey
	ChainKey ChainKey
}

// discriminator is prepended to the concatenated ECDH outputs before HKDF
// extraction, the same 32-byte 0xFF prefix real X3DH implementations use to
// domain-separate the agreement from any other use of the same curve.
var discriminator = func() []byte {
	d := make([]byte, keySize)
	for i := range d {
		d[i] = 0xFF
	}
	return d
}()

const rootInfo = "WhisperText"

// deriveRoot runs HKDF-SHA256 over the concatenated discriminator and DH
// outputs, producing a root key and chain key.
func deriveRoot(dhOutputs ...[]byte) (DerivedSecrets, error) {
	ikm := make([]byte, 0, len(discriminator)+32*len(dhOutputs))
	ikm = append(ikm, discriminator...)
	for _, dh := range dhOutputs {
		ikm = append(ikm, dh...)
	}

	r := hkdf.New(sha256.New, ikm, nil, []byte(rootInfo))
	buf := make([]byte, 2*keySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: deriving root secrets: %w", err)
	}

	var out DerivedSecrets
	copy(out.RootKey[:], buf[:keySize])
	copy(out.ChainKey[:], buf[keySize:])
	return out, nil
}

// CreateChain advances the root key with one further DH step — the
// sending side's fresh ratchet key against the peer's ratchet key — the
// same step _examples/ericlagergren-dr/djb.go's KDFrk performs per
// Double-Ratchet message. It returns the new root key and the chain key
// for the newly created sending chain.
func (rk RootKey) CreateChain(theirRatchetKey ecc.PublicKey, ourRatchetKey *ecc.ECKeyPair) (DerivedSecrets, error) {
	dh, err := ecc.ECDH(ourRatchetKey.Private, theirRatchetKey)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: chain DH: %w", err)
	}
	r := hkdf.New(sha256.New, dh, rk[:], []byte(rootInfo))
	buf := make([]byte, 2*keySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: deriving chain secrets: %w", err)
	}
	var out DerivedSecrets
	copy(out.RootKey[:], buf[:keySize])
	copy(out.ChainKey[:], buf[keySize:])
	return out, nil
}
