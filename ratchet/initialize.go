package ratchet

import (
	"bytes"
	"fmt"

	"github.com/mikalv/libaxolotl/ecc"
)

// CalculateSenderSession derives the initiator's (Alice's) view of the
// agreement: DH(ourIdentity, theirSignedPreKey), DH(ourBase, theirIdentity),
// DH(ourBase, theirSignedPreKey), and — when the bundle carried a one-time
// pre-key — DH(ourBase, theirOneTimePreKey).
func CalculateSenderSession(p AliceParameters) (DerivedSecrets, error) {
	dh1, err := ecc.ECDH(p.OurIdentityKey.ECPrivate, p.TheirSignedPreKey)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: sender DH1: %w", err)
	}
	dh2, err := ecc.ECDH(p.OurBaseKey.Private, p.TheirIdentityKey.ECPublic)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: sender DH2: %w", err)
	}
	dh3, err := ecc.ECDH(p.OurBaseKey.Private, p.TheirSignedPreKey)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: sender DH3: %w", err)
	}

	outputs := [][]byte{dh1, dh2, dh3}
	if p.TheirOneTimePreKey != nil {
		dh4, err := ecc.ECDH(p.OurBaseKey.Private, *p.TheirOneTimePreKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: sender DH4: %w", err)
		}
		outputs = append(outputs, dh4)
	}
	return deriveRoot(outputs...)
}

// CalculateReceiverSession derives the responder's (Bob's) mirror of
// CalculateSenderSession: the same four DH pairs, computed from Bob's
// private halves against Alice's base key.
func CalculateReceiverSession(p BobParameters) (DerivedSecrets, error) {
	dh1, err := ecc.ECDH(p.OurSignedPreKey.Private, p.TheirIdentityKey.ECPublic)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: receiver DH1: %w", err)
	}
	dh2, err := ecc.ECDH(p.OurIdentityKey.ECPrivate, p.TheirBaseKey)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: receiver DH2: %w", err)
	}
	dh3, err := ecc.ECDH(p.OurSignedPreKey.Private, p.TheirBaseKey)
	if err != nil {
		return DerivedSecrets{}, fmt.Errorf("ratchet: receiver DH3: %w", err)
	}

	outputs := [][]byte{dh1, dh2, dh3}
	if p.OurOneTimePreKey != nil {
		dh4, err := ecc.ECDH(p.OurOneTimePreKey.Private, p.TheirBaseKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: receiver DH4: %w", err)
		}
		outputs = append(outputs, dh4)
	}
	return deriveRoot(outputs...)
}

// WeAreAlice decides, for a symmetric (interactive key-exchange) agreement,
// which side plays the sender role: the side whose base key sorts lower
// lexicographically. This must be computed identically on both sides
// without any out-of-band flag, since a simultaneous initiate means
// neither side is a priori the initiator.
func WeAreAlice(ourBaseKey, theirBaseKey ecc.PublicKey) bool {
	return bytes.Compare(ourBaseKey[:], theirBaseKey[:]) < 0
}

// CalculateSymmetricSession derives the root/chain secrets for an
// interactive key exchange. weAreAlice must be the result of WeAreAlice
// applied to the two sides' base keys, so both ends agree on role
// assignment without a flag.
func CalculateSymmetricSession(weAreAlice bool, p SymmetricParameters) (DerivedSecrets, error) {
	var dh1, dh2, dh3 []byte
	var err error

	if weAreAlice {
		dh1, err = ecc.ECDH(p.OurIdentityKey.ECPrivate, p.TheirRatchetKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(alice) DH1: %w", err)
		}
		dh2, err = ecc.ECDH(p.OurBaseKey.Private, p.TheirIdentityKey.ECPublic)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(alice) DH2: %w", err)
		}
		dh3, err = ecc.ECDH(p.OurBaseKey.Private, p.TheirRatchetKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(alice) DH3: %w", err)
		}
	} else {
		dh1, err = ecc.ECDH(p.OurRatchetKey.Private, p.TheirIdentityKey.ECPublic)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(bob) DH1: %w", err)
		}
		dh2, err = ecc.ECDH(p.OurIdentityKey.ECPrivate, p.TheirBaseKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(bob) DH2: %w", err)
		}
		dh3, err = ecc.ECDH(p.OurRatchetKey.Private, p.TheirBaseKey)
		if err != nil {
			return DerivedSecrets{}, fmt.Errorf("ratchet: symmetric(bob) DH3: %w", err)
		}
	}

	return deriveRoot(dh1, dh2, dh3)
}
