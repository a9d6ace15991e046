// Package record holds SessionState and SessionRecord, the mutable state
// the session builder populates and the bounded archive that lets old
// states keep decrypting in-flight messages after re-establishment
// (spec.md §3).
package record

import (
	"bytes"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/ratchet"
	"github.com/mikalv/libaxolotl/util/optional"
)

// UnacknowledgedPreKeyMessage records the pre-key identifiers of an
// outbound message the peer has not yet acknowledged, so a retransmit can
// still locate the right keys.
type UnacknowledgedPreKeyMessage struct {
	PreKeyID       optional.Uint32
	SignedPreKeyID uint32
	BaseKey        ecc.PublicKey
}

// PendingKeyExchange is the in-memory record of an outbound
// KeyExchangeMessage awaiting the peer's response.
type PendingKeyExchange struct {
	Sequence    uint32
	BaseKey     *ecc.ECKeyPair
	RatchetKey  *ecc.ECKeyPair
	IdentityKey *identity.KeyPair
}

// receiverChain is one entry of the (small, in practice singleton) set of
// receiving chains keyed by the peer's ratchet public key.
type receiverChain struct {
	RatchetKey ecc.PublicKey
	ChainKey   ratchet.ChainKey
}

// SessionState is the mutable record of an established or pending
// session (spec.md §3).
type SessionState struct {
	Version               int
	LocalRegistrationID    uint32
	RemoteRegistrationID   uint32
	LocalIdentityKey       identity.Key
	RemoteIdentityKey      identity.Key
	AliceBaseKey           []byte // the session "fingerprint"

	RootKey ratchet.RootKey

	senderRatchetKey ecc.PublicKey
	senderChainKey   ratchet.ChainKey
	receiverChains   []receiverChain

	UnacknowledgedPreKeyMessage *UnacknowledgedPreKeyMessage
	PendingKeyExchange          *PendingKeyExchange
}

// SetSenderChain installs the current sending ratchet key and chain key.
func (s *SessionState) SetSenderChain(ratchetKey *ecc.ECKeyPair, chainKey ratchet.ChainKey) {
	s.senderRatchetKey = ratchetKey.Public
	s.senderChainKey = chainKey
}

// SenderRatchetKey returns the current sending ratchet public key.
func (s *SessionState) SenderRatchetKey() ecc.PublicKey { return s.senderRatchetKey }

// SenderChainKey returns the current sending chain key.
func (s *SessionState) SenderChainKey() ratchet.ChainKey { return s.senderChainKey }

// AddReceiverChain records a receiving chain keyed by the peer's ratchet
// public key.
func (s *SessionState) AddReceiverChain(ratchetKey ecc.PublicKey, chainKey ratchet.ChainKey) {
	s.receiverChains = append(s.receiverChains, receiverChain{RatchetKey: ratchetKey, ChainKey: chainKey})
}

// HasReceiverChain reports whether a receiving chain exists for the given
// peer ratchet key.
func (s *SessionState) HasReceiverChain(ratchetKey ecc.PublicKey) bool {
	for _, c := range s.receiverChains {
		if c.RatchetKey == ratchetKey {
			return true
		}
	}
	return false
}

// matches reports whether aliceBaseKey matches this state's
// recorded fingerprint, for the given version.
func (s *SessionState) matches(version int, aliceBaseKey []byte) bool {
	return s.Version == version && bytes.Equal(s.AliceBaseKey, aliceBaseKey)
}

// clone returns a shallow copy suitable for moving into the archive; the
// slices/pointers it holds are never mutated in place after archiving, so
// sharing them is safe.
func (s *SessionState) clone() *SessionState {
	cp := *s
	cp.receiverChains = append([]receiverChain(nil), s.receiverChains...)
	return &cp
}
