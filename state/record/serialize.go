package record

import (
	"encoding/json"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
)

// snapshot is the JSON-serializable mirror of Session/SessionState, built so
// a storage backend never needs direct access to the unexported chain
// fields. Serialize/Deserialize round-trip through this type only.
type snapshot struct {
	Current *stateSnapshot   `json:"current"`
	Archive []*stateSnapshot `json:"archive"` // front (most recent) first
	Fresh   bool             `json:"fresh"`
}

type stateSnapshot struct {
	Version              int                          `json:"version"`
	LocalRegistrationID  uint32                       `json:"local_registration_id"`
	RemoteRegistrationID uint32                       `json:"remote_registration_id"`
	LocalIdentityKey     identityKeySnapshot          `json:"local_identity_key"`
	RemoteIdentityKey    identityKeySnapshot          `json:"remote_identity_key"`
	AliceBaseKey         []byte                       `json:"alice_base_key"`
	RootKey              [32]byte                     `json:"root_key"`
	SenderRatchetKey     [32]byte                     `json:"sender_ratchet_key"`
	SenderChainKey       [32]byte                     `json:"sender_chain_key"`
	ReceiverChains       []receiverChainSnapshot      `json:"receiver_chains"`
	Unacked              *unackedSnapshot             `json:"unacked,omitempty"`
	Pending              *pendingKeyExchangeSnapshot  `json:"pending,omitempty"`
}

type identityKeySnapshot struct {
	ECPublic   [32]byte `json:"ec_public"`
	SignPublic []byte   `json:"sign_public"`
}

type receiverChainSnapshot struct {
	RatchetKey [32]byte `json:"ratchet_key"`
	ChainKey   [32]byte `json:"chain_key"`
}

type unackedSnapshot struct {
	HasPreKeyID    bool     `json:"has_pre_key_id"`
	PreKeyID       uint32   `json:"pre_key_id"`
	SignedPreKeyID uint32   `json:"signed_pre_key_id"`
	BaseKey        [32]byte `json:"base_key"`
}

type pendingKeyExchangeSnapshot struct {
	Sequence       uint32   `json:"sequence"`
	BaseKeyPub     [32]byte `json:"base_key_pub"`
	BaseKeyPriv    [32]byte `json:"base_key_priv"`
	RatchetKeyPub  [32]byte `json:"ratchet_key_pub"`
	RatchetKeyPriv [32]byte `json:"ratchet_key_priv"`
	IDKeyECPub     [32]byte `json:"id_key_ec_pub"`
	IDKeyECPriv    [32]byte `json:"id_key_ec_priv"`
	IDKeySignPub   []byte   `json:"id_key_sign_pub"`
	IDKeySignPriv  []byte   `json:"id_key_sign_priv"`
}

func toStateSnapshot(s *SessionState) *stateSnapshot {
	out := &stateSnapshot{
		Version:              s.Version,
		LocalRegistrationID:  s.LocalRegistrationID,
		RemoteRegistrationID: s.RemoteRegistrationID,
		LocalIdentityKey:     identityKeySnapshot{ECPublic: s.LocalIdentityKey.ECPublic, SignPublic: s.LocalIdentityKey.SignPublic},
		RemoteIdentityKey:    identityKeySnapshot{ECPublic: s.RemoteIdentityKey.ECPublic, SignPublic: s.RemoteIdentityKey.SignPublic},
		AliceBaseKey:         s.AliceBaseKey,
		RootKey:              s.RootKey,
		SenderRatchetKey:     s.senderRatchetKey,
		SenderChainKey:       s.senderChainKey,
	}
	for _, c := range s.receiverChains {
		out.ReceiverChains = append(out.ReceiverChains, receiverChainSnapshot{RatchetKey: c.RatchetKey, ChainKey: c.ChainKey})
	}
	if u := s.UnacknowledgedPreKeyMessage; u != nil {
		out.Unacked = &unackedSnapshot{
			HasPreKeyID:    !u.PreKeyID.IsEmpty,
			PreKeyID:       u.PreKeyID.Value,
			SignedPreKeyID: u.SignedPreKeyID,
			BaseKey:        u.BaseKey,
		}
	}
	if p := s.PendingKeyExchange; p != nil {
		out.Pending = &pendingKeyExchangeSnapshot{
			Sequence:       p.Sequence,
			BaseKeyPub:     p.BaseKey.Public,
			BaseKeyPriv:    p.BaseKey.Private,
			RatchetKeyPub:  p.RatchetKey.Public,
			RatchetKeyPriv: p.RatchetKey.Private,
			IDKeyECPub:     p.IdentityKey.Public.ECPublic,
			IDKeyECPriv:    p.IdentityKey.ECPrivate,
			IDKeySignPub:   p.IdentityKey.Public.SignPublic,
			IDKeySignPriv:  p.IdentityKey.SignPrivate,
		}
	}
	return out
}

func fromStateSnapshot(in *stateSnapshot) *SessionState {
	s := &SessionState{
		Version:              in.Version,
		LocalRegistrationID:  in.LocalRegistrationID,
		RemoteRegistrationID: in.RemoteRegistrationID,
		AliceBaseKey:         in.AliceBaseKey,
		RootKey:              in.RootKey,
		senderRatchetKey:     in.SenderRatchetKey,
		senderChainKey:       in.SenderChainKey,
	}
	s.LocalIdentityKey.ECPublic = in.LocalIdentityKey.ECPublic
	s.LocalIdentityKey.SignPublic = in.LocalIdentityKey.SignPublic
	s.RemoteIdentityKey.ECPublic = in.RemoteIdentityKey.ECPublic
	s.RemoteIdentityKey.SignPublic = in.RemoteIdentityKey.SignPublic
	for _, c := range in.ReceiverChains {
		s.receiverChains = append(s.receiverChains, receiverChain{RatchetKey: c.RatchetKey, ChainKey: c.ChainKey})
	}
	if in.Unacked != nil {
		u := &UnacknowledgedPreKeyMessage{
			SignedPreKeyID: in.Unacked.SignedPreKeyID,
			BaseKey:        in.Unacked.BaseKey,
		}
		if in.Unacked.HasPreKeyID {
			u.PreKeyID.Value = in.Unacked.PreKeyID
		} else {
			u.PreKeyID.IsEmpty = true
		}
		s.UnacknowledgedPreKeyMessage = u
	}
	if in.Pending != nil {
		p := in.Pending
		pending := &PendingKeyExchange{
			Sequence:   p.Sequence,
			BaseKey:    &ecc.ECKeyPair{Public: p.BaseKeyPub, Private: p.BaseKeyPriv},
			RatchetKey: &ecc.ECKeyPair{Public: p.RatchetKeyPub, Private: p.RatchetKeyPriv},
			IdentityKey: &identity.KeyPair{
				Public:      identity.Key{ECPublic: p.IDKeyECPub, SignPublic: p.IDKeySignPub},
				ECPrivate:   p.IDKeyECPriv,
				SignPrivate: p.IDKeySignPriv,
			},
		}
		s.PendingKeyExchange = pending
	}
	return s
}

// Serialize renders the full record (current state plus archive) as JSON,
// for a storage backend to persist verbatim.
func (r *Session) Serialize() ([]byte, error) {
	out := snapshot{Current: toStateSnapshot(r.current), Fresh: r.fresh}
	for e := r.archive.Front(); e != nil; e = e.Next() {
		out.Archive = append(out.Archive, toStateSnapshot(e.Value.(*SessionState)))
	}
	return json.Marshal(out)
}

// Deserialize reconstructs a Session previously produced by Serialize.
func Deserialize(data []byte) (*Session, error) {
	var in snapshot
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	r := NewSession()
	r.fresh = in.Fresh
	if in.Current != nil {
		r.current = fromStateSnapshot(in.Current)
	}
	for _, s := range in.Archive {
		r.archive.PushBack(fromStateSnapshot(s))
	}
	return r, nil
}
