package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/ratchet"
	"github.com/mikalv/libaxolotl/util/optional"
)

func newTestState(t *testing.T) *SessionState {
	t.Helper()
	localIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	remoteIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	senderRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	s := &SessionState{
		Version:              3,
		LocalRegistrationID:  1,
		RemoteRegistrationID: 2,
		LocalIdentityKey:     localIdentity.PublicKey(),
		RemoteIdentityKey:    remoteIdentity.PublicKey(),
		AliceBaseKey:         []byte("alice-base-key"),
	}
	for i := range s.RootKey {
		s.RootKey[i] = byte(i)
	}
	var chainKey ratchet.ChainKey
	for i := range chainKey {
		chainKey[i] = byte(i + 1)
	}
	s.SetSenderChain(senderRatchet, chainKey)

	receiverRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	s.AddReceiverChain(receiverRatchet.Public, chainKey)

	s.UnacknowledgedPreKeyMessage = &UnacknowledgedPreKeyMessage{
		PreKeyID:       optional.NewUint32(7),
		SignedPreKeyID: 9,
		BaseKey:        senderRatchet.Public,
	}

	baseKP, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	ratchetKP, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	pendingIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	s.PendingKeyExchange = &PendingKeyExchange{
		Sequence:    42,
		BaseKey:     baseKP,
		RatchetKey:  ratchetKP,
		IdentityKey: pendingIdentity,
	}
	return s
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	r := NewSession()
	*r.SessionState() = *newTestState(t)
	r.MarkInstalled()

	data, err := r.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	assert.False(t, restored.IsFresh())
	assertStatesEqual(t, r.SessionState(), restored.SessionState())
}

func TestSerializeDeserializeRoundTripsArchive(t *testing.T) {
	r := NewSession()
	*r.SessionState() = *newTestState(t)
	r.ArchiveCurrentState()

	*r.SessionState() = *newTestState(t)
	r.SessionState().Version = 2
	r.MarkInstalled()

	data, err := r.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	require.Len(t, restored.ArchivedStates(), 1)
	assert.Equal(t, 2, restored.SessionState().Version)
}

func TestDeserializeFreshSession(t *testing.T) {
	r := NewSession()
	data, err := r.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	assert.True(t, restored.IsFresh())
}

func assertStatesEqual(t *testing.T, want, got *SessionState) {
	t.Helper()
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.LocalRegistrationID, got.LocalRegistrationID)
	assert.Equal(t, want.RemoteRegistrationID, got.RemoteRegistrationID)
	assert.True(t, want.LocalIdentityKey.Equal(got.LocalIdentityKey))
	assert.True(t, want.RemoteIdentityKey.Equal(got.RemoteIdentityKey))
	assert.Equal(t, want.AliceBaseKey, got.AliceBaseKey)
	assert.Equal(t, want.RootKey, got.RootKey)
	assert.Equal(t, want.SenderRatchetKey(), got.SenderRatchetKey())
	assert.Equal(t, want.SenderChainKey(), got.SenderChainKey())
	assert.True(t, got.HasReceiverChain(want.receiverChains[0].RatchetKey))

	require.NotNil(t, got.UnacknowledgedPreKeyMessage)
	assert.Equal(t, want.UnacknowledgedPreKeyMessage.PreKeyID, got.UnacknowledgedPreKeyMessage.PreKeyID)
	assert.Equal(t, want.UnacknowledgedPreKeyMessage.SignedPreKeyID, got.UnacknowledgedPreKeyMessage.SignedPreKeyID)
	assert.Equal(t, want.UnacknowledgedPreKeyMessage.BaseKey, got.UnacknowledgedPreKeyMessage.BaseKey)

	require.NotNil(t, got.PendingKeyExchange)
	assert.Equal(t, want.PendingKeyExchange.Sequence, got.PendingKeyExchange.Sequence)
	assert.Equal(t, want.PendingKeyExchange.BaseKey.Public, got.PendingKeyExchange.BaseKey.Public)
	assert.Equal(t, want.PendingKeyExchange.BaseKey.Private, got.PendingKeyExchange.BaseKey.Private)
	assert.Equal(t, want.PendingKeyExchange.RatchetKey.Public, got.PendingKeyExchange.RatchetKey.Public)
	assert.True(t, want.PendingKeyExchange.IdentityKey.PublicKey().Equal(got.PendingKeyExchange.IdentityKey.PublicKey()))
}
