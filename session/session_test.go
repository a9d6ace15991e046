package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/prekeys"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/session"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/store"
	"github.com/mikalv/libaxolotl/state/store/memstore"
	"github.com/mikalv/libaxolotl/util/optional"
)

type harness struct {
	identityKeyPair *identity.KeyPair
	registrationID  uint32
	stores          store.All
}

func newHarness(t *testing.T, registrationID uint32) harness {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	ms := memstore.New(kp, registrationID)
	return harness{identityKeyPair: kp, registrationID: registrationID, stores: ms.Bundle()}
}

// publishBundle generates and stores a signed pre-key and one one-time
// pre-key for bob, and returns the published bundle Alice would fetch from
// a directory.
func publishBundle(t *testing.T, ctx context.Context, bob harness, signedPreKeyID, oneTimePreKeyID uint32) prekey.Bundle {
	t.Helper()
	signed, err := prekeys.GenerateSignedPreKey(bob.identityKeyPair, signedPreKeyID)
	require.NoError(t, err)
	require.NoError(t, bob.stores.SignedPreKey.StoreSignedPreKey(ctx, signed.ID, signed))

	oneTime, err := prekeys.GenerateBatch(oneTimePreKeyID, 1)
	require.NoError(t, err)
	require.NoError(t, bob.stores.PreKey.StorePreKey(ctx, oneTime[0].ID, oneTime[0]))

	return prekey.NewBundle(
		bob.registrationID, 1,
		optional.NewUint32(oneTime[0].ID), &oneTime[0].KeyPair.Public,
		signed.ID, signed.KeyPair.Public, signed.Signature, true,
		bob.identityKeyPair.PublicKey(),
	)
}

func TestProcessBundleEstablishesV3Session(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	bobAddress := protocol.NewAddress("bob", 1)

	bundle := publishBundle(t, ctx, bob, 1, 1)

	builder := session.NewBuilder(alice.stores, bobAddress)
	require.NoError(t, builder.ProcessBundle(ctx, bundle))

	sess, err := alice.stores.Session.LoadSession(ctx, bobAddress)
	require.NoError(t, err)
	assert.False(t, sess.IsFresh())
	assert.Equal(t, protocol.CurrentVersion, sess.SessionState().Version)
}

func TestProcessBundleRejectsIdentityChangeAfterPinning(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	bobAddress := protocol.NewAddress("bob", 1)

	builder := session.NewBuilder(alice.stores, bobAddress)
	require.NoError(t, builder.ProcessBundle(ctx, publishBundle(t, ctx, bob, 1, 1)))

	impostor := newHarness(t, 2)
	impostorBundle := publishBundle(t, ctx, impostor, 2, 2)

	err := builder.ProcessBundle(ctx, impostorBundle)
	assert.ErrorIs(t, err, signalerror.ErrUntrustedIdentity)
}

func TestProcessBundleRejectsBadSignedPreKeySignature(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	bobAddress := protocol.NewAddress("bob", 1)

	bundle := publishBundle(t, ctx, bob, 1, 1)
	bundle.SignedPreKeySig[0] ^= 0xFF

	builder := session.NewBuilder(alice.stores, bobAddress)
	err := builder.ProcessBundle(ctx, bundle)
	assert.ErrorIs(t, err, signalerror.ErrInvalidKey)
}

func TestProcessPreKeyMessageV3ConsumesOneTimeKeyThenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	bobAddress := protocol.NewAddress("bob", 1)
	aliceAddress := protocol.NewAddress("alice", 1)

	aliceBuilder := session.NewBuilder(alice.stores, bobAddress)
	require.NoError(t, aliceBuilder.ProcessBundle(ctx, publishBundle(t, ctx, bob, 1, 1)))

	aliceSession, err := alice.stores.Session.LoadSession(ctx, bobAddress)
	require.NoError(t, err)
	aliceState := aliceSession.SessionState()
	message := protocol.PreKeySignalMessage{
		Version:        protocol.CurrentVersion,
		RegistrationID: alice.registrationID,
		PreKeyID:       aliceState.UnacknowledgedPreKeyMessage.PreKeyID,
		SignedPreKeyID: aliceState.UnacknowledgedPreKeyMessage.SignedPreKeyID,
		BaseKey:        aliceState.UnacknowledgedPreKeyMessage.BaseKey,
		IdentityKey:    alice.identityKeyPair.PublicKey(),
	}

	bobBuilder := session.NewBuilder(bob.stores, aliceAddress)
	bobSession, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)

	consumed, err := bobBuilder.ProcessPreKeyMessage(ctx, bobSession, message)
	require.NoError(t, err)
	require.False(t, consumed.IsEmpty)
	assert.Equal(t, uint32(1), consumed.Value)
	require.NoError(t, bob.stores.Session.StoreSession(ctx, aliceAddress, bobSession))
	require.NoError(t, bob.stores.PreKey.RemovePreKey(ctx, consumed.Value))

	// Re-delivery of the same first message must be a silent no-op, not a
	// second session installation or a second consumed pre-key id.
	bobSession2, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)
	consumedAgain, err := bobBuilder.ProcessPreKeyMessage(ctx, bobSession2, message)
	require.NoError(t, err)
	assert.True(t, consumedAgain.IsEmpty)
}

func TestProcessPreKeyMessageV2RequiresPreKeyID(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	aliceAddress := protocol.NewAddress("alice", 1)

	bobBuilder := session.NewBuilder(bob.stores, aliceAddress)
	bobSession, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)

	message := protocol.PreKeySignalMessage{
		Version:        2,
		RegistrationID: alice.registrationID,
		PreKeyID:       optional.NewEmptyUint32(),
		BaseKey:        bob.identityKeyPair.PublicKey().ECPublic,
		IdentityKey:    alice.identityKeyPair.PublicKey(),
	}
	_, err = bobBuilder.ProcessPreKeyMessage(ctx, bobSession, message)
	assert.ErrorIs(t, err, signalerror.ErrInvalidKeyID)
}

func TestProcessPreKeyMessageV2MissingKeyWithExistingSessionIsNoOp(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	aliceAddress := protocol.NewAddress("alice", 1)

	// Seed an existing session for alice's address so the "already
	// established" branch is reachable.
	existing, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)
	existing.MarkInstalled()
	require.NoError(t, bob.stores.Session.StoreSession(ctx, aliceAddress, existing))

	bobBuilder := session.NewBuilder(bob.stores, aliceAddress)
	sessionRecord, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)

	message := protocol.PreKeySignalMessage{
		Version:        2,
		RegistrationID: alice.registrationID,
		PreKeyID:       optional.NewUint32(999), // never stored
		BaseKey:        bob.identityKeyPair.PublicKey().ECPublic,
		IdentityKey:    alice.identityKeyPair.PublicKey(),
	}
	consumed, err := bobBuilder.ProcessPreKeyMessage(ctx, sessionRecord, message)
	require.NoError(t, err)
	assert.True(t, consumed.IsEmpty)
}

func TestProcessPreKeyMessageV2MissingKeyWithoutSessionIsError(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, 1)
	bob := newHarness(t, 2)
	aliceAddress := protocol.NewAddress("alice", 1)

	bobBuilder := session.NewBuilder(bob.stores, aliceAddress)
	sessionRecord, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	require.NoError(t, err)

	message := protocol.PreKeySignalMessage{
		Version:        2,
		RegistrationID: alice.registrationID,
		PreKeyID:       optional.NewUint32(999), // never stored, no existing session either
		BaseKey:        bob.identityKeyPair.PublicKey().ECPublic,
		IdentityKey:    alice.identityKeyPair.PublicKey(),
	}
	_, err = bobBuilder.ProcessPreKeyMessage(ctx, sessionRecord, message)
	assert.ErrorIs(t, err, signalerror.ErrInvalidKeyID)
}

func TestSimultaneousInitiateConvergesOnBothSides(t *testing.T) {
	ctx := context.Background()
	carol := newHarness(t, 1)
	dave := newHarness(t, 2)
	carolAddress := protocol.NewAddress("carol", 1)
	daveAddress := protocol.NewAddress("dave", 1)

	carolBuilder := session.NewBuilder(carol.stores, daveAddress)
	daveBuilder := session.NewBuilder(dave.stores, carolAddress)

	carolInitiate, err := carolBuilder.InitiateKeyExchange(ctx)
	require.NoError(t, err)
	daveInitiate, err := daveBuilder.InitiateKeyExchange(ctx)
	require.NoError(t, err)

	carolResponse, err := carolBuilder.ProcessKeyExchange(ctx, *daveInitiate)
	require.NoError(t, err)
	daveResponse, err := daveBuilder.ProcessKeyExchange(ctx, *carolInitiate)
	require.NoError(t, err)

	assert.True(t, carolResponse.IsResponseForSimultaneousInitiate())
	assert.True(t, daveResponse.IsResponseForSimultaneousInitiate())

	carolHasSession, err := carol.stores.Session.ContainsSession(ctx, daveAddress)
	require.NoError(t, err)
	daveHasSession, err := dave.stores.Session.ContainsSession(ctx, carolAddress)
	require.NoError(t, err)
	assert.True(t, carolHasSession)
	assert.True(t, daveHasSession)

	carolSession, err := carol.stores.Session.LoadSession(ctx, daveAddress)
	require.NoError(t, err)
	daveSession, err := dave.stores.Session.LoadSession(ctx, carolAddress)
	require.NoError(t, err)
	assert.Equal(t, carolSession.SessionState().Version, daveSession.SessionState().Version)

	// Feeding each side the other's (now stale) RESPONSE must be a silent
	// no-op, not an error.
	_, err = carolBuilder.ProcessKeyExchange(ctx, *daveResponse)
	assert.NoError(t, err)
	_, err = daveBuilder.ProcessKeyExchange(ctx, *carolResponse)
	assert.NoError(t, err)
}

func TestProcessKeyExchangeResponseWithoutPendingIsStale(t *testing.T) {
	ctx := context.Background()
	carol := newHarness(t, 1)
	dave := newHarness(t, 2)
	carolAddress := protocol.NewAddress("carol", 1)
	daveAddress := protocol.NewAddress("dave", 1)

	daveBuilder := session.NewBuilder(dave.stores, carolAddress)
	carolBuilder := session.NewBuilder(carol.stores, daveAddress)

	// Dave initiates and carol answers normally (no collision): carol
	// never had a pending exchange of her own.
	daveInitiate, err := daveBuilder.InitiateKeyExchange(ctx)
	require.NoError(t, err)
	carolResponse, err := carolBuilder.ProcessKeyExchange(ctx, *daveInitiate)
	require.NoError(t, err)
	assert.False(t, carolResponse.IsResponseForSimultaneousInitiate())

	_, err = daveBuilder.ProcessKeyExchange(ctx, *carolResponse)
	require.NoError(t, err)

	// Replaying the same (now-consumed) response again finds no pending
	// exchange and no simultaneous-initiate flag: stale.
	_, err = daveBuilder.ProcessKeyExchange(ctx, *carolResponse)
	assert.ErrorIs(t, err, signalerror.ErrStaleKeyExchange)
}

func TestProcessKeyExchangeResponseWithBadSignatureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	carol := newHarness(t, 1)
	dave := newHarness(t, 2)
	carolAddress := protocol.NewAddress("carol", 1)
	daveAddress := protocol.NewAddress("dave", 1)

	carolBuilder := session.NewBuilder(carol.stores, daveAddress)
	daveBuilder := session.NewBuilder(dave.stores, carolAddress)

	carolInitiate, err := carolBuilder.InitiateKeyExchange(ctx)
	require.NoError(t, err)

	daveResponse, err := daveBuilder.ProcessKeyExchange(ctx, *carolInitiate)
	require.NoError(t, err)
	daveResponse.BaseKeySig[0] ^= 0xFF

	_, err = carolBuilder.ProcessKeyExchange(ctx, *daveResponse)
	assert.ErrorIs(t, err, signalerror.ErrInvalidKey)

	sess, err := carol.stores.Session.LoadSession(ctx, daveAddress)
	require.NoError(t, err)
	state := sess.SessionState()
	require.NotNil(t, state.PendingKeyExchange, "pending exchange must survive a forged response")
	assert.Equal(t, carolInitiate.Sequence, state.PendingKeyExchange.Sequence)
	assert.Equal(t, ecc.PublicKey{}, state.SenderRatchetKey(), "no chain must be installed from an unverified response")
	assert.False(t, state.HasReceiverChain(daveResponse.RatchetKey))
}
