package ratchet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
)

func TestSenderReceiverSessionsAgree(t *testing.T) {
	aliceIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	bobIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	aliceBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	bobSignedPreKey, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	bobOneTimePreKey, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	aliceParams := AliceParameters{
		OurBaseKey:         aliceBase,
		OurIdentityKey:     aliceIdentity,
		TheirIdentityKey:   bobIdentity.PublicKey(),
		TheirSignedPreKey:  bobSignedPreKey.Public,
		TheirRatchetKey:    bobSignedPreKey.Public,
		TheirOneTimePreKey: &bobOneTimePreKey.Public,
	}
	bobParams := BobParameters{
		OurIdentityKey:   bobIdentity,
		OurSignedPreKey:  bobSignedPreKey,
		OurRatchetKey:    bobSignedPreKey,
		OurOneTimePreKey: bobOneTimePreKey,
		TheirIdentityKey: aliceIdentity.PublicKey(),
		TheirBaseKey:     aliceBase.Public,
	}

	aliceSecrets, err := CalculateSenderSession(aliceParams)
	require.NoError(t, err)
	bobSecrets, err := CalculateReceiverSession(bobParams)
	require.NoError(t, err)

	assert.Equal(t, aliceSecrets.RootKey, bobSecrets.RootKey)
	assert.Equal(t, aliceSecrets.ChainKey, bobSecrets.ChainKey)
}

func TestSenderReceiverSessionsAgreeWithoutOneTimePreKey(t *testing.T) {
	aliceIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	bobIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	aliceBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	bobSignedPreKey, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	aliceParams := AliceParameters{
		OurBaseKey:        aliceBase,
		OurIdentityKey:    aliceIdentity,
		TheirIdentityKey:  bobIdentity.PublicKey(),
		TheirSignedPreKey: bobSignedPreKey.Public,
		TheirRatchetKey:   bobSignedPreKey.Public,
	}
	bobParams := BobParameters{
		OurIdentityKey:   bobIdentity,
		OurSignedPreKey:  bobSignedPreKey,
		OurRatchetKey:    bobSignedPreKey,
		TheirIdentityKey: aliceIdentity.PublicKey(),
		TheirBaseKey:     aliceBase.Public,
	}

	aliceSecrets, err := CalculateSenderSession(aliceParams)
	require.NoError(t, err)
	bobSecrets, err := CalculateReceiverSession(bobParams)
	require.NoError(t, err)

	assert.Equal(t, aliceSecrets.RootKey, bobSecrets.RootKey)
	assert.Equal(t, aliceSecrets.ChainKey, bobSecrets.ChainKey)
}

func TestWeAreAliceIsComplementary(t *testing.T) {
	carolBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	daveBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	carolIsAlice := WeAreAlice(carolBase.Public, daveBase.Public)
	daveIsAlice := WeAreAlice(daveBase.Public, carolBase.Public)

	assert.NotEqual(t, carolIsAlice, daveIsAlice, "exactly one side must play Alice")
}

func TestSymmetricSessionAgreesFromBothSides(t *testing.T) {
	carolIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	daveIdentity, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	carolBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	carolRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	daveBase, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	daveRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	weAreAlice := WeAreAlice(carolBase.Public, daveBase.Public)

	carolParams := SymmetricParameters{
		OurBaseKey:       carolBase,
		OurRatchetKey:    carolRatchet,
		OurIdentityKey:   carolIdentity,
		TheirBaseKey:     daveBase.Public,
		TheirRatchetKey:  daveRatchet.Public,
		TheirIdentityKey: daveIdentity.PublicKey(),
	}
	daveParams := SymmetricParameters{
		OurBaseKey:       daveBase,
		OurRatchetKey:    daveRatchet,
		OurIdentityKey:   daveIdentity,
		TheirBaseKey:     carolBase.Public,
		TheirRatchetKey:  carolRatchet.Public,
		TheirIdentityKey: carolIdentity.PublicKey(),
	}

	carolSecrets, err := CalculateSymmetricSession(weAreAlice, carolParams)
	require.NoError(t, err)
	daveSecrets, err := CalculateSymmetricSession(!weAreAlice, daveParams)
	require.NoError(t, err)

	assert.Equal(t, carolSecrets.RootKey, daveSecrets.RootKey)
	assert.Equal(t, carolSecrets.ChainKey, daveSecrets.ChainKey)
}

func TestCreateChainAdvancesDeterministically(t *testing.T) {
	aliceRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)
	bobRatchet, err := ecc.GenerateKeyPair()
	require.NoError(t, err)

	var root RootKey
	for i := range root {
		root[i] = byte(i)
	}

	fromAlice, err := root.CreateChain(bobRatchet.Public, aliceRatchet)
	require.NoError(t, err)
	fromBob, err := root.CreateChain(aliceRatchet.Public, bobRatchet)
	require.NoError(t, err)

	assert.Equal(t, fromAlice.RootKey, fromBob.RootKey)
	assert.Equal(t, fromAlice.ChainKey, fromBob.ChainKey)
}
