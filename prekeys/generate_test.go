package prekeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikalv/libaxolotl/keys/identity"
)

func TestGenerateBatchProducesConsecutiveIDs(t *testing.T) {
	records, err := GenerateBatch(100, 5)
	require.NoError(t, err)
	require.Len(t, records, 5)

	seen := make(map[uint32]bool)
	for i, rec := range records {
		assert.Equal(t, uint32(100+i), rec.ID)
		assert.NotNil(t, rec.KeyPair)
		assert.False(t, seen[rec.ID], "duplicate pre-key id")
		seen[rec.ID] = true
	}
}

func TestGenerateBatchRejectsNonPositiveCount(t *testing.T) {
	_, err := GenerateBatch(1, 0)
	assert.Error(t, err)
	_, err = GenerateBatch(1, -1)
	assert.Error(t, err)
}

func TestGenerateSignedPreKeySignatureVerifies(t *testing.T) {
	identityKeyPair, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := GenerateSignedPreKey(identityKeyPair, 3)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), signed.ID)
	assert.True(t, identity.VerifySignature(identityKeyPair.PublicKey(), signed.KeyPair.Public.Serialize(), signed.Signature))
}

func TestGenerateSignedPreKeyRejectsForeignSignature(t *testing.T) {
	owner, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	impostor, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := GenerateSignedPreKey(owner, 1)
	require.NoError(t, err)

	assert.False(t, identity.VerifySignature(impostor.PublicKey(), signed.KeyPair.Public.Serialize(), signed.Signature))
}
