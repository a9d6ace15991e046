package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("a signed pre-key or key-exchange base key")
	sig := kp.Sign(message)

	assert.True(t, VerifySignature(kp.PublicKey(), message, sig))
	assert.False(t, VerifySignature(kp.PublicKey(), []byte("tampered"), sig))
}

func TestKeyEqual(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.True(t, a.PublicKey().Equal(a.PublicKey()))
	assert.False(t, a.PublicKey().Equal(b.PublicKey()))
}

func TestVerifySignatureRejectsForeignKey(t *testing.T) {
	signer, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("message")
	sig := signer.Sign(message)

	assert.False(t, VerifySignature(other.PublicKey(), message, sig))
}
