package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/crypto"
)

func TestSHA256Deterministic(t *testing.T) {
	h1 := crypto.SHA256([]byte("issuance transaction"))
	h2 := crypto.SHA256([]byte("issuance transaction"))
	require.True(t, h1.Equal(h2))
	require.Len(t, h1.Bytes, crypto.HashSize)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("move 1000 GBP to ALICE")
	sig := crypto.Sign(priv, msg)
	require.True(t, sig.By.Equal(pub))
	require.True(t, crypto.Verify(sig, msg))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	sig := crypto.Sign(priv, []byte("original"))
	require.False(t, crypto.Verify(sig, []byte("tampered")))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv1, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, pub2, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("payload")
	sig := crypto.Sign(priv1, msg)
	sig.By = pub2

	require.False(t, crypto.Verify(sig, msg))
}

func TestLegallyIdentifiableSignatureRequiresMatchingKey(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sig := crypto.Sign(priv, []byte("fact"))
	party := crypto.Party{Name: "TSA", Key: pub}

	require.NotPanics(t, func() {
		crypto.NewLegallyIdentifiableSignature(sig, party)
	})

	_, otherPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	wrongParty := crypto.Party{Name: "TSA", Key: otherPub}
	require.Panics(t, func() {
		crypto.NewLegallyIdentifiableSignature(sig, wrongParty)
	})
}

func TestNewSecureHashValidatesLength(t *testing.T) {
	_, err := crypto.NewSecureHash(crypto.AlgorithmSHA256, []byte("too short"))
	require.ErrorIs(t, err, crypto.ErrInvalidHashLength)
}
