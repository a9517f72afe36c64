package notecrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublicFromSecret(t *testing.T) {
	pub, sec, err := GenerateKeys()
	require.NoError(t, err)

	recovered, err := PublicFromSecret(sec)
	require.NoError(t, err)
	require.Equal(t, pub, recovered)
	require.True(t, CheckKey(pub))
}

// TestDerivationSymmetry checks that the sender's derivation from the
// receiver's view public key equals the receiver's derivation from the
// sender's transaction public key.
func TestDerivationSymmetry(t *testing.T) {
	txPub, txSec, err := GenerateKeys()
	require.NoError(t, err)
	viewPub, viewSec, err := GenerateKeys()
	require.NoError(t, err)

	senderSide, err := GenerateKeyDerivation(viewPub, txSec)
	require.NoError(t, err)
	receiverSide, err := GenerateKeyDerivation(txPub, viewSec)
	require.NoError(t, err)
	require.Equal(t, senderSide, receiverSide)
}

// TestOneTimeKeys checks that the derived secret key matches the derived
// public key for the same output index.
func TestOneTimeKeys(t *testing.T) {
	txPub, txSec, err := GenerateKeys()
	require.NoError(t, err)
	viewPub, viewSec, err := GenerateKeys()
	require.NoError(t, err)
	spendPub, spendSec, err := GenerateKeys()
	require.NoError(t, err)

	senderDerivation, err := GenerateKeyDerivation(viewPub, txSec)
	require.NoError(t, err)
	oneTimePub, err := DerivePublicKey(senderDerivation, 3, spendPub)
	require.NoError(t, err)

	receiverDerivation, err := GenerateKeyDerivation(txPub, viewSec)
	require.NoError(t, err)
	oneTimeSec, err := DeriveSecretKey(receiverDerivation, 3, spendSec)
	require.NoError(t, err)

	recovered, err := PublicFromSecret(oneTimeSec)
	require.NoError(t, err)
	require.Equal(t, oneTimePub, recovered)

	// A different output index yields a different key.
	otherPub, err := DerivePublicKey(senderDerivation, 4, spendPub)
	require.NoError(t, err)
	require.NotEqual(t, oneTimePub, otherPub)
}

func TestKeyImageDeterminism(t *testing.T) {
	pub, sec, err := GenerateKeys()
	require.NoError(t, err)

	first, err := GenerateKeyImage(pub, sec)
	require.NoError(t, err)
	second, err := GenerateKeyImage(pub, sec)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRingSignature(t *testing.T) {
	const ringSize = 4
	const realIndex = 2

	var prefixHash [32]byte
	copy(prefixHash[:], []byte("prefix hash of the transaction.."))

	pubs := make([]PublicKey, ringSize)
	var sec SecretKey
	for i := range pubs {
		pub, s, err := GenerateKeys()
		require.NoError(t, err)
		pubs[i] = pub
		if i == realIndex {
			sec = s
		}
	}

	image, err := GenerateKeyImage(pubs[realIndex], sec)
	require.NoError(t, err)

	sigs, err := GenerateRingSignature(prefixHash, image, pubs, sec, realIndex)
	require.NoError(t, err)
	require.Len(t, sigs, ringSize)
	require.True(t, CheckRingSignature(prefixHash, image, pubs, sigs))

	// A flipped prefix bit must invalidate the signature.
	prefixHash[0] ^= 0x01
	require.False(t, CheckRingSignature(prefixHash, image, pubs, sigs))
	prefixHash[0] ^= 0x01

	// So must a mangled signature element.
	sigs[1][0] ^= 0x01
	require.False(t, CheckRingSignature(prefixHash, image, pubs, sigs))
}

func TestRingSignatureBadIndex(t *testing.T) {
	pub, sec, err := GenerateKeys()
	require.NoError(t, err)
	image, err := GenerateKeyImage(pub, sec)
	require.NoError(t, err)

	_, err = GenerateRingSignature([32]byte{}, image, []PublicKey{pub}, sec, 1)
	require.ErrorIs(t, err, ErrRingIndex)
}

func TestDecomposeAmount(t *testing.T) {
	tests := []struct {
		amount        uint64
		dustThreshold uint64
		want          []uint64
	}{
		{0, 10000, nil},
		{10000, 10000, []uint64{10000}},
		{123456789, 10000, []uint64{6789, 50000, 400000, 3000000, 20000000, 100000000}},
		{1000000, 10000, []uint64{1000000}},
		{610, 10000, []uint64{610}},
	}

	for _, test := range tests {
		got := DecomposeAmount(test.amount, test.dustThreshold)
		require.Equal(t, test.want, got, "amount %d", test.amount)

		var sum uint64
		for _, chunk := range got {
			sum += chunk
		}
		require.Equal(t, test.amount, sum)
	}
}
