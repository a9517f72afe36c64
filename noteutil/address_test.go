package noteutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/notecrypto"
)

const testPrefix = 0x1eaf

func testAddress(t *testing.T) Address {
	t.Helper()

	spendPub, _, err := notecrypto.GenerateKeys()
	require.NoError(t, err)
	viewPub, _, err := notecrypto.GenerateKeys()
	require.NoError(t, err)

	return Address{SpendPublicKey: spendPub, ViewPublicKey: viewPub}
}

func TestAddressRoundTrip(t *testing.T) {
	addr := testAddress(t)

	encoded := EncodeAddress(testPrefix, addr)
	decoded, err := DecodeAddress(testPrefix, encoded)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}

func TestDecodeAddressRejectsCorruptChecksum(t *testing.T) {
	addr := testAddress(t)
	encoded := EncodeAddress(testPrefix, addr)

	// Swap two distinct characters to break the checksum while keeping
	// the base58 alphabet valid.
	raw := []byte(encoded)
	for i := 0; i < len(raw)-1; i++ {
		if raw[i] != raw[i+1] {
			raw[i], raw[i+1] = raw[i+1], raw[i]
			break
		}
	}

	_, err := DecodeAddress(testPrefix, string(raw))
	require.ErrorIs(t, err, ErrMalformedAddress)
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	addr := testAddress(t)
	encoded := EncodeAddress(0x1cad, addr)

	_, err := DecodeAddress(testPrefix, encoded)
	require.ErrorIs(t, err, ErrWrongNetwork)
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress(testPrefix, "not an address 0OIl")
	require.ErrorIs(t, err, ErrMalformedAddress)

	_, err = DecodeAddress(testPrefix, "")
	require.ErrorIs(t, err, ErrMalformedAddress)
}

func TestBase58RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff},
		{0x00, 0x01, 0x02},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{1, 2, 3, 4, 5, 6, 7, 8, 9},
		make([]byte, 69),
	}

	for _, data := range cases {
		decoded, err := Base58Decode(Base58Encode(data))
		require.NoError(t, err)
		require.Equal(t, data, decoded)
	}
}

func TestAmountFormatting(t *testing.T) {
	amount, err := NewAmount(1.5)
	require.NoError(t, err)
	require.Equal(t, Amount(150000000), amount)
	require.Equal(t, 1.5, amount.ToNOTE())

	_, err = NewAmount(math.Inf(1))
	require.Error(t, err)
}
