package snacl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	password := []byte("correct horse battery staple")
	key, err := NewSecretKey(&password, 16, 8, 1)
	require.NoError(t, err)

	plaintext := []byte("wallet snapshot payload")
	blob, err := key.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, blob)

	decrypted, err := key.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)

	// Corrupting the blob must fail authentication.
	blob[len(blob)-1] ^= 0xff
	_, err = key.Decrypt(blob)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestMarshalDeriveRoundTrip(t *testing.T) {
	password := []byte("pass")
	key, err := NewSecretKey(&password, 16, 8, 1)
	require.NoError(t, err)

	blob, err := key.Encrypt([]byte("data"))
	require.NoError(t, err)

	var restored SecretKey
	require.NoError(t, restored.Unmarshal(key.Marshal()))
	require.NoError(t, restored.DeriveKey(&password))

	decrypted, err := restored.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), decrypted)

	wrong := []byte("wrong")
	var restored2 SecretKey
	require.NoError(t, restored2.Unmarshal(key.Marshal()))
	require.ErrorIs(t, restored2.DeriveKey(&wrong), ErrInvalidPassword)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	var key SecretKey
	require.ErrorIs(t, key.Unmarshal([]byte("short")), ErrMalformed)
}
