// Package snacl wraps scrypt key derivation and NaCl secretbox encryption
// for password-protecting wallet snapshots.
package snacl

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/notesuite/notewallet/internal/zero"
)

var (
	prng = rand.Reader

	// ErrInvalidPassword is returned when a password fails to reproduce
	// the stored key digest.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrMalformed is returned when marshalled parameters are truncated
	// or corrupt.
	ErrMalformed = errors.New("malformed data")

	// ErrDecryptFailed is returned when a secretbox fails to open.
	ErrDecryptFailed = errors.New("unable to decrypt")
)

// Various constants needed for encryption scheme.
const (
	// KeySize is the size of the derived encryption key.
	KeySize = 32

	saltSize  = 32
	nonceSize = 24

	// DefaultN, DefaultR and DefaultP are the default scrypt parameters.
	DefaultN = 16384 // 2^14
	DefaultR = 8
	DefaultP = 1
)

// Parameters are the scrypt parameters and verification digest a secret key
// is derived under.  They are not secret and are stored in plaintext next to
// the ciphertext.
type Parameters struct {
	Salt   [saltSize]byte
	Digest [sha256.Size]byte
	N      int
	R      int
	P      int
}

// SecretKey is a derived encryption key together with its derivation
// parameters.
type SecretKey struct {
	Key        *[KeySize]byte
	Parameters Parameters
}

// deriveKey fills in sk.Key from the password and the stored parameters.
func (sk *SecretKey) deriveKey(password *[]byte) error {
	key, err := scrypt.Key(*password, sk.Parameters.Salt[:],
		sk.Parameters.N, sk.Parameters.R, sk.Parameters.P, KeySize)
	if err != nil {
		return err
	}
	copy(sk.Key[:], key)
	zero.Bytes(key)
	return nil
}

// Marshal returns the key's parameters as a byte slice suitable for
// persisting alongside the ciphertext.
func (sk *SecretKey) Marshal() []byte {
	params := &sk.Parameters

	marshalled := make([]byte, 0, saltSize+sha256.Size+24)
	marshalled = append(marshalled, params.Salt[:]...)
	marshalled = append(marshalled, params.Digest[:]...)

	var intBytes [8]byte
	binary.LittleEndian.PutUint64(intBytes[:], uint64(params.N))
	marshalled = append(marshalled, intBytes[:]...)
	binary.LittleEndian.PutUint64(intBytes[:], uint64(params.R))
	marshalled = append(marshalled, intBytes[:]...)
	binary.LittleEndian.PutUint64(intBytes[:], uint64(params.P))
	marshalled = append(marshalled, intBytes[:]...)

	return marshalled
}

// Unmarshal restores the key's parameters from a Marshal result.  DeriveKey
// must be called afterwards to recover the key itself.
func (sk *SecretKey) Unmarshal(marshalled []byte) error {
	if sk.Key == nil {
		sk.Key = new([KeySize]byte)
	}

	if len(marshalled) != saltSize+sha256.Size+24 {
		return ErrMalformed
	}

	params := &sk.Parameters
	copy(params.Salt[:], marshalled[:saltSize])
	marshalled = marshalled[saltSize:]
	copy(params.Digest[:], marshalled[:sha256.Size])
	marshalled = marshalled[sha256.Size:]
	params.N = int(binary.LittleEndian.Uint64(marshalled[:8]))
	params.R = int(binary.LittleEndian.Uint64(marshalled[8:16]))
	params.P = int(binary.LittleEndian.Uint64(marshalled[16:24]))

	return nil
}

// DeriveKey re-derives the key from a password, verifying it against the
// stored digest.
func (sk *SecretKey) DeriveKey(password *[]byte) error {
	if err := sk.deriveKey(password); err != nil {
		return err
	}

	digest := sha256.Sum256(sk.Key[:])
	if subtle.ConstantTimeCompare(digest[:], sk.Parameters.Digest[:]) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// Encrypt seals data under the key with a random nonce.
func (sk *SecretKey) Encrypt(in []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(prng, nonce[:]); err != nil {
		return nil, err
	}

	blob := secretbox.Seal(nil, in, &nonce, sk.Key)
	return append(nonce[:], blob...), nil
}

// Decrypt opens data sealed by Encrypt.
func (sk *SecretKey) Decrypt(in []byte) ([]byte, error) {
	if len(in) < nonceSize {
		return nil, ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], in[:nonceSize])

	opened, ok := secretbox.Open(nil, in[nonceSize:], &nonce, sk.Key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return opened, nil
}

// Zero clears the key material.
func (sk *SecretKey) Zero() {
	zero.Bytea32((*[KeySize]byte)(sk.Key))
}

// NewSecretKey derives a fresh key from a password with a random salt.
func NewSecretKey(password *[]byte, n, r, p int) (*SecretKey, error) {
	sk := SecretKey{Key: new([KeySize]byte)}

	sk.Parameters.N = n
	sk.Parameters.R = r
	sk.Parameters.P = p
	if _, err := io.ReadFull(prng, sk.Parameters.Salt[:]); err != nil {
		return nil, err
	}

	if err := sk.deriveKey(password); err != nil {
		return nil, err
	}
	sk.Parameters.Digest = sha256.Sum256(sk.Key[:])

	return &sk, nil
}
