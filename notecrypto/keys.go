// Package notecrypto implements the key and signature primitives used by the
// Notecoin transaction format: twisted Edwards key pairs, one-time output key
// derivations, key images and ring signatures.
package notecrypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

const (
	// KeySize is the size of public keys, secret keys and key images.
	KeySize = 32

	// SignatureSize is the size of a single ring signature element.
	SignatureSize = 64
)

// PublicKey is a point on the ed25519 curve in compressed form.
type PublicKey [KeySize]byte

// SecretKey is a scalar of the ed25519 group.
type SecretKey [KeySize]byte

// KeyDerivation is the shared secret point derived from a transaction key and
// a view key.  It seeds the one-time keys of every output addressed to the
// receiver.
type KeyDerivation [KeySize]byte

// KeyImage marks a spent output.  Two signatures with the same key image
// spend the same output regardless of which ring they hide in.
type KeyImage [KeySize]byte

// Signature is one (c, r) scalar pair of a ring signature.
type Signature [SignatureSize]byte

// String returns the public key as a hexadecimal string.
func (p PublicKey) String() string { return hex.EncodeToString(p[:]) }

// String returns the key image as a hexadecimal string.
func (k KeyImage) String() string { return hex.EncodeToString(k[:]) }

var errInvalidKey = errors.New("invalid curve point")

// keccak512 is the wide hash used for scalar derivation.
func keccak512(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak512()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// hashToScalar maps arbitrary data onto the scalar group.
func hashToScalar(data ...[]byte) *edwards25519.Scalar {
	s, err := edwards25519.NewScalar().SetUniformBytes(keccak512(data...))
	if err != nil {
		// SetUniformBytes only fails on a wrong input length.
		panic(err)
	}
	return s
}

// hashToPoint deterministically maps data onto the curve.  The mapping runs
// through the scalar group rather than the Elligator construction the
// reference coin uses; it is stable and collision resistant, which is what
// key images require of it.
func hashToPoint(data []byte) *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(hashToScalar(data))
}

// GenerateKeys returns a new random key pair.
func GenerateKeys() (PublicKey, SecretKey, error) {
	var pub PublicKey
	var sec SecretKey

	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return pub, sec, err
	}

	s, err := edwards25519.NewScalar().SetUniformBytes(seed[:])
	if err != nil {
		return pub, sec, err
	}

	copy(sec[:], s.Bytes())
	copy(pub[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return pub, sec, nil
}

// PublicFromSecret recovers the public key of a secret key.
func PublicFromSecret(sec SecretKey) (PublicKey, error) {
	var pub PublicKey
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sec[:])
	if err != nil {
		return pub, errInvalidKey
	}
	copy(pub[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return pub, nil
}

// CheckKey reports whether pub decodes to a valid curve point.
func CheckKey(pub PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(pub[:])
	return err == nil
}

// mulByCofactor returns 8*p.
func mulByCofactor(p *edwards25519.Point) *edwards25519.Point {
	r := new(edwards25519.Point).Set(p)
	r.Add(r, r)
	r.Add(r, r)
	r.Add(r, r)
	return r
}

// GenerateKeyDerivation computes the shared secret 8*sec*pub used to derive
// one-time output keys.
func GenerateKeyDerivation(pub PublicKey, sec SecretKey) (KeyDerivation, error) {
	var derivation KeyDerivation

	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return derivation, errInvalidKey
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sec[:])
	if err != nil {
		return derivation, errInvalidKey
	}

	shared := mulByCofactor(new(edwards25519.Point).ScalarMult(s, p))
	copy(derivation[:], shared.Bytes())
	return derivation, nil
}

// derivationToScalar hashes a derivation together with an output index.
func derivationToScalar(derivation KeyDerivation, outputIndex uint32) *edwards25519.Scalar {
	var idx [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(idx[:], uint64(outputIndex))
	return hashToScalar(derivation[:], idx[:n])
}

// DerivePublicKey derives the one-time public key of the output at
// outputIndex addressed to the owner of base.
func DerivePublicKey(derivation KeyDerivation, outputIndex uint32, base PublicKey) (PublicKey, error) {
	var derived PublicKey

	b, err := new(edwards25519.Point).SetBytes(base[:])
	if err != nil {
		return derived, errInvalidKey
	}

	h := new(edwards25519.Point).ScalarBaseMult(derivationToScalar(derivation, outputIndex))
	copy(derived[:], new(edwards25519.Point).Add(h, b).Bytes())
	return derived, nil
}

// DeriveSecretKey derives the one-time secret key matching DerivePublicKey.
func DeriveSecretKey(derivation KeyDerivation, outputIndex uint32, base SecretKey) (SecretKey, error) {
	var derived SecretKey

	b, err := edwards25519.NewScalar().SetCanonicalBytes(base[:])
	if err != nil {
		return derived, errInvalidKey
	}

	s := edwards25519.NewScalar().Add(derivationToScalar(derivation, outputIndex), b)
	copy(derived[:], s.Bytes())
	return derived, nil
}

// GenerateKeyImage computes the key image sec*H(pub) of a one-time key pair.
func GenerateKeyImage(pub PublicKey, sec SecretKey) (KeyImage, error) {
	var image KeyImage

	s, err := edwards25519.NewScalar().SetCanonicalBytes(sec[:])
	if err != nil {
		return image, errInvalidKey
	}

	hp := hashToPoint(pub[:])
	copy(image[:], new(edwards25519.Point).ScalarMult(s, hp).Bytes())
	return image, nil
}
