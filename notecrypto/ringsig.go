package notecrypto

import (
	"crypto/rand"
	"errors"

	"filippo.io/edwards25519"
)

// ErrRingIndex is returned when the real-output index does not fall inside
// the ring.
var ErrRingIndex = errors.New("real output index outside ring")

func randomScalar() (*edwards25519.Scalar, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().SetUniformBytes(seed[:])
}

// GenerateRingSignature signs prefixHash with the one-time secret key sec,
// hiding it at position realIndex among the ring members pubs.  One (c, r)
// pair is produced per ring member; the ring commits to the key image so a
// second spend of the same output is linkable.
func GenerateRingSignature(prefixHash [32]byte, image KeyImage, pubs []PublicKey,
	sec SecretKey, realIndex int) ([]Signature, error) {

	if realIndex < 0 || realIndex >= len(pubs) {
		return nil, ErrRingIndex
	}

	secScalar, err := edwards25519.NewScalar().SetCanonicalBytes(sec[:])
	if err != nil {
		return nil, errInvalidKey
	}
	imagePoint, err := new(edwards25519.Point).SetBytes(image[:])
	if err != nil {
		return nil, errInvalidKey
	}

	sigs := make([]Signature, len(pubs))
	cs := make([]*edwards25519.Scalar, len(pubs))
	rs := make([]*edwards25519.Scalar, len(pubs))

	// The challenge hash commits to the prefix and every (L, R)
	// commitment pair in ring order.
	challenge := make([][]byte, 0, 2*len(pubs)+1)
	challenge = append(challenge, prefixHash[:])

	var a *edwards25519.Scalar
	sum := edwards25519.NewScalar()

	for i, pub := range pubs {
		p, err := new(edwards25519.Point).SetBytes(pub[:])
		if err != nil {
			return nil, errInvalidKey
		}
		hp := hashToPoint(pub[:])

		var l, r *edwards25519.Point
		if i == realIndex {
			a, err = randomScalar()
			if err != nil {
				return nil, err
			}
			l = new(edwards25519.Point).ScalarBaseMult(a)
			r = new(edwards25519.Point).ScalarMult(a, hp)
		} else {
			cs[i], err = randomScalar()
			if err != nil {
				return nil, err
			}
			rs[i], err = randomScalar()
			if err != nil {
				return nil, err
			}
			// L = r*G + c*P, R = r*H(P) + c*I
			l = new(edwards25519.Point).VarTimeDoubleScalarBaseMult(cs[i], p, rs[i])
			r = new(edwards25519.Point).Add(
				new(edwards25519.Point).ScalarMult(rs[i], hp),
				new(edwards25519.Point).ScalarMult(cs[i], imagePoint),
			)
			sum.Add(sum, cs[i])
		}
		challenge = append(challenge, l.Bytes(), r.Bytes())
	}

	c := hashToScalar(challenge...)

	// Close the ring: the real member absorbs the remaining challenge.
	cs[realIndex] = edwards25519.NewScalar().Subtract(c, sum)
	rs[realIndex] = edwards25519.NewScalar().Subtract(
		a, edwards25519.NewScalar().Multiply(cs[realIndex], secScalar))

	for i := range sigs {
		copy(sigs[i][:KeySize], cs[i].Bytes())
		copy(sigs[i][KeySize:], rs[i].Bytes())
	}
	return sigs, nil
}

// CheckRingSignature verifies a ring signature produced by
// GenerateRingSignature.
func CheckRingSignature(prefixHash [32]byte, image KeyImage, pubs []PublicKey,
	sigs []Signature) bool {

	if len(pubs) == 0 || len(sigs) != len(pubs) {
		return false
	}

	imagePoint, err := new(edwards25519.Point).SetBytes(image[:])
	if err != nil {
		return false
	}

	challenge := make([][]byte, 0, 2*len(pubs)+1)
	challenge = append(challenge, prefixHash[:])
	sum := edwards25519.NewScalar()

	for i, pub := range pubs {
		p, err := new(edwards25519.Point).SetBytes(pub[:])
		if err != nil {
			return false
		}
		c, err := edwards25519.NewScalar().SetCanonicalBytes(sigs[i][:KeySize])
		if err != nil {
			return false
		}
		r, err := edwards25519.NewScalar().SetCanonicalBytes(sigs[i][KeySize:])
		if err != nil {
			return false
		}

		hp := hashToPoint(pub[:])
		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(c, p, r)
		rp := new(edwards25519.Point).Add(
			new(edwards25519.Point).ScalarMult(r, hp),
			new(edwards25519.Point).ScalarMult(c, imagePoint),
		)
		challenge = append(challenge, l.Bytes(), rp.Bytes())
		sum.Add(sum, c)
	}

	expected := hashToScalar(challenge...)
	return expected.Equal(sum) == 1
}
