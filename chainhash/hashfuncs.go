package chainhash

import "golang.org/x/crypto/sha3"

// HashB calculates the Keccak-256 digest of b and returns the resulting bytes.
func HashB(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// HashH calculates the Keccak-256 digest of b and returns the resulting bytes
// as a Hash.
func HashH(b []byte) Hash {
	var hash Hash
	copy(hash[:], HashB(b))
	return hash
}
