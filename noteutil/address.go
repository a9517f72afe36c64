// Package noteutil provides note-specific convenience functions and types:
// monetary amounts and the public address encoding.
package noteutil

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
)

const addressChecksumSize = 4

// ErrMalformedAddress describes an address string that does not decode to a
// prefix, key pair and valid checksum.
var ErrMalformedAddress = errors.New("malformed address")

// ErrWrongNetwork describes an address whose prefix tag belongs to another
// network.
var ErrWrongNetwork = errors.New("address intended for another network")

// Address is a parsed public account address: the pair of public keys every
// payment to the account is addressed with.
type Address struct {
	SpendPublicKey notecrypto.PublicKey
	ViewPublicKey  notecrypto.PublicKey
}

// EncodeAddress serializes the address under the given network prefix tag
// into its base58 string form.
func EncodeAddress(prefix uint64, addr Address) string {
	var buf bytes.Buffer

	var tag [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tag[:], prefix)
	buf.Write(tag[:n])
	buf.Write(addr.SpendPublicKey[:])
	buf.Write(addr.ViewPublicKey[:])

	checksum := chainhash.HashB(buf.Bytes())[:addressChecksumSize]
	buf.Write(checksum)

	return Base58Encode(buf.Bytes())
}

// DecodeAddress parses an address string, verifying its checksum and that its
// prefix tag matches the given network prefix.
func DecodeAddress(prefix uint64, encoded string) (Address, error) {
	var addr Address

	data, err := Base58Decode(encoded)
	if err != nil {
		return addr, ErrMalformedAddress
	}
	if len(data) < addressChecksumSize {
		return addr, ErrMalformedAddress
	}

	payload := data[:len(data)-addressChecksumSize]
	checksum := data[len(data)-addressChecksumSize:]
	if !bytes.Equal(chainhash.HashB(payload)[:addressChecksumSize], checksum) {
		return addr, ErrMalformedAddress
	}

	tag, n := binary.Uvarint(payload)
	if n <= 0 {
		return addr, ErrMalformedAddress
	}
	if len(payload[n:]) != 2*notecrypto.KeySize {
		return addr, ErrMalformedAddress
	}
	if tag != prefix {
		return addr, ErrWrongNetwork
	}

	copy(addr.SpendPublicKey[:], payload[n:n+notecrypto.KeySize])
	copy(addr.ViewPublicKey[:], payload[n+notecrypto.KeySize:])
	if !notecrypto.CheckKey(addr.SpendPublicKey) || !notecrypto.CheckKey(addr.ViewPublicKey) {
		return addr, ErrMalformedAddress
	}
	return addr, nil
}
