// Package txrules provides the note transaction policy rules wallets follow
// when creating transactions.
package txrules

import "github.com/notesuite/notewallet/chaincfg"

// DustThreshold returns the output amount, in quills, at or below which an
// output is considered dust on the given network.  Selection avoids dust
// except as a last resort, and amount decomposition folds dust digits into a
// single chunk.
func DustThreshold(params *chaincfg.Params) uint64 {
	return params.DustThreshold
}

// IsDust reports whether an output amount is dust under the network policy.
func IsDust(amount uint64, params *chaincfg.Params) bool {
	return amount <= params.DustThreshold
}

// WithinSizeLimit reports whether a serialized transaction of the given size
// is relayable under the limit.
func WithinSizeLimit(serializedSize int, limit uint32) bool {
	return serializedSize >= 0 && uint32(serializedSize) <= limit
}
