// Package chaincfg defines the parameters of the supported note networks.
package chaincfg

// Params defines a note network by its consensus parameters and the address
// prefix wallets encode with.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// AddressPrefix is the varint tag leading every public address on
	// this network.
	AddressPrefix uint64

	// DustThreshold is the output amount, in quills, at or below which an
	// output is considered dust by wallets.
	DustThreshold uint64

	// MaxTransactionSize is the upper serialized size limit, in bytes,
	// the network relays.
	MaxTransactionSize uint32

	// TransactionSpendableAge is the number of confirmations an output
	// needs before the network treats it as spendable.
	TransactionSpendableAge uint32

	// DefaultRPCPort is the port the network's node daemon listens on for
	// wallet RPC connections.
	DefaultRPCPort string
}

// MainNetParams defines the network parameters for the main note network.
var MainNetParams = Params{
	Name:                    "mainnet",
	AddressPrefix:           0x1cad,
	DustThreshold:           10000,
	MaxTransactionSize:      100 * 1024,
	TransactionSpendableAge: 10,
	DefaultRPCPort:          "19081",
}

// TestNetParams defines the network parameters for the test note network.
var TestNetParams = Params{
	Name:                    "testnet",
	AddressPrefix:           0x1dae,
	DustThreshold:           10000,
	MaxTransactionSize:      100 * 1024,
	TransactionSpendableAge: 10,
	DefaultRPCPort:          "29081",
}

// SimNetParams defines the network parameters for the simulation network
// used by tests and private deployments.
var SimNetParams = Params{
	Name:                    "simnet",
	AddressPrefix:           0x1eaf,
	DustThreshold:           10000,
	MaxTransactionSize:      100 * 1024,
	TransactionSpendableAge: 10,
	DefaultRPCPort:          "39081",
}
