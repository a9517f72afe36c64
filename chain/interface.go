package chain

import (
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/wire"
)

// UnconfirmedBlockHeight is the sentinel height of a transaction that has not
// been included in a block yet.
const UnconfirmedBlockHeight = ^uint32(0)

// BalanceFilter selects which outputs of a transfers container participate in
// a balance or output query.
type BalanceFilter uint8

// The supported balance filters.
const (
	// IncludeKeyUnlocked selects spendable key outputs only.
	IncludeKeyUnlocked BalanceFilter = iota

	// IncludeAllUnlocked selects every unlocked output.
	IncludeAllUnlocked

	// IncludeAllLocked selects every output still locked by height or
	// time.
	IncludeAllLocked
)

// OutputInfo describes one output owned by a subscribed account.
type OutputInfo struct {
	Amount               uint64
	TransactionHash      chainhash.Hash
	OutputInTransaction  uint32
	GlobalOutputIndex    uint32
	OutputKey            notecrypto.PublicKey
	TransactionPublicKey notecrypto.PublicKey
}

// TransactionInformation describes a transaction as the synchronizer observed
// it on chain.  BlockHeight is UnconfirmedBlockHeight while the transaction
// sits in the pool.
type TransactionInformation struct {
	TransactionHash chainhash.Hash
	BlockHeight     uint32
	Timestamp       uint64
	UnlockTime      uint64
	TotalAmountIn   uint64
	TotalAmountOut  uint64
	Extra           []byte
}

// TransfersContainer tracks every output belonging to one subscribed account
// and classifies them as locked or unlocked.  Containers are owned by the
// synchronizer; wallets hold non-owning references that become invalid once
// the subscription is removed.
type TransfersContainer interface {
	// GetOutputs returns the outputs selected by the filter.
	GetOutputs(filter BalanceFilter) []OutputInfo

	// Balance sums the amounts of the outputs selected by the filter.
	Balance(filter BalanceFilter) uint64

	// GetTransactionInformation looks up an observed transaction along
	// with the signed balance change it caused for the account.
	GetTransactionInformation(hash chainhash.Hash) (TransactionInformation, int64, bool)
}

// AccountKeys carries the full key material of one subscribed account.
type AccountKeys struct {
	Address        noteutil.Address
	ViewSecretKey  notecrypto.SecretKey
	SpendSecretKey notecrypto.SecretKey
}

// SyncStart tells the synchronizer where to begin scanning for an account.
// Whichever of height and timestamp resolves to the earlier block wins.
type SyncStart struct {
	Height    uint32
	Timestamp uint64
}

// AccountSubscription is a request to track one account.
type AccountSubscription struct {
	Keys                    AccountKeys
	TransactionSpendableAge uint32
	SyncStart               SyncStart
}

// Subscription is a live account subscription held by the synchronizer.
type Subscription interface {
	// Container returns the transfers container tracking the account.
	Container() TransfersContainer
}

// Synchronizer scans the chain on behalf of subscribed accounts and reports
// state changes through its notification channel.
type Synchronizer interface {
	Start()
	Stop()

	// AddSubscription registers an account with the synchronizer and
	// returns its live subscription.
	AddSubscription(sub AccountSubscription) (Subscription, error)

	// RemoveSubscription drops the subscription of the given address and
	// invalidates its container.
	RemoveSubscription(addr noteutil.Address)

	// Subscriptions lists the currently subscribed addresses.
	Subscriptions() []noteutil.Address

	// Notifications returns the channel typed notifications are
	// delivered on.  Handling them on a dedicated goroutine rather than
	// inside synchronizer callbacks keeps blocking client calls legal.
	Notifications() <-chan interface{}
}

// Notification types delivered over Synchronizer.Notifications.
type (
	// SyncProgress reports the height the synchronizer has scanned up
	// to.
	SyncProgress struct {
		Height uint32
	}

	// TransactionUpdated reports that a transaction touching the
	// container's account was observed or re-observed.
	TransactionUpdated struct {
		Container TransfersContainer
		Hash      chainhash.Hash
	}

	// TransactionDeleted reports that a previously observed transaction
	// was dropped from the chain view.
	TransactionDeleted struct {
		Container TransfersContainer
		Hash      chainhash.Hash
	}
)

// RandomOutEntry is one decoy candidate returned by a node.
type RandomOutEntry struct {
	GlobalIndex uint32
	OutKey      notecrypto.PublicKey
}

// RandomOuts carries the decoy candidates of one amount.
type RandomOuts struct {
	Amount uint64
	Outs   []RandomOutEntry
}

// Node is the wallet's connection to the network daemon.  Both calls are
// asynchronous: the callback fires on a network goroutine once the daemon
// answers.
type Node interface {
	// RelayTransaction submits a signed transaction to the network.
	RelayTransaction(tx *wire.MsgTx, callback func(error))

	// GetRandomOutsByAmounts requests count decoy outputs for every
	// amount.
	GetRandomOutsByAmounts(amounts []uint64, count uint64, callback func([]RandomOuts, error))
}
