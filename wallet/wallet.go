// Package wallet implements the multi-address wallet core: the registry of
// spending identities sharing one view key, the transaction and transfer
// ledger, balance accounting against a live blockchain synchronizer, and the
// construction and relay of ring-signature transactions.
package wallet

import (
	"fmt"
	"io"
	"sync"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/waddrmgr"
	"github.com/notesuite/notewallet/wtxmgr"
)

// State describes the lifecycle state of a wallet.
type State int

// The wallet states.
const (
	StateNotInitialized State = iota
	StateInitialized
)

// Wallet is the in-memory wallet state engine.  All mutations are serialized
// by a single ready gate shared between operator calls and synchronizer
// callbacks, so every public operation observes a consistent view of the
// registry, the ledger and the balance aggregates.
type Wallet struct {
	// mu is the ready gate.  A transfer holds it across its node round
	// trips, so synchronizer callbacks cannot interleave with the send
	// pipeline's bookkeeping.
	mu sync.Mutex

	chainParams  *chaincfg.Params
	node         chain.Node
	synchronizer chain.Synchronizer
	clock        clock.Clock

	state    State
	password string

	manager *waddrmgr.Manager
	txStore *wtxmgr.Store

	actualBalance  uint64
	pendingBalance uint64

	upperTransactionSizeLimit uint32

	events      []Event
	eventSignal chan struct{}

	// stopMu guards the stop flag and quit channel, which are touched
	// from outside the ready gate by Stop.
	stopMu  sync.Mutex
	stopped bool
	quit    chan struct{}

	ntfnQuit chan struct{}
	wg       sync.WaitGroup
}

// NewWallet creates a wallet bound to the given node and synchronizer.  The
// wallet starts out uninitialized; call Initialize or Load before anything
// else.
func NewWallet(chainParams *chaincfg.Params, node chain.Node,
	synchronizer chain.Synchronizer, clk clock.Clock) *Wallet {

	return &Wallet{
		chainParams:               chainParams,
		node:                      node,
		synchronizer:              synchronizer,
		clock:                     clk,
		upperTransactionSizeLimit: chainParams.MaxTransactionSize,
		eventSignal:               make(chan struct{}, 1),
		quit:                      make(chan struct{}),
	}
}

// checkInitialized fails unless the wallet has been initialized.  The ready
// gate must be held.
func (w *Wallet) checkInitialized() error {
	if w.state != StateInitialized {
		return walletError(ErrNotInitialized, "wallet is not initialized", nil)
	}
	return nil
}

// checkStopped fails once Stop has been called.
func (w *Wallet) checkStopped() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.stopped {
		return walletError(ErrOperationCancelled, "wallet is stopped", nil)
	}
	return nil
}

// checkReady combines the initialization and stop checks most public
// operations open with.
func (w *Wallet) checkReady() error {
	if err := w.checkInitialized(); err != nil {
		return err
	}
	return w.checkStopped()
}

// quitChan returns the quit channel of the current start/stop cycle.
func (w *Wallet) quitChan() <-chan struct{} {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	return w.quit
}

// Initialize generates the wallet's view key pair, stores the password and
// begins observing the synchronizer.  The wallet holds no addresses yet.
func (w *Wallet) Initialize(password string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateNotInitialized {
		return walletError(ErrAlreadyInitialized, "wallet is already initialized", nil)
	}
	if err := w.checkStopped(); err != nil {
		return err
	}

	viewPub, viewSec, err := notecrypto.GenerateKeys()
	if err != nil {
		return walletError(ErrInternalWallet, "view key generation failed", err)
	}

	w.password = password
	w.manager = waddrmgr.NewManager(w.chainParams, w.synchronizer, w.clock,
		viewPub, viewSec)
	w.txStore = wtxmgr.NewStore()

	w.ntfnQuit = make(chan struct{})
	w.wg.Add(1)
	go w.handleSyncNotifications()

	w.state = StateInitialized
	return nil
}

// Shutdown stops the synchronizer, clears every cache including the event
// queue and returns the wallet to the uninitialized state.
func (w *Wallet) Shutdown() error {
	w.mu.Lock()
	if err := w.checkInitialized(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.doShutdown()
	w.mu.Unlock()

	// The notification handler may be blocked on the ready gate, so it
	// is joined outside of it.
	close(w.ntfnQuit)
	w.wg.Wait()
	return nil
}

// doShutdown clears all state.  The ready gate must be held.
func (w *Wallet) doShutdown() {
	w.synchronizer.Stop()

	w.manager.Clear()
	w.txStore.Clear()
	w.actualBalance = 0
	w.pendingBalance = 0
	w.password = ""
	w.events = nil

	w.state = StateNotInitialized
}

// ChangePassword replaces the wallet password after verifying the old one.
func (w *Wallet) ChangePassword(oldPassword, newPassword string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return err
	}
	if w.password != oldPassword {
		return walletError(ErrWrongPassword, "old password does not match", nil)
	}

	w.password = newPassword
	return nil
}

// Save serializes the wallet to destination.  The synchronizer is paused
// around the write when any address is subscribed, so the snapshot is
// quiescent.
func (w *Wallet) Save(destination io.Writer, saveDetails, saveCache bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return err
	}

	if w.manager.Count() != 0 {
		w.synchronizer.Stop()
	}
	err := w.unsafeSave(destination, saveDetails, saveCache)
	if w.manager.Count() != 0 {
		w.synchronizer.Start()
	}
	return err
}

// Load restores a wallet previously written by Save, re-subscribing every
// address with the synchronizer.
func (w *Wallet) Load(source io.Reader, password string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateNotInitialized {
		return walletError(ErrWrongState, "wallet is already initialized", nil)
	}
	if err := w.checkStopped(); err != nil {
		return err
	}

	if err := w.unsafeLoad(source, password); err != nil {
		return err
	}
	w.password = password

	if w.manager.Count() != 0 {
		w.synchronizer.Start()
	}

	w.ntfnQuit = make(chan struct{})
	w.wg.Add(1)
	go w.handleSyncNotifications()

	w.state = StateInitialized
	return nil
}

// AddressCount returns the number of spending identities.
func (w *Wallet) AddressCount() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}
	return w.manager.Count(), nil
}

// Address returns the address string at the given insertion-order index.
func (w *Wallet) Address(index int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return "", err
	}

	rec, err := w.manager.At(index)
	if err != nil {
		str := fmt.Sprintf("address index %d out of range", index)
		return "", walletError(ErrInvalidArgument, str, err)
	}
	return w.manager.EncodeAddress(rec), nil
}

// Addresses returns every address string in insertion order.
func (w *Wallet) Addresses() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return nil, err
	}

	records := w.manager.Records()
	addrs := make([]string, 0, len(records))
	for _, rec := range records {
		addrs = append(addrs, w.manager.EncodeAddress(rec))
	}
	return addrs, nil
}

// CreateAddress generates a fresh spend key pair and registers it as a new
// spending identity.  The first created address becomes the change sink.
func (w *Wallet) CreateAddress() (string, error) {
	spendPub, spendSec, err := notecrypto.GenerateKeys()
	if err != nil {
		return "", walletError(ErrInternalWallet, "spend key generation failed", err)
	}
	return w.CreateAddressFromKeys(spendPub, spendSec)
}

// CreateAddressFromKeys registers a spending identity under a caller-provided
// spend key pair.
func (w *Wallet) CreateAddressFromKeys(spendPub notecrypto.PublicKey,
	spendSec notecrypto.SecretKey) (string, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return "", err
	}

	if w.manager.Count() != 0 {
		w.synchronizer.Stop()
	}

	rec, err := w.manager.Add(spendPub, spendSec)
	if err != nil {
		if w.manager.Count() != 0 {
			w.synchronizer.Start()
		}
		return "", walletError(ErrInvalidArgument, "cannot add address", err)
	}

	w.synchronizer.Start()
	return w.manager.EncodeAddress(rec), nil
}

// DeleteAddress removes a spending identity: its balances leave the
// aggregates, its unconfirmed spent outputs are erased and its subscription
// is dropped.  Deleting the last address leaves the synchronizer stopped.
func (w *Wallet) DeleteAddress(address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return err
	}

	addr, err := w.parseAddress(address)
	if err != nil {
		return err
	}
	rec, err := w.manager.ByKey(addr.SpendPublicKey)
	if err != nil {
		return walletError(ErrInvalidArgument, "unknown address", err)
	}

	w.synchronizer.Stop()

	w.actualBalance -= rec.ActualBalance
	w.pendingBalance -= rec.PendingBalance

	w.txStore.DeleteWalletOutputs(rec)
	if _, err := w.manager.Remove(addr.SpendPublicKey); err != nil {
		return walletError(ErrInvalidArgument, "cannot remove address", err)
	}

	if w.manager.Count() != 0 {
		w.synchronizer.Start()
	}
	return nil
}

// ActualBalance returns the aggregate spendable balance.
func (w *Wallet) ActualBalance() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}
	return w.actualBalance, nil
}

// PendingBalance returns the aggregate balance still locked or awaiting
// confirmation.
func (w *Wallet) PendingBalance() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}
	return w.pendingBalance, nil
}

// ActualBalanceOf returns the spendable balance of one address.
func (w *Wallet) ActualBalanceOf(address string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}

	rec, err := w.walletRecord(address)
	if err != nil {
		return 0, err
	}
	return rec.ActualBalance, nil
}

// PendingBalanceOf returns the pending balance of one address.
func (w *Wallet) PendingBalanceOf(address string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}

	rec, err := w.walletRecord(address)
	if err != nil {
		return 0, err
	}
	return rec.PendingBalance, nil
}

// TransactionCount returns the number of ledger rows.
func (w *Wallet) TransactionCount() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}
	return w.txStore.Count(), nil
}

// Transaction returns the ledger row with the given dense id.
func (w *Wallet) Transaction(id int) (wtxmgr.TxRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return wtxmgr.TxRecord{}, err
	}

	rec, err := w.txStore.Tx(id)
	if err != nil {
		return wtxmgr.TxRecord{}, walletError(ErrInvalidArgument,
			"transaction id out of range", err)
	}
	return rec, nil
}

// TransactionID returns the dense id of the ledger row with the given hash.
func (w *Wallet) TransactionID(hash string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}

	txHash, err := parseTxHash(hash)
	if err != nil {
		return 0, err
	}
	id, err := w.txStore.ID(txHash)
	if err != nil {
		return 0, walletError(ErrInvalidArgument, "unknown transaction hash", err)
	}
	return id, nil
}

// TransactionTransferCount returns the number of transfers recorded for a
// ledger row.
func (w *Wallet) TransactionTransferCount(id int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}
	if _, err := w.txStore.Tx(id); err != nil {
		return 0, walletError(ErrInvalidArgument, "transaction id out of range", err)
	}
	return w.txStore.TransferCount(id), nil
}

// TransactionTransfer returns one transfer of a ledger row by its position.
func (w *Wallet) TransactionTransfer(id, index int) (wtxmgr.Transfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return wtxmgr.Transfer{}, err
	}

	transfer, err := w.txStore.TransferAt(id, index)
	if err != nil {
		return wtxmgr.Transfer{}, walletError(ErrInvalidArgument,
			"transfer index out of range", err)
	}
	return transfer, nil
}

// Start clears the stop flag, allowing blocking operations again after a
// Stop.
func (w *Wallet) Start() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	if w.stopped {
		w.stopped = false
		w.quit = make(chan struct{})
	}
}

// Stop sets the stop flag and wakes every blocked waiter.  Any core call
// observing the flag fails with ErrOperationCancelled.
func (w *Wallet) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	if !w.stopped {
		w.stopped = true
		close(w.quit)
	}
}

// parseAddress decodes an address string for this wallet's network.
func (w *Wallet) parseAddress(address string) (noteutil.Address, error) {
	addr, err := noteutil.DecodeAddress(w.chainParams.AddressPrefix, address)
	if err != nil {
		str := fmt.Sprintf("cannot parse address %q", address)
		return noteutil.Address{}, walletError(ErrBadAddress, str, err)
	}
	return addr, nil
}

// walletRecord resolves an address string to its registry record.
func (w *Wallet) walletRecord(address string) (*waddrmgr.WalletRecord, error) {
	addr, err := w.parseAddress(address)
	if err != nil {
		return nil, err
	}
	rec, err := w.manager.ByKey(addr.SpendPublicKey)
	if err != nil {
		return nil, walletError(ErrInvalidArgument, "unknown address", err)
	}
	return rec, nil
}

func parseTxHash(hash string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return chainhash.Hash{}, walletError(ErrInvalidArgument,
			"cannot parse transaction hash", err)
	}
	return *h, nil
}
