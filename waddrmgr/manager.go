// Package waddrmgr keeps the registry of spending identities a wallet is
// composed of.  Every identity shares the wallet's view key pair and owns a
// transfers container provided by the blockchain synchronizer.
package waddrmgr

import (
	"fmt"
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
)

// syncStartDelta is how far behind the wall clock a fresh subscription starts
// scanning from, so that transactions mined while the key pair was being
// handed over are not missed.
const syncStartDelta = 24 * time.Hour

// WalletRecord is one spending identity.  The container reference is
// non-owning: the synchronizer owns it and it must not be used after the
// record's subscription is removed.
type WalletRecord struct {
	SpendPublicKey notecrypto.PublicKey
	SpendSecretKey notecrypto.SecretKey
	CreationTime   time.Time
	Container      chain.TransfersContainer

	// ActualBalance and PendingBalance are the balances cached by the
	// wallet's accountant after the most recent recomputation.
	ActualBalance  uint64
	PendingBalance uint64
}

// Manager tracks wallet records under several views at once: insertion
// order (index 0 is the change wallet), spend public key, transfers
// container, and creation time.  Every mutation keeps all views consistent.
type Manager struct {
	chainParams  *chaincfg.Params
	synchronizer chain.Synchronizer
	clock        clock.Clock

	viewPublicKey notecrypto.PublicKey
	viewSecretKey notecrypto.SecretKey

	records     []*WalletRecord
	byKey       map[notecrypto.PublicKey]*WalletRecord
	byContainer map[chain.TransfersContainer]*WalletRecord
	byCreation  []*WalletRecord
}

// NewManager creates an empty registry bound to the given synchronizer and
// view key pair.
func NewManager(chainParams *chaincfg.Params, synchronizer chain.Synchronizer,
	clk clock.Clock, viewPub notecrypto.PublicKey,
	viewSec notecrypto.SecretKey) *Manager {

	return &Manager{
		chainParams:   chainParams,
		synchronizer:  synchronizer,
		clock:         clk,
		viewPublicKey: viewPub,
		viewSecretKey: viewSec,
		byKey:         make(map[notecrypto.PublicKey]*WalletRecord),
		byContainer:   make(map[chain.TransfersContainer]*WalletRecord),
	}
}

// ViewPublicKey returns the wallet-wide view public key.
func (m *Manager) ViewPublicKey() notecrypto.PublicKey { return m.viewPublicKey }

// ViewSecretKey returns the wallet-wide view secret key.
func (m *Manager) ViewSecretKey() notecrypto.SecretKey { return m.viewSecretKey }

// Count returns the number of tracked identities.
func (m *Manager) Count() int { return len(m.records) }

// At returns the record at the given insertion-order index.
func (m *Manager) At(index int) (*WalletRecord, error) {
	if index < 0 || index >= len(m.records) {
		str := fmt.Sprintf("wallet index %d out of range", index)
		return nil, managerError(ErrInvalidIndex, str, nil)
	}
	return m.records[index], nil
}

// ChangeWallet returns the first-created record, which receives every send's
// residual amount.  It returns nil on an empty registry.
func (m *Manager) ChangeWallet() *WalletRecord {
	if len(m.records) == 0 {
		return nil
	}
	return m.records[0]
}

// Records returns the records in insertion order.  The returned slice must
// not be mutated.
func (m *Manager) Records() []*WalletRecord { return m.records }

// ByKey looks a record up by its spend public key.
func (m *Manager) ByKey(spendPub notecrypto.PublicKey) (*WalletRecord, error) {
	rec, ok := m.byKey[spendPub]
	if !ok {
		str := fmt.Sprintf("no wallet with spend key %v", spendPub)
		return nil, managerError(ErrAddressNotFound, str, nil)
	}
	return rec, nil
}

// LookupContainer looks a record up by its transfers container.  Containers
// of deleted records resolve to nothing.
func (m *Manager) LookupContainer(container chain.TransfersContainer) (*WalletRecord, bool) {
	rec, ok := m.byContainer[container]
	return rec, ok
}

// Address composes the public address of a record.
func (m *Manager) Address(rec *WalletRecord) noteutil.Address {
	return noteutil.Address{
		SpendPublicKey: rec.SpendPublicKey,
		ViewPublicKey:  m.viewPublicKey,
	}
}

// EncodeAddress returns the record's address in its string form.
func (m *Manager) EncodeAddress(rec *WalletRecord) string {
	return noteutil.EncodeAddress(m.chainParams.AddressPrefix, m.Address(rec))
}

// Add registers a new identity under the given spend key pair, subscribes it
// with the synchronizer and tracks the returned container.
func (m *Manager) Add(spendPub notecrypto.PublicKey,
	spendSec notecrypto.SecretKey) (*WalletRecord, error) {

	return m.AddWithCreationTime(spendPub, spendSec, m.clock.Now())
}

// AddWithCreationTime behaves like Add with an explicit creation time.  It
// is used when restoring a serialized registry.
func (m *Manager) AddWithCreationTime(spendPub notecrypto.PublicKey,
	spendSec notecrypto.SecretKey, creationTime time.Time) (*WalletRecord, error) {

	if _, ok := m.byKey[spendPub]; ok {
		str := fmt.Sprintf("wallet with spend key %v already exists", spendPub)
		return nil, managerError(ErrDuplicateAddress, str, nil)
	}
	sub := chain.AccountSubscription{
		Keys: chain.AccountKeys{
			Address: noteutil.Address{
				SpendPublicKey: spendPub,
				ViewPublicKey:  m.viewPublicKey,
			},
			ViewSecretKey:  m.viewSecretKey,
			SpendSecretKey: spendSec,
		},
		TransactionSpendableAge: m.chainParams.TransactionSpendableAge,
		SyncStart: chain.SyncStart{
			Height:    0,
			Timestamp: uint64(creationTime.Add(-syncStartDelta).Unix()),
		},
	}

	subscription, err := m.synchronizer.AddSubscription(sub)
	if err != nil {
		return nil, managerError(ErrSubscription, "subscription rejected", err)
	}

	rec := &WalletRecord{
		SpendPublicKey: spendPub,
		SpendSecretKey: spendSec,
		CreationTime:   creationTime,
		Container:      subscription.Container(),
	}

	m.records = append(m.records, rec)
	m.byKey[spendPub] = rec
	m.byContainer[rec.Container] = rec
	m.insertByCreation(rec)

	return rec, nil
}

// Remove deletes a record from every view and drops its subscription.  The
// removed record is returned so the caller can settle balances and spent
// outputs against it.
func (m *Manager) Remove(spendPub notecrypto.PublicKey) (*WalletRecord, error) {
	rec, ok := m.byKey[spendPub]
	if !ok {
		str := fmt.Sprintf("no wallet with spend key %v", spendPub)
		return nil, managerError(ErrAddressNotFound, str, nil)
	}

	m.synchronizer.RemoveSubscription(m.Address(rec))

	delete(m.byKey, spendPub)
	delete(m.byContainer, rec.Container)
	for i, r := range m.records {
		if r == rec {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	for i, r := range m.byCreation {
		if r == rec {
			m.byCreation = append(m.byCreation[:i], m.byCreation[i+1:]...)
			break
		}
	}

	return rec, nil
}

// Clear removes every subscription and wipes all views.
func (m *Manager) Clear() {
	for _, addr := range m.synchronizer.Subscriptions() {
		m.synchronizer.RemoveSubscription(addr)
	}

	m.records = nil
	m.byCreation = nil
	m.byKey = make(map[notecrypto.PublicKey]*WalletRecord)
	m.byContainer = make(map[chain.TransfersContainer]*WalletRecord)
}

// OldestCreationTime returns the creation time of the oldest record.  It is
// the natural sync-start hint when restarting the synchronizer.
func (m *Manager) OldestCreationTime() (time.Time, bool) {
	if len(m.byCreation) == 0 {
		return time.Time{}, false
	}
	return m.byCreation[0].CreationTime, true
}

func (m *Manager) insertByCreation(rec *WalletRecord) {
	i := sort.Search(len(m.byCreation), func(i int) bool {
		return m.byCreation[i].CreationTime.After(rec.CreationTime)
	})
	m.byCreation = append(m.byCreation, nil)
	copy(m.byCreation[i+1:], m.byCreation[i:])
	m.byCreation[i] = rec
}
