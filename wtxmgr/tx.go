// Package wtxmgr keeps the wallet's transaction ledger: the ordered log of
// observed and created transactions, the per-address transfer entries, the
// table of outputs spent by not-yet-confirmed sends, the unlock schedule of
// maturing transactions and the outstanding change amounts.
package wtxmgr

import (
	"fmt"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/waddrmgr"
)

// TxState describes the lifecycle state of a ledger transaction.
type TxState byte

// The transaction states.  Outgoing rows are born Failed and promoted to
// Succeeded once the network accepts them; observed rows are born Succeeded;
// a delete notification demotes a row to Cancelled.
const (
	TxStateFailed TxState = iota
	TxStateSucceeded
	TxStateCancelled
)

// String returns the TxState as a human-readable name.
func (s TxState) String() string {
	switch s {
	case TxStateFailed:
		return "failed"
	case TxStateSucceeded:
		return "succeeded"
	case TxStateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown state (%d)", byte(s))
	}
}

// TxRecord is one row of the transaction ledger.  TotalAmount is negative
// for outgoing transactions.  BlockHeight is chain.UnconfirmedBlockHeight
// until the transaction is observed in a block.
type TxRecord struct {
	State        TxState
	CreationTime uint64
	Timestamp    uint64
	BlockHeight  uint32
	UnlockTime   uint64
	TotalAmount  int64
	Fee          uint64
	Hash         chainhash.Hash
	Extra        []byte
}

// Transfer is one per-address amount movement of a transaction.  Outgoing
// transfers store negative amounts.
type Transfer struct {
	Address string
	Amount  int64
}

type transferEntry struct {
	txID     int
	transfer Transfer
}

// Store is the in-memory transaction ledger.  Transactions are addressed
// both by their dense insertion-order id, which is stable for the lifetime
// of the store, and by their hash.
type Store struct {
	txs     []*TxRecord
	byHash  map[chainhash.Hash]int
	entries []transferEntry

	spentByOutPoint map[OutPoint]*SpentOutput
	spentByWallet   map[*waddrmgr.WalletRecord]map[OutPoint]*SpentOutput
	spentBySpender  map[chainhash.Hash]map[OutPoint]*SpentOutput

	unlockJobs   []UnlockJob
	unlockByHash map[chainhash.Hash]struct{}

	change map[chainhash.Hash]uint64
}

// NewStore creates an empty ledger.
func NewStore() *Store {
	return &Store{
		byHash:          make(map[chainhash.Hash]int),
		spentByOutPoint: make(map[OutPoint]*SpentOutput),
		spentByWallet:   make(map[*waddrmgr.WalletRecord]map[OutPoint]*SpentOutput),
		spentBySpender:  make(map[chainhash.Hash]map[OutPoint]*SpentOutput),
		unlockByHash:    make(map[chainhash.Hash]struct{}),
		change:          make(map[chainhash.Hash]uint64),
	}
}

// Count returns the number of ledger rows.
func (s *Store) Count() int { return len(s.txs) }

// Tx returns the row with the given dense id.
func (s *Store) Tx(id int) (TxRecord, error) {
	if id < 0 || id >= len(s.txs) {
		str := fmt.Sprintf("transaction id %d out of range", id)
		return TxRecord{}, storeError(ErrTxIndexOutOfRange, str, nil)
	}
	return *s.txs[id], nil
}

// Exists reports whether a row with the given hash exists.
func (s *Store) Exists(hash chainhash.Hash) bool {
	_, ok := s.byHash[hash]
	return ok
}

// ID returns the dense id of the row with the given hash.
func (s *Store) ID(hash chainhash.Hash) (int, error) {
	id, ok := s.byHash[hash]
	if !ok {
		str := fmt.Sprintf("no transaction with hash %v", hash)
		return 0, storeError(ErrTxHashNotFound, str, nil)
	}
	return id, nil
}

// InsertOutgoing appends a row for a transaction this wallet created.  The
// row starts out Failed and unconfirmed; a successful relay promotes it.
// The returned id is the row's index for the lifetime of the store.
func (s *Store) InsertOutgoing(hash chainhash.Hash, totalAmount int64,
	fee uint64, extra []byte, unlockTime, creationTime uint64) int {

	rec := &TxRecord{
		State:        TxStateFailed,
		CreationTime: creationTime,
		Timestamp:    0, // until included in a block
		BlockHeight:  chain.UnconfirmedBlockHeight,
		UnlockTime:   unlockTime,
		TotalAmount:  totalAmount,
		Fee:          fee,
		Hash:         hash,
		Extra:        extra,
	}

	id := len(s.txs)
	s.txs = append(s.txs, rec)
	s.byHash[hash] = id
	return id
}

// InsertIncoming appends a row for a transaction the synchronizer observed.
func (s *Store) InsertIncoming(info chain.TransactionInformation, balance int64) int {
	rec := &TxRecord{
		State:        TxStateSucceeded,
		CreationTime: info.Timestamp,
		Timestamp:    info.Timestamp,
		BlockHeight:  info.BlockHeight,
		UnlockTime:   info.UnlockTime,
		TotalAmount:  balance,
		Fee:          info.TotalAmountIn - info.TotalAmountOut,
		Hash:         info.TransactionHash,
		Extra:        info.Extra,
	}

	id := len(s.txs)
	s.txs = append(s.txs, rec)
	s.byHash[info.TransactionHash] = id
	return id
}

// UpdateHeight records the block height of a row, promoting it back to
// Succeeded.  The promotion matters: the transaction may have been deleted
// and then observed again.
func (s *Store) UpdateHeight(hash chainhash.Hash, blockHeight uint32) error {
	id, ok := s.byHash[hash]
	if !ok {
		str := fmt.Sprintf("no transaction with hash %v", hash)
		return storeError(ErrTxHashNotFound, str, nil)
	}

	s.txs[id].BlockHeight = blockHeight
	s.txs[id].State = TxStateSucceeded
	return nil
}

// SetSucceeded promotes the row with the given id after a successful relay.
func (s *Store) SetSucceeded(id int) error {
	if id < 0 || id >= len(s.txs) {
		str := fmt.Sprintf("transaction id %d out of range", id)
		return storeError(ErrTxIndexOutOfRange, str, nil)
	}
	s.txs[id].State = TxStateSucceeded
	return nil
}

// MarkCancelled demotes the row with the given hash after the synchronizer
// reported the transaction gone, resetting it to unconfirmed.
func (s *Store) MarkCancelled(hash chainhash.Hash) error {
	id, ok := s.byHash[hash]
	if !ok {
		str := fmt.Sprintf("no transaction with hash %v", hash)
		return storeError(ErrTxHashNotFound, str, nil)
	}

	s.txs[id].State = TxStateCancelled
	s.txs[id].BlockHeight = chain.UnconfirmedBlockHeight
	return nil
}

// AppendOutgoingTransfers records the destinations of a freshly created
// transaction with negated amounts.  The rows land at the tail of the
// transfer log, which is the sorted position because the transaction id is
// the highest issued so far.
func (s *Store) AppendOutgoingTransfers(txID int, destinations []Transfer) {
	for _, dest := range destinations {
		s.entries = append(s.entries, transferEntry{
			txID:     txID,
			transfer: Transfer{Address: dest.Address, Amount: -dest.Amount},
		})
	}
}

// InsertIncomingTransfer records an observed transfer.  It is placed after
// any transfers already recorded for the transaction, so outgoing rows
// written at send time stay in front.
func (s *Store) InsertIncomingTransfer(txID int, address string, amount int64) {
	i := len(s.entries)
	for i > 0 && s.entries[i-1].txID > txID {
		i--
	}

	s.entries = append(s.entries, transferEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = transferEntry{
		txID:     txID,
		transfer: Transfer{Address: address, Amount: amount},
	}
}

// transferBounds returns the half-open range of transfer entries recorded
// for a transaction.
func (s *Store) transferBounds(txID int) (int, int) {
	lo := 0
	for lo < len(s.entries) && s.entries[lo].txID < txID {
		lo++
	}
	hi := lo
	for hi < len(s.entries) && s.entries[hi].txID == txID {
		hi++
	}
	return lo, hi
}

// TransferCount returns the number of transfers recorded for a transaction.
func (s *Store) TransferCount(txID int) int {
	lo, hi := s.transferBounds(txID)
	return hi - lo
}

// TransferAt returns a transaction's transfer by its position within the
// transaction's range.
func (s *Store) TransferAt(txID, index int) (Transfer, error) {
	lo, hi := s.transferBounds(txID)
	if index < 0 || lo+index >= hi {
		str := fmt.Sprintf("transfer index %d out of range for transaction %d",
			index, txID)
		return Transfer{}, storeError(ErrTxIndexOutOfRange, str, nil)
	}
	return s.entries[lo+index].transfer, nil
}

// SetChange records the change amount riding on an unconfirmed spending
// transaction.
func (s *Store) SetChange(spendingHash chainhash.Hash, amount uint64) {
	s.change[spendingHash] = amount
}

// DeleteChange drops a spending transaction's change entry.
func (s *Store) DeleteChange(spendingHash chainhash.Hash) {
	delete(s.change, spendingHash)
}

// TotalChange sums the change amounts of every unconfirmed spending
// transaction.
func (s *Store) TotalChange() uint64 {
	var total uint64
	for _, amount := range s.change {
		total += amount
	}
	return total
}

// TxRecords returns a copy of every ledger row in insertion order.
func (s *Store) TxRecords() []TxRecord {
	recs := make([]TxRecord, len(s.txs))
	for i, rec := range s.txs {
		recs[i] = *rec
	}
	return recs
}

// AppendTx appends a fully populated row.  It is used when restoring a
// serialized ledger.
func (s *Store) AppendTx(rec TxRecord) int {
	id := len(s.txs)
	recCopy := rec
	s.txs = append(s.txs, &recCopy)
	s.byHash[rec.Hash] = id
	return id
}

// TransferEntry pairs a transfer with the dense id of its transaction.
type TransferEntry struct {
	TxID     int
	Transfer Transfer
}

// TransferEntries returns every transfer entry in ledger order.
func (s *Store) TransferEntries() []TransferEntry {
	entries := make([]TransferEntry, len(s.entries))
	for i, e := range s.entries {
		entries[i] = TransferEntry{TxID: e.txID, Transfer: e.transfer}
	}
	return entries
}

// AppendTransferEntry appends a transfer entry verbatim.  It is used when
// restoring a serialized ledger, whose entries are already sorted.
func (s *Store) AppendTransferEntry(entry TransferEntry) {
	s.entries = append(s.entries, transferEntry{
		txID:     entry.TxID,
		transfer: entry.Transfer,
	})
}

// ChangeEntry is one outstanding change amount keyed by its spending
// transaction.
type ChangeEntry struct {
	SpendingHash chainhash.Hash
	Amount       uint64
}

// ChangeEntries returns the outstanding change amounts.
func (s *Store) ChangeEntries() []ChangeEntry {
	entries := make([]ChangeEntry, 0, len(s.change))
	for hash, amount := range s.change {
		entries = append(entries, ChangeEntry{SpendingHash: hash, Amount: amount})
	}
	return entries
}

// Clear wipes the ledger.
func (s *Store) Clear() {
	*s = *NewStore()
}
