package wtxmgr

import (
	"fmt"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/waddrmgr"
)

// OutPoint identifies one output of a source transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	return fmt.Sprintf("%v:%d", o.Hash, o.Index)
}

// SpentOutput is an output this wallet has consumed in a send whose spending
// transaction the synchronizer has not confirmed yet.  The entry suppresses
// the output from balances and from reselection until the confirmation
// arrives.
type SpentOutput struct {
	Amount       uint64
	OutPoint     OutPoint
	Wallet       *waddrmgr.WalletRecord
	SpendingHash chainhash.Hash
}

// MarkOutputsSpent inserts one entry per selected output, all keyed by the
// spending transaction's hash.  A duplicate source outpoint fails loudly:
// selection consults IsOutputSpent before reserving, so a collision means
// two overlapping sends reserved the same output.
func (s *Store) MarkOutputsSpent(spendingHash chainhash.Hash,
	outputs []chain.OutputInfo, wallets []*waddrmgr.WalletRecord) error {

	for i, out := range outputs {
		op := OutPoint{Hash: out.TransactionHash, Index: out.OutputInTransaction}
		if _, ok := s.spentByOutPoint[op]; ok {
			str := fmt.Sprintf("output %v already marked spent", op)
			return storeError(ErrDuplicateSpentOutput, str, nil)
		}

		entry := &SpentOutput{
			Amount:       out.Amount,
			OutPoint:     op,
			Wallet:       wallets[i],
			SpendingHash: spendingHash,
		}

		s.spentByOutPoint[op] = entry
		if s.spentByWallet[entry.Wallet] == nil {
			s.spentByWallet[entry.Wallet] = make(map[OutPoint]*SpentOutput)
		}
		s.spentByWallet[entry.Wallet][op] = entry
		if s.spentBySpender[spendingHash] == nil {
			s.spentBySpender[spendingHash] = make(map[OutPoint]*SpentOutput)
		}
		s.spentBySpender[spendingHash][op] = entry
	}
	return nil
}

// IsOutputSpent reports whether the wallet has already consumed the output.
func (s *Store) IsOutputSpent(sourceHash chainhash.Hash, index uint32) bool {
	_, ok := s.spentByOutPoint[OutPoint{Hash: sourceHash, Index: index}]
	return ok
}

// DeleteSpentOutputs removes every entry created by the given spending
// transaction.  It is called once the synchronizer confirms the spend, or
// when the spend is deleted from the chain view.
func (s *Store) DeleteSpentOutputs(spendingHash chainhash.Hash) {
	for op, entry := range s.spentBySpender[spendingHash] {
		delete(s.spentByOutPoint, op)
		delete(s.spentByWallet[entry.Wallet], op)
		if len(s.spentByWallet[entry.Wallet]) == 0 {
			delete(s.spentByWallet, entry.Wallet)
		}
	}
	delete(s.spentBySpender, spendingHash)
}

// DeleteWalletOutputs removes every entry owned by the given wallet.  It is
// called when the wallet's address is deleted.
func (s *Store) DeleteWalletOutputs(wallet *waddrmgr.WalletRecord) {
	for op, entry := range s.spentByWallet[wallet] {
		delete(s.spentByOutPoint, op)
		delete(s.spentBySpender[entry.SpendingHash], op)
		if len(s.spentBySpender[entry.SpendingHash]) == 0 {
			delete(s.spentBySpender, entry.SpendingHash)
		}
	}
	delete(s.spentByWallet, wallet)
}

// SpentOutputs returns a copy of every spent-output entry.
func (s *Store) SpentOutputs() []SpentOutput {
	entries := make([]SpentOutput, 0, len(s.spentByOutPoint))
	for _, entry := range s.spentByOutPoint {
		entries = append(entries, *entry)
	}
	return entries
}

// RestoreSpentOutput re-inserts a serialized spent-output entry.
func (s *Store) RestoreSpentOutput(entry SpentOutput) error {
	if _, ok := s.spentByOutPoint[entry.OutPoint]; ok {
		str := fmt.Sprintf("output %v already marked spent", entry.OutPoint)
		return storeError(ErrDuplicateSpentOutput, str, nil)
	}

	entryCopy := entry
	s.spentByOutPoint[entry.OutPoint] = &entryCopy
	if s.spentByWallet[entry.Wallet] == nil {
		s.spentByWallet[entry.Wallet] = make(map[OutPoint]*SpentOutput)
	}
	s.spentByWallet[entry.Wallet][entry.OutPoint] = &entryCopy
	if s.spentBySpender[entry.SpendingHash] == nil {
		s.spentBySpender[entry.SpendingHash] = make(map[OutPoint]*SpentOutput)
	}
	s.spentBySpender[entry.SpendingHash][entry.OutPoint] = &entryCopy
	return nil
}

// SpentBalance sums the amounts of the wallet's unconfirmed spent outputs.
// The accountant subtracts the sum from the container's unlocked balance so
// optimistically consumed funds cannot be reserved twice.
func (s *Store) SpentBalance(wallet *waddrmgr.WalletRecord) uint64 {
	var total uint64
	for _, entry := range s.spentByWallet[wallet] {
		total += entry.Amount
	}
	return total
}
