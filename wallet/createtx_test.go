package wallet

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/wtxmgr"
)

func TestTransferEmptyDestinations(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 1000)

	_, err := w.Transfer(nil, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrZeroDestination))

	count, err2 := w.TransactionCount()
	require.NoError(t, err2)
	require.Equal(t, 0, count)
	require.Equal(t, 0, node.relayedCount())
	requireInvariants(t, w)
}

func TestTransferBadAddress(t *testing.T) {
	w, _, _, _ := newFundedWallet(t, 1000)

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: "definitely not an address", Amount: 100},
	}, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrBadAddress))
}

func TestTransferZeroAmount(t *testing.T) {
	w, _, _, _ := newFundedWallet(t, 1000)

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 0},
	}, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrZeroDestination))
}

func TestTransferSumOverflow(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 1000)

	dest := destAddress(t)
	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: dest, Amount: math.MaxInt64},
		{Address: dest, Amount: math.MaxInt64},
	}, 10, 0, nil, 0)
	require.True(t, IsError(err, ErrSumOverflow))
	require.Equal(t, 0, node.relayedCount())
}

func TestTransferInsufficientFunds(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 100)

	// The failure must happen before the mixin fetch; a node error here
	// would surface instead of ErrWrongAmount.
	node.mu.Lock()
	node.randomOutsErr = errors.New("node must not be queried")
	node.mu.Unlock()

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 100},
	}, 1, 6, nil, 0)
	require.True(t, IsError(err, ErrWrongAmount))

	count, err := w.TransactionCount()
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestTransferCommitsRowAndEvent(t *testing.T) {
	w, node, _, rec := newFundedWallet(t, 1000)
	dest := destAddress(t)

	id, err := w.Transfer([]wtxmgr.Transfer{
		{Address: dest, Amount: 600},
	}, 10, 0, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, id)
	require.Equal(t, 1, node.relayedCount())

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateSucceeded, tx.State)
	require.Equal(t, int64(-610), tx.TotalAmount)
	require.Equal(t, uint64(10), tx.Fee)
	require.Equal(t, chain.UnconfirmedBlockHeight, tx.BlockHeight)

	// The change ledger holds the residual under the new hash.
	change := w.txStore.ChangeEntries()
	require.Len(t, change, 1)
	require.Equal(t, tx.Hash, change[0].SpendingHash)
	require.Equal(t, uint64(390), change[0].Amount)

	// One outgoing transfer with the negated amount.
	transferCount, err := w.TransactionTransferCount(id)
	require.NoError(t, err)
	require.Equal(t, 1, transferCount)
	transfer, err := w.TransactionTransfer(id, 0)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.Transfer{Address: dest, Amount: -600}, transfer)

	// The consumed output is reserved under the new hash.
	spent := w.txStore.SpentOutputs()
	require.Len(t, spent, 1)
	require.Equal(t, tx.Hash, spent[0].SpendingHash)
	require.Equal(t, uint64(1000), spent[0].Amount)
	require.Same(t, rec, spent[0].Wallet)

	// Balances: the spent output is suppressed from actual; the change
	// rides on pending.
	require.Equal(t, uint64(0), rec.ActualBalance)
	require.Equal(t, uint64(390), rec.PendingBalance)
	requireInvariants(t, w)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, Event{Type: EventTransactionCreated, TransactionIndex: 0}, event)
}

func TestTransferRelayFailureLeavesFailedRow(t *testing.T) {
	w, node, _, rec := newFundedWallet(t, 1000)

	node.mu.Lock()
	node.relayErr = errors.New("mempool rejected transaction")
	node.mu.Unlock()

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 600},
	}, 10, 0, nil, 0)
	require.Error(t, err)
	require.False(t, IsError(err, ErrOperationCancelled))

	// The pre-inserted row remains, in the failed state.
	tx, err := w.Transaction(0)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateFailed, tx.State)
	require.Equal(t, int64(-610), tx.TotalAmount)

	// No reservation and no change were recorded.
	require.Empty(t, w.txStore.SpentOutputs())
	require.Empty(t, w.txStore.ChangeEntries())
	require.Equal(t, uint64(1000), rec.ActualBalance)
	requireInvariants(t, w)

	// The operator still observes the failed row.
	event, getErr := w.GetEvent()
	require.NoError(t, getErr)
	require.Equal(t, Event{Type: EventTransactionCreated, TransactionIndex: 0}, event)
}

func TestTransferOversizedTransaction(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 50000)
	w.upperTransactionSizeLimit = 16

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 30000},
	}, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrTransactionSizeTooBig))
	require.Equal(t, 0, node.relayedCount())

	// The pre-inserted row is exposed, still failed.
	tx, err := w.Transaction(0)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateFailed, tx.State)
}

func TestTransferWithMixins(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 50000, 70000)

	const mixin = 3
	id, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 100000},
	}, 1000, mixin, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, id)

	require.Equal(t, 1, node.relayedCount())
	node.mu.Lock()
	relayed := node.relayed[0]
	node.mu.Unlock()

	// Every input hides among mixin decoys, with the ring ordered by
	// ascending global index.
	require.Len(t, relayed.TxIns, 2)
	for _, txIn := range relayed.TxIns {
		require.Len(t, txIn.GlobalIndices, mixin+1)
		for i := 1; i < len(txIn.GlobalIndices); i++ {
			require.Less(t, txIn.GlobalIndices[i-1], txIn.GlobalIndices[i])
		}
	}
	require.Len(t, relayed.Signatures, 2)
	for _, group := range relayed.Signatures {
		require.Len(t, group, mixin+1)
	}
}

func TestTransferDecoyCollisionIsDropped(t *testing.T) {
	w, node, _, rec := newFundedWallet(t, 50000)
	realIndex := rec.Container.(*mockContainer).GetOutputs(chain.IncludeKeyUnlocked)[0].GlobalOutputIndex

	node.mu.Lock()
	node.randomOutsFunc = func(amounts []uint64, count uint64) []chain.RandomOuts {
		outs := make([]chain.RandomOuts, 0, len(amounts))
		for _, amount := range amounts {
			outs = append(outs, chain.RandomOuts{
				Amount: amount,
				Outs: []chain.RandomOutEntry{
					{GlobalIndex: realIndex},
					{GlobalIndex: realIndex + 7},
					{GlobalIndex: realIndex + 9},
				},
			})
		}
		return outs
	}
	node.mu.Unlock()

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 30000},
	}, 0, 2, nil, 0)
	require.NoError(t, err)

	node.mu.Lock()
	relayed := node.relayed[0]
	node.mu.Unlock()

	// The decoy colliding with the real output was dropped, so the real
	// index appears exactly once.
	indices := relayed.TxIns[0].GlobalIndices
	require.Len(t, indices, 3)
	seen := 0
	for _, idx := range indices {
		if idx == realIndex {
			seen++
		}
	}
	require.Equal(t, 1, seen)
}

func TestTransferMixinCountTooBig(t *testing.T) {
	w, node, _, _ := newFundedWallet(t, 50000)

	node.mu.Lock()
	node.decoysPerAmount = 2
	node.mu.Unlock()

	_, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 30000},
	}, 0, 3, nil, 0)
	require.True(t, IsError(err, ErrMixinCountTooBig))
}

func TestTransferFromNamedSource(t *testing.T) {
	w, _, _ := testWallet(t)

	first, err := w.CreateAddress()
	require.NoError(t, err)
	second, err := w.CreateAddress()
	require.NoError(t, err)

	fundWallet(t, w, w.manager.Records()[0], 50000)
	fundWallet(t, w, w.manager.Records()[1], 80000)

	// Spending from the second address only.
	id, err := w.TransferFrom(second, []wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 60000},
	}, 100, 0, nil, 0)
	require.NoError(t, err)

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateSucceeded, tx.State)

	spent := w.txStore.SpentOutputs()
	require.Len(t, spent, 1)
	require.Same(t, w.manager.Records()[1], spent[0].Wallet)

	// The first address's funds do not cover this.
	_, err = w.TransferFrom(first, []wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 60000},
	}, 100, 0, nil, 0)
	require.True(t, IsError(err, ErrWrongAmount))

	_, err = w.TransferFrom(destAddress(t), []wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 1},
	}, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrInvalidArgument))
}

func TestTransferToConvenience(t *testing.T) {
	w, _, _, _ := newFundedWallet(t, 50000)

	id, err := w.TransferTo(wtxmgr.Transfer{
		Address: destAddress(t), Amount: 10000,
	}, 100, 0, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, id)
}

func TestTransferIDsAreStable(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 50000, 60000, 70000)
	dest := destAddress(t)

	firstID, err := w.Transfer([]wtxmgr.Transfer{{Address: dest, Amount: 20000}},
		100, 0, nil, 0)
	require.NoError(t, err)

	firstHash, err := w.Transaction(firstID)
	require.NoError(t, err)

	// Outputs not reserved by the first send remain for a second one.
	cont := rec.Container.(*mockContainer)
	remaining := make([]chain.OutputInfo, 0)
	for _, out := range cont.GetOutputs(chain.IncludeKeyUnlocked) {
		if !w.txStore.IsOutputSpent(out.TransactionHash, out.OutputInTransaction) {
			remaining = append(remaining, out)
		}
	}
	require.NotEmpty(t, remaining)

	secondID, err := w.Transfer([]wtxmgr.Transfer{{Address: dest, Amount: 20000}},
		100, 0, nil, 0)
	require.NoError(t, err)
	require.Equal(t, firstID+1, secondID)

	// The first row is untouched by the second insert.
	again, err := w.Transaction(firstID)
	require.NoError(t, err)
	require.Equal(t, firstHash.Hash, again.Hash)

	hashID, err := w.TransactionID(firstHash.Hash.String())
	require.NoError(t, err)
	require.Equal(t, firstID, hashID)
}
