package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/wtxmgr"
)

// sendAndGetHash performs a basic transfer and returns its ledger id and
// hash, draining the created event.
func sendAndGetHash(t *testing.T, w *Wallet) (int, chainhash.Hash) {
	t.Helper()

	id, err := w.Transfer([]wtxmgr.Transfer{
		{Address: destAddress(t), Amount: 600},
	}, 10, 0, nil, 0)
	require.NoError(t, err)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, EventTransactionCreated, event.Type)

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	return id, tx.Hash
}

func TestConfirmationRoundTrip(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	id, hash := sendAndGetHash(t, w)

	const height = 120
	const unlockTime = 0

	// The chain now sees the spend: the source output is gone and the
	// change output is locked until it matures.
	cont.setBalances(0, 390)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     height,
		Timestamp:       5555,
		UnlockTime:      unlockTime,
	}, -610)

	w.onTransactionUpdated(rec.Container, hash)

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, uint32(height), tx.BlockHeight)
	require.Equal(t, wtxmgr.TxStateSucceeded, tx.State)

	// The reservation and the change entry settled, and the unlock job
	// was scheduled at height + unlockTime + softlock + 1.
	require.Empty(t, w.txStore.SpentOutputs())
	require.Empty(t, w.txStore.ChangeEntries())
	jobs := w.txStore.UnlockJobs()
	require.Len(t, jobs, 1)
	require.Equal(t, uint32(height+unlockTime+softlockBlocks+1), jobs[0].Height)
	require.Equal(t, hash, jobs[0].Hash)

	require.Equal(t, uint64(0), rec.ActualBalance)
	require.Equal(t, uint64(390), rec.PendingBalance)
	requireInvariants(t, w)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, Event{Type: EventTransactionUpdated, TransactionIndex: id}, event)

	// The change matures: pending moves to actual.
	cont.setBalances(390, 0)
	w.onSyncProgress(height + unlockTime + softlockBlocks + 1)

	require.Equal(t, 0, w.txStore.UnlockJobCount())
	require.Equal(t, uint64(390), rec.ActualBalance)
	require.Equal(t, uint64(0), rec.PendingBalance)
	requireInvariants(t, w)

	event, err = w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, EventBalanceUnlocked, event.Type)
}

func TestRepeatedConfirmationIsIdempotent(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	_, hash := sendAndGetHash(t, w)

	cont.setBalances(0, 390)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     120,
	}, -610)

	w.onTransactionUpdated(rec.Container, hash)
	actualAfter := rec.ActualBalance
	pendingAfter := rec.PendingBalance
	aggActual := w.actualBalance
	aggPending := w.pendingBalance

	// A second identical callback produces no net balance change.
	w.onTransactionUpdated(rec.Container, hash)
	require.Equal(t, actualAfter, rec.ActualBalance)
	require.Equal(t, pendingAfter, rec.PendingBalance)
	require.Equal(t, aggActual, w.actualBalance)
	require.Equal(t, aggPending, w.pendingBalance)
	requireInvariants(t, w)
}

func TestIncomingTransactionInsertsRowAndTransfer(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	hash := makeTestHash(0x55)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     80,
		Timestamp:       4444,
		UnlockTime:      0,
		TotalAmountIn:   600,
		TotalAmountOut:  590,
	}, 590)
	cont.setBalances(1000, 590)

	w.onTransactionUpdated(rec.Container, hash)

	id, err := w.TransactionID(hash.String())
	require.NoError(t, err)
	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateSucceeded, tx.State)
	require.Equal(t, int64(590), tx.TotalAmount)
	require.Equal(t, uint32(80), tx.BlockHeight)

	// An incoming transfer under the owning wallet's address.
	transfer, err := w.TransactionTransfer(id, 0)
	require.NoError(t, err)
	require.Equal(t, w.manager.EncodeAddress(rec), transfer.Address)
	require.Equal(t, int64(590), transfer.Amount)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, Event{Type: EventTransactionCreated, TransactionIndex: id}, event)
	requireInvariants(t, w)
}

func TestUnconfirmedIncomingSchedulesNoUnlock(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	hash := makeTestHash(0x66)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     chain.UnconfirmedBlockHeight,
	}, 100)

	w.onTransactionUpdated(rec.Container, hash)
	require.Equal(t, 0, w.txStore.UnlockJobCount())

	_, err := w.GetEvent()
	require.NoError(t, err)
}

func TestTransactionDeleted(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	id, hash := sendAndGetHash(t, w)

	// Confirm first so an unlock job exists.
	cont.setBalances(0, 390)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     120,
	}, -610)
	w.onTransactionUpdated(rec.Container, hash)
	_, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, 1, w.txStore.UnlockJobCount())

	// The chain dropped the transaction again.
	cont.setBalances(1000, 0)
	w.onTransactionDeleted(rec.Container, hash)

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxStateCancelled, tx.State)
	require.Equal(t, chain.UnconfirmedBlockHeight, tx.BlockHeight)
	require.Equal(t, 0, w.txStore.UnlockJobCount())
	require.Empty(t, w.txStore.ChangeEntries())
	require.Empty(t, w.txStore.SpentOutputs())

	require.Equal(t, uint64(1000), rec.ActualBalance)
	require.Equal(t, uint64(0), rec.PendingBalance)
	requireInvariants(t, w)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, Event{Type: EventTransactionUpdated, TransactionIndex: id}, event)
}

func TestTransactionDeletedUnknownHashIsSilent(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 1000)

	w.onTransactionDeleted(rec.Container, makeTestHash(0x77))

	count, err := w.TransactionCount()
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Empty(t, w.events)
}

func TestProgressWithEmptyScheduleStillSignalsUnlock(t *testing.T) {
	w, _, _, _ := newFundedWallet(t, 1000)

	w.onSyncProgress(500)

	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, EventBalanceUnlocked, event.Type)
}

// TestNotificationTrampoline drives a callback through the synchronizer's
// notification channel rather than calling the handler directly.
func TestNotificationTrampoline(t *testing.T) {
	w, _, sync, rec := newFundedWallet(t, 1000)
	cont := rec.Container.(*mockContainer)

	hash := makeTestHash(0x88)
	cont.setTransaction(chain.TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     90,
	}, 250)

	sync.notifyTransactionUpdated(rec.Container, hash)

	// GetEvent blocks until the notification goroutine commits.
	event, err := w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, EventTransactionCreated, event.Type)

	sync.notifyProgress(1000)
	event, err = w.GetEvent()
	require.NoError(t, err)
	require.Equal(t, EventBalanceUnlocked, event.Type)
}
