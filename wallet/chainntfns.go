package wallet

import (
	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
)

// softlockBlocks is the number of confirmations past a transaction's
// declared unlock time before its outputs count as spendable.
const softlockBlocks = 1

// handleSyncNotifications is the trampoline between the synchronizer's
// network context and the wallet state: notifications are consumed on this
// goroutine and every handler takes the ready gate before touching state.
// Handling them here rather than inside synchronizer callbacks keeps
// blocking client calls legal.
func (w *Wallet) handleSyncNotifications() {
	defer w.wg.Done()

	ntfns := w.synchronizer.Notifications()
	for {
		select {
		case n, ok := <-ntfns:
			if !ok {
				return
			}
			switch n := n.(type) {
			case chain.SyncProgress:
				w.onSyncProgress(n.Height)
			case chain.TransactionUpdated:
				w.onTransactionUpdated(n.Container, n.Hash)
			case chain.TransactionDeleted:
				w.onTransactionDeleted(n.Container, n.Hash)
			default:
				log.Warnf("Unhandled synchronizer notification %T", n)
			}
		case <-w.ntfnQuit:
			return
		}
	}
}

// onSyncProgress flushes the unlock schedule up to the scanned height,
// recomputing the balance of every affected container.
func (w *Wallet) onSyncProgress(height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateNotInitialized {
		return
	}

	for _, container := range w.txStore.FlushUnlockJobs(height) {
		w.updateBalance(container)
	}
	w.pushEvent(Event{Type: EventBalanceUnlocked})
}

// onTransactionUpdated absorbs an observed or re-observed transaction.  For
// a transaction this wallet sent, the notification is the confirmation that
// the spend committed: its spent-output reservations and change entry are
// settled here.
func (w *Wallet) onTransactionUpdated(container chain.TransfersContainer,
	hash chainhash.Hash) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateNotInitialized {
		return
	}

	w.txStore.DeleteSpentOutputs(hash)

	info, balance, ok := container.GetTransactionInformation(hash)
	if !ok {
		log.Warnf("Container has no information for updated transaction %v", hash)
		return
	}

	var event Event
	if w.txStore.Exists(info.TransactionHash) {
		if err := w.txStore.UpdateHeight(info.TransactionHash, info.BlockHeight); err != nil {
			log.Errorf("Cannot update height of transaction %v: %v",
				info.TransactionHash, err)
			return
		}
		id, err := w.txStore.ID(info.TransactionHash)
		if err != nil {
			log.Errorf("Cannot resolve id of transaction %v: %v",
				info.TransactionHash, err)
			return
		}
		event = Event{Type: EventTransactionUpdated, TransactionIndex: id}
	} else {
		id := w.txStore.InsertIncoming(info, balance)
		if rec, found := w.manager.LookupContainer(container); found {
			w.txStore.InsertIncomingTransfer(id,
				w.manager.EncodeAddress(rec), balance)
		}
		event = Event{Type: EventTransactionCreated, TransactionIndex: id}
	}

	if info.BlockHeight != chain.UnconfirmedBlockHeight {
		// The unlock time may denote a height or a unix timestamp;
		// the schedule height is computed the same way either way,
		// matching the reference wallet.
		unlockHeight := info.BlockHeight + uint32(info.UnlockTime) +
			softlockBlocks + 1
		w.txStore.DeleteChange(hash)
		w.txStore.EnqueueUnlockJob(hash, unlockHeight, container)
	}

	w.updateBalance(container)
	w.pushEvent(event)
}

// onTransactionDeleted demotes a previously observed transaction after the
// synchronizer dropped it from its chain view.
func (w *Wallet) onTransactionDeleted(container chain.TransfersContainer,
	hash chainhash.Hash) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateNotInitialized {
		return
	}

	if !w.txStore.Exists(hash) {
		return
	}

	w.txStore.DequeueUnlockJob(hash)
	w.txStore.DeleteChange(hash)
	w.txStore.DeleteSpentOutputs(hash)

	if err := w.txStore.MarkCancelled(hash); err != nil {
		log.Errorf("Cannot cancel transaction %v: %v", hash, err)
		return
	}
	id, err := w.txStore.ID(hash)
	if err != nil {
		log.Errorf("Cannot resolve id of transaction %v: %v", hash, err)
		return
	}

	w.updateBalance(container)
	w.pushEvent(Event{Type: EventTransactionUpdated, TransactionIndex: id})
}
