package wallet

import (
	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/waddrmgr"
)

// updateBalance recomputes one wallet's cached balances from its container
// and folds the signed deltas into the aggregates.  The container's view of
// the chain is eventually consistent, so outputs consumed by unconfirmed
// sends are subtracted locally; without the deduction a second transfer
// could reserve the same outputs again.  Containers of deleted wallets
// resolve to nothing and are ignored.  The ready gate must be held.
func (w *Wallet) updateBalance(container chain.TransfersContainer) {
	rec, ok := w.manager.LookupContainer(container)
	if !ok {
		return
	}

	actual := container.Balance(chain.IncludeAllUnlocked)
	pending := container.Balance(chain.IncludeAllLocked)

	actual -= w.txStore.SpentBalance(rec)

	// The change of every unconfirmed send rides on the change wallet
	// until the synchronizer observes it.
	if change := w.manager.ChangeWallet(); change != nil && change.Container == container {
		pending += w.txStore.TotalChange()
	}

	if rec.ActualBalance < actual {
		w.actualBalance += actual - rec.ActualBalance
	} else {
		w.actualBalance -= rec.ActualBalance - actual
	}

	if rec.PendingBalance < pending {
		w.pendingBalance += pending - rec.PendingBalance
	} else {
		w.pendingBalance -= rec.PendingBalance - pending
	}

	rec.ActualBalance = actual
	rec.PendingBalance = pending
}

// updateUsedWalletsBalances recomputes every wallet that contributed an
// input to a send, plus the change wallet, which receives the residual.
func (w *Wallet) updateUsedWalletsBalances(used []*waddrmgr.WalletRecord) {
	wallets := make(map[*waddrmgr.WalletRecord]struct{}, len(used)+1)
	if change := w.manager.ChangeWallet(); change != nil {
		wallets[change] = struct{}{}
	}
	for _, rec := range used {
		wallets[rec] = struct{}{}
	}

	for rec := range wallets {
		w.updateBalance(rec.Container)
	}
}
