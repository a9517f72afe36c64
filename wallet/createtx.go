package wallet

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/waddrmgr"
	"github.com/notesuite/notewallet/wallet/txauthor"
	"github.com/notesuite/notewallet/wallet/txrules"
	"github.com/notesuite/notewallet/wire"
	"github.com/notesuite/notewallet/wtxmgr"
)

// walletOuts is one wallet's working set of spendable outputs during
// selection.
type walletOuts struct {
	wallet *waddrmgr.WalletRecord
	outs   []chain.OutputInfo
}

// outputToTransfer is one selected real input and its owning wallet.
type outputToTransfer struct {
	out    chain.OutputInfo
	wallet *waddrmgr.WalletRecord
}

// Transfer creates, signs and relays a transaction paying the destinations,
// drawing inputs from every wallet with a spendable balance.  It returns the
// dense ledger id of the created transaction.
func (w *Wallet) Transfer(destinations []wtxmgr.Transfer, fee, mixin uint64,
	extra []byte, unlockTime uint64) (int, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}

	return w.doTransfer(w.pickWalletsWithMoney(), destinations, fee, mixin,
		extra, unlockTime)
}

// TransferTo is a single-destination convenience wrapper around Transfer.
func (w *Wallet) TransferTo(destination wtxmgr.Transfer, fee, mixin uint64,
	extra []byte, unlockTime uint64) (int, error) {

	return w.Transfer([]wtxmgr.Transfer{destination}, fee, mixin, extra,
		unlockTime)
}

// TransferFrom behaves like Transfer but draws inputs from the named source
// address only.
func (w *Wallet) TransferFrom(sourceAddress string, destinations []wtxmgr.Transfer,
	fee, mixin uint64, extra []byte, unlockTime uint64) (int, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkReady(); err != nil {
		return 0, err
	}

	source, err := w.pickWallet(sourceAddress)
	if err != nil {
		return 0, err
	}
	var wallets []walletOuts
	if len(source.outs) != 0 {
		wallets = append(wallets, source)
	}

	return w.doTransfer(wallets, destinations, fee, mixin, extra, unlockTime)
}

// doTransfer runs the send pipeline with the ready gate held: validate,
// select, acquire mixins, prepare inputs, assemble, pre-commit, relay and
// finally commit or abort.
func (w *Wallet) doTransfer(wallets []walletOuts, destinations []wtxmgr.Transfer,
	fee, mixin uint64, extra []byte, unlockTime uint64) (int, error) {

	if len(destinations) == 0 {
		return 0, walletError(ErrZeroDestination, "destination list is empty", nil)
	}
	if err := w.validateDestinations(destinations); err != nil {
		return 0, err
	}

	neededMoney, err := countNeededMoney(destinations, fee)
	if err != nil {
		return 0, err
	}

	dustThreshold := txrules.DustThreshold(w.chainParams)
	foundMoney, selected := w.selectTransfers(neededMoney, mixin == 0,
		dustThreshold, wallets)
	if foundMoney < neededMoney {
		str := fmt.Sprintf("not enough money: found %d of %d needed",
			foundMoney, neededMoney)
		return 0, walletError(ErrWrongAmount, str, nil)
	}

	var mixinResult []chain.RandomOuts
	if mixin != 0 {
		mixinResult, err = w.requestMixinOuts(selected, mixin)
		if err != nil {
			return 0, err
		}
	}

	keysInfo := prepareInputs(selected, mixinResult, mixin)

	changeWallet := w.manager.ChangeWallet()
	changeAmount := foundMoney - neededMoney

	decomposed, err := w.splitDestinations(destinations,
		w.manager.Address(changeWallet), changeAmount, dustThreshold)
	if err != nil {
		return 0, err
	}

	tx, err := txauthor.NewSignedTransaction(decomposed, keysInfo, extra,
		unlockTime, w.manager.ViewSecretKey())
	if err != nil {
		return 0, walletError(ErrInternalWallet, "transaction assembly failed", err)
	}
	txHash := tx.TxHash()

	txID := w.txStore.InsertOutgoing(txHash, -int64(neededMoney), fee,
		tx.Extra, unlockTime, uint64(w.clock.Now().Unix()))
	w.txStore.AppendOutgoingTransfers(txID, destinations)

	if err := w.sendTransaction(tx); err != nil {
		// The failed row stays visible to the operator.
		w.pushEvent(Event{Type: EventTransactionCreated, TransactionIndex: txID})
		return 0, err
	}

	if err := w.txStore.SetSucceeded(txID); err != nil {
		return 0, walletError(ErrInternalWallet, "cannot commit transaction", err)
	}

	outs := make([]chain.OutputInfo, len(selected))
	usedWallets := make([]*waddrmgr.WalletRecord, len(selected))
	for i, sel := range selected {
		outs[i] = sel.out
		usedWallets[i] = sel.wallet
	}
	if err := w.txStore.MarkOutputsSpent(txHash, outs, usedWallets); err != nil {
		return 0, walletError(ErrInternalWallet, "spent-output bookkeeping failed", err)
	}

	w.txStore.SetChange(txHash, changeAmount)
	w.updateUsedWalletsBalances(usedWallets)

	w.pushEvent(Event{Type: EventTransactionCreated, TransactionIndex: txID})

	log.Infof("Created transaction %v paying %d with fee %d", txHash,
		neededMoney-fee, fee)
	return txID, nil
}

// validateDestinations checks that every destination address parses.
func (w *Wallet) validateDestinations(destinations []wtxmgr.Transfer) error {
	for _, dest := range destinations {
		if _, err := w.parseAddress(dest.Address); err != nil {
			return err
		}
	}
	return nil
}

// countNeededMoney sums the destination amounts and the fee, rejecting zero
// or negative amounts and 64-bit overflow.
func countNeededMoney(destinations []wtxmgr.Transfer, fee uint64) (uint64, error) {
	var neededMoney uint64
	for _, dest := range destinations {
		if dest.Amount == 0 {
			return 0, walletError(ErrZeroDestination,
				"destination amount is zero", nil)
		}
		if dest.Amount < 0 {
			return 0, walletError(ErrInvalidArgument,
				"destination amount is negative", nil)
		}

		amount := uint64(dest.Amount)
		neededMoney += amount
		if neededMoney < amount {
			return 0, walletError(ErrSumOverflow,
				"sum of destination amounts overflows", nil)
		}
	}

	neededMoney += fee
	if neededMoney < fee {
		return 0, walletError(ErrSumOverflow,
			"sum of destinations and fee overflows", nil)
	}
	return neededMoney, nil
}

// pickWalletsWithMoney gathers the spendable outputs of every wallet with a
// non-zero actual balance.
func (w *Wallet) pickWalletsWithMoney() []walletOuts {
	var wallets []walletOuts
	for _, rec := range w.manager.Records() {
		if rec.ActualBalance == 0 {
			continue
		}
		wallets = append(wallets, walletOuts{
			wallet: rec,
			outs:   rec.Container.GetOutputs(chain.IncludeKeyUnlocked),
		})
	}
	return wallets
}

// pickWallet gathers the spendable outputs of one named wallet.
func (w *Wallet) pickWallet(address string) (walletOuts, error) {
	rec, err := w.walletRecord(address)
	if err != nil {
		return walletOuts{}, err
	}
	return walletOuts{
		wallet: rec,
		outs:   rec.Container.GetOutputs(chain.IncludeKeyUnlocked),
	}, nil
}

// newSelectionRand returns a generator seeded from the cryptographic RNG.
// Selection seeds per call rather than sharing process-wide generator state,
// so successive sends do not leak a common sequence into their input
// choices.
func newSelectionRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

// selectTransfers picks outputs with a randomized greedy walk: a random
// wallet, then a random output within it, taking the output unless it is
// already reserved or it is dust and dust is no longer allowed.  At most one
// dust output is taken per pass.  Inspected outputs leave the working set
// whether taken or not.
func (w *Wallet) selectTransfers(neededMoney uint64, dust bool,
	dustThreshold uint64, wallets []walletOuts) (uint64, []outputToTransfer) {

	rng := newSelectionRand()

	var foundMoney uint64
	var selected []outputToTransfer

	for foundMoney < neededMoney && len(wallets) != 0 {
		walletIndex := rng.Intn(len(wallets))
		outs := wallets[walletIndex].outs
		outIndex := rng.Intn(len(outs))

		out := outs[outIndex]
		spent := w.txStore.IsOutputSpent(out.TransactionHash,
			out.OutputInTransaction)
		if !spent && (out.Amount > dustThreshold || dust) {
			if out.Amount <= dustThreshold {
				dust = false
			}
			foundMoney += out.Amount
			selected = append(selected, outputToTransfer{
				out:    out,
				wallet: wallets[walletIndex].wallet,
			})
		}

		wallets[walletIndex].outs = append(outs[:outIndex], outs[outIndex+1:]...)
		if len(wallets[walletIndex].outs) == 0 {
			wallets = append(wallets[:walletIndex], wallets[walletIndex+1:]...)
		}
	}

	if !dust {
		return foundMoney, selected
	}

	// Dust is still allowed: sweep the remaining outputs for a single
	// dust input.
	for _, wo := range wallets {
		for _, out := range wo.outs {
			if out.Amount <= dustThreshold &&
				!w.txStore.IsOutputSpent(out.TransactionHash, out.OutputInTransaction) {

				foundMoney += out.Amount
				selected = append(selected, outputToTransfer{
					out:    out,
					wallet: wo.wallet,
				})
				return foundMoney, selected
			}
		}
	}

	return foundMoney, selected
}

// requestMixinOuts asks the node for decoy outputs matching every selected
// input's amount, suspending until the node answers or the wallet stops.
func (w *Wallet) requestMixinOuts(selected []outputToTransfer,
	mixin uint64) ([]chain.RandomOuts, error) {

	amounts := make([]uint64, 0, len(selected))
	for _, sel := range selected {
		amounts = append(amounts, sel.out.Amount)
	}

	if err := w.checkStopped(); err != nil {
		return nil, err
	}

	type mixinReply struct {
		outs []chain.RandomOuts
		err  error
	}
	replyChan := make(chan mixinReply, 1)
	w.node.GetRandomOutsByAmounts(amounts, mixin, func(outs []chain.RandomOuts, err error) {
		replyChan <- mixinReply{outs: outs, err: err}
	})

	var reply mixinReply
	select {
	case reply = <-replyChan:
	case <-w.quitChan():
		return nil, walletError(ErrOperationCancelled, "wallet is stopped", nil)
	}

	if err := checkEnoughMixins(reply.outs, mixin); err != nil {
		return nil, err
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return reply.outs, nil
}

// checkEnoughMixins fails when any amount's decoy set is smaller than the
// requested mixin count.
func checkEnoughMixins(mixinResult []chain.RandomOuts, mixin uint64) error {
	if mixin == 0 && len(mixinResult) == 0 {
		return walletError(ErrMixinCountTooBig, "empty mixin request", nil)
	}
	for _, ofa := range mixinResult {
		if uint64(len(ofa.Outs)) < mixin {
			str := fmt.Sprintf("only %d decoys available for amount %d, "+
				"need %d", len(ofa.Outs), ofa.Amount, mixin)
			return walletError(ErrMixinCountTooBig, str, nil)
		}
	}
	return nil
}

// prepareInputs builds the ring of every selected input: decoys sorted by
// global index with any collision with the real output dropped, truncated to
// the mixin count, and the real output spliced in at its ascending position.
func prepareInputs(selected []outputToTransfer, mixinResult []chain.RandomOuts,
	mixin uint64) []txauthor.InputInfo {

	inputs := make([]txauthor.InputInfo, 0, len(selected))
	for i, sel := range selected {
		info := txauthor.InputInfo{
			Amount:                   sel.out.Amount,
			RealOutputKey:            sel.out.OutputKey,
			RealTransactionPublicKey: sel.out.TransactionPublicKey,
			RealOutputInTransaction:  sel.out.OutputInTransaction,
			SpendSecretKey:           sel.wallet.SpendSecretKey,
		}

		var ring []txauthor.RingMember
		if len(mixinResult) != 0 {
			decoys := mixinResult[i].Outs
			sort.Slice(decoys, func(a, b int) bool {
				return decoys[a].GlobalIndex < decoys[b].GlobalIndex
			})
			for _, fake := range decoys {
				if fake.GlobalIndex == sel.out.GlobalOutputIndex {
					continue
				}
				ring = append(ring, txauthor.RingMember{
					GlobalIndex: fake.GlobalIndex,
					TargetKey:   fake.OutKey,
				})
				if uint64(len(ring)) >= mixin {
					break
				}
			}
		}

		pos := sort.Search(len(ring), func(j int) bool {
			return ring[j].GlobalIndex >= sel.out.GlobalOutputIndex
		})
		ring = append(ring, txauthor.RingMember{})
		copy(ring[pos+1:], ring[pos:])
		ring[pos] = txauthor.RingMember{
			GlobalIndex: sel.out.GlobalOutputIndex,
			TargetKey:   sel.out.OutputKey,
		}

		info.Ring = ring
		info.RealIndex = pos
		inputs = append(inputs, info)
	}
	return inputs
}

// splitDestinations decomposes every destination amount into standard
// denominations and appends the change bucket addressed to the change
// wallet.
func (w *Wallet) splitDestinations(destinations []wtxmgr.Transfer,
	changeReceiver noteutil.Address, changeAmount, dustThreshold uint64) (
	[]txauthor.ReceiverAmounts, error) {

	decomposed := make([]txauthor.ReceiverAmounts, 0, len(destinations)+1)
	for _, dest := range destinations {
		receiver, err := w.parseAddress(dest.Address)
		if err != nil {
			return nil, err
		}
		decomposed = append(decomposed, txauthor.ReceiverAmounts{
			Receiver: receiver,
			Amounts:  notecrypto.DecomposeAmount(uint64(dest.Amount), dustThreshold),
		})
	}

	decomposed = append(decomposed, txauthor.ReceiverAmounts{
		Receiver: changeReceiver,
		Amounts:  notecrypto.DecomposeAmount(changeAmount, dustThreshold),
	})
	return decomposed, nil
}

// sendTransaction checks the serialized size, re-parses the serialization as
// a sanity check, and relays the transaction, suspending until the node
// answers or the wallet stops.
func (w *Wallet) sendTransaction(tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return walletError(ErrInternalWallet, "cannot serialize transaction", err)
	}

	if !txrules.WithinSizeLimit(buf.Len(), w.upperTransactionSizeLimit) {
		str := fmt.Sprintf("transaction size %d exceeds limit %d",
			buf.Len(), w.upperTransactionSizeLimit)
		return walletError(ErrTransactionSizeTooBig, str, nil)
	}

	var reparsed wire.MsgTx
	if err := reparsed.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		return walletError(ErrInternalWallet,
			"signed transaction does not round-trip", err)
	}

	if err := w.checkStopped(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	w.node.RelayTransaction(tx, func(err error) {
		errChan <- err
	})

	select {
	case err := <-errChan:
		return err
	case <-w.quitChan():
		return walletError(ErrOperationCancelled, "wallet is stopped", nil)
	}
}
