package wallet

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/waddrmgr"
	"github.com/notesuite/notewallet/wtxmgr"
)

func makeTestHash(b byte) chainhash.Hash {
	var hash chainhash.Hash
	hash[0] = b
	return hash
}

const testPassword = "test password"

var testStartTime = time.Unix(1600000000, 0)

// testWallet returns an initialized wallet over mock collaborators.
func testWallet(t *testing.T) (*Wallet, *mockNode, *mockSynchronizer) {
	t.Helper()

	node := newMockNode()
	sync := newMockSynchronizer()
	w := NewWallet(&chaincfg.SimNetParams, node, sync,
		clock.NewTestClock(testStartTime))
	require.NoError(t, w.Initialize(testPassword))
	t.Cleanup(func() {
		w.Start()
		_ = w.Shutdown()
	})
	return w, node, sync
}

// fundWallet installs spendable outputs into the record's container and
// recomputes its balance, returning the created outputs.
func fundWallet(t *testing.T, w *Wallet, rec *waddrmgr.WalletRecord,
	amounts ...uint64) []chain.OutputInfo {

	t.Helper()

	cont := rec.Container.(*mockContainer)
	outs := make([]chain.OutputInfo, 0, len(amounts))
	var total uint64
	for i, amount := range amounts {
		out, err := fabricateOutput(rec.SpendPublicKey,
			w.manager.ViewPublicKey(), amount, uint32(i), uint32(100+i))
		require.NoError(t, err)
		outs = append(outs, out)
		total += amount
	}
	cont.setOutputs(outs)
	cont.setBalances(total, 0)

	w.mu.Lock()
	w.updateBalance(rec.Container)
	w.mu.Unlock()
	return outs
}

// newFundedWallet returns a wallet with one address holding the given
// outputs.
func newFundedWallet(t *testing.T, amounts ...uint64) (*Wallet, *mockNode,
	*mockSynchronizer, *waddrmgr.WalletRecord) {

	t.Helper()

	w, node, sync := testWallet(t)
	_, err := w.CreateAddress()
	require.NoError(t, err)
	rec := w.manager.Records()[0]
	fundWallet(t, w, rec, amounts...)
	return w, node, sync, rec
}

// destAddress returns an address string belonging to nobody in particular.
func destAddress(t *testing.T) string {
	t.Helper()

	other := newMockSynchronizer()
	w2 := NewWallet(&chaincfg.SimNetParams, newMockNode(), other,
		clock.NewTestClock(testStartTime))
	require.NoError(t, w2.Initialize("x"))
	defer w2.Shutdown()

	addr, err := w2.CreateAddress()
	require.NoError(t, err)
	return addr
}

// requireInvariants asserts the aggregate balances equal the per-wallet
// sums.
func requireInvariants(t *testing.T, w *Wallet) {
	t.Helper()

	var sumActual, sumPending uint64
	for _, rec := range w.manager.Records() {
		sumActual += rec.ActualBalance
		sumPending += rec.PendingBalance
	}
	require.Equal(t, sumActual, w.actualBalance, "aggregate actual balance")
	require.Equal(t, sumPending, w.pendingBalance, "aggregate pending balance")
}

func TestInitializeLifecycle(t *testing.T) {
	node := newMockNode()
	sync := newMockSynchronizer()
	w := NewWallet(&chaincfg.SimNetParams, node, sync,
		clock.NewTestClock(testStartTime))

	// Everything fails before Initialize.
	_, err := w.AddressCount()
	require.True(t, IsError(err, ErrNotInitialized))
	_, err = w.Transfer([]wtxmgr.Transfer{{Address: "x", Amount: 1}}, 0, 0, nil, 0)
	require.True(t, IsError(err, ErrNotInitialized))

	require.NoError(t, w.Initialize(testPassword))
	err = w.Initialize(testPassword)
	require.True(t, IsError(err, ErrAlreadyInitialized))

	count, err := w.AddressCount()
	require.NoError(t, err)
	require.Equal(t, 0, count)

	require.NoError(t, w.Shutdown())
	err = w.Shutdown()
	require.True(t, IsError(err, ErrNotInitialized))

	// Shutdown returns the wallet to its uninitialized state; it can be
	// initialized again.
	require.NoError(t, w.Initialize(testPassword))
	require.NoError(t, w.Shutdown())
}

func TestChangePassword(t *testing.T) {
	w, _, _ := testWallet(t)

	err := w.ChangePassword("wrong", "new")
	require.True(t, IsError(err, ErrWrongPassword))

	require.NoError(t, w.ChangePassword(testPassword, "new"))
	require.NoError(t, w.ChangePassword("new", testPassword))
}

func TestCreateAddress(t *testing.T) {
	w, _, sync := testWallet(t)

	first, err := w.CreateAddress()
	require.NoError(t, err)
	second, err := w.CreateAddress()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	count, err := w.AddressCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	got, err := w.Address(0)
	require.NoError(t, err)
	require.Equal(t, first, got)
	addrs, err := w.Addresses()
	require.NoError(t, err)
	require.Equal(t, []string{first, second}, addrs)

	_, err = w.Address(2)
	require.True(t, IsError(err, ErrInvalidArgument))

	// Both addresses are subscribed; the synchronizer was restarted
	// after every add.
	require.Len(t, sync.Subscriptions(), 2)
	sync.mu.Lock()
	starts, stops := sync.startCount, sync.stopCount
	sync.mu.Unlock()
	require.Equal(t, 2, starts)
	require.Equal(t, 1, stops)
}

func TestDeleteAddress(t *testing.T) {
	w, _, sync := testWallet(t)

	_, err := w.CreateAddress()
	require.NoError(t, err)
	second, err := w.CreateAddress()
	require.NoError(t, err)

	rec := w.manager.Records()[1]
	fundWallet(t, w, rec, 50000)
	requireInvariants(t, w)

	// Give the second wallet an unconfirmed spent output so deletion has
	// something to erase.
	outs := rec.Container.(*mockContainer).GetOutputs(chain.IncludeKeyUnlocked)
	require.NoError(t, w.txStore.MarkOutputsSpent(makeTestHash(1), outs,
		[]*waddrmgr.WalletRecord{rec}))

	require.NoError(t, w.DeleteAddress(second))

	count, err := w.AddressCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, uint64(0), w.txStore.SpentBalance(rec))
	requireInvariants(t, w)
	require.Len(t, sync.Subscriptions(), 1)

	err = w.DeleteAddress(second)
	require.True(t, IsError(err, ErrInvalidArgument))

	err = w.DeleteAddress("garbage")
	require.True(t, IsError(err, ErrBadAddress))
}

func TestDeleteLastAddressStopsSynchronizer(t *testing.T) {
	w, _, sync := testWallet(t)

	addr, err := w.CreateAddress()
	require.NoError(t, err)
	require.NoError(t, w.DeleteAddress(addr))

	require.Empty(t, sync.Subscriptions())
	sync.mu.Lock()
	starts, stops := sync.startCount, sync.stopCount
	sync.mu.Unlock()
	require.Equal(t, starts, stops)

	// A subsequent add restarts it.
	_, err = w.CreateAddress()
	require.NoError(t, err)
	sync.mu.Lock()
	starts = sync.startCount
	sync.mu.Unlock()
	require.Equal(t, stops+1, starts)
}

func TestStopCancelsBlockedGetEvent(t *testing.T) {
	w, _, _ := testWallet(t)

	errChan := make(chan error, 1)
	go func() {
		_, err := w.GetEvent()
		errChan <- err
	}()

	// Give the waiter a moment to block, then stop.
	time.Sleep(10 * time.Millisecond)
	w.Stop()

	select {
	case err := <-errChan:
		require.True(t, IsError(err, ErrOperationCancelled))
	case <-time.After(time.Second):
		t.Fatal("GetEvent did not observe the stop flag")
	}

	// Every other core call now fails the same way.
	_, err := w.AddressCount()
	require.True(t, IsError(err, ErrOperationCancelled))

	// Start clears the flag.
	w.Start()
	_, err = w.AddressCount()
	require.NoError(t, err)
}

func TestGetEventOrdering(t *testing.T) {
	w, _, _ := testWallet(t)

	w.mu.Lock()
	w.pushEvent(Event{Type: EventTransactionCreated, TransactionIndex: 0})
	w.pushEvent(Event{Type: EventTransactionUpdated, TransactionIndex: 0})
	w.pushEvent(Event{Type: EventBalanceUnlocked})
	w.mu.Unlock()

	for _, want := range []EventType{
		EventTransactionCreated, EventTransactionUpdated, EventBalanceUnlocked,
	} {
		event, err := w.GetEvent()
		require.NoError(t, err)
		require.Equal(t, want, event.Type)
	}
}

func TestBalanceQueries(t *testing.T) {
	w, _, _, rec := newFundedWallet(t, 50000, 20000)

	actual, err := w.ActualBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(70000), actual)
	pending, err := w.PendingBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(0), pending)

	addr := w.manager.EncodeAddress(rec)
	actual, err = w.ActualBalanceOf(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(70000), actual)

	_, err = w.ActualBalanceOf("garbage")
	require.True(t, IsError(err, ErrBadAddress))
	_, err = w.PendingBalanceOf(destAddress(t))
	require.True(t, IsError(err, ErrInvalidArgument))
}
