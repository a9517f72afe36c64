package waddrmgr

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
)

// testContainer carries a field so that every container is a distinct
// pointer; pointers to empty structs may all compare equal.
type testContainer struct{ _ byte }

func (c *testContainer) GetOutputs(chain.BalanceFilter) []chain.OutputInfo { return nil }
func (c *testContainer) Balance(chain.BalanceFilter) uint64                { return 0 }
func (c *testContainer) GetTransactionInformation(chainhash.Hash) (
	chain.TransactionInformation, int64, bool) {
	return chain.TransactionInformation{}, 0, false
}

type testSubscription struct {
	container *testContainer
}

func (s *testSubscription) Container() chain.TransfersContainer { return s.container }

// testSynchronizer records subscription churn and hands out one container
// per address.
type testSynchronizer struct {
	subs []chain.AccountSubscription
}

func (s *testSynchronizer) Start() {}
func (s *testSynchronizer) Stop()  {}

func (s *testSynchronizer) AddSubscription(sub chain.AccountSubscription) (
	chain.Subscription, error) {

	s.subs = append(s.subs, sub)
	return &testSubscription{container: &testContainer{}}, nil
}

func (s *testSynchronizer) RemoveSubscription(addr noteutil.Address) {
	for i, sub := range s.subs {
		if sub.Keys.Address == addr {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *testSynchronizer) Subscriptions() []noteutil.Address {
	addrs := make([]noteutil.Address, 0, len(s.subs))
	for _, sub := range s.subs {
		addrs = append(addrs, sub.Keys.Address)
	}
	return addrs
}

func (s *testSynchronizer) Notifications() <-chan interface{} { return nil }

func newTestManager(t *testing.T) (*Manager, *testSynchronizer, *clock.TestClock) {
	t.Helper()

	viewPub, viewSec, err := notecrypto.GenerateKeys()
	require.NoError(t, err)

	sync := &testSynchronizer{}
	clk := clock.NewTestClock(time.Unix(1600000000, 0))
	m := NewManager(&chaincfg.SimNetParams, sync, clk, viewPub, viewSec)
	return m, sync, clk
}

func addTestWallet(t *testing.T, m *Manager) *WalletRecord {
	t.Helper()

	spendPub, spendSec, err := notecrypto.GenerateKeys()
	require.NoError(t, err)
	rec, err := m.Add(spendPub, spendSec)
	require.NoError(t, err)
	return rec
}

func TestAddKeepsAllViewsConsistent(t *testing.T) {
	m, sync, _ := newTestManager(t)

	first := addTestWallet(t, m)
	second := addTestWallet(t, m)
	require.Equal(t, 2, m.Count())

	// Insertion order: the first created record is the change wallet.
	require.Same(t, first, m.ChangeWallet())
	got, err := m.At(1)
	require.NoError(t, err)
	require.Same(t, second, got)

	// Key view.
	byKey, err := m.ByKey(second.SpendPublicKey)
	require.NoError(t, err)
	require.Same(t, second, byKey)

	// Container view.
	byContainer, ok := m.LookupContainer(first.Container)
	require.True(t, ok)
	require.Same(t, first, byContainer)

	// One subscription per record, carrying the shared view key and the
	// spendable-age policy.
	require.Len(t, sync.subs, 2)
	require.Equal(t, m.ViewSecretKey(), sync.subs[0].Keys.ViewSecretKey)
	require.Equal(t, chaincfg.SimNetParams.TransactionSpendableAge,
		sync.subs[0].TransactionSpendableAge)
}

func TestSubscriptionSyncStartLagsCreationTime(t *testing.T) {
	m, sync, clk := newTestManager(t)

	addTestWallet(t, m)
	want := uint64(clk.Now().Add(-syncStartDelta).Unix())
	require.Equal(t, want, sync.subs[0].SyncStart.Timestamp)
	require.Equal(t, uint32(0), sync.subs[0].SyncStart.Height)
}

func TestAddDuplicateKey(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := addTestWallet(t, m)
	_, err := m.Add(rec.SpendPublicKey, rec.SpendSecretKey)
	require.True(t, IsError(err, ErrDuplicateAddress))
	require.Equal(t, 1, m.Count())
}

func TestRemoveDropsEveryView(t *testing.T) {
	m, sync, _ := newTestManager(t)

	first := addTestWallet(t, m)
	second := addTestWallet(t, m)

	removed, err := m.Remove(first.SpendPublicKey)
	require.NoError(t, err)
	require.Same(t, first, removed)

	require.Equal(t, 1, m.Count())
	_, err = m.ByKey(first.SpendPublicKey)
	require.True(t, IsError(err, ErrAddressNotFound))
	_, ok := m.LookupContainer(first.Container)
	require.False(t, ok)
	require.Len(t, sync.subs, 1)

	// The surviving record takes over index 0.
	require.Same(t, second, m.ChangeWallet())

	_, err = m.Remove(first.SpendPublicKey)
	require.True(t, IsError(err, ErrAddressNotFound))
}

func TestCreationTimeOrdering(t *testing.T) {
	m, _, clk := newTestManager(t)

	first := addTestWallet(t, m)
	clk.SetTime(clk.Now().Add(time.Hour))
	addTestWallet(t, m)

	oldest, ok := m.OldestCreationTime()
	require.True(t, ok)
	require.Equal(t, first.CreationTime, oldest)

	_, err := m.Remove(first.SpendPublicKey)
	require.NoError(t, err)
	oldest, ok = m.OldestCreationTime()
	require.True(t, ok)
	require.True(t, oldest.After(first.CreationTime))
}

func TestClearRemovesSubscriptions(t *testing.T) {
	m, sync, _ := newTestManager(t)

	addTestWallet(t, m)
	addTestWallet(t, m)
	m.Clear()

	require.Equal(t, 0, m.Count())
	require.Empty(t, sync.subs)
	require.Nil(t, m.ChangeWallet())
	_, ok := m.OldestCreationTime()
	require.False(t, ok)
}

func TestAddressRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := addTestWallet(t, m)
	encoded := m.EncodeAddress(rec)

	decoded, err := noteutil.DecodeAddress(chaincfg.SimNetParams.AddressPrefix, encoded)
	require.NoError(t, err)
	require.Equal(t, rec.SpendPublicKey, decoded.SpendPublicKey)
	require.Equal(t, m.ViewPublicKey(), decoded.ViewPublicKey)
}
