package wallet

import (
	crand "crypto/rand"
	"sync"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/wire"
)

// mockNode implements chain.Node against canned data.  Decoy requests are
// answered with decoysPerAmount synthetic entries per amount unless a custom
// responder is installed.
type mockNode struct {
	mu sync.Mutex

	relayErr        error
	relayed         []*wire.MsgTx
	decoysPerAmount int
	randomOutsErr   error
	randomOutsFunc  func(amounts []uint64, count uint64) []chain.RandomOuts
}

var _ chain.Node = (*mockNode)(nil)

func newMockNode() *mockNode {
	return &mockNode{decoysPerAmount: 16}
}

func (n *mockNode) RelayTransaction(tx *wire.MsgTx, callback func(error)) {
	n.mu.Lock()
	n.relayed = append(n.relayed, tx)
	err := n.relayErr
	n.mu.Unlock()
	callback(err)
}

func (n *mockNode) GetRandomOutsByAmounts(amounts []uint64, count uint64,
	callback func([]chain.RandomOuts, error)) {

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.randomOutsErr != nil {
		callback(nil, n.randomOutsErr)
		return
	}
	if n.randomOutsFunc != nil {
		callback(n.randomOutsFunc(amounts, count), nil)
		return
	}

	outs := make([]chain.RandomOuts, 0, len(amounts))
	for _, amount := range amounts {
		group := chain.RandomOuts{Amount: amount}
		for i := 0; i < n.decoysPerAmount; i++ {
			pub, _, err := notecrypto.GenerateKeys()
			if err != nil {
				callback(nil, err)
				return
			}
			group.Outs = append(group.Outs, chain.RandomOutEntry{
				GlobalIndex: uint32(1000 + i),
				OutKey:      pub,
			})
		}
		outs = append(outs, group)
	}
	callback(outs, nil)
}

func (n *mockNode) relayedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.relayed)
}

// mockContainer implements chain.TransfersContainer with directly settable
// outputs, balances and transaction information.
type mockContainer struct {
	mu sync.Mutex

	outputs  []chain.OutputInfo
	unlocked uint64
	locked   uint64
	txInfo   map[chainhash.Hash]mockTxInfo
}

type mockTxInfo struct {
	info    chain.TransactionInformation
	balance int64
}

var _ chain.TransfersContainer = (*mockContainer)(nil)

func newMockContainer() *mockContainer {
	return &mockContainer{txInfo: make(map[chainhash.Hash]mockTxInfo)}
}

func (c *mockContainer) GetOutputs(filter chain.BalanceFilter) []chain.OutputInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	outs := make([]chain.OutputInfo, len(c.outputs))
	copy(outs, c.outputs)
	return outs
}

func (c *mockContainer) Balance(filter chain.BalanceFilter) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if filter == chain.IncludeAllLocked {
		return c.locked
	}
	return c.unlocked
}

func (c *mockContainer) GetTransactionInformation(hash chainhash.Hash) (
	chain.TransactionInformation, int64, bool) {

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.txInfo[hash]
	return entry.info, entry.balance, ok
}

func (c *mockContainer) setBalances(unlocked, locked uint64) {
	c.mu.Lock()
	c.unlocked = unlocked
	c.locked = locked
	c.mu.Unlock()
}

func (c *mockContainer) setOutputs(outputs []chain.OutputInfo) {
	c.mu.Lock()
	c.outputs = outputs
	c.mu.Unlock()
}

func (c *mockContainer) setTransaction(info chain.TransactionInformation, balance int64) {
	c.mu.Lock()
	c.txInfo[info.TransactionHash] = mockTxInfo{info: info, balance: balance}
	c.mu.Unlock()
}

// mockSubscription pairs a subscribed address with its container.
type mockSubscription struct {
	address   noteutil.Address
	container *mockContainer
}

var _ chain.Subscription = (*mockSubscription)(nil)

func (s *mockSubscription) Container() chain.TransfersContainer {
	return s.container
}

// mockSynchronizer implements chain.Synchronizer over an in-memory
// subscription table and a manually driven notification channel.
type mockSynchronizer struct {
	mu sync.Mutex

	startCount int
	stopCount  int
	subs       map[noteutil.Address]*mockSubscription
	order      []noteutil.Address
	ntfns      chan interface{}
}

var _ chain.Synchronizer = (*mockSynchronizer)(nil)

func newMockSynchronizer() *mockSynchronizer {
	return &mockSynchronizer{
		subs:  make(map[noteutil.Address]*mockSubscription),
		ntfns: make(chan interface{}, 128),
	}
}

func (s *mockSynchronizer) Start() {
	s.mu.Lock()
	s.startCount++
	s.mu.Unlock()
}

func (s *mockSynchronizer) Stop() {
	s.mu.Lock()
	s.stopCount++
	s.mu.Unlock()
}

func (s *mockSynchronizer) AddSubscription(sub chain.AccountSubscription) (
	chain.Subscription, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subs[sub.Keys.Address]; ok {
		return existing, nil
	}

	ms := &mockSubscription{
		address:   sub.Keys.Address,
		container: newMockContainer(),
	}
	s.subs[sub.Keys.Address] = ms
	s.order = append(s.order, sub.Keys.Address)
	return ms, nil
}

func (s *mockSynchronizer) RemoveSubscription(addr noteutil.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, addr)
	for i, a := range s.order {
		if a == addr {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *mockSynchronizer) Subscriptions() []noteutil.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]noteutil.Address, len(s.order))
	copy(addrs, s.order)
	return addrs
}

func (s *mockSynchronizer) Notifications() <-chan interface{} {
	return s.ntfns
}

func (s *mockSynchronizer) containerFor(addr noteutil.Address) *mockContainer {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[addr]
	if !ok {
		return nil
	}
	return sub.container
}

func (s *mockSynchronizer) notifyProgress(height uint32) {
	s.ntfns <- chain.SyncProgress{Height: height}
}

func (s *mockSynchronizer) notifyTransactionUpdated(container chain.TransfersContainer,
	hash chainhash.Hash) {

	s.ntfns <- chain.TransactionUpdated{Container: container, Hash: hash}
}

func (s *mockSynchronizer) notifyTransactionDeleted(container chain.TransfersContainer,
	hash chainhash.Hash) {

	s.ntfns <- chain.TransactionDeleted{Container: container, Hash: hash}
}

// fabricateOutput composes an output addressed to the given identity exactly
// as a sender would, so the one-time key check during signing passes.
func fabricateOutput(spendPub, viewPub notecrypto.PublicKey, amount uint64,
	outputIndex, globalIndex uint32) (chain.OutputInfo, error) {

	txPub, txSec, err := notecrypto.GenerateKeys()
	if err != nil {
		return chain.OutputInfo{}, err
	}
	derivation, err := notecrypto.GenerateKeyDerivation(viewPub, txSec)
	if err != nil {
		return chain.OutputInfo{}, err
	}
	outKey, err := notecrypto.DerivePublicKey(derivation, outputIndex, spendPub)
	if err != nil {
		return chain.OutputInfo{}, err
	}

	var srcHash chainhash.Hash
	if _, err := crand.Read(srcHash[:]); err != nil {
		return chain.OutputInfo{}, err
	}

	return chain.OutputInfo{
		Amount:               amount,
		TransactionHash:      srcHash,
		OutputInTransaction:  outputIndex,
		GlobalOutputIndex:    globalIndex,
		OutputKey:            outKey,
		TransactionPublicKey: txPub,
	}, nil
}
