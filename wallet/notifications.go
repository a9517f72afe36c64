package wallet

// EventType identifies a kind of wallet event.
type EventType int

// The wallet event types.
const (
	// EventTransactionCreated reports a new row in the transaction
	// ledger, created either by a send or by an observed incoming
	// transaction.
	EventTransactionCreated EventType = iota

	// EventTransactionUpdated reports a state or height change of an
	// existing ledger row.
	EventTransactionUpdated

	// EventBalanceUnlocked reports that queued unlock jobs matured and
	// balances were recomputed.
	EventBalanceUnlocked
)

// String returns the EventType as a human-readable name.
func (t EventType) String() string {
	switch t {
	case EventTransactionCreated:
		return "transaction created"
	case EventTransactionUpdated:
		return "transaction updated"
	case EventBalanceUnlocked:
		return "balance unlocked"
	default:
		return "unknown event"
	}
}

// Event is one state-change notification delivered through GetEvent.
// TransactionIndex is meaningful for the transaction event types only.
type Event struct {
	Type             EventType
	TransactionIndex int
}

// pushEvent enqueues an event and wakes the GetEvent waiter.  The caller
// must hold the ready gate.
func (w *Wallet) pushEvent(event Event) {
	w.events = append(w.events, event)
	select {
	case w.eventSignal <- struct{}{}:
	default:
	}
}

// GetEvent dequeues the oldest event, blocking while the queue is empty.
// A Stop call wakes the waiter, which then fails with ErrOperationCancelled.
func (w *Wallet) GetEvent() (Event, error) {
	for {
		w.mu.Lock()
		if err := w.checkReady(); err != nil {
			w.mu.Unlock()
			return Event{}, err
		}
		if len(w.events) > 0 {
			event := w.events[0]
			w.events = w.events[1:]
			w.mu.Unlock()
			return event, nil
		}
		w.mu.Unlock()

		select {
		case <-w.eventSignal:
		case <-w.quitChan():
			return Event{}, walletError(ErrOperationCancelled,
				"wallet is stopped", nil)
		}
	}
}
