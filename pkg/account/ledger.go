package account

import (
	"cmp"
	"slices"
	"time"

	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// DefaultConsolidationThreshold is the number of outputs above which an account should consolidate its funds.
const DefaultConsolidationThreshold = 100

// Ledger is the reconciled view of one account on the ledger. Reconciliation passes of the same Ledger are
// serialized; Ledgers of different accounts do not share any state.
type Ledger struct {
	// Events contains the events of the ledger, they may be shared between the ledgers of a wallet.
	Events *Events

	accountIndex uint32
	network      address.Network

	addresses    map[address.Key]*address.Address
	outputs      *shrinkingmap.ShrinkingMap[iotago.OutputID, *OutputData]
	transactions *shrinkingmap.ShrinkingMap[iotago.TransactionID, *Transaction]
	// reservations maps outputs to the local outgoing transaction that is about to spend them.
	reservations map[iotago.OutputID]iotago.TransactionID
	balance      *AccountBalance

	mutex syncutils.RWMutex

	log.Logger
}

// NewLedger creates an empty Ledger for the account with the given index.
func NewLedger(logger log.Logger, accountIndex uint32, network address.Network, opts ...options.Option[Ledger]) *Ledger {
	return options.Apply(&Ledger{
		Events:       NewEvents(),
		accountIndex: accountIndex,
		network:      network,
		addresses:    make(map[address.Key]*address.Address),
		outputs:      shrinkingmap.New[iotago.OutputID, *OutputData](),
		transactions: shrinkingmap.New[iotago.TransactionID, *Transaction](),
		reservations: make(map[iotago.OutputID]iotago.TransactionID),
		balance:      new(AccountBalance),
		Logger:       logger,
	}, opts)
}

// AddAddresses adds addresses to the set of addresses owned by the account.
func (l *Ledger) AddAddresses(addresses ...*address.Address) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, addr := range addresses {
		if addr.Network() != l.network {
			return ierrors.Wrapf(ErrForeignNetwork, "address %s does not belong to %s", addr, l.network)
		}
	}

	for _, addr := range addresses {
		l.addresses[addr.Key()] = addr
	}

	return nil
}

// Owns returns true if the address belongs to the account.
func (l *Ledger) Owns(addr *address.Address) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, owned := l.addresses[addr.Key()]

	return owned
}

// Reconcile folds a ledger report into the known outputs and transactions and returns the resulting balance and
// transaction history. Entries that contradict what is known are dropped and reported through IntegrityViolation.
func (l *Ledger) Reconcile(report *LedgerReport) (*AccountBalance, []*Transaction) {
	r := &reconciliation{ledger: l}

	l.mutex.Lock()
	if report != nil {
		for _, output := range report.Outputs {
			if err := r.mergeOutput(output); err != nil {
				r.drop(err)
			}
		}

		for _, transactionReport := range report.Transactions {
			if err := r.mergeTransaction(transactionReport); err != nil {
				r.drop(err)
			}
		}
	}

	balance := r.updateBalance()
	transactions := l.transactionHistory()
	l.mutex.Unlock()

	r.notify()

	l.LogDebug("reconciled", "account", l.accountIndex, "total", balance.Total, "available", balance.Available, "transactions", len(transactions))

	return balance, transactions
}

// Balance computes the balance from the current outputs.
func (l *Ledger) Balance() *AccountBalance {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.computeBalance()
}

// Output returns a copy of the output with the given id.
func (l *Ledger) Output(outputID iotago.OutputID) (*OutputData, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	output, exists := l.outputs.Get(outputID)
	if !exists {
		return nil, false
	}

	return output.Clone(), true
}

// Outputs returns copies of all known outputs ordered by id.
func (l *Ledger) Outputs() []*OutputData {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.sortedOutputs(func(*OutputData) bool { return true })
}

// UnspentOutputs returns copies of all unspent outputs that count towards the balance.
func (l *Ledger) UnspentOutputs() []*OutputData {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.sortedOutputs(func(output *OutputData) bool {
		return !output.Spent && output.InclusionState.IsCounted()
	})
}

// Transaction returns a copy of the transaction with the given id.
func (l *Ledger) Transaction(transactionID iotago.TransactionID) (*Transaction, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	transaction, exists := l.transactions.Get(transactionID)
	if !exists {
		return nil, false
	}

	return transaction.Clone(), true
}

// Transactions returns copies of all transactions ordered by timestamp.
func (l *Ledger) Transactions() []*Transaction {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.transactionHistory()
}

// PendingTransactionIDs returns the ids of all transactions that are not final yet.
func (l *Ledger) PendingTransactionIDs() []iotago.TransactionID {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	pending := make([]iotago.TransactionID, 0)
	l.transactions.ForEach(func(transactionID iotago.TransactionID, transaction *Transaction) bool {
		if transaction.InclusionState == Pending {
			pending = append(pending, transactionID)
		}

		return true
	})
	slices.SortFunc(pending, compareTransactionIDs)

	return pending
}

// Reserve marks the outputs as about to be spent by the given local transaction. Either all outputs are reserved or
// none. An output can only be reserved by one transaction at a time.
func (l *Ledger) Reserve(transactionID iotago.TransactionID, outputIDs ...iotago.OutputID) error {
	r := &reconciliation{ledger: l}

	l.mutex.Lock()
	err := l.reserve(transactionID, outputIDs)
	if err == nil {
		r.updateBalance()
	}
	l.mutex.Unlock()

	r.notify()

	return err
}

// Release drops all reservations of the given transaction and returns how many outputs were released.
func (l *Ledger) Release(transactionID iotago.TransactionID) int {
	r := &reconciliation{ledger: l}

	l.mutex.Lock()
	released := l.release(transactionID)
	r.updateBalance()
	l.mutex.Unlock()

	r.notify()

	return released
}

// IsReserved returns true if the output is reserved by a local transaction.
func (l *Ledger) IsReserved(outputID iotago.OutputID) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, reserved := l.reservations[outputID]

	return reserved
}

// RegisterOutgoing records a transaction that was created locally. Its inputs stay reserved until the ledger
// reports the transaction as Confirmed or Conflicting. A transaction the ledger already settled reserves nothing.
func (l *Ledger) RegisterOutgoing(transactionID iotago.TransactionID, inputs []iotago.OutputID, timestamp time.Time) (*Transaction, error) {
	r := &reconciliation{ledger: l}

	l.mutex.Lock()
	transaction, exists := l.transactions.Get(transactionID)
	if exists && transaction.InclusionState != Pending {
		l.release(transactionID)
	} else if err := l.reserve(transactionID, inputs); err != nil {
		l.mutex.Unlock()

		return nil, err
	}

	if !exists {
		transaction = r.createTransaction(transactionID, Pending, timestamp, Outgoing)
		transaction.Inputs = slices.Clone(inputs)
	}
	transaction.Direction = Outgoing

	r.updateBalance()
	registered := transaction.Clone()
	l.mutex.Unlock()

	r.notify()

	return registered, nil
}

// SelectInputs picks unreserved, confirmed and unspent outputs until their sum covers the amount. Larger outputs are
// picked first.
func (l *Ledger) SelectInputs(amount iotago.BaseToken) ([]*OutputData, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	candidates := l.sortedOutputs(func(output *OutputData) bool {
		_, reserved := l.reservations[output.OutputID]

		return !reserved && !output.Spent && output.InclusionState == Confirmed
	})
	slices.SortStableFunc(candidates, func(a, b *OutputData) int {
		return cmp.Compare(b.Amount, a.Amount)
	})

	var selected []*OutputData
	var sum iotago.BaseToken
	for _, candidate := range candidates {
		if sum >= amount && len(selected) > 0 {
			break
		}

		selected = append(selected, candidate)
		sum += candidate.Amount
	}

	if sum < amount || len(selected) == 0 {
		return nil, ierrors.Wrapf(ErrInsufficientBalance, "requested %d, spendable %d", amount, sum)
	}

	return selected, nil
}

// ConsolidationRequired returns true if the number of spendable outputs reached the threshold.
func (l *Ledger) ConsolidationRequired(threshold int) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var count int
	l.outputs.ForEach(func(_ iotago.OutputID, output *OutputData) bool {
		if !output.Spent && output.InclusionState == Confirmed {
			count++
		}

		return true
	})

	return count >= threshold
}

// Restore replaces the known outputs and transactions, for example with data loaded from a store. The inputs of
// pending outgoing transactions are reserved again.
func (l *Ledger) Restore(outputs []*OutputData, transactions []*Transaction) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.outputs = shrinkingmap.New[iotago.OutputID, *OutputData]()
	for _, output := range outputs {
		l.outputs.Set(output.OutputID, output.Clone())
	}

	l.transactions = shrinkingmap.New[iotago.TransactionID, *Transaction]()
	for _, transaction := range transactions {
		l.transactions.Set(transaction.ID, transaction.Clone())
	}

	l.reservations = make(map[iotago.OutputID]iotago.TransactionID)
	l.transactions.ForEach(func(transactionID iotago.TransactionID, transaction *Transaction) bool {
		if transaction.Direction != Outgoing || transaction.InclusionState != Pending {
			return true
		}

		for _, input := range transaction.Inputs {
			if output, exists := l.outputs.Get(input); exists && !output.Spent && output.InclusionState.IsCounted() {
				l.reservations[input] = transactionID
			}
		}

		return true
	})
	l.balance = l.computeBalance()
}

func (l *Ledger) reserve(transactionID iotago.TransactionID, outputIDs []iotago.OutputID) error {
	for _, outputID := range outputIDs {
		output, exists := l.outputs.Get(outputID)
		if !exists {
			return ierrors.Wrapf(ErrUnknownOutput, "output %s", outputID.ToHex())
		}
		if output.Spent || !output.InclusionState.IsCounted() {
			return ierrors.Wrapf(ErrOutputNotSpendable, "output %s is %s (spent=%t)", outputID.ToHex(), output.InclusionState, output.Spent)
		}
		if holder, reserved := l.reservations[outputID]; reserved && holder != transactionID {
			return ierrors.Wrapf(ErrOutputReserved, "output %s is reserved by %s", outputID.ToHex(), holder.ToHex())
		}
	}

	for _, outputID := range outputIDs {
		l.reservations[outputID] = transactionID
	}

	return nil
}

func (l *Ledger) release(transactionID iotago.TransactionID) (released int) {
	for outputID, holder := range l.reservations {
		if holder == transactionID {
			delete(l.reservations, outputID)
			released++
		}
	}

	return released
}

func (l *Ledger) computeBalance() *AccountBalance {
	return ComputeBalance(l.outputs.Values(), func(outputID iotago.OutputID) bool {
		_, reserved := l.reservations[outputID]

		return reserved
	})
}

func (l *Ledger) sortedOutputs(filter func(*OutputData) bool) []*OutputData {
	outputs := make([]*OutputData, 0, l.outputs.Size())
	l.outputs.ForEach(func(_ iotago.OutputID, output *OutputData) bool {
		if filter(output) {
			outputs = append(outputs, output.Clone())
		}

		return true
	})

	slices.SortFunc(outputs, func(a, b *OutputData) int {
		return compareOutputIDs(a.OutputID, b.OutputID)
	})

	return outputs
}

func (l *Ledger) transactionHistory() []*Transaction {
	transactions := make([]*Transaction, 0, l.transactions.Size())
	l.transactions.ForEach(func(_ iotago.TransactionID, transaction *Transaction) bool {
		transactions = append(transactions, transaction.Clone())

		return true
	})

	slices.SortFunc(transactions, func(a, b *Transaction) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}

		return compareTransactionIDs(a.ID, b.ID)
	})

	return transactions
}

// WithEvents makes the ledger trigger the given events instead of its own.
func WithEvents(events *Events) options.Option[Ledger] {
	return func(l *Ledger) {
		l.Events = events
	}
}
