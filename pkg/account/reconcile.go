package account

import (
	"slices"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	iotago "github.com/iotaledger/iota.go/v4"
)

// reconciliation collects the changes of one pass over the ledger. It runs under the ledger's write lock and defers
// all events until the lock is released.
type reconciliation struct {
	ledger        *Ledger
	notifications []func()
}

func (r *reconciliation) mergeOutput(reported *OutputData) error {
	if err := reported.Validate(); err != nil {
		return err
	}

	l := r.ledger
	if reported.Address.Network() != l.network {
		return ierrors.Wrapf(ErrForeignNetwork, "output %s is on %s", reported.OutputID.ToHex(), reported.Address.Network())
	}

	transactionID := reported.TransactionID()
	transaction, transactionKnown := l.transactions.Get(transactionID)

	existing, exists := l.outputs.Get(reported.OutputID)
	if !exists {
		if _, owned := l.addresses[reported.Address.Key()]; owned {
			return r.addOutput(reported, transaction)
		}

		// outputs of foreign addresses are only recorded as part of a known transaction, e.g. the payee of a send
		if transactionKnown {
			transaction.addOutput(reported.OutputID)
		}

		return nil
	}

	if !existing.sameOutput(reported) {
		return ierrors.Wrapf(ErrConflictingReport, "output %s changed its amount, kind or address", reported.OutputID.ToHex())
	}
	if existing.Spent && !reported.Spent {
		return ierrors.Wrapf(ErrStateRegression, "spent output %s reported as unspent", reported.OutputID.ToHex())
	}
	if !existing.InclusionState.CanAdvanceTo(reported.InclusionState) {
		return ierrors.Wrapf(ErrStateRegression, "output %s can not move from %s to %s", reported.OutputID.ToHex(), existing.InclusionState, reported.InclusionState)
	}
	if existing.Spent == reported.Spent && existing.InclusionState == reported.InclusionState {
		return nil
	}

	if !transactionKnown {
		transaction = r.createTransaction(transactionID, existing.InclusionState, existing.Timestamp, Incoming)
		transaction.addOutput(existing.OutputID)
	}
	if !transaction.InclusionState.CanAdvanceTo(reported.InclusionState) {
		return ierrors.Wrapf(ErrConflictingReport, "output %s reported %s but its transaction is %s", reported.OutputID.ToHex(), reported.InclusionState, transaction.InclusionState)
	}

	updated := existing.Clone()
	updated.Spent = reported.Spent
	updated.InclusionState = reported.InclusionState
	r.storeOutput(updated)

	r.advanceTransaction(transaction, updated.InclusionState)

	return nil
}

func (r *reconciliation) addOutput(reported *OutputData, transaction *Transaction) error {
	output := reported.Clone()

	if transaction != nil {
		switch {
		case transaction.InclusionState.CanAdvanceTo(output.InclusionState):
		case output.InclusionState.CanAdvanceTo(transaction.InclusionState):
			// the transaction was reported in a later state already
			output.InclusionState = transaction.InclusionState
		default:
			return ierrors.Wrapf(ErrConflictingReport, "output %s reported %s but its transaction is %s", output.OutputID.ToHex(), output.InclusionState, transaction.InclusionState)
		}
	}

	r.storeOutput(output)

	if transaction == nil {
		direction := Incoming
		if r.reservedBy(output.TransactionID()) {
			direction = Outgoing
		}

		transaction = r.createTransaction(output.TransactionID(), output.InclusionState, output.Timestamp, direction)
		transaction.addOutput(output.OutputID)

		return nil
	}

	transaction.addOutput(output.OutputID)
	r.advanceTransaction(transaction, output.InclusionState)

	return nil
}

func (r *reconciliation) mergeTransaction(report *TransactionReport) error {
	if err := report.Validate(); err != nil {
		return err
	}

	l := r.ledger
	spendsOwnedOutputs := slices.ContainsFunc(report.Inputs, func(outputID iotago.OutputID) bool {
		return l.outputs.Has(outputID)
	})

	transaction, exists := l.transactions.Get(report.TransactionID)
	if !exists {
		if !spendsOwnedOutputs && !r.reservedBy(report.TransactionID) {
			l.LogTrace("ignoring unrelated transaction", "account", l.accountIndex, "transaction", report.TransactionID.ToHex())

			return nil
		}

		transaction = r.createTransaction(report.TransactionID, report.InclusionState, report.Timestamp, Outgoing)
		transaction.Inputs = slices.Clone(report.Inputs)
		r.applyInclusionState(transaction)

		return nil
	}

	if !transaction.InclusionState.CanAdvanceTo(report.InclusionState) {
		return ierrors.Wrapf(ErrStateRegression, "transaction %s can not move from %s to %s", report.TransactionID.ToHex(), transaction.InclusionState, report.InclusionState)
	}
	if len(report.Inputs) > 0 && len(transaction.Inputs) > 0 && !sameOutputIDs(transaction.Inputs, report.Inputs) {
		return ierrors.Wrapf(ErrConflictingReport, "transaction %s changed its inputs", report.TransactionID.ToHex())
	}

	if len(transaction.Inputs) == 0 {
		transaction.Inputs = slices.Clone(report.Inputs)
	}
	if spendsOwnedOutputs {
		transaction.Direction = Outgoing
	}
	if transaction.Timestamp.IsZero() {
		transaction.Timestamp = report.Timestamp
	}

	if transaction.InclusionState == report.InclusionState {
		// inputs of a confirmed transaction may only now be known
		r.applyInclusionState(transaction)

		return nil
	}

	r.advanceTransaction(transaction, report.InclusionState)

	return nil
}

func (r *reconciliation) createTransaction(transactionID iotago.TransactionID, state InclusionState, timestamp time.Time, direction Direction) *Transaction {
	transaction := &Transaction{
		ID:             transactionID,
		Direction:      direction,
		Timestamp:      timestamp,
		InclusionState: state,
	}
	r.ledger.transactions.Set(transactionID, transaction)

	accountIndex, observed := r.ledger.accountIndex, transaction.Clone()
	r.notifications = append(r.notifications, func() {
		r.ledger.Events.TransactionObserved.Trigger(&TransactionEvent{
			AccountIndex: accountIndex,
			Transaction:  observed,
		})
	})

	return transaction
}

func (r *reconciliation) advanceTransaction(transaction *Transaction, state InclusionState) {
	if transaction.InclusionState == state {
		return
	}

	previous := transaction.InclusionState
	transaction.InclusionState = state

	accountIndex, transactionID := r.ledger.accountIndex, transaction.ID
	r.notifications = append(r.notifications, func() {
		r.ledger.Events.TransactionInclusionChanged.Trigger(&InclusionChangedEvent{
			AccountIndex:  accountIndex,
			TransactionID: transactionID,
			Previous:      previous,
			Current:       state,
		})
	})

	r.applyInclusionState(transaction)
}

// applyInclusionState carries the state of a transaction over to its outputs, inputs and reservations.
func (r *reconciliation) applyInclusionState(transaction *Transaction) {
	l := r.ledger

	for _, outputID := range transaction.Outputs {
		output, exists := l.outputs.Get(outputID)
		if !exists || output.InclusionState == transaction.InclusionState || !output.InclusionState.CanAdvanceTo(transaction.InclusionState) {
			continue
		}

		updated := output.Clone()
		updated.InclusionState = transaction.InclusionState
		r.storeOutput(updated)
	}

	switch transaction.InclusionState {
	case Confirmed:
		for _, outputID := range transaction.Inputs {
			if output, exists := l.outputs.Get(outputID); exists && !output.Spent {
				updated := output.Clone()
				updated.Spent = true
				r.storeOutput(updated)
			}
		}

		l.release(transaction.ID)
	case Conflicting:
		l.release(transaction.ID)
	}
}

// storeOutput replaces the output and drops reservations that can no longer be spent.
func (r *reconciliation) storeOutput(output *OutputData) {
	r.ledger.outputs.Set(output.OutputID, output)

	if output.Spent || !output.InclusionState.IsCounted() {
		delete(r.ledger.reservations, output.OutputID)
	}
}

func (r *reconciliation) reservedBy(transactionID iotago.TransactionID) bool {
	for _, holder := range r.ledger.reservations {
		if holder == transactionID {
			return true
		}
	}

	return false
}

func (r *reconciliation) drop(err error) {
	l := r.ledger
	l.LogWarn("dropped ledger data", "account", l.accountIndex, "err", err)

	accountIndex := l.accountIndex
	r.notifications = append(r.notifications, func() {
		l.Events.IntegrityViolation.Trigger(&IntegrityViolationEvent{
			AccountIndex: accountIndex,
			Error:        err,
		})
	})
}

func (r *reconciliation) updateBalance() *AccountBalance {
	l := r.ledger

	current := l.computeBalance()
	if previous := l.balance; !previous.Equal(current) {
		l.balance = current

		accountIndex, published := l.accountIndex, *current
		r.notifications = append(r.notifications, func() {
			l.Events.BalanceChanged.Trigger(&BalanceChangedEvent{
				AccountIndex: accountIndex,
				Previous:     previous,
				Current:      &published,
			})
		})
	}

	return &AccountBalance{Total: current.Total, Available: current.Available}
}

func (r *reconciliation) notify() {
	for _, notification := range r.notifications {
		notification()
	}
}

func sameOutputIDs(a, b []iotago.OutputID) bool {
	if len(a) != len(b) {
		return false
	}

	sortedA, sortedB := slices.Clone(a), slices.Clone(b)
	slices.SortFunc(sortedA, compareOutputIDs)
	slices.SortFunc(sortedB, compareOutputIDs)

	return slices.Equal(sortedA, sortedB)
}
