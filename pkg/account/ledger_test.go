package account_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

func TestLedger_Reconcile(t *testing.T) {
	tf := newTestFramework(t)

	balance, transactions := tf.Reconcile(
		tf.Output(1, 100, account.Confirmed),
		tf.Output(2, 50, account.Pending),
		tf.Output(3, 30, account.Conflicting),
	)

	require.Equal(t, &account.AccountBalance{Total: 150, Available: 150}, balance)
	require.Len(t, transactions, 3)
	for i, expected := range []account.InclusionState{account.Confirmed, account.Pending, account.Conflicting} {
		require.Equal(t, transactionID(byte(i+1)), transactions[i].ID)
		require.Equal(t, expected, transactions[i].InclusionState)
		require.Equal(t, account.Incoming, transactions[i].Direction)
		require.Equal(t, []iotago.OutputID{outputID(byte(i+1), 0)}, transactions[i].Outputs)
	}

	require.Len(t, tf.observed, 3)
	require.Len(t, tf.balanceChanges, 1)
	require.Equal(t, &account.AccountBalance{}, tf.balanceChanges[0].Previous)
	require.Equal(t, &account.AccountBalance{Total: 150, Available: 150}, tf.balanceChanges[0].Current)
	require.Empty(t, tf.inclusionChanges)
	tf.AssertIntegrityFailures()
}

func TestLedger_ReconcileIsIdempotent(t *testing.T) {
	tf := newTestFramework(t)

	for range 3 {
		balance, transactions := tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Pending))
		require.Equal(t, &account.AccountBalance{Total: 150, Available: 150}, balance)
		require.Len(t, transactions, 2)
	}

	for range 3 {
		balance, _ := tf.Reconcile(tf.Output(2, 50, account.Confirmed))
		require.Equal(t, &account.AccountBalance{Total: 150, Available: 150}, balance)
	}

	require.Len(t, tf.balanceChanges, 1)
	require.Len(t, tf.observed, 2)
	require.Len(t, tf.inclusionChanges, 1)
	require.Equal(t, &account.InclusionChangedEvent{
		AccountIndex:  0,
		TransactionID: transactionID(2),
		Previous:      account.Pending,
		Current:       account.Confirmed,
	}, tf.inclusionChanges[0])
	tf.AssertIntegrityFailures()
}

func TestLedger_ConflictingOutputIsExcludedImmediately(t *testing.T) {
	tf := newTestFramework(t)

	balance, _ := tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Pending))
	require.Equal(t, iotago.BaseToken(150), balance.Total)

	balance, _ = tf.Reconcile(tf.Output(2, 50, account.Conflicting))
	require.Equal(t, &account.AccountBalance{Total: 100, Available: 100}, balance)
	tf.AssertTransaction(2, account.Conflicting, account.Incoming)

	// a conflicting output never comes back
	balance, _ = tf.Reconcile(tf.Output(2, 50, account.Confirmed))
	require.Equal(t, &account.AccountBalance{Total: 100, Available: 100}, balance)
	tf.AssertTransaction(2, account.Conflicting, account.Incoming)
	tf.AssertIntegrityFailures(account.ErrStateRegression)
}

func TestLedger_ReconcileDropsContradictions(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(tf.Output(1, 100, account.Confirmed))

	changedAmount := tf.Output(1, 99, account.Confirmed)
	changedAddress := tf.Output(1, 100, account.Confirmed)
	changedAddress.Address = testAddress(t, 3, address.Testnet)

	balance, _ := tf.Reconcile(tf.Output(1, 100, account.Pending), changedAmount, changedAddress)
	require.Equal(t, &account.AccountBalance{Total: 100, Available: 100}, balance)

	spent := tf.Output(1, 100, account.Confirmed)
	spent.Spent = true
	balance, _ = tf.Reconcile(spent)
	require.Equal(t, &account.AccountBalance{}, balance)

	balance, _ = tf.Reconcile(tf.Output(1, 100, account.Confirmed))
	require.Equal(t, &account.AccountBalance{}, balance)

	output, exists := tf.Ledger.Output(outputID(1, 0))
	require.True(t, exists)
	require.True(t, output.Spent)
	require.Equal(t, account.Confirmed, output.InclusionState)

	tf.AssertIntegrityFailures(
		account.ErrStateRegression,
		account.ErrConflictingReport,
		account.ErrConflictingReport,
		account.ErrStateRegression,
	)
}

func TestLedger_ReconcileDropsInvalidOutputs(t *testing.T) {
	tf := newTestFramework(t)

	treasury := tf.Output(1, 100, account.Confirmed)
	treasury.Kind = account.Treasury

	otherNetwork := tf.Output(2, 100, account.Confirmed)
	otherNetwork.Address = testAddress(t, 1, address.Mainnet)

	withoutID := tf.Output(3, 100, account.Confirmed)
	withoutID.OutputID = iotago.EmptyOutputID

	withoutAddress := tf.Output(4, 100, account.Confirmed)
	withoutAddress.Address = nil

	unknownState := tf.Output(5, 100, account.Confirmed)
	unknownState.InclusionState = 7

	balance, transactions := tf.Reconcile(treasury, otherNetwork, withoutID, withoutAddress, unknownState, nil)
	require.Equal(t, &account.AccountBalance{}, balance)
	require.Empty(t, transactions)
	require.Empty(t, tf.Ledger.Outputs())

	tf.AssertIntegrityFailures(
		account.ErrUnsupportedOutputKind,
		account.ErrForeignNetwork,
		account.ErrMalformedReport,
		account.ErrMalformedReport,
		account.ErrMalformedReport,
		account.ErrMalformedReport,
	)
}

func TestLedger_ReconcileIgnoresForeignAddresses(t *testing.T) {
	tf := newTestFramework(t)

	foreign := tf.Output(1, 100, account.Confirmed)
	foreign.Address = tf.Foreign

	balance, transactions := tf.Reconcile(foreign)
	require.Equal(t, &account.AccountBalance{}, balance)
	require.Empty(t, transactions)
	tf.AssertIntegrityFailures()
}

func TestLedger_TransactionReports(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Pending))

	// the inclusion state of a transaction is carried over to its outputs
	tf.Ledger.Reconcile(&account.LedgerReport{
		Transactions: []*account.TransactionReport{
			{TransactionID: transactionID(2), InclusionState: account.Confirmed},
		},
	})
	output, exists := tf.Ledger.Output(outputID(2, 0))
	require.True(t, exists)
	require.Equal(t, account.Confirmed, output.InclusionState)

	// spending an owned output makes the transaction outgoing and marks the input spent once confirmed
	remainder := tf.Output(9, 40, account.Confirmed)
	remainder.OutputID = outputID(9, 1)
	payment := tf.Output(9, 60, account.Confirmed)
	payment.Address = tf.Foreign

	balance, transactions := tf.Ledger.Reconcile(&account.LedgerReport{
		Outputs: []*account.OutputData{remainder, payment},
		Transactions: []*account.TransactionReport{
			{TransactionID: transactionID(9), InclusionState: account.Confirmed, Inputs: []iotago.OutputID{outputID(1, 0)}, Timestamp: genesis},
			{TransactionID: transactionID(50), InclusionState: account.Confirmed, Inputs: []iotago.OutputID{outputID(60, 0)}},
		},
	})

	require.Equal(t, &account.AccountBalance{Total: 90, Available: 90}, balance)
	require.Len(t, transactions, 3)
	tf.AssertTransaction(9, account.Confirmed, account.Outgoing)

	spent, exists := tf.Ledger.Output(outputID(1, 0))
	require.True(t, exists)
	require.True(t, spent.Spent)

	transaction, exists := tf.Ledger.Transaction(transactionID(9))
	require.True(t, exists)
	require.Equal(t, []iotago.OutputID{outputID(1, 0)}, transaction.Inputs)
	require.ElementsMatch(t, []iotago.OutputID{outputID(9, 0), outputID(9, 1)}, transaction.Outputs)

	_, exists = tf.Ledger.Transaction(transactionID(50))
	require.False(t, exists)

	// transactions can not move backwards either
	tf.Ledger.Reconcile(&account.LedgerReport{
		Transactions: []*account.TransactionReport{
			{TransactionID: transactionID(9), InclusionState: account.Pending},
			{TransactionID: transactionID(9), InclusionState: account.Confirmed, Inputs: []iotago.OutputID{outputID(2, 0)}},
		},
	})
	tf.AssertTransaction(9, account.Confirmed, account.Outgoing)
	tf.AssertIntegrityFailures(account.ErrStateRegression, account.ErrConflictingReport)
	tf.AssertBalance(90, 90)
}

func TestLedger_Reservations(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Confirmed))

	require.NoError(t, tf.Ledger.Reserve(transactionID(10), outputID(1, 0)))
	require.NoError(t, tf.Ledger.Reserve(transactionID(10), outputID(1, 0)))
	tf.AssertBalance(150, 50)

	require.ErrorIs(t, tf.Ledger.Reserve(transactionID(11), outputID(1, 0)), account.ErrOutputReserved)
	require.ErrorIs(t, tf.Ledger.Reserve(transactionID(11), outputID(2, 0), outputID(99, 0)), account.ErrUnknownOutput)
	require.False(t, tf.Ledger.IsReserved(outputID(2, 0)))
	tf.AssertBalance(150, 50)

	transaction, err := tf.Ledger.RegisterOutgoing(transactionID(10), []iotago.OutputID{outputID(1, 0)}, genesis)
	require.NoError(t, err)
	require.Equal(t, account.Outgoing, transaction.Direction)
	require.Equal(t, account.Pending, transaction.InclusionState)
	require.Equal(t, []iotago.TransactionID{transactionID(10)}, tf.Ledger.PendingTransactionIDs())

	// a conflicting transaction gives its inputs back
	balance, _ := tf.Ledger.Reconcile(&account.LedgerReport{
		Transactions: []*account.TransactionReport{{TransactionID: transactionID(10), InclusionState: account.Conflicting}},
	})
	require.Equal(t, &account.AccountBalance{Total: 150, Available: 150}, balance)
	require.False(t, tf.Ledger.IsReserved(outputID(1, 0)))
	tf.AssertTransaction(10, account.Conflicting, account.Outgoing)

	// a confirmed transaction spends them
	_, err = tf.Ledger.RegisterOutgoing(transactionID(12), []iotago.OutputID{outputID(2, 0)}, genesis)
	require.NoError(t, err)
	tf.AssertBalance(150, 100)

	balance, _ = tf.Ledger.Reconcile(&account.LedgerReport{
		Transactions: []*account.TransactionReport{
			{TransactionID: transactionID(12), InclusionState: account.Confirmed, Inputs: []iotago.OutputID{outputID(2, 0)}},
		},
	})
	require.Equal(t, &account.AccountBalance{Total: 100, Available: 100}, balance)
	require.False(t, tf.Ledger.IsReserved(outputID(2, 0)))
	require.ErrorIs(t, tf.Ledger.Reserve(transactionID(13), outputID(2, 0)), account.ErrOutputNotSpendable)

	require.NoError(t, tf.Ledger.Reserve(transactionID(14), outputID(1, 0)))
	require.Equal(t, 1, tf.Ledger.Release(transactionID(14)))
	require.Equal(t, 0, tf.Ledger.Release(transactionID(14)))
	tf.AssertBalance(100, 100)
	tf.AssertIntegrityFailures()
}

func TestLedger_RegisterOutgoingSettled(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Confirmed))

	// the ledger settles the transaction before it is registered locally
	require.NoError(t, tf.Ledger.Reserve(transactionID(10), outputID(1, 0)))
	tf.Ledger.Reconcile(&account.LedgerReport{
		Transactions: []*account.TransactionReport{
			{TransactionID: transactionID(10), InclusionState: account.Conflicting, Inputs: []iotago.OutputID{outputID(1, 0)}},
		},
	})

	transaction, err := tf.Ledger.RegisterOutgoing(transactionID(10), []iotago.OutputID{outputID(1, 0)}, genesis)
	require.NoError(t, err)
	require.Equal(t, account.Conflicting, transaction.InclusionState)
	require.Equal(t, account.Outgoing, transaction.Direction)
	require.False(t, tf.Ledger.IsReserved(outputID(1, 0)))
	require.Empty(t, tf.Ledger.PendingTransactionIDs())
	tf.AssertBalance(150, 150)

	// a spent input fails the registration and leaves the other inputs untouched
	tf.Reconcile(&account.OutputData{
		OutputID:       outputID(2, 0),
		Address:        tf.Owned,
		Amount:         50,
		Kind:           account.SignatureLockedSingle,
		InclusionState: account.Confirmed,
		Timestamp:      genesis.Add(2 * time.Minute),
		Spent:          true,
	})
	_, err = tf.Ledger.RegisterOutgoing(transactionID(11), []iotago.OutputID{outputID(1, 0), outputID(2, 0)}, genesis)
	require.ErrorIs(t, err, account.ErrOutputNotSpendable)
	require.False(t, tf.Ledger.IsReserved(outputID(1, 0)))
	_, exists := tf.Ledger.Transaction(transactionID(11))
	require.False(t, exists)
	tf.AssertBalance(100, 100)
	tf.AssertIntegrityFailures()
}

func TestLedger_SelectInputs(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(
		tf.Output(1, 10, account.Confirmed),
		tf.Output(2, 40, account.Confirmed),
		tf.Output(3, 70, account.Confirmed),
		tf.Output(4, 100, account.Pending),
	)

	amounts := func(outputs []*account.OutputData) []iotago.BaseToken {
		result := make([]iotago.BaseToken, 0, len(outputs))
		for _, output := range outputs {
			result = append(result, output.Amount)
		}

		return result
	}

	selected, err := tf.Ledger.SelectInputs(50)
	require.NoError(t, err)
	require.Equal(t, []iotago.BaseToken{70}, amounts(selected))

	selected, err = tf.Ledger.SelectInputs(100)
	require.NoError(t, err)
	require.Equal(t, []iotago.BaseToken{70, 40}, amounts(selected))

	_, err = tf.Ledger.SelectInputs(121)
	require.ErrorIs(t, err, account.ErrInsufficientBalance)

	require.NoError(t, tf.Ledger.Reserve(transactionID(20), outputID(3, 0)))
	selected, err = tf.Ledger.SelectInputs(50)
	require.NoError(t, err)
	require.Equal(t, []iotago.BaseToken{40, 10}, amounts(selected))

	require.True(t, tf.Ledger.ConsolidationRequired(3))
	require.False(t, tf.Ledger.ConsolidationRequired(4))
}

func TestLedger_Restore(t *testing.T) {
	tf := newTestFramework(t)

	tf.Reconcile(tf.Output(1, 100, account.Confirmed), tf.Output(2, 50, account.Pending))

	_, err := tf.Ledger.RegisterOutgoing(transactionID(9), []iotago.OutputID{outputID(1, 0)}, genesis)
	require.NoError(t, err)
	tf.AssertBalance(150, 50)

	restored := account.NewLedger(tf.Ledger.Logger, 0, address.Testnet)
	require.NoError(t, restored.AddAddresses(tf.Owned))
	restored.Restore(tf.Ledger.Outputs(), tf.Ledger.Transactions())

	require.Equal(t, tf.Ledger.Balance(), restored.Balance())
	require.Equal(t, tf.Ledger.Transactions(), restored.Transactions())
	require.True(t, restored.IsReserved(outputID(1, 0)))

	// restored data takes part in later passes
	balance, _ := restored.Reconcile(&account.LedgerReport{Outputs: []*account.OutputData{tf.Output(2, 50, account.Conflicting)}})
	require.Equal(t, &account.AccountBalance{Total: 100, Available: 0}, balance)
}

func TestLedger_ConcurrentReconcile(t *testing.T) {
	tf := newTestFramework(t)

	ledger := account.NewLedger(log.NewLogger(), 1, address.Testnet)
	require.NoError(t, ledger.AddAddresses(tf.Owned))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(transaction byte) {
			defer wg.Done()

			ledger.Reconcile(&account.LedgerReport{Outputs: []*account.OutputData{tf.Output(transaction, 10, account.Pending)}})
		}(byte(i + 1))
	}
	wg.Wait()

	require.Equal(t, &account.AccountBalance{Total: 500, Available: 500}, ledger.Balance())
	require.Len(t, ledger.Transactions(), 50)
}

func TestComputeBalance(t *testing.T) {
	owned := testAddress(t, 1, address.Testnet)
	output := func(transaction byte, amount iotago.BaseToken, state account.InclusionState, spent bool) *account.OutputData {
		return &account.OutputData{OutputID: outputID(transaction, 0), Address: owned, Amount: amount, InclusionState: state, Spent: spent}
	}

	outputs := []*account.OutputData{
		output(1, 100, account.Confirmed, false),
		output(2, 50, account.Pending, false),
		output(3, 30, account.Conflicting, false),
		output(4, 20, account.Confirmed, true),
		output(5, 5, account.Confirmed, false),
	}

	require.Equal(t, &account.AccountBalance{Total: 155, Available: 155}, account.ComputeBalance(outputs, nil))
	require.Equal(t, &account.AccountBalance{Total: 155, Available: 55}, account.ComputeBalance(outputs, func(outputID iotago.OutputID) bool {
		return outputID == outputs[0].OutputID
	}))
	require.Equal(t, &account.AccountBalance{}, account.ComputeBalance(nil, nil))
}
