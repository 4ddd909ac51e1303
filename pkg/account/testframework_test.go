package account_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

var genesis = time.Unix(1700000000, 0)

type testFramework struct {
	test   *testing.T
	Ledger *account.Ledger

	Owned   *address.Address
	Foreign *address.Address

	balanceChanges    []*account.BalanceChangedEvent
	observed          []*account.TransactionEvent
	inclusionChanges  []*account.InclusionChangedEvent
	integrityFailures []*account.IntegrityViolationEvent
}

func newTestFramework(t *testing.T) *testFramework {
	tf := &testFramework{
		test:    t,
		Ledger:  account.NewLedger(log.NewLogger(), 0, address.Testnet),
		Owned:   testAddress(t, 1, address.Testnet),
		Foreign: testAddress(t, 2, address.Testnet),
	}
	require.NoError(t, tf.Ledger.AddAddresses(tf.Owned))

	tf.Ledger.Events.BalanceChanged.Hook(func(event *account.BalanceChangedEvent) {
		tf.balanceChanges = append(tf.balanceChanges, event)
	})
	tf.Ledger.Events.TransactionObserved.Hook(func(event *account.TransactionEvent) {
		tf.observed = append(tf.observed, event)
	})
	tf.Ledger.Events.TransactionInclusionChanged.Hook(func(event *account.InclusionChangedEvent) {
		tf.inclusionChanges = append(tf.inclusionChanges, event)
	})
	tf.Ledger.Events.IntegrityViolation.Hook(func(event *account.IntegrityViolationEvent) {
		tf.integrityFailures = append(tf.integrityFailures, event)
	})

	return tf
}

func (tf *testFramework) Output(transaction byte, amount iotago.BaseToken, state account.InclusionState) *account.OutputData {
	return &account.OutputData{
		OutputID:       outputID(transaction, 0),
		Address:        tf.Owned,
		Amount:         amount,
		Kind:           account.SignatureLockedSingle,
		InclusionState: state,
		Timestamp:      genesis.Add(time.Duration(transaction) * time.Minute),
	}
}

func (tf *testFramework) Reconcile(outputs ...*account.OutputData) (*account.AccountBalance, []*account.Transaction) {
	return tf.Ledger.Reconcile(&account.LedgerReport{Outputs: outputs})
}

func (tf *testFramework) AssertBalance(total, available iotago.BaseToken) {
	require.Equal(tf.test, &account.AccountBalance{Total: total, Available: available}, tf.Ledger.Balance())
}

func (tf *testFramework) AssertTransaction(transaction byte, state account.InclusionState, direction account.Direction) {
	tx, exists := tf.Ledger.Transaction(transactionID(transaction))
	require.True(tf.test, exists, "transaction %d not found", transaction)
	require.Equal(tf.test, state, tx.InclusionState, "transaction %d", transaction)
	require.Equal(tf.test, direction, tx.Direction, "transaction %d", transaction)
}

func (tf *testFramework) AssertIntegrityFailures(expected ...error) {
	require.Len(tf.test, tf.integrityFailures, len(expected))
	for i, err := range expected {
		require.ErrorIs(tf.test, tf.integrityFailures[i].Error, err)
		require.ErrorIs(tf.test, tf.integrityFailures[i].Error, account.ErrIntegrity)
	}
}

func testAddress(t *testing.T, fill byte, network address.Network) *address.Address {
	addr, err := address.New(bytes.Repeat([]byte{fill}, address.PayloadLength), network)
	require.NoError(t, err)

	return addr
}

func transactionID(b byte) iotago.TransactionID {
	var id iotago.TransactionID
	id[0] = b

	return id
}

func outputID(transaction byte, index uint16) iotago.OutputID {
	return iotago.OutputIDFromTransactionIDAndIndex(transactionID(transaction), index)
}
