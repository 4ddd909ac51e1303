package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota-wallet/pkg/account"
	iotago "github.com/iotaledger/iota.go/v4"
)

func TestOutputData_Bytes(t *testing.T) {
	tf := newTestFramework(t)

	output := tf.Output(1, 1_000_000, account.Confirmed)
	output.Kind = account.SignatureLockedDustAllowance
	output.Spent = true

	outputBytes, err := output.Bytes()
	require.NoError(t, err)

	decoded, consumedBytes, err := account.OutputDataFromBytes(outputBytes)
	require.NoError(t, err)
	require.Equal(t, len(outputBytes), consumedBytes)
	require.Equal(t, output.OutputID, decoded.OutputID)
	require.True(t, output.Address.Equal(decoded.Address))
	require.Equal(t, output.Amount, decoded.Amount)
	require.Equal(t, output.Kind, decoded.Kind)
	require.True(t, decoded.Spent)
	require.Equal(t, output.InclusionState, decoded.InclusionState)
	require.True(t, output.Timestamp.Equal(decoded.Timestamp))

	_, _, err = account.OutputDataFromBytes(outputBytes[:len(outputBytes)-1])
	require.Error(t, err)
}

func TestTransaction_Bytes(t *testing.T) {
	transaction := &account.Transaction{
		ID:             transactionID(7),
		Direction:      account.Outgoing,
		InclusionState: account.Pending,
		Inputs:         []iotago.OutputID{outputID(1, 0), outputID(2, 3)},
		Outputs:        []iotago.OutputID{outputID(7, 0)},
	}

	transactionBytes, err := transaction.Bytes()
	require.NoError(t, err)

	decoded, consumedBytes, err := account.TransactionFromBytes(transactionBytes)
	require.NoError(t, err)
	require.Equal(t, len(transactionBytes), consumedBytes)
	require.Equal(t, transaction, decoded)

	transaction.Timestamp = time.Unix(0, genesis.UnixNano())
	transactionBytes, err = transaction.Bytes()
	require.NoError(t, err)

	decoded, _, err = account.TransactionFromBytes(transactionBytes)
	require.NoError(t, err)
	require.True(t, transaction.Timestamp.Equal(decoded.Timestamp))
}
