package storage_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	iotago "github.com/iotaledger/iota.go/v4"
)

func testAddress(t *testing.T, fill byte) *address.Address {
	addr, err := address.New(bytes.Repeat([]byte{fill}, address.PayloadLength), address.Testnet)
	require.NoError(t, err)

	return addr
}

func testRecord(t *testing.T, index uint32) *storage.AccountRecord {
	return &storage.AccountRecord{
		Index:      index,
		ID:         uuid.New(),
		Alias:      "savings",
		SignerType: signing.LedgerHardware,
		Network:    address.Testnet,
		CreatedAt:  time.Unix(1700000000, 0),
		Addresses: []*storage.AddressRecord{
			{Address: testAddress(t, 1), Index: 0},
			{Address: testAddress(t, 2), Index: 0, Internal: true},
		},
	}
}

func TestStore_Accounts(t *testing.T) {
	store, err := storage.New(mapdb.NewMapDB())
	require.NoError(t, err)

	_, err = store.Account(0)
	require.ErrorIs(t, err, storage.ErrAccountNotFound)

	for _, index := range []uint32{2, 0, 1} {
		require.NoError(t, store.StoreAccount(testRecord(t, index)))
	}

	loaded, err := store.Account(1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), loaded.Index)
	require.Equal(t, "savings", loaded.Alias)
	require.Equal(t, signing.LedgerHardware, loaded.SignerType)
	require.Len(t, loaded.Addresses, 2)
	require.True(t, loaded.Addresses[1].Internal)
	require.True(t, testAddress(t, 2).Equal(loaded.Addresses[1].Address))

	records, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, record := range records {
		require.Equal(t, uint32(i), record.Index)
	}

	require.NoError(t, store.DeleteAccount(1))
	_, err = store.Account(1)
	require.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestStore_AccountRecord(t *testing.T) {
	store, err := storage.New(mapdb.NewMapDB())
	require.NoError(t, err)

	stored := make(map[uint32]*storage.AccountRecord)
	for _, index := range []uint32{300, 1, 256} {
		stored[index] = testRecord(t, index)
		require.NoError(t, store.StoreAccount(stored[index]))
	}

	records, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, index := range []uint32{1, 256, 300} {
		require.Equal(t, index, records[i].Index)
		require.Equal(t, stored[index].ID, records[i].ID)
		require.Equal(t, stored[index].CreatedAt, records[i].CreatedAt)
		require.Equal(t, address.Testnet, records[i].Network)
	}

	recordBytes, err := stored[1].Bytes()
	require.NoError(t, err)

	decoded, consumedBytes, err := storage.AccountRecordFromBytes(recordBytes)
	require.NoError(t, err)
	require.Equal(t, len(recordBytes), consumedBytes)
	require.Equal(t, stored[1].ID, decoded.ID)

	_, _, err = storage.AccountRecordFromBytes(recordBytes[:10])
	require.Error(t, err)
}

func TestStore_LedgerState(t *testing.T) {
	store, err := storage.New(mapdb.NewMapDB())
	require.NoError(t, err)

	var transactionID iotago.TransactionID
	transactionID[0] = 1

	output := &account.OutputData{
		OutputID:       iotago.OutputIDFromTransactionIDAndIndex(transactionID, 0),
		Address:        testAddress(t, 1),
		Amount:         100,
		InclusionState: account.Confirmed,
		Timestamp:      time.Unix(1700000000, 0),
	}
	transaction := &account.Transaction{
		ID:             transactionID,
		Direction:      account.Incoming,
		InclusionState: account.Confirmed,
		Outputs:        []iotago.OutputID{output.OutputID},
	}

	require.NoError(t, store.StoreLedgerState(0, []*account.OutputData{output}, []*account.Transaction{transaction}))

	outputs, transactions, err := store.LedgerState(0)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, output.OutputID, outputs[0].OutputID)
	require.Equal(t, output.Amount, outputs[0].Amount)
	require.Equal(t, []*account.Transaction{transaction}, transactions)

	outputs, transactions, err = store.LedgerState(1)
	require.NoError(t, err)
	require.Empty(t, outputs)
	require.Empty(t, transactions)

	// account data is removed with the account
	require.NoError(t, store.StoreAccount(testRecord(t, 0)))
	require.NoError(t, store.DeleteAccount(0))

	outputs, transactions, err = store.LedgerState(0)
	require.NoError(t, err)
	require.Empty(t, outputs)
	require.Empty(t, transactions)
}

func TestStore_Version(t *testing.T) {
	kvStore := mapdb.NewMapDB()

	_, err := storage.New(kvStore)
	require.NoError(t, err)

	_, err = storage.New(kvStore)
	require.NoError(t, err)

	require.NoError(t, kvStore.Set([]byte{0}, []byte{storage.Version + 1}))
	_, err = storage.New(kvStore)
	require.ErrorIs(t, err, storage.ErrIncompatibleVersion)
}
