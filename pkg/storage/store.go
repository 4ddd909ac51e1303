package storage

import (
	"encoding/binary"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/iota-wallet/pkg/account"
	iotago "github.com/iotaledger/iota.go/v4"
)

const (
	// Version is the schema version of the store.
	Version byte = 1

	storeKeyPrefixVersion     byte = 0
	storeKeyPrefixAccount     byte = 1
	storeKeyPrefixOutput      byte = 2
	storeKeyPrefixTransaction byte = 3
)

/*
   Account:
   ========
   Key:
       storeKeyPrefixAccount + account index (big endian)
              1 byte        +      4 bytes
   Value:
       AccountRecord.Bytes()

   Output:
   =======
   Key:
       storeKeyPrefixOutput + account index + iotago.OutputID
             1 byte         +    4 bytes    +     38 bytes
   Value:
       account.OutputData.Bytes()

   Transaction:
   ============
   Key:
       storeKeyPrefixTransaction + account index + iotago.TransactionID
               1 byte            +    4 bytes    +       36 bytes
   Value:
       account.Transaction.Bytes()
*/

var (
	ErrAccountNotFound     = ierrors.New("account not found")
	ErrIncompatibleVersion = ierrors.New("incompatible store version")
)

// Store persists account metadata and reconciled ledger state in a KVStore.
type Store struct {
	kvStore  kvstore.KVStore
	accounts *kvstore.TypedStore[uint32, *AccountRecord]
	mutex    syncutils.RWMutex
}

// New wraps the given KVStore. Empty stores are initialized with the current schema version.
func New(kvStore kvstore.KVStore) (*Store, error) {
	if err := checkVersion(kvStore); err != nil {
		return nil, err
	}

	accountStore, err := kvStore.WithExtendedRealm(kvstore.Realm{storeKeyPrefixAccount})
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to get realm for accounts")
	}

	return &Store{
		kvStore: kvStore,
		accounts: kvstore.NewTypedStore(accountStore,
			accountIndexBytes,
			accountIndexFromBytes,
			(*AccountRecord).Bytes,
			AccountRecordFromBytes,
		),
	}, nil
}

// StoreAccount creates or replaces the record of an account.
func (s *Store) StoreAccount(record *AccountRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.accounts.Set(record.Index, record); err != nil {
		return ierrors.Wrapf(err, "failed to store account %d", record.Index)
	}

	return nil
}

// Account loads the record of the account with the given index.
func (s *Store) Account(index uint32) (*AccountRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, err := s.accounts.Get(index)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ierrors.Wrapf(ErrAccountNotFound, "account %d", index)
		}

		return nil, ierrors.Wrapf(err, "failed to load account %d", index)
	}

	return record, nil
}

// Accounts loads all account records ordered by index.
func (s *Store) Accounts() ([]*AccountRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]*AccountRecord, 0)
	if err := s.accounts.Iterate(kvstore.EmptyPrefix, func(_ uint32, record *AccountRecord) bool {
		records = append(records, record)

		return true
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to iterate accounts")
	}

	return records, nil
}

// DeleteAccount removes an account together with its ledger state.
func (s *Store) DeleteAccount(index uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.accounts.Delete(index); err != nil {
		return ierrors.Wrapf(err, "failed to delete account %d", index)
	}

	for _, prefix := range []byte{storeKeyPrefixOutput, storeKeyPrefixTransaction} {
		if err := s.kvStore.DeletePrefix(kvstore.KeyPrefix(ledgerRealm(prefix, index))); err != nil {
			return ierrors.Wrapf(err, "failed to delete ledger state of account %d", index)
		}
	}

	return nil
}

// StoreLedgerState writes the outputs and transactions of an account in one batch. Entries are only ever added or
// replaced since the reconciled state never forgets outputs or transactions.
func (s *Store) StoreLedgerState(accountIndex uint32, outputs []*account.OutputData, transactions []*account.Transaction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	mutations, err := s.kvStore.Batched()
	if err != nil {
		return err
	}

	for _, output := range outputs {
		if err = setEncoded(mutations, ledgerRealm(storeKeyPrefixOutput, accountIndex), output.OutputID.Bytes, output.Bytes); err != nil {
			mutations.Cancel()

			return ierrors.Wrapf(err, "failed to store output %s", output.OutputID.ToHex())
		}
	}

	for _, transaction := range transactions {
		if err = setEncoded(mutations, ledgerRealm(storeKeyPrefixTransaction, accountIndex), transaction.ID.Bytes, transaction.Bytes); err != nil {
			mutations.Cancel()

			return ierrors.Wrapf(err, "failed to store transaction %s", transaction.ID.ToHex())
		}
	}

	return mutations.Commit()
}

// LedgerState loads the outputs and transactions of an account.
func (s *Store) LedgerState(accountIndex uint32) (outputs []*account.OutputData, transactions []*account.Transaction, err error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	outputStore, transactionStore, err := s.ledgerStores(accountIndex)
	if err != nil {
		return nil, nil, err
	}

	if err = outputStore.Iterate(kvstore.EmptyPrefix, func(_ iotago.OutputID, output *account.OutputData) bool {
		outputs = append(outputs, output)

		return true
	}); err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to load outputs of account %d", accountIndex)
	}

	if err = transactionStore.Iterate(kvstore.EmptyPrefix, func(_ iotago.TransactionID, transaction *account.Transaction) bool {
		transactions = append(transactions, transaction)

		return true
	}); err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to load transactions of account %d", accountIndex)
	}

	return outputs, transactions, nil
}

// Flush persists all pending writes of the underlying KVStore.
func (s *Store) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.kvStore.Flush()
}

// Close flushes and closes the underlying KVStore.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.kvStore.Flush(); err != nil {
		return err
	}

	return s.kvStore.Close()
}

func (s *Store) ledgerStores(accountIndex uint32) (*kvstore.TypedStore[iotago.OutputID, *account.OutputData], *kvstore.TypedStore[iotago.TransactionID, *account.Transaction], error) {
	outputStore, err := s.kvStore.WithExtendedRealm(ledgerRealm(storeKeyPrefixOutput, accountIndex))
	if err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to get output realm of account %d", accountIndex)
	}

	transactionStore, err := s.kvStore.WithExtendedRealm(ledgerRealm(storeKeyPrefixTransaction, accountIndex))
	if err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to get transaction realm of account %d", accountIndex)
	}

	return kvstore.NewTypedStore(outputStore,
			iotago.OutputID.Bytes,
			iotago.OutputIDFromBytes,
			(*account.OutputData).Bytes,
			account.OutputDataFromBytes,
		), kvstore.NewTypedStore(transactionStore,
			iotago.TransactionID.Bytes,
			iotago.TransactionIDFromBytes,
			(*account.Transaction).Bytes,
			account.TransactionFromBytes,
		), nil
}

// checkVersion checks whether the store is compatible with the current schema version and sets the version if the
// store is new.
func checkVersion(kvStore kvstore.KVStore) error {
	entry, err := kvStore.Get([]byte{storeKeyPrefixVersion})
	if ierrors.Is(err, kvstore.ErrKeyNotFound) {
		return kvStore.Set([]byte{storeKeyPrefixVersion}, []byte{Version})
	}
	if err != nil {
		return err
	}

	if len(entry) != 1 {
		return ierrors.Wrap(ErrIncompatibleVersion, "malformed version entry")
	}
	if entry[0] != Version {
		return ierrors.Wrapf(ErrIncompatibleVersion, "supported version: %d, version of store: %d", Version, entry[0])
	}

	return nil
}

func setEncoded(mutations kvstore.BatchedMutations, realm kvstore.Realm, keyBytes func() ([]byte, error), valueBytes func() ([]byte, error)) error {
	key, err := keyBytes()
	if err != nil {
		return err
	}

	value, err := valueBytes()
	if err != nil {
		return err
	}

	return mutations.Set(append(append(kvstore.Key{}, realm...), key...), value)
}

// ledgerRealm is the realm of one kind of ledger entries of an account.
func ledgerRealm(prefix byte, accountIndex uint32) kvstore.Realm {
	return binary.BigEndian.AppendUint32(kvstore.Realm{prefix}, accountIndex)
}

// accountIndexBytes encodes big endian so that iteration follows the account order.
func accountIndexBytes(index uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, index), nil
}

func accountIndexFromBytes(b []byte) (uint32, int, error) {
	if len(b) < serializer.UInt32ByteSize {
		return 0, 0, ierrors.Errorf("account index needs %d bytes, got %d", serializer.UInt32ByteSize, len(b))
	}

	return binary.BigEndian.Uint32(b), serializer.UInt32ByteSize, nil
}
