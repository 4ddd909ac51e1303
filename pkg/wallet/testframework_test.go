package wallet_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/ledger"
	"github.com/iotaledger/iota-wallet/pkg/signing/mnemonic"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	"github.com/iotaledger/iota-wallet/pkg/testsuite/mock"
	"github.com/iotaledger/iota-wallet/pkg/wallet"
	iotago "github.com/iotaledger/iota.go/v4"
)

var (
	testSeed = []byte("0123456789abcdef0123456789abcdef")
	genesis  = time.Unix(1700000000, 0)
)

type testFramework struct {
	test *testing.T

	Wallet    *wallet.Wallet
	Registry  *signing.Registry
	Connector *mock.Connector
	Clock     *clock.Mock
	KVStore   kvstore.KVStore
	Reference *mnemonic.Signer
}

func newTestFramework(t *testing.T, opts ...options.Option[wallet.Wallet]) *testFramework {
	registry, err := signing.NewRegistry(mnemonic.DefaultSigners(mnemonic.StaticSeed(testSeed)))
	require.NoError(t, err)

	tf := &testFramework{
		test:      t,
		Registry:  registry,
		Connector: mock.NewConnector(),
		Clock:     clock.NewMock(),
		KVStore:   mapdb.NewMapDB(),
		Reference: mnemonic.New(mnemonic.StaticSeed(testSeed)),
	}
	tf.Clock.Set(genesis)
	tf.Wallet = tf.openWallet(opts...)

	return tf
}

// Store opens a store on top of the key value store of the test framework.
func (tf *testFramework) Store() *storage.Store {
	store, err := storage.New(tf.KVStore)
	require.NoError(tf.test, err)

	return store
}

func (tf *testFramework) openWallet(opts ...options.Option[wallet.Wallet]) *wallet.Wallet {
	w, err := wallet.New(log.NewLogger(), tf.Registry, append([]options.Option[wallet.Wallet]{
		wallet.WithNetwork(address.Testnet),
		wallet.WithConnector(tf.Connector),
		wallet.WithStore(tf.Store()),
		wallet.WithClock(tf.Clock),
	}, opts...)...)
	require.NoError(tf.test, err)

	return w
}

func (tf *testFramework) CreateAccount(alias string) *wallet.Account {
	a, err := tf.Wallet.CreateAccount(context.Background(), alias, signing.Mnemonic)
	require.NoError(tf.test, err)

	return a
}

func (tf *testFramework) Address(accountIndex, addressIndex uint32, internal bool) *address.Address {
	addr, err := tf.Reference.GenerateAddress(context.Background(), &signing.GenerateAddressMetadata{
		AccountIndex: accountIndex,
		AddressIndex: addressIndex,
		Internal:     internal,
		Network:      address.Testnet,
	})
	require.NoError(tf.test, err)

	return addr
}

// Fund adds a confirmed output to the ledger of the connector.
func (tf *testFramework) Fund(transaction byte, addr *address.Address, amount iotago.BaseToken) iotago.OutputID {
	outputID := iotago.OutputIDFromTransactionIDAndIndex(iotago.TransactionID{transaction}, 0)

	tf.Connector.AddOutput(&account.OutputData{
		OutputID:       outputID,
		Address:        addr,
		Amount:         amount,
		Kind:           account.SignatureLockedSingle,
		InclusionState: account.Confirmed,
		Timestamp:      genesis.Add(time.Duration(transaction) * time.Minute),
	})

	return outputID
}

func (tf *testFramework) AssertBalance(a *wallet.Account, total, available iotago.BaseToken) {
	require.Equal(tf.test, &account.AccountBalance{Total: total, Available: available}, a.Balance(), "account %d", a.Index())
}

// AttachDevice registers a Ledger signer backed by an emulated device that derives its keys from the test seed.
func (tf *testFramework) AttachDevice() *mock.Device {
	device := mock.NewDevice(testSeed)
	require.NoError(tf.test, tf.Registry.SetSigner(signing.LedgerHardware, ledger.New(log.NewLogger(), device)))

	return device
}
