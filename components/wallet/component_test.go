package wallet

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	"github.com/iotaledger/iota-wallet/pkg/testsuite/mock"
	"github.com/iotaledger/iota-wallet/pkg/wallet"
)

type backends struct {
	dig.In

	KVStore   kvstore.KVStore  `optional:"true"`
	Connector wallet.Connector `optional:"true"`
}

func TestProvideBackends(t *testing.T) {
	c := dig.New()
	require.NoError(t, ProvideBackends(nil, nil)(c))
	require.NoError(t, c.Invoke(func(provided backends) {
		require.Nil(t, provided.KVStore)
		require.Nil(t, provided.Connector)
	}))

	kvStore := mapdb.NewMapDB()
	connector := mock.NewConnector()

	c = dig.New()
	require.NoError(t, ProvideBackends(kvStore, connector)(c))
	require.NoError(t, c.Invoke(func(provided backends) {
		require.Equal(t, kvStore, provided.KVStore)
		require.Equal(t, connector, provided.Connector)
	}))
}

func TestProvide_UsesProvidedBackends(t *testing.T) {
	ParamsWallet.Network = string(address.Devnet)
	ParamsWallet.Mnemonic.Seed = base58.Encode([]byte("0123456789abcdef0123456789abcdef"))
	ParamsWallet.AddressGapLimit = 5
	ParamsWallet.AccountGapLimit = 5
	t.Cleanup(func() { *ParamsWallet = ParametersWallet{} })

	kvStore := mapdb.NewMapDB()

	c := dig.New()
	require.NoError(t, ProvideBackends(kvStore, mock.NewConnector())(c))
	require.NoError(t, provide(c))

	require.NoError(t, c.Invoke(func(w *wallet.Wallet) {
		created, err := w.CreateAccount(context.Background(), "", signing.Mnemonic)
		require.NoError(t, err)

		latest, err := created.LatestAddress()
		require.NoError(t, err)
		require.Equal(t, address.Devnet, latest.Network())

		_, err = created.Sync(context.Background())
		require.NoError(t, err)
	}))

	store, err := storage.New(kvStore)
	require.NoError(t, err)

	records, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, address.Devnet, records[0].Network)
}
