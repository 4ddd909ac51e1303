package wallet

import (
	"context"

	"github.com/mr-tron/base58"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/timeutil"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/daemon"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/ledger"
	"github.com/iotaledger/iota-wallet/pkg/signing/mnemonic"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	"github.com/iotaledger/iota-wallet/pkg/wallet"
)

func init() {
	Component = &app.Component{
		Name:      "Wallet",
		DepsFunc:  func(cDeps dependencies) { deps = cDeps },
		Params:    params,
		Provide:   provide,
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	Wallet       *wallet.Wallet
	Registry     *signing.Registry
	KVStore      kvstore.KVStore  `optional:"true"`
	Connector    wallet.Connector `optional:"true"`
	LedgerSigner *ledger.Signer   `optional:"true"`
}

func provide(c *dig.Container) error {
	if err := c.Provide(func() log.Logger {
		return log.NewLogger()
	}); err != nil {
		return err
	}

	if ParamsWallet.Ledger.Enabled {
		if err := c.Provide(func(logger log.Logger) *ledger.Signer {
			return ledger.New(
				logger,
				ledger.NewSpeculosTransport(ParamsWallet.Ledger.SimulatorAddress),
				ledger.WithSimulator(true),
				ledger.WithAppName(ParamsWallet.Ledger.AppName),
				ledger.WithConfirmationTimeout(ParamsWallet.Ledger.ConfirmationTimeout),
				ledger.WithFailFast(ParamsWallet.Ledger.FailFast),
			)
		}); err != nil {
			return err
		}
	}

	type registryDeps struct {
		dig.In

		LedgerSigner *ledger.Signer `optional:"true"`
	}

	if err := c.Provide(func(registryDeps registryDeps) (*signing.Registry, error) {
		seedProvider, err := seedProvider()
		if err != nil {
			return nil, err
		}

		registry, err := signing.NewRegistry(mnemonic.DefaultSigners(seedProvider))
		if err != nil {
			return nil, err
		}

		if registryDeps.LedgerSigner != nil {
			if err = registry.SetSigner(registryDeps.LedgerSigner.Type(), registryDeps.LedgerSigner); err != nil {
				return nil, err
			}
		}

		return registry, nil
	}); err != nil {
		return err
	}

	// the key value store and the connector are provided by the embedding application, see ProvideBackends.
	type storeDeps struct {
		dig.In

		KVStore kvstore.KVStore `optional:"true"`
	}

	if err := c.Provide(func(storeDeps storeDeps) (*storage.Store, error) {
		if storeDeps.KVStore == nil {
			return storage.New(mapdb.NewMapDB())
		}

		return storage.New(storeDeps.KVStore)
	}); err != nil {
		return err
	}

	type walletDeps struct {
		dig.In

		Logger    log.Logger
		Registry  *signing.Registry
		Store     *storage.Store
		Connector wallet.Connector `optional:"true"`
	}

	return c.Provide(func(walletDeps walletDeps) (*wallet.Wallet, error) {
		network := address.Network(ParamsWallet.Network)
		if !network.IsValid() {
			return nil, ierrors.Errorf("unknown network %q", ParamsWallet.Network)
		}

		opts := []options.Option[wallet.Wallet]{
			wallet.WithNetwork(network),
			wallet.WithStore(walletDeps.Store),
			wallet.WithAddressGapLimit(ParamsWallet.AddressGapLimit),
			wallet.WithAccountGapLimit(ParamsWallet.AccountGapLimit),
			wallet.WithConsolidationThreshold(ParamsWallet.ConsolidationThreshold),
			wallet.WithSyncParallelism(ParamsWallet.Sync.Parallelism),
		}
		if walletDeps.Connector != nil {
			opts = append(opts, wallet.WithConnector(walletDeps.Connector))
		}

		return wallet.New(lo.Return1(walletDeps.Logger.NewChildLogger("Wallet")), walletDeps.Registry, opts...)
	})
}

func configure() error {
	deps.Wallet.Events.BalanceChanged.Hook(func(event *account.BalanceChangedEvent) {
		Component.LogInfof("Balance of account %d changed: %s -> %s", event.AccountIndex, event.Previous, event.Current)
	})

	deps.Wallet.Events.TransactionInclusionChanged.Hook(func(event *account.InclusionChangedEvent) {
		Component.LogInfof("Transaction %s of account %d: %s -> %s", event.TransactionID, event.AccountIndex, event.Previous, event.Current)
	})

	deps.Wallet.Events.IntegrityViolation.Hook(func(event *account.IntegrityViolationEvent) {
		Component.LogWarnf("Integrity violation in account %d: %s", event.AccountIndex, event.Error)
	})

	if deps.KVStore == nil {
		Component.LogWarn("No key value store provided, accounts are kept in memory only")
	}
	if deps.Connector == nil {
		Component.LogWarn("No ledger connector provided, sync and account recovery are disabled")
	}

	if deps.LedgerSigner != nil {
		deps.LedgerSigner.Events.StateChanged.Hook(func(transition *ledger.StateTransition) {
			Component.LogDebugf("Ledger session: %s", transition)
		})
	}

	return nil
}

func run() error {
	return Component.Daemon().BackgroundWorker(Component.Name, func(ctx context.Context) {
		if err := prepareAccounts(ctx); err != nil {
			Component.LogErrorf("Failed to prepare accounts: %s", err)
		}

		if deps.Connector != nil {
			ticker := timeutil.NewTicker(func() { syncAccounts(ctx) }, ParamsWallet.Sync.Interval, ctx)
			ticker.WaitForGracefulShutdown()
		}

		<-ctx.Done()
		Component.LogInfo("Gracefully shutting down the Wallet...")

		if err := deps.Wallet.Close(); err != nil {
			Component.LogErrorf("Failed to close wallet: %s", err)
		}
	}, daemon.PriorityWallet)
}

// prepareAccounts recovers the accounts from the ledger if requested, or creates the first account of an empty wallet.
func prepareAccounts(ctx context.Context) error {
	signerType, err := signing.SignerTypeFromString(ParamsWallet.SignerType)
	if err != nil {
		return err
	}

	if ParamsWallet.RecoverAccounts {
		if deps.Connector == nil {
			return ierrors.Wrap(wallet.ErrNoConnector, "failed to recover accounts")
		}


		accounts, err := deps.Wallet.RecoverAccounts(ctx, signerType, ParamsWallet.AccountGapLimit, ParamsWallet.AddressGapLimit)
		if err != nil {
			return ierrors.Wrap(err, "failed to recover accounts")
		}
		Component.LogInfof("Recovered %d accounts", len(accounts))

		return nil
	}

	if deps.Wallet.AccountCount() > 0 {
		return nil
	}

	newAccount, err := deps.Wallet.CreateAccount(ctx, "", signerType)
	if err != nil {
		return ierrors.Wrap(err, "failed to create account")
	}
	Component.LogInfof("Created account %s with alias %s", wallet.FormatAccountID(newAccount.ID()), newAccount.Alias())

	return nil
}

func syncAccounts(ctx context.Context) {
	balances, err := deps.Wallet.SyncAll(ctx)
	if err != nil {
		if !ierrors.Is(err, context.Canceled) {
			Component.LogWarnf("Failed to sync accounts: %s", err)
		}

		return
	}

	Component.LogDebugf("Synced %d accounts", len(balances))
}

func seedProvider() (mnemonic.SeedProvider, error) {
	switch {
	case ParamsWallet.Mnemonic.Words != "":
		return mnemonic.SeedFromMnemonic(ParamsWallet.Mnemonic.Words, ParamsWallet.Mnemonic.Passphrase)
	case ParamsWallet.Mnemonic.Seed != "":
		seed, err := base58.Decode(ParamsWallet.Mnemonic.Seed)
		if err != nil {
			return nil, ierrors.Wrap(signing.ErrConfiguration, "seed is not valid base58")
		}

		return mnemonic.StaticSeed(seed), nil
	default:
		return mnemonic.SeedProviderFunc(func() ([]byte, error) {
			return nil, ierrors.Wrap(signing.ErrConfiguration, "no mnemonic or seed configured")
		}), nil
	}
}

// ProvideBackends returns a provide function that hands the key value store and the ledger connector to the wallet
// component. Either may be nil. Without a store the accounts live in memory, without a connector the wallet never
// syncs or recovers accounts.
func ProvideBackends(kvStore kvstore.KVStore, connector wallet.Connector) func(c *dig.Container) error {
	return func(c *dig.Container) error {
		if kvStore != nil {
			if err := c.Provide(func() kvstore.KVStore { return kvStore }); err != nil {
				return err
			}
		}

		if connector != nil {
			return c.Provide(func() wallet.Connector { return connector })
		}

		return nil
	}
}
