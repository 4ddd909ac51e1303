package wallet

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/storage"
)

const (
	// DefaultGapLimit is the number of unused addresses or accounts after which recovery stops.
	DefaultGapLimit = 20
	// DefaultSyncParallelism is the number of accounts that are synced at the same time.
	DefaultSyncParallelism = 4
)

// Wallet manages the accounts of one seed or device.
type Wallet struct {
	// Events are shared by the ledgers of all accounts.
	Events *account.Events

	registry  *signing.Registry
	connector Connector
	store     *storage.Store
	network   address.Network
	clock     clock.Clock

	accounts []*Account
	mutex    syncutils.RWMutex
	// createMutex serializes the operations that append accounts or change their aliases.
	createMutex syncutils.Mutex

	optsAddressGapLimit        int
	optsAccountGapLimit        int
	optsConsolidationThreshold int
	optsSyncParallelism        int

	log.Logger
}

// New creates a Wallet that signs with the signers of the given registry. If a store is configured, the accounts it
// contains are loaded.
func New(logger log.Logger, registry *signing.Registry, opts ...options.Option[Wallet]) (*Wallet, error) {
	w := options.Apply(&Wallet{
		Events:                     account.NewEvents(),
		registry:                   registry,
		network:                    address.Mainnet,
		clock:                      clock.New(),
		optsAddressGapLimit:        DefaultGapLimit,
		optsAccountGapLimit:        DefaultGapLimit,
		optsConsolidationThreshold: account.DefaultConsolidationThreshold,
		optsSyncParallelism:        DefaultSyncParallelism,
		Logger:                     logger,
	}, opts)

	if !w.network.IsValid() {
		return nil, ierrors.Wrapf(ErrNetworkMismatch, "unknown network %q", w.network)
	}

	if err := w.load(); err != nil {
		return nil, ierrors.Wrap(err, "failed to load accounts")
	}

	return w, nil
}

// Network returns the network the wallet operates on.
func (w *Wallet) Network() address.Network {
	return w.network
}

// Registry returns the signer registry used by all accounts.
func (w *Wallet) Registry() *signing.Registry {
	return w.registry
}

// CreateAccount creates the next account and generates its first public address. An empty alias defaults to
// "Account <index>".
func (w *Wallet) CreateAccount(ctx context.Context, alias string, signerType signing.SignerType) (*Account, error) {
	w.createMutex.Lock()
	defer w.createMutex.Unlock()

	index := uint32(w.AccountCount())
	if alias == "" {
		alias = defaultAlias(index)
	}

	if _, err := w.Account(ByAlias(alias)); err == nil {
		return nil, ierrors.Wrapf(ErrAliasTaken, "alias %q", alias)
	}

	if _, err := w.registry.Signer(signerType); err != nil {
		return nil, err
	}

	newAccount, err := w.newAccount(&storage.AccountRecord{
		Index:      index,
		ID:         uuid.New(),
		Alias:      alias,
		SignerType: signerType,
		Network:    w.network,
		CreatedAt:  w.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if _, err = newAccount.generateAddresses(ctx, 1, false); err != nil {
		return nil, ierrors.Wrapf(err, "failed to generate first address of account %d", index)
	}

	if err = w.persist(newAccount); err != nil {
		return nil, err
	}

	w.mutex.Lock()
	w.accounts = append(w.accounts, newAccount)
	w.mutex.Unlock()

	w.LogInfo("created account", "index", index, "alias", alias, "signer", signerType)

	return newAccount, nil
}

// Account returns the account the identifier refers to.
func (w *Wallet) Account(identifier Identifier) (*Account, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	for _, a := range w.accounts {
		if identifier.matches(a) {
			return a, nil
		}
	}

	return nil, ierrors.Wrapf(ErrAccountNotFound, "identifier %s", identifier)
}

// Accounts returns all accounts ordered by index.
func (w *Wallet) Accounts() []*Account {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return append(make([]*Account, 0, len(w.accounts)), w.accounts...)
}

func (w *Wallet) AccountCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.accounts)
}

// SyncAccount fetches a ledger report for the account and reconciles it.
func (w *Wallet) SyncAccount(ctx context.Context, identifier Identifier) (*account.AccountBalance, error) {
	a, err := w.Account(identifier)
	if err != nil {
		return nil, err
	}

	return a.Sync(ctx)
}

// SyncAll syncs all accounts. Different accounts are synced in parallel.
func (w *Wallet) SyncAll(ctx context.Context) (map[uint32]*account.AccountBalance, error) {
	if w.connector == nil {
		return nil, ErrNoConnector
	}

	accounts := w.Accounts()
	balances := make([]*account.AccountBalance, len(accounts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(w.optsSyncParallelism, 1))
	for i, a := range accounts {
		group.Go(func() (err error) {
			balances[i], err = a.Sync(groupCtx)

			return err
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := make(map[uint32]*account.AccountBalance, len(accounts))
	for i, a := range accounts {
		result[a.Index()] = balances[i]
	}

	return result, nil
}

// Close flushes the store, if one is configured.
func (w *Wallet) Close() error {
	if w.store == nil {
		return nil
	}

	return w.store.Close()
}

func (w *Wallet) newAccount(record *storage.AccountRecord) (*Account, error) {
	if record.Network != w.network {
		return nil, ierrors.Wrapf(ErrNetworkMismatch, "account %d belongs to %s", record.Index, record.Network)
	}

	logger := lo.Return1(w.NewChildLogger(fmt.Sprintf("Account%d", record.Index)))

	a := &Account{
		wallet:     w,
		ledger:     account.NewLedger(logger, record.Index, w.network, account.WithEvents(w.Events)),
		index:      record.Index,
		id:         record.ID,
		alias:      record.Alias,
		signerType: record.SignerType,
		createdAt:  record.CreatedAt,
		Logger:     logger,
	}

	if err := a.addAddresses(record.Addresses...); err != nil {
		return nil, err
	}

	return a, nil
}

func (w *Wallet) load() error {
	if w.store == nil {
		return nil
	}

	records, err := w.store.Accounts()
	if err != nil {
		return err
	}

	for i, record := range records {
		if record.Index != uint32(i) {
			return ierrors.Errorf("account indices are not contiguous: expected %d, found %d", i, record.Index)
		}

		a, err := w.newAccount(record)
		if err != nil {
			return err
		}

		outputs, transactions, err := w.store.LedgerState(record.Index)
		if err != nil {
			return err
		}
		a.ledger.Restore(outputs, transactions)

		w.accounts = append(w.accounts, a)
	}

	if len(records) > 0 {
		w.LogDebug("loaded accounts", "count", len(records))
	}

	return nil
}

func (w *Wallet) persist(a *Account) error {
	if w.store == nil {
		return nil
	}

	if err := w.store.StoreAccount(a.record()); err != nil {
		return ierrors.Wrapf(err, "failed to store account %d", a.Index())
	}

	if err := w.store.StoreLedgerState(a.Index(), a.ledger.Outputs(), a.ledger.Transactions()); err != nil {
		return ierrors.Wrapf(err, "failed to store ledger state of account %d", a.Index())
	}

	return nil
}

func defaultAlias(index uint32) string {
	return fmt.Sprintf("Account %d", index)
}

// WithNetwork sets the network of the wallet, accounts of other networks are rejected.
func WithNetwork(network address.Network) options.Option[Wallet] {
	return func(w *Wallet) {
		w.network = network
	}
}

func WithConnector(connector Connector) options.Option[Wallet] {
	return func(w *Wallet) {
		w.connector = connector
	}
}

func WithStore(store *storage.Store) options.Option[Wallet] {
	return func(w *Wallet) {
		w.store = store
	}
}

func WithClock(c clock.Clock) options.Option[Wallet] {
	return func(w *Wallet) {
		w.clock = c
	}
}

func WithAddressGapLimit(limit int) options.Option[Wallet] {
	return func(w *Wallet) {
		w.optsAddressGapLimit = limit
	}
}

func WithAccountGapLimit(limit int) options.Option[Wallet] {
	return func(w *Wallet) {
		w.optsAccountGapLimit = limit
	}
}

func WithConsolidationThreshold(threshold int) options.Option[Wallet] {
	return func(w *Wallet) {
		w.optsConsolidationThreshold = threshold
	}
}

func WithSyncParallelism(parallelism int) options.Option[Wallet] {
	return func(w *Wallet) {
		w.optsSyncParallelism = parallelism
	}
}
