package prometheus

import (
	"strconv"

	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/iota-wallet/components/prometheus/collector"
	"github.com/iotaledger/iota-wallet/pkg/account"
)

const (
	walletNamespace = "wallet"

	accounts             = "accounts"
	balanceTotal         = "balance_total"
	balanceAvailable     = "balance_available"
	transactionsObserved = "transactions_observed_total"
	inclusionChanges     = "inclusion_changes_total"
	integrityViolations  = "integrity_violations_total"
)

var WalletMetrics = collector.NewCollection(walletNamespace,
	collector.WithMetric(collector.NewMetric(accounts,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Number of accounts in the wallet."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Wallet.AccountCount()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(balanceTotal,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Sum of the unspent outputs per account."),
		collector.WithLabels("account"),
		collector.WithInitFunc(func() {
			for _, a := range deps.Wallet.Accounts() {
				updateBalance(a.Index(), a.Balance())
			}

			deps.Wallet.Events.BalanceChanged.Hook(func(event *account.BalanceChangedEvent) {
				updateBalance(event.AccountIndex, event.Current)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(balanceAvailable,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Balance per account that is not reserved by pending transactions."),
		collector.WithLabels("account"),
	)),
	collector.WithMetric(collector.NewMetric(transactionsObserved,
		collector.WithType(collector.Counter),
		collector.WithHelp("Number of transactions observed per direction."),
		collector.WithLabels("direction"),
		collector.WithInitFunc(func() {
			deps.Wallet.Events.TransactionObserved.Hook(func(event *account.TransactionEvent) {
				logUpdateError(deps.Collector.Increment(walletNamespace, transactionsObserved, event.Transaction.Direction.String()))
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(inclusionChanges,
		collector.WithType(collector.Counter),
		collector.WithHelp("Number of inclusion state changes per resulting state."),
		collector.WithLabels("state"),
		collector.WithInitFunc(func() {
			deps.Wallet.Events.TransactionInclusionChanged.Hook(func(event *account.InclusionChangedEvent) {
				logUpdateError(deps.Collector.Increment(walletNamespace, inclusionChanges, event.Current.String()))
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(integrityViolations,
		collector.WithType(collector.Counter),
		collector.WithHelp("Number of ledger reports that violated the integrity of an account."),
		collector.WithInitFunc(func() {
			deps.Wallet.Events.IntegrityViolation.Hook(func(_ *account.IntegrityViolationEvent) {
				logUpdateError(deps.Collector.Increment(walletNamespace, integrityViolations))
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
)

func updateBalance(accountIndex uint32, balance *account.AccountBalance) {
	label := strconv.FormatUint(uint64(accountIndex), 10)

	logUpdateError(deps.Collector.Update(walletNamespace, balanceTotal, float64(balance.Total), label))
	logUpdateError(deps.Collector.Update(walletNamespace, balanceAvailable, float64(balance.Available), label))
}
