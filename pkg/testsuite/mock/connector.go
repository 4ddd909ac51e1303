package mock

import (
	"context"
	"slices"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Connector is an in-memory ledger that answers ledger report requests of a wallet.
type Connector struct {
	outputs      map[iotago.OutputID]*account.OutputData
	transactions map[iotago.TransactionID]*account.TransactionReport
	err          error
	requests     atomic.Int64
	mutex        syncutils.RWMutex
}

func NewConnector() *Connector {
	return &Connector{
		outputs:      make(map[iotago.OutputID]*account.OutputData),
		transactions: make(map[iotago.TransactionID]*account.TransactionReport),
	}
}

// AddOutput adds or replaces an output of the ledger.
func (c *Connector) AddOutput(output *account.OutputData) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.outputs[output.OutputID] = output.Clone()
}

// SetTransaction adds or replaces what the ledger knows about a transaction.
func (c *Connector) SetTransaction(report *account.TransactionReport) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.transactions[report.TransactionID] = report
}

// SetError makes all following requests fail with err until it is reset to nil.
func (c *Connector) SetError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.err = err
}

// Requests returns the number of answered requests.
func (c *Connector) Requests() int {
	return int(c.requests.Load())
}

func (c *Connector) LedgerReport(ctx context.Context, addresses []*address.Address, transactionIDs []iotago.TransactionID) (*account.LedgerReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	c.requests.Inc()

	if c.err != nil {
		return nil, c.err
	}

	requested := make(map[address.Key]struct{}, len(addresses))
	for _, addr := range addresses {
		requested[addr.Key()] = struct{}{}
	}

	report := new(account.LedgerReport)
	for _, output := range c.outputs {
		if _, exists := requested[output.Address.Key()]; exists {
			report.Outputs = append(report.Outputs, output.Clone())
		}
	}
	slices.SortFunc(report.Outputs, func(a, b *account.OutputData) int {
		return slices.Compare(a.OutputID[:], b.OutputID[:])
	})

	for _, transactionID := range transactionIDs {
		if transaction, exists := c.transactions[transactionID]; exists {
			report.Transactions = append(report.Transactions, transaction)
		}
	}

	return report, nil
}
