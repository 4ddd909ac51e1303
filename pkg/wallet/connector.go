package wallet

import (
	"context"

	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Connector supplies ledger data for the addresses of an account. Implementations talk to ledger nodes; the wallet
// never initiates network calls by itself.
type Connector interface {
	// LedgerReport returns the outputs held by the given addresses and the inclusion states of the given transactions.
	LedgerReport(ctx context.Context, addresses []*address.Address, transactionIDs []iotago.TransactionID) (*account.LedgerReport, error)
}
