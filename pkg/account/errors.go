package account

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrIntegrity is the parent of all errors caused by ledger data that contradicts what is known.
	ErrIntegrity = ierrors.New("ledger data integrity violation")
	// ErrMalformedReport is returned for report entries that miss required fields.
	ErrMalformedReport = ierrors.Wrap(ErrIntegrity, "malformed ledger report")
	// ErrStateRegression is returned when an inclusion state or spent flag would move backwards.
	ErrStateRegression = ierrors.Wrap(ErrIntegrity, "state regression")
	// ErrConflictingReport is returned when immutable fields of a known output or transaction change.
	ErrConflictingReport = ierrors.Wrap(ErrIntegrity, "report conflicts with known data")
	// ErrForeignNetwork is returned for data that belongs to another network.
	ErrForeignNetwork = ierrors.Wrap(ErrIntegrity, "data of another network")
	// ErrUnsupportedOutputKind is returned for outputs that can not be owned by an account.
	ErrUnsupportedOutputKind = ierrors.Wrap(ErrIntegrity, "unsupported output kind")

	ErrUnknownOutput       = ierrors.New("unknown output")
	ErrOutputReserved      = ierrors.New("output is reserved by another transaction")
	ErrOutputNotSpendable  = ierrors.New("output is not spendable")
	ErrInsufficientBalance = ierrors.New("insufficient balance")
)
