package wallet

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	ErrAccountNotFound = ierrors.New("account not found")
	ErrAliasTaken      = ierrors.New("alias is used by another account")
	ErrNoConnector     = ierrors.New("no connector configured")
	ErrInputNotOwned   = ierrors.New("input is not owned by the account")
	ErrAddressNotFound = ierrors.New("address not found")
	ErrNetworkMismatch = ierrors.New("network does not match the wallet")
	ErrInvalidGapLimit = ierrors.New("gap limit must be positive")
)
