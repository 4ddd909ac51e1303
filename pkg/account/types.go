package account

import (
	"fmt"
	"time"

	iotago "github.com/iotaledger/iota.go/v4"
)

// InclusionState is the ledger inclusion state of the transaction that created an output.
type InclusionState uint8

const (
	Pending InclusionState = iota
	Confirmed
	Conflicting
)

func (s InclusionState) IsValid() bool {
	return s <= Conflicting
}

// CanAdvanceTo returns true if the state may be replaced by next. States only move from Pending to Confirmed or
// Conflicting. Reporting the current state again is allowed.
func (s InclusionState) CanAdvanceTo(next InclusionState) bool {
	return s == next || (s == Pending && (next == Confirmed || next == Conflicting))
}

// IsCounted returns true if outputs in this state contribute to the balance.
func (s InclusionState) IsCounted() bool {
	return s == Pending || s == Confirmed
}

func (s InclusionState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Confirmed:
		return "Confirmed"
	case Conflicting:
		return "Conflicting"
	default:
		return fmt.Sprintf("InclusionState(%d)", uint8(s))
	}
}

// OutputKind is the kind of an output.
type OutputKind uint8

const (
	// SignatureLockedSingle is a basic output unlocked by a signature.
	SignatureLockedSingle OutputKind = iota
	// SignatureLockedDustAllowance is an output that additionally allows the address to receive dust.
	SignatureLockedDustAllowance
	// Treasury outputs belong to the protocol and are never owned by an account.
	Treasury
)

func (k OutputKind) IsValid() bool {
	return k <= Treasury
}

func (k OutputKind) String() string {
	switch k {
	case SignatureLockedSingle:
		return "SignatureLockedSingle"
	case SignatureLockedDustAllowance:
		return "SignatureLockedDustAllowance"
	case Treasury:
		return "Treasury"
	default:
		return fmt.Sprintf("OutputKind(%d)", uint8(k))
	}
}

// Direction tells whether a transaction moved funds into or out of the account.
type Direction uint8

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "Outgoing"
	}

	return "Incoming"
}

// AccountBalance is derived from the outputs of an account and never updated directly.
type AccountBalance struct {
	// Total is the sum of all unspent outputs that are Pending or Confirmed.
	Total iotago.BaseToken
	// Available is Total without the outputs reserved by outgoing transactions that are not confirmed yet.
	Available iotago.BaseToken
}

func (b *AccountBalance) Equal(other *AccountBalance) bool {
	if b == nil || other == nil {
		return b == other
	}

	return *b == *other
}

func (b *AccountBalance) String() string {
	return fmt.Sprintf("AccountBalance(total=%d, available=%d)", b.Total, b.Available)
}

// unixNano encodes the zero time as 0 so that it survives a round trip.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromUnixNano(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}
