package account

import (
	"github.com/iotaledger/hive.go/runtime/event"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Events contains the events that are triggered by account ledgers.
type Events struct {
	BalanceChanged              *event.Event1[*BalanceChangedEvent]
	TransactionObserved         *event.Event1[*TransactionEvent]
	TransactionInclusionChanged *event.Event1[*InclusionChangedEvent]
	IntegrityViolation          *event.Event1[*IntegrityViolationEvent]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() (newEvents *Events) {
	return &Events{
		BalanceChanged:              event.New1[*BalanceChangedEvent](),
		TransactionObserved:         event.New1[*TransactionEvent](),
		TransactionInclusionChanged: event.New1[*InclusionChangedEvent](),
		IntegrityViolation:          event.New1[*IntegrityViolationEvent](),
	}
})

type BalanceChangedEvent struct {
	AccountIndex uint32
	Previous     *AccountBalance
	Current      *AccountBalance
}

type TransactionEvent struct {
	AccountIndex uint32
	Transaction  *Transaction
}

type InclusionChangedEvent struct {
	AccountIndex  uint32
	TransactionID iotago.TransactionID
	Previous      InclusionState
	Current       InclusionState
}

type IntegrityViolationEvent struct {
	AccountIndex uint32
	Error        error
}
