package ledger

import (
	"fmt"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/hive.go/runtime/syncutils"
)

// State is the state of the session with the device.
type State uint8

const (
	Disconnected State = iota
	Connecting
	AwaitingAppSelection
	Ready
	AwaitingUserConfirmation
	Completed
	Rejected
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case AwaitingAppSelection:
		return "AwaitingAppSelection"
	case Ready:
		return "Ready"
	case AwaitingUserConfirmation:
		return "AwaitingUserConfirmation"
	case Completed:
		return "Completed"
	case Rejected:
		return "Rejected"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ErrInvalidTransition is returned when the session is asked to move along an edge that does not exist.
var ErrInvalidTransition = ierrors.New("invalid state transition")

var transitions = map[State][]State{
	Disconnected:             {Connecting},
	Connecting:               {AwaitingAppSelection, Ready, Disconnected, Error},
	AwaitingAppSelection:     {Ready, Disconnected, Error},
	Ready:                    {AwaitingUserConfirmation, Disconnected, Error},
	AwaitingUserConfirmation: {Completed, Rejected, Error},
	Completed:                {Ready, Disconnected, Error},
	Rejected:                 {Ready, Disconnected, Error},
	Error:                    {Disconnected},
}

// StateTransition describes a change of the session state.
type StateTransition struct {
	From State
	To   State
}

func (t *StateTransition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// Events contains the events of the Ledger signer.
type Events struct {
	StateChanged *event.Event1[*StateTransition]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() (newEvents *Events) {
	return &Events{
		StateChanged: event.New1[*StateTransition](),
	}
})

// stateMachine tracks the session state and validates every transition against the transition table.
type stateMachine struct {
	state  State
	events *Events
	mutex  syncutils.RWMutex
}

func newStateMachine(events *Events) *stateMachine {
	return &stateMachine{
		state:  Disconnected,
		events: events,
	}
}

func (m *stateMachine) State() State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.state
}

// Transition moves the session to the given state.
func (m *stateMachine) Transition(to State) error {
	m.mutex.Lock()
	from := m.state
	if !isAllowed(from, to) {
		m.mutex.Unlock()

		return ierrors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	m.state = to
	m.mutex.Unlock()

	m.events.StateChanged.Trigger(&StateTransition{From: from, To: to})

	return nil
}

// Fail moves the session to Error from any state except Disconnected, where there is no session to abandon.
func (m *stateMachine) Fail() {
	if m.State() == Disconnected || m.State() == Error {
		return
	}

	_ = m.Transition(Error)
}

func isAllowed(from State, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}
