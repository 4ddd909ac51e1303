package signing

import (
	"context"
	"fmt"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// SignerType is the tag a Signer is registered under.
type SignerType uint8

const (
	Mnemonic SignerType = iota
	LedgerHardware
	LedgerSimulator
)

// SignerTypes contains all known signer types.
var SignerTypes = []SignerType{Mnemonic, LedgerHardware, LedgerSimulator}

func (t SignerType) IsValid() bool {
	return t <= LedgerSimulator
}

func (t SignerType) String() string {
	switch t {
	case Mnemonic:
		return "Mnemonic"
	case LedgerHardware:
		return "LedgerHardware"
	case LedgerSimulator:
		return "LedgerSimulator"
	default:
		return fmt.Sprintf("SignerType(%d)", uint8(t))
	}
}

// SignerTypeFromString parses the name of a signer type, ignoring case.
func SignerTypeFromString(name string) (SignerType, error) {
	for _, signerType := range SignerTypes {
		if strings.EqualFold(signerType.String(), name) {
			return signerType, nil
		}
	}

	return 0, ierrors.Wrapf(ErrConfiguration, "unknown signer type %q", name)
}

// Interaction describes how a Signer produces its results.
type Interaction uint8

const (
	// InteractionNone means results are computed locally and returned without suspension.
	InteractionNone Interaction = iota
	// InteractionDeviceConfirmation means results require a round trip to a device and explicit user approval.
	InteractionDeviceConfirmation
)

func (i Interaction) String() string {
	if i == InteractionDeviceConfirmation {
		return "DeviceConfirmation"
	}

	return "None"
}

// Signer derives addresses and signs transaction essences for an account.
type Signer interface {
	// Type returns the tag the signer is registered under.
	Type() SignerType

	// Interaction returns whether calls complete locally or wait for external confirmation.
	Interaction() Interaction

	// GenerateAddress derives the address for the given account and address index.
	GenerateAddress(ctx context.Context, metadata *GenerateAddressMetadata) (*address.Address, error)

	// SignMessage signs the digest once for every input, in the order of the inputs.
	SignMessage(ctx context.Context, metadata *SignMessageMetadata, inputs []*TransactionInput) ([]*iotago.Ed25519Signature, error)

	// Status returns the current health of the backend.
	Status(ctx context.Context) (Status, error)
}

// Status is the backend specific health of a Signer.
type Status interface {
	// IsReady returns true if the signer can serve requests without further user action.
	IsReady() bool

	String() string
}

// LocalStatus is the status of signers that do not depend on external devices.
type LocalStatus struct{}

func (LocalStatus) IsReady() bool {
	return true
}

func (LocalStatus) String() string {
	return "ready"
}

// LedgerApp is the application that is currently open on a Ledger device.
type LedgerApp struct {
	Name    string
	Version string
}

func (a *LedgerApp) String() string {
	return fmt.Sprintf("%s %s", a.Name, a.Version)
}

// LedgerStatus is a snapshot of the connectivity of a Ledger device.
type LedgerStatus struct {
	Connected bool
	Locked    bool
	// Busy is set when the device is serving a session and could not be polled.
	Busy bool
	// App is nil if no app could be determined.
	App *LedgerApp
	// WalletAppOpen is set if App is the application the signer talks to.
	WalletAppOpen bool
}

func (s *LedgerStatus) IsReady() bool {
	return s.Connected && !s.Locked && !s.Busy && s.WalletAppOpen
}

func (s *LedgerStatus) String() string {
	switch {
	case !s.Connected:
		return "disconnected"
	case s.Busy:
		return "busy"
	case s.Locked:
		return "locked"
	case s.App == nil:
		return "connected"
	default:
		return fmt.Sprintf("connected (%s)", s.App)
	}
}
