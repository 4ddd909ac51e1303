package signing

import (
	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ds"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// MaxIndex is the exclusive upper bound of account and address indices. All path segments are derived hardened.
const MaxIndex uint32 = 1 << 31

// DigestLength is the length of the message digest that gets signed.
const DigestLength = blake2b.Size256

// GenerateAddressMetadata describes which address a Signer should derive.
type GenerateAddressMetadata struct {
	AccountIndex uint32
	AddressIndex uint32
	// Internal selects the change chain instead of the public chain.
	Internal bool
	Network  address.Network
	// ShowOnDevice asks hardware signers to display the address for verification. Ignored by local signers.
	ShowOnDevice bool
}

func (m *GenerateAddressMetadata) Validate() error {
	if m == nil {
		return ierrors.Wrap(ErrInvalidMetadata, "metadata is nil")
	}
	if !m.Network.IsValid() {
		return ierrors.Wrapf(ErrInvalidMetadata, "unknown network %q", m.Network)
	}
	if m.AccountIndex >= MaxIndex {
		return ierrors.Wrapf(ErrDerivation, "account index %d out of range", m.AccountIndex)
	}
	if m.AddressIndex >= MaxIndex {
		return ierrors.Wrapf(ErrDerivation, "address index %d out of range", m.AddressIndex)
	}

	return nil
}

// Remainder is the change output of a transaction. Hardware signers show it to the user.
type Remainder struct {
	Address      *address.Address
	Amount       iotago.BaseToken
	AddressIndex uint32
	Internal     bool
}

// SignMessageMetadata describes the message that should be signed.
type SignMessageMetadata struct {
	AccountIndex uint32
	Network      address.Network
	// Digest is the hash of the transaction essence, see EssenceDigest.
	Digest    [DigestLength]byte
	Remainder *Remainder
}

func (m *SignMessageMetadata) Validate() error {
	if m == nil {
		return ierrors.Wrap(ErrInvalidMetadata, "metadata is nil")
	}
	if !m.Network.IsValid() {
		return ierrors.Wrapf(ErrInvalidMetadata, "unknown network %q", m.Network)
	}
	if m.AccountIndex >= MaxIndex {
		return ierrors.Wrapf(ErrDerivation, "account index %d out of range", m.AccountIndex)
	}
	if m.Digest == [DigestLength]byte{} {
		return ierrors.Wrap(ErrInvalidMetadata, "digest is empty")
	}
	if m.Remainder != nil {
		if m.Remainder.Address == nil || m.Remainder.Address.Network() != m.Network {
			return ierrors.Wrap(ErrInvalidMetadata, "remainder address does not belong to the network")
		}
		if m.Remainder.AddressIndex >= MaxIndex {
			return ierrors.Wrapf(ErrDerivation, "remainder address index %d out of range", m.Remainder.AddressIndex)
		}
	}

	return nil
}

// TransactionInput is an output that gets spent together with the derivation information of its address.
type TransactionInput struct {
	OutputID iotago.OutputID
	// Address is optional. If set, signers verify that the derived key controls it.
	Address      *address.Address
	AddressIndex uint32
	Internal     bool
}

// ValidateInputs checks that there is at least one input, that no output is spent twice and that all derivation
// indices are in range.
func ValidateInputs(metadata *SignMessageMetadata, inputs []*TransactionInput) error {
	if len(inputs) == 0 {
		return ierrors.Wrap(ErrInvalidInput, "no inputs")
	}

	seen := ds.NewSet[iotago.OutputID]()
	for i, input := range inputs {
		switch {
		case input == nil:
			return ierrors.Wrapf(ErrInvalidInput, "input %d is nil", i)
		case !seen.Add(input.OutputID):
			return ierrors.Wrapf(ErrInvalidInput, "output %s is used twice", input.OutputID.ToHex())
		case input.AddressIndex >= MaxIndex:
			return ierrors.Wrapf(ErrInvalidInput, "address index %d of input %d out of range", input.AddressIndex, i)
		case input.Address != nil && input.Address.Network() != metadata.Network:
			return ierrors.Wrapf(ErrInvalidInput, "address of input %d belongs to network %s", i, input.Address.Network())
		}
	}

	return nil
}

// EssenceDigest returns the digest of a serialized transaction essence that signers sign.
func EssenceDigest(essence []byte) [DigestLength]byte {
	return blake2b.Sum256(essence)
}
