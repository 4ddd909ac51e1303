package mnemonic

import (
	"context"
	"crypto/ed25519"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Signer derives keys from a seed. All operations are pure functions of the seed and their arguments.
type Signer struct {
	seedProvider SeedProvider
}

// New creates a Signer that reads its seed from the given provider on every call.
func New(seedProvider SeedProvider) *Signer {
	return &Signer{
		seedProvider: seedProvider,
	}
}

func (s *Signer) Type() signing.SignerType {
	return signing.Mnemonic
}

func (s *Signer) Interaction() signing.Interaction {
	return signing.InteractionNone
}

func (s *Signer) GenerateAddress(_ context.Context, metadata *signing.GenerateAddressMetadata) (*address.Address, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	_, publicKey, err := s.derive(keys.Path{
		Account: metadata.AccountIndex,
		Chain:   keys.ChainOf(metadata.Internal),
		Index:   metadata.AddressIndex,
	})
	if err != nil {
		return nil, err
	}

	return address.FromPublicKey(publicKey, metadata.Network)
}

func (s *Signer) SignMessage(_ context.Context, metadata *signing.SignMessageMetadata, inputs []*signing.TransactionInput) ([]*iotago.Ed25519Signature, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	if err := signing.ValidateInputs(metadata, inputs); err != nil {
		return nil, err
	}

	signatures := make([]*iotago.Ed25519Signature, len(inputs))
	for i, input := range inputs {
		privateKey, publicKey, err := s.derive(keys.Path{
			Account: metadata.AccountIndex,
			Chain:   keys.ChainOf(input.Internal),
			Index:   input.AddressIndex,
		})
		if err != nil {
			return nil, err
		}

		if input.Address != nil {
			derived, err := address.FromPublicKey(publicKey, metadata.Network)
			if err != nil {
				return nil, ierrors.Join(signing.ErrInvalidInput, err)
			}

			if !derived.Equal(input.Address) {
				return nil, ierrors.Wrapf(signing.ErrInvalidInput, "input %s is not controlled by %s", input.OutputID.ToHex(), derived)
			}
		}

		signature := &iotago.Ed25519Signature{}
		copy(signature.PublicKey[:], publicKey)
		copy(signature.Signature[:], ed25519.Sign(privateKey, metadata.Digest[:]))
		signatures[i] = signature
	}

	return signatures, nil
}

func (s *Signer) Status(_ context.Context) (signing.Status, error) {
	return signing.LocalStatus{}, nil
}

func (s *Signer) derive(path keys.Path) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	seed, err := s.seedProvider.Seed()
	if err != nil {
		return nil, nil, ierrors.Wrapf(signing.ErrConfiguration, "seed unavailable: %s", err)
	}

	privateKey, publicKey, err := keys.Derive(seed, path)
	clear(seed)
	if err != nil {
		return nil, nil, ierrors.Join(signing.ErrDerivation, err)
	}

	return privateKey, publicKey, nil
}

// DefaultSigners returns the signers installed into a new registry: the mnemonic signer backed by the given seed.
func DefaultSigners(seedProvider SeedProvider) map[signing.SignerType]signing.Signer {
	return map[signing.SignerType]signing.Signer{
		signing.Mnemonic: New(seedProvider),
	}
}

var _ signing.Signer = new(Signer)
