package ledger

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	iotago "github.com/iotaledger/iota.go/v4"
)

// InputPath is the derivation path of an input relative to the account selected on the device.
type InputPath struct {
	Chain keys.Chain
	Index uint32
}

// RemainderInfo is the change output the device shows to the user before signing.
type RemainderInfo struct {
	Chain   keys.Chain
	Index   uint32
	Amount  iotago.BaseToken
	Address iotago.Ed25519Address
}

// SigningPayload is the content of the device data buffer for a signing request.
type SigningPayload struct {
	Digest    [signing.DigestLength]byte
	Inputs    []InputPath
	Remainder *RemainderInfo
}

// NewSigningPayload builds the data buffer content of a signing request.
func NewSigningPayload(metadata *signing.SignMessageMetadata, inputs []*signing.TransactionInput) *SigningPayload {
	payload := &SigningPayload{
		Digest: metadata.Digest,
		Inputs: lo.Map(inputs, func(input *signing.TransactionInput) InputPath {
			return InputPath{Chain: keys.ChainOf(input.Internal), Index: input.AddressIndex}
		}),
	}

	if remainder := metadata.Remainder; remainder != nil {
		payload.Remainder = &RemainderInfo{
			Chain:   keys.ChainOf(remainder.Internal),
			Index:   remainder.AddressIndex,
			Amount:  remainder.Amount,
			Address: *remainder.Address.Ed25519Address(),
		}
	}

	return payload
}

func (p *SigningPayload) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.Write(byteBuffer, p.Digest); err != nil {
		return nil, ierrors.Wrap(err, "failed to write digest")
	}

	if err := stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (elementsCount int, err error) {
		for _, input := range p.Inputs {
			if err = stream.Write(byteBuffer, uint32(input.Chain)); err != nil {
				return 0, ierrors.Wrap(err, "failed to write input chain")
			}
			if err = stream.Write(byteBuffer, input.Index); err != nil {
				return 0, ierrors.Wrap(err, "failed to write input index")
			}
		}

		return len(p.Inputs), nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to write inputs")
	}

	if p.Remainder == nil {
		if err := stream.Write(byteBuffer, byte(0)); err != nil {
			return nil, ierrors.Wrap(err, "failed to write remainder flag")
		}

		return byteBuffer.Bytes()
	}

	if err := stream.Write(byteBuffer, byte(1)); err != nil {
		return nil, ierrors.Wrap(err, "failed to write remainder flag")
	}
	if err := stream.Write(byteBuffer, uint32(p.Remainder.Chain)); err != nil {
		return nil, ierrors.Wrap(err, "failed to write remainder chain")
	}
	if err := stream.Write(byteBuffer, p.Remainder.Index); err != nil {
		return nil, ierrors.Wrap(err, "failed to write remainder index")
	}
	if err := stream.Write(byteBuffer, p.Remainder.Amount); err != nil {
		return nil, ierrors.Wrap(err, "failed to write remainder amount")
	}
	if err := stream.Write(byteBuffer, p.Remainder.Address); err != nil {
		return nil, ierrors.Wrap(err, "failed to write remainder address")
	}

	return byteBuffer.Bytes()
}

// SigningPayloadFromBytes decodes the data buffer content of a signing request.
func SigningPayloadFromBytes(b []byte) (payload *SigningPayload, err error) {
	byteReader := stream.NewByteReader(b)
	payload = new(SigningPayload)

	if payload.Digest, err = stream.Read[[signing.DigestLength]byte](byteReader); err != nil {
		return nil, ierrors.Wrap(err, "failed to read digest")
	}

	if err = stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint16, func(int) error {
		chain, err := stream.Read[uint32](byteReader)
		if err != nil {
			return ierrors.Wrap(err, "failed to read input chain")
		}

		index, err := stream.Read[uint32](byteReader)
		if err != nil {
			return ierrors.Wrap(err, "failed to read input index")
		}

		payload.Inputs = append(payload.Inputs, InputPath{Chain: keys.Chain(chain), Index: index})

		return nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to read inputs")
	}

	hasRemainder, err := stream.Read[byte](byteReader)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to read remainder flag")
	}

	if hasRemainder == 1 {
		remainder := new(RemainderInfo)

		chain, err := stream.Read[uint32](byteReader)
		if err != nil {
			return nil, ierrors.Wrap(err, "failed to read remainder chain")
		}
		remainder.Chain = keys.Chain(chain)

		if remainder.Index, err = stream.Read[uint32](byteReader); err != nil {
			return nil, ierrors.Wrap(err, "failed to read remainder index")
		}
		if remainder.Amount, err = stream.Read[iotago.BaseToken](byteReader); err != nil {
			return nil, ierrors.Wrap(err, "failed to read remainder amount")
		}
		if remainder.Address, err = stream.Read[iotago.Ed25519Address](byteReader); err != nil {
			return nil, ierrors.Wrap(err, "failed to read remainder address")
		}

		payload.Remainder = remainder
	}

	if byteReader.BytesRead() != len(b) {
		return nil, ierrors.Errorf("%d trailing bytes in signing payload", len(b)-byteReader.BytesRead())
	}

	return payload, nil
}
