package account

import (
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/hive.go/stringify"
	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

// OutputData is a ledger output together with what the wallet knows about it.
type OutputData struct {
	OutputID       iotago.OutputID
	Address        *address.Address
	Amount         iotago.BaseToken
	Kind           OutputKind
	Spent          bool
	InclusionState InclusionState
	Timestamp      time.Time
}

// TransactionID returns the ID of the transaction that created the output.
func (o *OutputData) TransactionID() iotago.TransactionID {
	return o.OutputID.TransactionID()
}

// Clone returns a copy. Addresses are immutable and shared.
func (o *OutputData) Clone() *OutputData {
	clone := *o

	return &clone
}

// Validate checks the fields a ledger report has to provide.
func (o *OutputData) Validate() error {
	switch {
	case o == nil:
		return ierrors.Wrap(ErrMalformedReport, "output is nil")
	case o.OutputID == iotago.EmptyOutputID:
		return ierrors.Wrap(ErrMalformedReport, "output without id")
	case o.Address == nil:
		return ierrors.Wrapf(ErrMalformedReport, "output %s without address", o.OutputID.ToHex())
	case !o.Kind.IsValid():
		return ierrors.Wrapf(ErrMalformedReport, "output %s has unknown kind %d", o.OutputID.ToHex(), o.Kind)
	case o.Kind == Treasury:
		return ierrors.Wrapf(ErrUnsupportedOutputKind, "output %s is a treasury output", o.OutputID.ToHex())
	case !o.InclusionState.IsValid():
		return ierrors.Wrapf(ErrMalformedReport, "output %s has unknown inclusion state %d", o.OutputID.ToHex(), o.InclusionState)
	default:
		return nil
	}
}

// sameOutput returns true if the immutable fields of both outputs match.
func (o *OutputData) sameOutput(other *OutputData) bool {
	return o.Amount == other.Amount && o.Kind == other.Kind && o.Address.Equal(other.Address)
}

func (o *OutputData) Bytes() ([]byte, error) {
	addressBytes, err := o.Address.Bytes()
	if err != nil {
		return nil, err
	}

	byteBuffer := stream.NewByteBuffer()

	if err = stream.Write(byteBuffer, o.OutputID); err != nil {
		return nil, ierrors.Wrap(err, "failed to write output id")
	}
	if err = stream.WriteBytesWithSize(byteBuffer, addressBytes, serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, ierrors.Wrap(err, "failed to write address")
	}
	if err = stream.Write(byteBuffer, o.Amount); err != nil {
		return nil, ierrors.Wrap(err, "failed to write amount")
	}
	if err = stream.Write(byteBuffer, o.Kind); err != nil {
		return nil, ierrors.Wrap(err, "failed to write kind")
	}
	if err = stream.Write(byteBuffer, o.Spent); err != nil {
		return nil, ierrors.Wrap(err, "failed to write spent flag")
	}
	if err = stream.Write(byteBuffer, o.InclusionState); err != nil {
		return nil, ierrors.Wrap(err, "failed to write inclusion state")
	}
	if err = stream.Write(byteBuffer, unixNano(o.Timestamp)); err != nil {
		return nil, ierrors.Wrap(err, "failed to write timestamp")
	}

	return byteBuffer.Bytes()
}

// OutputDataFromBytes decodes an output written by OutputData.Bytes.
func OutputDataFromBytes(b []byte) (o *OutputData, consumedBytes int, err error) {
	byteReader := stream.NewByteReader(b)
	o = new(OutputData)

	if o.OutputID, err = stream.Read[iotago.OutputID](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read output id")
	}

	addressBytes, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read address")
	}
	if o.Address, _, err = address.FromBytes(addressBytes); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to decode address")
	}

	if o.Amount, err = stream.Read[iotago.BaseToken](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read amount")
	}
	if o.Kind, err = stream.Read[OutputKind](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read kind")
	}
	if o.Spent, err = stream.Read[bool](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read spent flag")
	}
	if o.InclusionState, err = stream.Read[InclusionState](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read inclusion state")
	}

	timestamp, err := stream.Read[int64](byteReader)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read timestamp")
	}
	o.Timestamp = fromUnixNano(timestamp)

	return o, byteReader.BytesRead(), nil
}

func (o *OutputData) String() string {
	return stringify.Struct("OutputData",
		stringify.NewStructField("OutputID", o.OutputID.ToHex()),
		stringify.NewStructField("Address", o.Address.String()),
		stringify.NewStructField("Amount", uint64(o.Amount)),
		stringify.NewStructField("Kind", o.Kind.String()),
		stringify.NewStructField("Spent", o.Spent),
		stringify.NewStructField("InclusionState", o.InclusionState.String()),
	)
}
