package account

import (
	"slices"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/hive.go/stringify"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Transaction is a ledger transaction that touched the account. Transactions are updated in place when their
// inclusion state changes and are never removed.
type Transaction struct {
	ID             iotago.TransactionID
	Direction      Direction
	Timestamp      time.Time
	InclusionState InclusionState
	// Inputs are the outputs consumed by the transaction, if known.
	Inputs []iotago.OutputID
	// Outputs are the outputs created by the transaction that the account has seen.
	Outputs []iotago.OutputID
}

func (t *Transaction) Clone() *Transaction {
	return &Transaction{
		ID:             t.ID,
		Direction:      t.Direction,
		Timestamp:      t.Timestamp,
		InclusionState: t.InclusionState,
		Inputs:         slices.Clone(t.Inputs),
		Outputs:        slices.Clone(t.Outputs),
	}
}

func (t *Transaction) addOutput(outputID iotago.OutputID) {
	if !slices.Contains(t.Outputs, outputID) {
		t.Outputs = append(t.Outputs, outputID)
		slices.SortFunc(t.Outputs, compareOutputIDs)
	}
}

func (t *Transaction) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.Write(byteBuffer, t.ID); err != nil {
		return nil, ierrors.Wrap(err, "failed to write transaction id")
	}
	if err := stream.Write(byteBuffer, t.Direction); err != nil {
		return nil, ierrors.Wrap(err, "failed to write direction")
	}
	if err := stream.Write(byteBuffer, unixNano(t.Timestamp)); err != nil {
		return nil, ierrors.Wrap(err, "failed to write timestamp")
	}
	if err := stream.Write(byteBuffer, t.InclusionState); err != nil {
		return nil, ierrors.Wrap(err, "failed to write inclusion state")
	}

	for _, outputIDs := range [][]iotago.OutputID{t.Inputs, t.Outputs} {
		if err := stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (elementsCount int, err error) {
			for _, outputID := range outputIDs {
				if err = stream.Write(byteBuffer, outputID); err != nil {
					return 0, ierrors.Wrap(err, "failed to write output id")
				}
			}

			return len(outputIDs), nil
		}); err != nil {
			return nil, ierrors.Wrap(err, "failed to write output references")
		}
	}

	return byteBuffer.Bytes()
}

// TransactionFromBytes decodes a transaction written by Transaction.Bytes.
func TransactionFromBytes(b []byte) (t *Transaction, consumedBytes int, err error) {
	byteReader := stream.NewByteReader(b)
	t = new(Transaction)

	if t.ID, err = stream.Read[iotago.TransactionID](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read transaction id")
	}
	if t.Direction, err = stream.Read[Direction](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read direction")
	}

	timestamp, err := stream.Read[int64](byteReader)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read timestamp")
	}
	t.Timestamp = fromUnixNano(timestamp)

	if t.InclusionState, err = stream.Read[InclusionState](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read inclusion state")
	}

	for _, target := range []*[]iotago.OutputID{&t.Inputs, &t.Outputs} {
		if err = stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint16, func(int) error {
			outputID, err := stream.Read[iotago.OutputID](byteReader)
			if err != nil {
				return ierrors.Wrap(err, "failed to read output id")
			}
			*target = append(*target, outputID)

			return nil
		}); err != nil {
			return nil, 0, ierrors.Wrap(err, "failed to read output references")
		}
	}

	return t, byteReader.BytesRead(), nil
}

func (t *Transaction) String() string {
	return stringify.Struct("Transaction",
		stringify.NewStructField("ID", t.ID.ToHex()),
		stringify.NewStructField("Direction", t.Direction.String()),
		stringify.NewStructField("InclusionState", t.InclusionState.String()),
		stringify.NewStructField("Inputs", lo.Map(t.Inputs, iotago.OutputID.ToHex)),
		stringify.NewStructField("Outputs", lo.Map(t.Outputs, iotago.OutputID.ToHex)),
	)
}

// TransactionReport is what the ledger knows about a transaction.
type TransactionReport struct {
	TransactionID  iotago.TransactionID
	InclusionState InclusionState
	// Inputs are optional; if given, they decide the direction of the transaction.
	Inputs    []iotago.OutputID
	Timestamp time.Time
}

func (r *TransactionReport) Validate() error {
	switch {
	case r == nil:
		return ierrors.Wrap(ErrMalformedReport, "transaction report is nil")
	case r.TransactionID == iotago.EmptyTransactionID:
		return ierrors.Wrap(ErrMalformedReport, "transaction report without id")
	case !r.InclusionState.IsValid():
		return ierrors.Wrapf(ErrMalformedReport, "transaction %s has unknown inclusion state %d", r.TransactionID.ToHex(), r.InclusionState)
	default:
		return nil
	}
}

// LedgerReport is a batch of ledger data for the addresses of an account, as delivered by a sync.
type LedgerReport struct {
	Outputs      []*OutputData
	Transactions []*TransactionReport
}

func compareOutputIDs(a, b iotago.OutputID) int {
	return slices.Compare(a[:], b[:])
}

func compareTransactionIDs(a, b iotago.TransactionID) int {
	return slices.Compare(a[:], b[:])
}
