package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
)

// AccountRecord is the persisted metadata of an account. Seeds are never part of it.
type AccountRecord struct {
	Index      uint32
	ID         uuid.UUID
	Alias      string
	SignerType signing.SignerType
	Network    address.Network
	CreatedAt  time.Time
	Addresses  []*AddressRecord
}

// AddressRecord is a generated address together with its derivation indices.
type AddressRecord struct {
	Address  *address.Address
	Index    uint32
	Internal bool
}

func (r *AccountRecord) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.Write(byteBuffer, r.Index); err != nil {
		return nil, ierrors.Wrap(err, "failed to write index")
	}
	if err := stream.WriteBytes(byteBuffer, r.ID[:]); err != nil {
		return nil, ierrors.Wrap(err, "failed to write id")
	}
	if err := stream.WriteBytesWithSize(byteBuffer, []byte(r.Alias), serializer.SeriLengthPrefixTypeAsUint16); err != nil {
		return nil, ierrors.Wrap(err, "failed to write alias")
	}
	if err := stream.Write(byteBuffer, r.SignerType); err != nil {
		return nil, ierrors.Wrap(err, "failed to write signer type")
	}
	if err := stream.WriteBytesWithSize(byteBuffer, []byte(r.Network), serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, ierrors.Wrap(err, "failed to write network")
	}
	if err := stream.Write(byteBuffer, r.CreatedAt.Unix()); err != nil {
		return nil, ierrors.Wrap(err, "failed to write creation time")
	}

	if err := stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint32, func() (elementsCount int, err error) {
		for _, record := range r.Addresses {
			addressBytes, err := record.Address.Bytes()
			if err != nil {
				return 0, err
			}

			if err = stream.WriteBytesWithSize(byteBuffer, addressBytes, serializer.SeriLengthPrefixTypeAsByte); err != nil {
				return 0, ierrors.Wrap(err, "failed to write address")
			}
			if err = stream.Write(byteBuffer, record.Index); err != nil {
				return 0, ierrors.Wrap(err, "failed to write address index")
			}
			if err = stream.Write(byteBuffer, record.Internal); err != nil {
				return 0, ierrors.Wrap(err, "failed to write internal flag")
			}
		}

		return len(r.Addresses), nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to write addresses")
	}

	return byteBuffer.Bytes()
}

// AccountRecordFromBytes decodes a record written by AccountRecord.Bytes.
func AccountRecordFromBytes(b []byte) (r *AccountRecord, consumedBytes int, err error) {
	byteReader := stream.NewByteReader(b)
	r = new(AccountRecord)

	if r.Index, err = stream.Read[uint32](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read index")
	}

	id, err := stream.ReadBytes(byteReader, len(r.ID))
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read id")
	}
	r.ID = uuid.UUID(id)

	alias, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsUint16)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read alias")
	}
	r.Alias = string(alias)

	if r.SignerType, err = stream.Read[signing.SignerType](byteReader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read signer type")
	}

	network, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read network")
	}
	r.Network = address.Network(network)

	createdAt, err := stream.Read[int64](byteReader)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read creation time")
	}
	r.CreatedAt = time.Unix(createdAt, 0)

	if err = stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint32, func(int) error {
		addressBytes, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
		if err != nil {
			return ierrors.Wrap(err, "failed to read address")
		}

		record := new(AddressRecord)
		if record.Address, _, err = address.FromBytes(addressBytes); err != nil {
			return err
		}
		if record.Index, err = stream.Read[uint32](byteReader); err != nil {
			return ierrors.Wrap(err, "failed to read address index")
		}
		if record.Internal, err = stream.Read[bool](byteReader); err != nil {
			return ierrors.Wrap(err, "failed to read internal flag")
		}

		r.Addresses = append(r.Addresses, record)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read addresses")
	}

	return r, byteReader.BytesRead(), nil
}
