package address

import (
	"bytes"
	"crypto/ed25519"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	iotago "github.com/iotaledger/iota.go/v4"
)

const (
	// PayloadLength is the length of the public key hash carried by an Address.
	PayloadLength = iotago.Ed25519AddressBytesLength
)

var (
	ErrInvalidPayload       = ierrors.New("invalid address payload")
	ErrInvalidAddressFormat = ierrors.New("invalid address format")
)

// Address is an Ed25519 public key hash bound to the network it belongs to.
type Address struct {
	payload iotago.Ed25519Address
	network Network
}

// New creates an Address from a raw payload and a network.
func New(payload []byte, network Network) (*Address, error) {
	if !network.IsValid() {
		return nil, ierrors.Wrapf(ErrInvalidPayload, "unknown network %q", network)
	}

	if len(payload) != PayloadLength {
		return nil, ierrors.Wrapf(ErrInvalidPayload, "expected %d bytes, got %d", PayloadLength, len(payload))
	}

	a := &Address{network: network}
	copy(a.payload[:], payload)

	return a, nil
}

// FromPublicKey hashes the given public key into an Address of the given network.
func FromPublicKey(publicKey ed25519.PublicKey, network Network) (*Address, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, ierrors.Wrapf(ErrInvalidPayload, "invalid public key length %d", len(publicKey))
	}

	return New(iotago.Ed25519AddressFromPubKey(publicKey)[:], network)
}

// Parse decodes a bech32 encoded address. Only the canonical form is accepted, so that
// Parse(s).Bech32() == s holds for every string that parses.
func Parse(s string) (*Address, error) {
	prefix, decoded, err := iotago.ParseBech32(s)
	if err != nil {
		return nil, ierrors.Join(ErrInvalidAddressFormat, err)
	}

	network := Network(prefix)
	if !network.IsValid() {
		return nil, ierrors.Wrapf(ErrInvalidAddressFormat, "unknown network prefix %q", prefix)
	}

	ed25519Address, isEd25519 := decoded.(*iotago.Ed25519Address)
	if !isEd25519 {
		return nil, ierrors.Wrapf(ErrInvalidAddressFormat, "unsupported address type %s", decoded.Type())
	}

	a := &Address{payload: *ed25519Address, network: network}
	if a.Bech32() != s {
		return nil, ierrors.Wrapf(ErrInvalidAddressFormat, "%q is not in canonical form", s)
	}

	return a, nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests.
func MustParse(s string) *Address {
	return lo.PanicOnErr(Parse(s))
}

// Payload returns a copy of the public key hash.
func (a *Address) Payload() []byte {
	return bytes.Clone(a.payload[:])
}

// Network returns the network the address belongs to.
func (a *Address) Network() Network {
	return a.network
}

// Ed25519Address returns the address as a ledger address.
func (a *Address) Ed25519Address() *iotago.Ed25519Address {
	payload := a.payload

	return &payload
}

func (a *Address) Bech32() string {
	return a.payload.Bech32(a.network.Prefix())
}

func (a *Address) String() string {
	return a.Bech32()
}

// Equal returns true if both the payload and the network match.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}

	return a.network == other.network && a.payload == other.payload
}

// Key returns a comparable representation of the address usable as map key.
func (a *Address) Key() Key {
	return Key{payload: a.payload, network: a.network}
}

// Key is the comparable form of an Address.
type Key struct {
	payload iotago.Ed25519Address
	network Network
}

func (a *Address) MarshalText() ([]byte, error) {
	return []byte(a.Bech32()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*a = *parsed

	return nil
}

// Bytes returns the structured encoding of the address used by stores.
func (a *Address) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer(PayloadLength + serializer.OneByte + len(a.network))

	if err := stream.WriteBytesWithSize(byteBuffer, []byte(a.network), serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, ierrors.Wrap(err, "failed to write network")
	}
	if err := stream.Write(byteBuffer, a.payload); err != nil {
		return nil, ierrors.Wrap(err, "failed to write payload")
	}

	return byteBuffer.Bytes()
}

// FromBytes decodes an address written by Bytes and returns the number of consumed bytes.
func FromBytes(b []byte) (*Address, int, error) {
	byteReader := stream.NewByteReader(b)

	network, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read network")
	}

	payload, err := stream.Read[iotago.Ed25519Address](byteReader)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read payload")
	}

	a, err := New(payload[:], Network(network))
	if err != nil {
		return nil, 0, err
	}

	return a, byteReader.BytesRead(), nil
}
