package address_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota-wallet/pkg/address"
	iotago "github.com/iotaledger/iota.go/v4"
)

var networks = []address.Network{address.Mainnet, address.Devnet, address.Shimmer, address.Testnet}

func randomAddress(t *testing.T, network address.Network) *address.Address {
	payload := make([]byte, address.PayloadLength)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	addr, err := address.New(payload, network)
	require.NoError(t, err)

	return addr
}

func TestAddress_RoundTrip(t *testing.T) {
	for _, network := range networks {
		for range 50 {
			addr := randomAddress(t, network)

			encoded := addr.Bech32()
			require.True(t, strings.HasPrefix(encoded, string(network)+"1"))

			decoded, err := address.Parse(encoded)
			require.NoError(t, err)
			require.True(t, addr.Equal(decoded))
			require.Equal(t, encoded, decoded.Bech32())

			addressBytes, err := addr.Bytes()
			require.NoError(t, err)

			fromBytes, consumedBytes, err := address.FromBytes(addressBytes)
			require.NoError(t, err)
			require.Equal(t, len(addressBytes), consumedBytes)
			require.True(t, addr.Equal(fromBytes))
		}
	}
}

func TestAddress_New(t *testing.T) {
	_, err := address.New(make([]byte, address.PayloadLength-1), address.Mainnet)
	require.ErrorIs(t, err, address.ErrInvalidPayload)

	_, err = address.New(make([]byte, address.PayloadLength+1), address.Mainnet)
	require.ErrorIs(t, err, address.ErrInvalidPayload)

	_, err = address.New(make([]byte, address.PayloadLength), address.Network("xyz"))
	require.ErrorIs(t, err, address.ErrInvalidPayload)

	publicKey, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	addr, err := address.FromPublicKey(publicKey, address.Shimmer)
	require.NoError(t, err)
	require.Equal(t, iotago.Ed25519AddressFromPubKey(publicKey)[:], addr.Payload())
	require.Equal(t, address.Shimmer, addr.Network())
}

func TestAddress_Equal(t *testing.T) {
	addr := randomAddress(t, address.Mainnet)

	sameOnOtherNetwork, err := address.New(addr.Payload(), address.Testnet)
	require.NoError(t, err)

	require.True(t, addr.Equal(address.MustParse(addr.Bech32())))
	require.False(t, addr.Equal(sameOnOtherNetwork))
	require.NotEqual(t, addr.Key(), sameOnOtherNetwork.Key())
	require.False(t, addr.Equal(nil))
}

func TestAddress_ParseMalformed(t *testing.T) {
	valid := randomAddress(t, address.Mainnet).Bech32()

	lastChar := valid[len(valid)-1]
	replacement := byte('q')
	if lastChar == 'q' {
		replacement = 'p'
	}

	ed25519Address := iotago.Ed25519Address{1, 2, 3}
	accountAddress := iotago.AccountAddress{1, 2, 3}

	for name, malformed := range map[string]string{
		"empty":           "",
		"no separator":    strings.ReplaceAll(valid, "1", ""),
		"bad checksum":    valid[:len(valid)-1] + string(replacement),
		"truncated":       valid[:len(valid)-6],
		"upper case":      strings.ToUpper(valid),
		"mixed case":      strings.ToUpper(valid[:6]) + valid[6:],
		"unknown network": ed25519Address.Bech32(iotago.NetworkPrefix("xyz")),
		"account address": accountAddress.Bech32(iotago.PrefixMainnet),
		"trailing data":   valid + "q",
	} {
		t.Run(name, func(t *testing.T) {
			addr, err := address.Parse(malformed)
			require.ErrorIs(t, err, address.ErrInvalidAddressFormat)
			require.Nil(t, addr)
		})
	}
}

func TestAddress_Text(t *testing.T) {
	addr := randomAddress(t, address.Devnet)

	text, err := addr.MarshalText()
	require.NoError(t, err)

	var decoded address.Address
	require.NoError(t, decoded.UnmarshalText(text))
	require.True(t, addr.Equal(&decoded))

	require.ErrorIs(t, decoded.UnmarshalText([]byte("atoi1invalid")), address.ErrInvalidAddressFormat)
}

func TestNetwork(t *testing.T) {
	for _, network := range networks {
		require.True(t, network.IsValid())
		require.Equal(t, string(network), string(network.Prefix()))
	}

	require.Equal(t, "atoi", address.Devnet.String())
	require.Equal(t, "iota", address.Mainnet.String())
	require.False(t, address.Network("xyz").IsValid())

	addr := randomAddress(t, address.Devnet)
	require.True(t, strings.HasPrefix(addr.Bech32(), "atoi1"))

	decoded, err := address.Parse(addr.Bech32())
	require.NoError(t, err)
	require.Equal(t, address.Devnet, decoded.Network())
}
