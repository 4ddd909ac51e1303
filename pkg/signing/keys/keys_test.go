package keys

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

func TestPath_String(t *testing.T) {
	require.Equal(t, "44'/4218'/0'/0'/0'", Path{}.String())
	require.Equal(t, "44'/4218'/3'/1'/17'", Path{Account: 3, Chain: ChainOf(true), Index: 17}.String())
}

func TestDerive(t *testing.T) {
	privateKey, publicKey, err := Derive(testSeed, Path{Account: 1, Index: 2})
	require.NoError(t, err)
	require.Len(t, privateKey, ed25519.PrivateKeySize)
	require.Equal(t, publicKey, privateKey.Public())

	samePrivateKey, samePublicKey, err := Derive(testSeed, Path{Account: 1, Index: 2})
	require.NoError(t, err)
	require.Equal(t, privateKey, samePrivateKey)
	require.Equal(t, publicKey, samePublicKey)

	seen := map[string]Path{string(publicKey): {Account: 1, Index: 2}}
	for _, path := range []Path{
		{Account: 1, Index: 3},
		{Account: 2, Index: 2},
		{Account: 1, Chain: Internal, Index: 2},
	} {
		_, otherPublicKey, err := Derive(testSeed, path)
		require.NoError(t, err)
		require.NotContains(t, seen, string(otherPublicKey))

		seen[string(otherPublicKey)] = path
	}
}

func TestDerive_InvalidSeed(t *testing.T) {
	_, _, err := Derive(make([]byte, 15), Path{})
	require.ErrorIs(t, err, ErrInvalidSeed)

	_, _, err = Derive(make([]byte, 65), Path{})
	require.ErrorIs(t, err, ErrInvalidSeed)
}
