package mnemonic

import (
	"bytes"
	"strings"

	"github.com/vulpemventures/go-bip39"

	"github.com/iotaledger/hive.go/ierrors"
)

// EntropyBits is the entropy used for newly generated mnemonics (24 words).
const EntropyBits = 256

// ErrInvalidMnemonic is returned when a mnemonic does not pass BIP-39 validation.
var ErrInvalidMnemonic = ierrors.New("invalid mnemonic")

// SeedProvider gives access to the seed of a wallet. Implementations are backed by secure storage. The returned slice
// belongs to the caller, which wipes it after use.
type SeedProvider interface {
	Seed() ([]byte, error)
}

// SeedProviderFunc adapts a function to the SeedProvider interface.
type SeedProviderFunc func() ([]byte, error)

func (f SeedProviderFunc) Seed() ([]byte, error) {
	return f()
}

// StaticSeed returns a SeedProvider that always returns a copy of the given seed.
func StaticSeed(seed []byte) SeedProvider {
	seed = bytes.Clone(seed)

	return SeedProviderFunc(func() ([]byte, error) {
		return bytes.Clone(seed), nil
	})
}

// SeedFromMnemonic validates the mnemonic and returns a SeedProvider for the BIP-39 seed derived from it.
func SeedFromMnemonic(mnemonic string, passphrase string) (SeedProvider, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalize(mnemonic), passphrase)
	if err != nil {
		return nil, ierrors.Join(ErrInvalidMnemonic, err)
	}

	return StaticSeed(seed), nil
}

// GenerateMnemonic creates a new random 24 word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(EntropyBits)
	if err != nil {
		return "", ierrors.Wrap(err, "failed to create entropy")
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", ierrors.Wrap(err, "failed to create mnemonic")
	}

	return mnemonic, nil
}

// IsValid returns true if the mnemonic has a valid word count, valid words and a valid checksum.
func IsValid(mnemonic string) bool {
	_, err := bip39.MnemonicToByteArray(normalize(mnemonic))

	return err == nil
}

func normalize(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
