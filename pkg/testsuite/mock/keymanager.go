package mock

import (
	"crypto/ed25519"

	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
)

// KeyManager derives the keys of a test seed.
type KeyManager struct {
	seed []byte
}

func NewKeyManager(seed []byte) *KeyManager {
	return &KeyManager{
		seed: seed,
	}
}

// KeyPair derives the ed25519 key pair at the given path and panics if that is not possible.
func (k *KeyManager) KeyPair(path keys.Path) (ed25519.PrivateKey, ed25519.PublicKey) {
	privateKey, publicKey, err := keys.Derive(k.seed, path)
	if err != nil {
		panic(err)
	}

	return privateKey, publicKey
}

// Address returns the address of the key at the given path.
func (k *KeyManager) Address(path keys.Path, network address.Network) *address.Address {
	_, publicKey := k.KeyPair(path)

	return lo.PanicOnErr(address.FromPublicKey(publicKey, network))
}

// Sign signs the message with the key at the given path.
func (k *KeyManager) Sign(path keys.Path, message []byte) (ed25519.PublicKey, []byte) {
	privateKey, publicKey := k.KeyPair(path)

	return publicKey, ed25519.Sign(privateKey, message)
}
