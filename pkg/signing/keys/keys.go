package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-crypto-demo/pkg/bip32path"
	"github.com/iotaledger/iota-crypto-demo/pkg/slip10"
	"github.com/iotaledger/iota-crypto-demo/pkg/slip10/eddsa"
)

const (
	// CoinType is the SLIP-44 coin type of IOTA.
	CoinType uint32 = 4218

	pathString = "44'/%d'/%d'/%d'/%d'"
)

// ErrInvalidSeed is returned when the seed can not be used as SLIP-10 master seed.
var ErrInvalidSeed = ierrors.New("invalid seed")

// Chain selects the public or the internal (change) address chain of an account.
type Chain uint32

const (
	Public Chain = iota
	Internal
)

// ChainOf returns the chain for the given internal flag.
func ChainOf(internal bool) Chain {
	if internal {
		return Internal
	}

	return Public
}

// Path is the location of a key in the account hierarchy: m/44'/4218'/account'/chain'/index'.
type Path struct {
	Account uint32
	Chain   Chain
	Index   uint32
}

func (p Path) String() string {
	return fmt.Sprintf(pathString, CoinType, p.Account, p.Chain, p.Index)
}

// Derive derives the ed25519 key pair at the given path from the seed using SLIP-10.
func Derive(seed []byte, path Path) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, nil, ierrors.Wrapf(ErrInvalidSeed, "seed length %d not in [16, 64]", len(seed))
	}

	bip32Path, err := bip32path.ParsePath(path.String())
	if err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to parse path %s", path)
	}

	key, err := slip10.DeriveKeyFromPath(seed, eddsa.Ed25519(), bip32Path)
	if err != nil {
		return nil, nil, ierrors.Wrapf(err, "failed to derive key at %s", path)
	}

	pubKey, privKey := key.Key.(eddsa.Seed).Ed25519Key()

	return ed25519.PrivateKey(privKey), ed25519.PublicKey(pubKey), nil
}
