package address

import (
	iotago "github.com/iotaledger/iota.go/v4"
)

// Network identifies the ledger network an address belongs to. Its value is the bech32 human readable part.
type Network string

const (
	Mainnet Network = Network(iotago.PrefixMainnet)
	Devnet  Network = "atoi"
	Shimmer Network = Network(iotago.PrefixShimmer)
	Testnet Network = Network(iotago.PrefixTestnet)
)

var knownNetworks = map[Network]struct{}{
	Mainnet: {},
	Devnet:  {},
	Shimmer: {},
	Testnet: {},
}

// IsValid returns true if the network is one of the known networks.
func (n Network) IsValid() bool {
	_, known := knownNetworks[n]

	return known
}

func (n Network) Prefix() iotago.NetworkPrefix {
	return iotago.NetworkPrefix(n)
}

func (n Network) String() string {
	return string(n)
}
