package wallet

import (
	"time"

	"github.com/iotaledger/hive.go/app"
)

// ParametersWallet contains the definition of the parameters used by the wallet component. The key value store and the
// ledger connector are not configured here, they are handed to the app with ProvideBackends. Without them the accounts
// are kept in memory and the wallet never syncs.
type ParametersWallet struct {
	// Network is the bech32 human readable part of the network the wallet operates on.
	Network string `default:"iota" usage:"the bech32 prefix of the network the wallet operates on"`
	// SignerType is the signer used for accounts created at startup.
	SignerType string `default:"Mnemonic" usage:"the signer type used for new accounts (Mnemonic, LedgerHardware, LedgerSimulator)"`

	Mnemonic struct {
		// Words is the BIP-39 mnemonic the seed is derived from.
		Words string `default:"" usage:"the BIP-39 mnemonic of the wallet seed"`
		// Passphrase is the optional BIP-39 passphrase.
		Passphrase string `default:"" usage:"the BIP-39 passphrase of the wallet seed"`
		// Seed is a base58 encoded seed that is used instead of the mnemonic.
		Seed string `default:"" usage:"base58 encoded seed, used if no mnemonic is given"`
	}

	Ledger struct {
		// Enabled defines whether the Ledger signer is registered.
		Enabled bool `default:"false" usage:"whether the Ledger signer is registered"`
		// SimulatorAddress is the address of the Speculos APDU port.
		SimulatorAddress string `default:"127.0.0.1:9999" usage:"the address of the Speculos APDU port"`
		// AppName is the application that has to be open on the device.
		AppName string `default:"IOTA" usage:"the name of the application on the device"`
		// ConfirmationTimeout is the time the user has to confirm a request on the device.
		ConfirmationTimeout time.Duration `default:"3m" usage:"the time the user has to confirm a request on the device"`
		// FailFast defines whether requests are rejected instead of queued while the device is busy.
		FailFast bool `default:"false" usage:"whether requests are rejected while the device is busy"`
	}

	// AddressGapLimit is the number of unused addresses after which the address search stops.
	AddressGapLimit int `default:"20" usage:"the number of unused addresses after which the address search stops"`
	// AccountGapLimit is the number of unused accounts after which account recovery stops.
	AccountGapLimit int `default:"20" usage:"the number of unused accounts after which account recovery stops"`
	// ConsolidationThreshold is the number of outputs above which an account should be consolidated.
	ConsolidationThreshold int `default:"100" usage:"the number of outputs above which an account should be consolidated"`
	// RecoverAccounts defines whether the accounts are recovered from the ledger at startup.
	RecoverAccounts bool `default:"false" usage:"whether to recover the accounts from the ledger at startup (needs a ledger connector)"`

	Sync struct {
		// Interval is the time between two background syncs.
		Interval time.Duration `default:"30s" usage:"the interval of the background sync (needs a ledger connector)"`
		// Parallelism is the number of accounts synced at the same time.
		Parallelism int `default:"4" usage:"the number of accounts synced at the same time"`
	}
}

// ParamsWallet contains the configuration used by the wallet component.
var ParamsWallet = &ParametersWallet{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"wallet": ParamsWallet,
	},
}
