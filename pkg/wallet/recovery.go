package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	iotago "github.com/iotaledger/iota.go/v4"
)

// RecoverAccounts searches the ledger for used addresses of existing accounts and for further used accounts of the
// signer. The search of an account stops after addressGapLimit unused addresses per chain, the search for accounts
// stops after accountGapLimit unused accounts. Unused accounts after the last used one are discarded. Non-positive
// limits fall back to the configured gap limits.
func (w *Wallet) RecoverAccounts(ctx context.Context, signerType signing.SignerType, accountGapLimit int, addressGapLimit int) ([]*Account, error) {
	if w.connector == nil {
		return nil, ErrNoConnector
	}

	if accountGapLimit <= 0 {
		accountGapLimit = w.optsAccountGapLimit
	}
	if addressGapLimit <= 0 {
		addressGapLimit = w.optsAddressGapLimit
	}
	if accountGapLimit <= 0 || addressGapLimit <= 0 {
		return nil, ierrors.Wrapf(ErrInvalidGapLimit, "account gap %d, address gap %d", accountGapLimit, addressGapLimit)
	}

	w.createMutex.Lock()
	defer w.createMutex.Unlock()

	for _, existing := range w.Accounts() {
		if _, err := existing.searchAddresses(ctx, addressGapLimit); err != nil {
			return nil, err
		}

		if err := w.persist(existing); err != nil {
			return nil, err
		}
	}

	firstIndex := uint32(w.AccountCount())

	var candidates []*Account
	lastUsed := -1
	for unused := 0; unused < accountGapLimit; {
		index := firstIndex + uint32(len(candidates))

		candidate, err := w.newAccount(&storage.AccountRecord{
			Index:      index,
			ID:         uuid.New(),
			Alias:      defaultAlias(index),
			SignerType: signerType,
			Network:    w.network,
			CreatedAt:  w.clock.Now(),
		})
		if err != nil {
			return nil, err
		}

		used, err := candidate.searchAddresses(ctx, addressGapLimit)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, candidate)
		if used {
			lastUsed = len(candidates) - 1
			unused = 0
		} else {
			unused++
		}
	}

	recovered := candidates[:lastUsed+1]
	for _, a := range recovered {
		if err := w.persist(a); err != nil {
			return nil, err
		}
	}

	w.mutex.Lock()
	w.accounts = append(w.accounts, recovered...)
	w.mutex.Unlock()

	w.LogInfo("recovered accounts", "searched", len(candidates), "recovered", len(recovered))

	return w.Accounts(), nil
}

// searchAddresses derives addresses in batches of gapLimit and keeps those up to the last one that holds outputs. The
// ledger data found on the way is reconciled. It returns true if any address of the account was used.
func (a *Account) searchAddresses(ctx context.Context, gapLimit int) (used bool, err error) {
	a.addressMutex.Lock()
	defer a.addressMutex.Unlock()

	for _, internal := range []bool{false, true} {
		start := a.nextAddressIndex(internal)

		for {
			batch, err := a.deriveAddresses(ctx, start, gapLimit, internal)
			if err != nil {
				return false, err
			}

			report, lastUsed, err := a.fetchBatch(ctx, batch)
			if err != nil {
				return false, err
			}
			if lastUsed < 0 {
				break
			}

			if err = a.addAddresses(batch[:lastUsed+1]...); err != nil {
				return false, err
			}
			a.ledger.Reconcile(report)

			used = true
			start = batch[lastUsed].Index + 1
		}
	}

	if a.nextAddressIndex(false) == 0 {
		first, err := a.deriveAddresses(ctx, 0, 1, false)
		if err != nil {
			return false, err
		}

		if err = a.addAddresses(first...); err != nil {
			return false, err
		}
	}

	return used, nil
}

// fetchBatch requests the ledger data of the batch and returns the position of the last address that holds outputs.
func (a *Account) fetchBatch(ctx context.Context, batch []*storage.AddressRecord) (report *account.LedgerReport, lastUsed int, err error) {
	positions := make(map[address.Key]int, len(batch))
	addresses := make([]*address.Address, len(batch))
	for i, record := range batch {
		positions[record.Address.Key()] = i
		addresses[i] = record.Address
	}

	if report, err = a.wallet.connector.LedgerReport(ctx, addresses, []iotago.TransactionID{}); err != nil {
		return nil, -1, ierrors.Wrapf(err, "failed to fetch ledger report of account %d", a.index)
	}

	lastUsed = -1
	if report == nil {
		return nil, lastUsed, nil
	}

	for _, output := range report.Outputs {
		if output == nil || output.Address == nil {
			continue
		}

		if position, exists := positions[output.Address.Key()]; exists && position > lastUsed {
			lastUsed = position
		}
	}

	return report, lastUsed, nil
}
