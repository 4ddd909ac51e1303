package wallet

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota-wallet/pkg/account"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/storage"
	iotago "github.com/iotaledger/iota.go/v4"
)

// Account is an account of a Wallet: its derivation metadata, its generated addresses and its reconciled ledger state.
type Account struct {
	wallet *Wallet
	ledger *account.Ledger

	index      uint32
	id         uuid.UUID
	signerType signing.SignerType
	createdAt  time.Time

	alias     string
	addresses []*storage.AddressRecord
	mutex     syncutils.RWMutex

	// syncMutex serializes sync passes of the account.
	syncMutex syncutils.Mutex
	// addressMutex serializes address generation so that indices are handed out once.
	addressMutex syncutils.Mutex

	log.Logger
}

// TransactionRequest describes a transaction of the account that needs signatures.
type TransactionRequest struct {
	TransactionID iotago.TransactionID
	// Essence is the serialized transaction essence, its Blake2b-256 digest is signed.
	Essence []byte
	// Inputs are the owned outputs consumed by the transaction, one signature is produced per input.
	Inputs []iotago.OutputID
	// Remainder is the change output, it has to be an address of the account.
	Remainder *signing.Remainder
}

func (a *Account) Index() uint32 {
	return a.index
}

func (a *Account) ID() uuid.UUID {
	return a.id
}

func (a *Account) SignerType() signing.SignerType {
	return a.signerType
}

func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

func (a *Account) Alias() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.alias
}

// SetAlias renames the account. Aliases are unique within a wallet.
func (a *Account) SetAlias(alias string) error {
	a.wallet.createMutex.Lock()
	defer a.wallet.createMutex.Unlock()

	if existing, err := a.wallet.Account(ByAlias(alias)); err == nil && existing != a {
		return ierrors.Wrapf(ErrAliasTaken, "alias %q", alias)
	}

	a.mutex.Lock()
	a.alias = alias
	a.mutex.Unlock()

	return a.wallet.persist(a)
}

// Ledger returns the reconciled ledger state of the account.
func (a *Account) Ledger() *account.Ledger {
	return a.ledger
}

func (a *Account) Balance() *account.AccountBalance {
	return a.ledger.Balance()
}

func (a *Account) Transactions() []*account.Transaction {
	return a.ledger.Transactions()
}

// Addresses returns the generated addresses ordered by chain and index.
func (a *Account) Addresses() []*storage.AddressRecord {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return slices.Clone(a.addresses)
}

// AddressList returns the plain addresses of the account.
func (a *Account) AddressList() []*address.Address {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	addresses := make([]*address.Address, len(a.addresses))
	for i, record := range a.addresses {
		addresses[i] = record.Address
	}

	return addresses
}

func (a *Account) HasAddress(addr *address.Address) bool {
	_, exists := a.addressRecord(addr)

	return exists
}

// LatestAddress returns the public address with the highest index.
func (a *Account) LatestAddress() (*address.Address, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for i := len(a.addresses) - 1; i >= 0; i-- {
		if !a.addresses[i].Internal {
			return a.addresses[i].Address, nil
		}
	}

	return nil, ierrors.Wrapf(ErrAddressNotFound, "account %d has no public address", a.index)
}

// GenerateAddresses derives the next count addresses of the public or internal chain.
func (a *Account) GenerateAddresses(ctx context.Context, count int, internal bool) ([]*address.Address, error) {
	addresses, err := a.generateAddresses(ctx, count, internal)
	if err != nil {
		return nil, err
	}

	if err = a.wallet.persist(a); err != nil {
		return nil, err
	}

	return addresses, nil
}

// ShowAddress asks the signer to display an address of the account, hardware signers wait until the user
// acknowledged it.
func (a *Account) ShowAddress(ctx context.Context, addr *address.Address) error {
	record, exists := a.addressRecord(addr)
	if !exists {
		return ierrors.Wrapf(ErrAddressNotFound, "address %s", addr)
	}

	signer, err := a.wallet.registry.Signer(a.signerType)
	if err != nil {
		return err
	}

	shown, err := signer.GenerateAddress(ctx, &signing.GenerateAddressMetadata{
		AccountIndex: a.index,
		AddressIndex: record.Index,
		Internal:     record.Internal,
		Network:      a.wallet.network,
		ShowOnDevice: true,
	})
	if err != nil {
		return err
	}

	if !shown.Equal(addr) {
		return ierrors.Wrapf(signing.ErrInvalidInput, "signer derived %s instead of %s", shown, addr)
	}

	return nil
}

// SelectInputs picks spendable outputs that cover the amount.
func (a *Account) SelectInputs(amount iotago.BaseToken) ([]*account.OutputData, error) {
	return a.ledger.SelectInputs(amount)
}

// ConsolidationRequired returns true if the account holds more outputs than the wallet's consolidation threshold.
func (a *Account) ConsolidationRequired() bool {
	return a.ledger.ConsolidationRequired(a.wallet.optsConsolidationThreshold)
}

// SignTransaction reserves the inputs of the transaction, signs its essence and records it as a pending outgoing
// transaction. The reservation is released if signing fails.
func (a *Account) SignTransaction(ctx context.Context, request *TransactionRequest) ([]*iotago.Ed25519Signature, error) {
	inputs, err := a.transactionInputs(request.Inputs)
	if err != nil {
		return nil, err
	}

	remainder, err := a.remainder(request.Remainder)
	if err != nil {
		return nil, err
	}

	if err = a.ledger.Reserve(request.TransactionID, request.Inputs...); err != nil {
		return nil, err
	}

	signatures, err := a.sign(ctx, &signing.SignMessageMetadata{
		AccountIndex: a.index,
		Network:      a.wallet.network,
		Digest:       signing.EssenceDigest(request.Essence),
		Remainder:    remainder,
	}, inputs)
	if err != nil {
		a.ledger.Release(request.TransactionID)
		a.LogWarn("signing failed", "transaction", request.TransactionID.ToHex(), "err", err)

		return nil, err
	}

	if _, err = a.ledger.RegisterOutgoing(request.TransactionID, request.Inputs, a.wallet.clock.Now()); err != nil {
		a.ledger.Release(request.TransactionID)
		a.LogWarn("registering transaction failed", "transaction", request.TransactionID.ToHex(), "err", err)

		return nil, err
	}

	if err = a.wallet.persist(a); err != nil {
		return nil, err
	}

	a.LogDebug("signed transaction", "transaction", request.TransactionID.ToHex(), "inputs", len(inputs))

	return signatures, nil
}

// Sync fetches a ledger report for all addresses and pending transactions of the account and reconciles it.
func (a *Account) Sync(ctx context.Context) (*account.AccountBalance, error) {
	if a.wallet.connector == nil {
		return nil, ErrNoConnector
	}

	a.syncMutex.Lock()
	defer a.syncMutex.Unlock()

	report, err := a.wallet.connector.LedgerReport(ctx, a.AddressList(), a.ledger.PendingTransactionIDs())
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to fetch ledger report of account %d", a.index)
	}

	balance, _ := a.ledger.Reconcile(report)

	if err = a.wallet.persist(a); err != nil {
		return nil, err
	}

	return balance, nil
}

func (a *Account) sign(ctx context.Context, metadata *signing.SignMessageMetadata, inputs []*signing.TransactionInput) ([]*iotago.Ed25519Signature, error) {
	signer, err := a.wallet.registry.Signer(a.signerType)
	if err != nil {
		return nil, err
	}

	if signer.Interaction() == signing.InteractionDeviceConfirmation {
		a.LogInfo("waiting for confirmation on device", "signer", a.signerType)
	}

	return signing.SignAsync(ctx, signer, metadata, inputs).Await(ctx)
}

func (a *Account) generateAddresses(ctx context.Context, count int, internal bool) ([]*address.Address, error) {
	a.addressMutex.Lock()
	defer a.addressMutex.Unlock()

	records, err := a.deriveAddresses(ctx, a.nextAddressIndex(internal), count, internal)
	if err != nil {
		return nil, err
	}

	if err = a.addAddresses(records...); err != nil {
		return nil, err
	}

	addresses := make([]*address.Address, len(records))
	for i, record := range records {
		addresses[i] = record.Address
	}

	return addresses, nil
}

// deriveAddresses asks the signer for addresses without adding them to the account.
func (a *Account) deriveAddresses(ctx context.Context, start uint32, count int, internal bool) ([]*storage.AddressRecord, error) {
	signer, err := a.wallet.registry.Signer(a.signerType)
	if err != nil {
		return nil, err
	}

	records := make([]*storage.AddressRecord, 0, count)
	for i := range uint32(count) {
		addr, err := signer.GenerateAddress(ctx, &signing.GenerateAddressMetadata{
			AccountIndex: a.index,
			AddressIndex: start + i,
			Internal:     internal,
			Network:      a.wallet.network,
		})
		if err != nil {
			return nil, ierrors.Wrapf(err, "failed to generate address %d of account %d", start+i, a.index)
		}

		records = append(records, &storage.AddressRecord{Address: addr, Index: start + i, Internal: internal})
	}

	return records, nil
}

func (a *Account) addAddresses(records ...*storage.AddressRecord) error {
	addresses := make([]*address.Address, len(records))
	for i, record := range records {
		addresses[i] = record.Address
	}

	if err := a.ledger.AddAddresses(addresses...); err != nil {
		return err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, record := range records {
		if !slices.ContainsFunc(a.addresses, func(existing *storage.AddressRecord) bool { return existing.Address.Equal(record.Address) }) {
			a.addresses = append(a.addresses, record)
		}
	}

	slices.SortFunc(a.addresses, func(x, y *storage.AddressRecord) int {
		if x.Internal != y.Internal {
			if x.Internal {
				return 1
			}

			return -1
		}

		return cmp.Compare(x.Index, y.Index)
	})

	return nil
}

func (a *Account) nextAddressIndex(internal bool) uint32 {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var next uint32
	for _, record := range a.addresses {
		if record.Internal == internal && record.Index >= next {
			next = record.Index + 1
		}
	}

	return next
}

func (a *Account) addressRecord(addr *address.Address) (*storage.AddressRecord, bool) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for _, record := range a.addresses {
		if record.Address.Equal(addr) {
			return record, true
		}
	}

	return nil, false
}

func (a *Account) transactionInputs(outputIDs []iotago.OutputID) ([]*signing.TransactionInput, error) {
	inputs := make([]*signing.TransactionInput, 0, len(outputIDs))
	for _, outputID := range outputIDs {
		output, exists := a.ledger.Output(outputID)
		if !exists {
			return nil, ierrors.Wrapf(ErrInputNotOwned, "output %s", outputID.ToHex())
		}

		record, exists := a.addressRecord(output.Address)
		if !exists {
			return nil, ierrors.Wrapf(ErrInputNotOwned, "output %s is held by unknown address %s", outputID.ToHex(), output.Address)
		}

		inputs = append(inputs, &signing.TransactionInput{
			OutputID:     outputID,
			Address:      record.Address,
			AddressIndex: record.Index,
			Internal:     record.Internal,
		})
	}

	return inputs, nil
}

func (a *Account) remainder(remainder *signing.Remainder) (*signing.Remainder, error) {
	if remainder == nil {
		return nil, nil
	}

	record, exists := a.addressRecord(remainder.Address)
	if !exists {
		return nil, ierrors.Wrapf(ErrAddressNotFound, "remainder address %s does not belong to account %d", remainder.Address, a.index)
	}

	return &signing.Remainder{
		Address:      record.Address,
		Amount:       remainder.Amount,
		AddressIndex: record.Index,
		Internal:     record.Internal,
	}, nil
}

func (a *Account) record() *storage.AccountRecord {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return &storage.AccountRecord{
		Index:      a.index,
		ID:         a.id,
		Alias:      a.alias,
		SignerType: a.signerType,
		Network:    a.wallet.network,
		CreatedAt:  a.createdAt,
		Addresses:  slices.Clone(a.addresses),
	}
}
