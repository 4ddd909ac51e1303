package ledger

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	iotago "github.com/iotaledger/iota.go/v4"
)

const (
	// DefaultAppName is the name of the wallet application on the device.
	DefaultAppName = "IOTA"

	// DefaultConfirmationTimeout is the time the user has to react on the device.
	DefaultConfirmationTimeout = 3 * time.Minute
)

// Signer signs with a Ledger device. Every call runs through the session state machine, calls are serialized per
// device and every signature needs an explicit confirmation by the user.
type Signer struct {
	// Events contains the events of the signer.
	Events *Events

	transport Transport
	state     *stateMachine
	session   *semaphore.Weighted

	signerType          signing.SignerType
	appName             string
	clock               clock.Clock
	confirmationTimeout time.Duration
	failFast            bool

	log.Logger
}

// New creates a Signer that talks to the device through the given transport.
func New(logger log.Logger, transport Transport, opts ...options.Option[Signer]) *Signer {
	return options.Apply(&Signer{
		Events:              NewEvents(),
		transport:           transport,
		session:             semaphore.NewWeighted(1),
		signerType:          signing.LedgerHardware,
		appName:             DefaultAppName,
		clock:               clock.New(),
		confirmationTimeout: DefaultConfirmationTimeout,
	}, opts, func(s *Signer) {
		s.Logger = lo.Return1(logger.NewChildLogger(s.signerType.String()))
		s.state = newStateMachine(s.Events)

		s.Events.StateChanged.Hook(func(transition *StateTransition) {
			s.LogTrace("session state changed", "from", transition.From, "to", transition.To)
		})
	})
}

func (s *Signer) Type() signing.SignerType {
	return s.signerType
}

func (s *Signer) Interaction() signing.Interaction {
	return signing.InteractionDeviceConfirmation
}

// State returns the current state of the device session.
func (s *Signer) State() State {
	return s.state.State()
}

func (s *Signer) GenerateAddress(ctx context.Context, metadata *signing.GenerateAddressMetadata) (*address.Address, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	if err := s.acquireSession(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSession()

	if err := s.openSession(ctx, metadata.AccountIndex); err != nil {
		return nil, err
	}

	chain := keys.ChainOf(metadata.Internal)

	var payload []byte
	if !metadata.ShowOnDevice {
		var err error
		if payload, err = generateAddress(ctx, s.transport, chain, metadata.AddressIndex, false); err != nil {
			return nil, s.fail(err)
		}
	} else if err := s.awaitConfirmation(ctx, func(ctx context.Context) (err error) {
		payload, err = generateAddress(ctx, s.transport, chain, metadata.AddressIndex, true)

		return err
	}); err != nil {
		return nil, err
	}

	addr, err := address.New(payload, metadata.Network)
	if err != nil {
		return nil, ierrors.Join(ErrMalformedResponse, err)
	}

	return addr, nil
}

func (s *Signer) SignMessage(ctx context.Context, metadata *signing.SignMessageMetadata, inputs []*signing.TransactionInput) ([]*iotago.Ed25519Signature, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	if err := signing.ValidateInputs(metadata, inputs); err != nil {
		return nil, err
	}

	payload, err := NewSigningPayload(metadata, inputs).Bytes()
	if err != nil {
		return nil, ierrors.Join(signing.ErrInvalidInput, err)
	}

	if err = s.acquireSession(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSession()

	if err = s.openSession(ctx, metadata.AccountIndex); err != nil {
		return nil, err
	}

	if err = writeDataBuffer(ctx, s.transport, payload); err != nil {
		return nil, s.fail(err)
	}

	if err = prepareSigning(ctx, s.transport, metadata.Remainder != nil); err != nil {
		return nil, s.fail(err)
	}

	if err = s.awaitConfirmation(ctx, func(ctx context.Context) error {
		return userConfirm(ctx, s.transport)
	}); err != nil {
		return nil, err
	}

	signatures := make([]*iotago.Ed25519Signature, len(inputs))
	for i, input := range inputs {
		if signatures[i], err = signSingle(ctx, s.transport, i, metadata.Digest[:]); err != nil {
			return nil, s.fail(err)
		}

		if input.Address != nil {
			signer, err := address.FromPublicKey(signatures[i].PublicKey[:], metadata.Network)
			if err != nil || !signer.Equal(input.Address) {
				return nil, ierrors.Wrapf(signing.ErrInvalidInput, "input %s is not controlled by the device key at index %d", input.OutputID.ToHex(), input.AddressIndex)
			}
		}
	}

	return signatures, nil
}

// Status polls the device. A running session is reused, otherwise the transport is opened for the duration of the
// poll only. If another call holds the device, a busy status is returned instead of waiting.
func (s *Signer) Status(ctx context.Context) (signing.Status, error) {
	if !s.session.TryAcquire(1) {
		return &signing.LedgerStatus{Connected: true, Busy: true}, nil
	}
	defer s.releaseSession()

	switch s.state.State() {
	case Ready, Completed, Rejected:
	default:
		if err := s.transport.Connect(ctx); err != nil {
			s.LogDebug("device not reachable", "err", err)

			return &signing.LedgerStatus{}, nil
		}
		defer func() { _ = s.transport.Disconnect() }()
	}

	app, err := getAppInfo(ctx, s.transport)
	if err != nil {
		if ierrors.Is(err, signing.ErrDeviceLocked) {
			return &signing.LedgerStatus{Connected: true, Locked: true}, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		return &signing.LedgerStatus{}, nil
	}

	status := &signing.LedgerStatus{
		Connected:     true,
		App:           app,
		WalletAppOpen: app.Name == s.appName,
	}

	if status.WalletAppOpen {
		config, err := getAppConfig(ctx, s.transport)
		switch {
		case err == nil:
			status.Locked = config.Locked
		case ierrors.Is(err, signing.ErrDeviceLocked):
			status.Locked = true
		default:
			return nil, err
		}
	}

	return status, nil
}

// Reset closes the session after a failure. It waits for calls that are still running.
func (s *Signer) Reset(ctx context.Context) error {
	if err := s.session.Acquire(ctx, 1); err != nil {
		return ierrors.Wrap(err, "failed to wait for running session")
	}
	defer s.releaseSession()

	s.closeSession()

	return nil
}

func (s *Signer) acquireSession(ctx context.Context) error {
	if s.failFast {
		if !s.session.TryAcquire(1) {
			return ierrors.Wrap(signing.ErrDeviceBusy, "another session is running")
		}

		return nil
	}

	if err := s.session.Acquire(ctx, 1); err != nil {
		return ierrors.Wrap(err, "failed to wait for device")
	}

	return nil
}

func (s *Signer) releaseSession() {
	s.session.Release(1)
}

// openSession brings the session into the Ready state and selects the account on the device.
func (s *Signer) openSession(ctx context.Context, accountIndex uint32) error {
	switch s.state.State() {
	case Error:
		return ierrors.Wrap(signing.ErrSessionReset, "previous session was abandoned")
	case Completed, Rejected:
		_ = s.state.Transition(Ready)
	}

	if s.state.State() == Ready {
		// the user may have closed the app or unplugged the device since the last call
		if app, err := getAppInfo(ctx, s.transport); err == nil && app.Name == s.appName {
			if err = setAccount(ctx, s.transport, accountIndex); err != nil {
				return s.fail(err)
			}

			return nil
		}

		s.closeSession()
	}

	if err := s.connect(ctx); err != nil {
		s.closeSession()

		return err
	}

	if err := setAccount(ctx, s.transport, accountIndex); err != nil {
		return s.fail(err)
	}

	return nil
}

func (s *Signer) connect(ctx context.Context) error {
	if err := s.state.Transition(Connecting); err != nil {
		return err
	}

	if err := s.transport.Connect(ctx); err != nil {
		return transportError(ctx, err)
	}

	app, err := getAppInfo(ctx, s.transport)
	if err != nil {
		return err
	}

	if app.Name != s.appName {
		if err = s.state.Transition(AwaitingAppSelection); err != nil {
			return err
		}

		if err = s.selectApp(ctx, app); err != nil {
			return err
		}
	}

	config, err := getAppConfig(ctx, s.transport)
	if err != nil {
		return err
	}
	if config.Locked {
		return ierrors.Wrap(signing.ErrDeviceLocked, "unlock the device")
	}

	s.LogInfo("connected to device", "app", s.appName, "version", config.VersionString())

	return s.state.Transition(Ready)
}

// selectApp asks the dashboard to open the wallet application. It is asked once and not retried.
func (s *Signer) selectApp(ctx context.Context, current *signing.LedgerApp) error {
	if current.Name != DashboardAppName {
		return ierrors.Wrapf(signing.ErrWrongApp, "close %s and open %s", current.Name, s.appName)
	}

	if err := s.await(ctx, func(ctx context.Context) error {
		return openApp(ctx, s.transport, s.appName)
	}); err != nil {
		return err
	}

	app, err := getAppInfo(ctx, s.transport)
	if err != nil {
		return err
	}
	if app.Name != s.appName {
		return ierrors.Wrapf(signing.ErrWrongApp, "expected %s but %s is open", s.appName, app.Name)
	}

	return nil
}

// awaitConfirmation runs a request that needs the approval of the user and moves the session accordingly.
func (s *Signer) awaitConfirmation(ctx context.Context, request func(ctx context.Context) error) error {
	if err := s.state.Transition(AwaitingUserConfirmation); err != nil {
		return err
	}

	err := s.await(ctx, request)
	switch {
	case err == nil:
		return s.state.Transition(Completed)
	case ierrors.Is(err, signing.ErrUserRejected):
		s.LogInfo("request rejected on device")

		if transitionErr := s.state.Transition(Rejected); transitionErr != nil {
			return transitionErr
		}

		return err
	default:
		return s.fail(err)
	}
}

// await runs a request that blocks on the user. If the user does not react in time or the context is done, the
// request is abandoned and the transport closed to unblock it.
func (s *Signer) await(ctx context.Context, request func(ctx context.Context) error) error {
	timer := s.clock.Timer(s.confirmationTimeout)
	defer timer.Stop()

	requestCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- request(requestCtx)
	}()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		_ = s.transport.Disconnect()

		return ierrors.Wrapf(signing.ErrConfirmationTimeout, "no reaction within %s", s.confirmationTimeout)
	case <-ctx.Done():
		_ = s.transport.Disconnect()

		return ierrors.Wrap(ctx.Err(), "waiting for user confirmation")
	}
}

// fail abandons the session after a fault. The session has to be reset before the device can be used again.
func (s *Signer) fail(err error) error {
	s.LogError("device session failed", "state", s.state.State(), "err", err)

	s.state.Fail()
	_ = s.transport.Disconnect()

	return err
}

// closeSession disconnects the transport and moves the session back to Disconnected.
func (s *Signer) closeSession() {
	if s.state.State() == Disconnected {
		return
	}

	_ = s.transport.Disconnect()

	if err := s.state.Transition(Disconnected); err != nil {
		s.LogWarn("failed to close session", "err", err)
	}
}

// WithSimulator registers the signer as LedgerSimulator instead of LedgerHardware.
func WithSimulator(simulator bool) options.Option[Signer] {
	return func(s *Signer) {
		s.signerType = lo.Cond(simulator, signing.LedgerSimulator, signing.LedgerHardware)
	}
}

// WithAppName sets the name of the wallet application that has to be open on the device.
func WithAppName(name string) options.Option[Signer] {
	return func(s *Signer) {
		s.appName = name
	}
}

// WithClock sets the clock used for confirmation timeouts.
func WithClock(c clock.Clock) options.Option[Signer] {
	return func(s *Signer) {
		s.clock = c
	}
}

// WithConfirmationTimeout sets the time the user has to approve a request on the device.
func WithConfirmationTimeout(timeout time.Duration) options.Option[Signer] {
	return func(s *Signer) {
		s.confirmationTimeout = timeout
	}
}

// WithFailFast makes concurrent calls fail with ErrDeviceBusy instead of waiting for the running session.
func WithFailFast(failFast bool) options.Option[Signer] {
	return func(s *Signer) {
		s.failFast = failFast
	}
}

var _ signing.Signer = new(Signer)
