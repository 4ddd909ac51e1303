package mock

import (
	"context"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	"github.com/iotaledger/iota-wallet/pkg/signing/ledger"
)

var (
	ErrUnplugged    = ierrors.New("device unplugged")
	ErrNotConnected = ierrors.New("device not connected")
)

// Device emulates a Ledger device running the wallet application. It implements ledger.Transport. Requests that
// need the approval of the user block until the test calls Approve or Reject.
type Device struct {
	keyManager    *KeyManager
	walletApp     string
	installedApps map[string]string
	openApp       string
	locked        bool
	unplugged     bool

	connected bool
	closed    chan struct{}
	pending   *ledger.APDU

	account    uint32
	dataBuffer []byte
	nextBlock  byte
	prepared   *ledger.SigningPayload
	confirmed  bool

	decisions chan bool
	prompts   int
	received  []*ledger.APDU

	mutex syncutils.Mutex
}

// NewDevice creates a device that derives its keys from the given seed. By default the wallet app is installed and
// open.
func NewDevice(seed []byte, opts ...options.Option[Device]) *Device {
	return options.Apply(&Device{
		keyManager:    NewKeyManager(seed),
		walletApp:     ledger.DefaultAppName,
		installedApps: map[string]string{ledger.DefaultAppName: "0.8.4"},
		openApp:       ledger.DefaultAppName,
		decisions:     make(chan bool, 16),
	}, opts)
}

// Approve queues an approval of the next request shown to the user.
func (d *Device) Approve() {
	d.decisions <- true
}

// Reject queues a rejection of the next request shown to the user.
func (d *Device) Reject() {
	d.decisions <- false
}

// Prompts returns how many requests were shown to the user.
func (d *Device) Prompts() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.prompts
}

// Received returns how many APDUs with the given instruction were received.
func (d *Device) Received(cla byte, ins byte) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var count int
	for _, apdu := range d.received {
		if apdu.CLA == cla && apdu.INS == ins {
			count++
		}
	}

	return count
}

// SetOpenApp switches the open application, DashboardAppName returns to the dashboard.
func (d *Device) SetOpenApp(name string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.openApp = name
}

func (d *Device) SetLocked(locked bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.locked = locked
}

// Unplug disconnects the device and makes further connection attempts fail until Plug is called.
func (d *Device) Unplug() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.unplugged = true
	d.disconnect()
}

func (d *Device) Plug() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.unplugged = false
}

func (d *Device) IsConnected() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.connected
}

func (d *Device) Connect(_ context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.unplugged {
		return ErrUnplugged
	}

	if !d.connected {
		d.connected = true
		d.closed = make(chan struct{})
	}

	return nil
}

func (d *Device) Send(_ context.Context, raw []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.connected {
		return ErrNotConnected
	}

	apdu, err := ledger.ParseAPDU(raw)
	if err != nil {
		return err
	}

	d.pending = apdu
	d.received = append(d.received, apdu)

	return nil
}

func (d *Device) Receive(ctx context.Context) ([]byte, error) {
	d.mutex.Lock()
	if !d.connected {
		d.mutex.Unlock()

		return nil, ErrNotConnected
	}

	apdu, closed := d.pending, d.closed
	d.pending = nil
	d.mutex.Unlock()

	if apdu == nil {
		return nil, ierrors.New("no apdu pending")
	}

	response, err := d.handle(ctx, apdu, closed)
	if err != nil {
		return nil, err
	}

	return response.Bytes(), nil
}

func (d *Device) Disconnect() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.disconnect()

	return nil
}

func (d *Device) disconnect() {
	if d.connected {
		d.connected = false
		close(d.closed)
	}
}

func (d *Device) handle(ctx context.Context, apdu *ledger.APDU, closed chan struct{}) (*ledger.Response, error) {
	switch apdu.CLA {
	case ledger.ClaDashboard:
		if apdu.INS != ledger.InsGetAppName {
			return status(ledger.SWInsNotSupported), nil
		}

		return d.appInfo()
	case ledger.ClaOpenApp:
		if apdu.INS != ledger.InsOpenApp {
			return status(ledger.SWInsNotSupported), nil
		}

		return d.handleOpenApp(ctx, string(apdu.Data), closed)
	case ledger.ClaWalletApp:
		return d.handleWalletApp(ctx, apdu, closed)
	default:
		return status(ledger.SWClaNotSupported), nil
	}
}

func (d *Device) appInfo() (*ledger.Response, error) {
	d.mutex.Lock()
	name := d.openApp
	version := d.installedApps[name]
	d.mutex.Unlock()

	if name == ledger.DashboardAppName {
		version = "2.1.0"
	}

	byteBuffer := stream.NewByteBuffer()
	if err := stream.Write(byteBuffer, byte(1)); err != nil {
		return nil, err
	}
	if err := stream.WriteBytesWithSize(byteBuffer, []byte(name), serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, err
	}
	if err := stream.WriteBytesWithSize(byteBuffer, []byte(version), serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, err
	}

	data, err := byteBuffer.Bytes()
	if err != nil {
		return nil, err
	}

	return &ledger.Response{Data: data, StatusWord: ledger.SWOk}, nil
}

func (d *Device) handleOpenApp(ctx context.Context, name string, closed chan struct{}) (*ledger.Response, error) {
	d.mutex.Lock()
	_, installed := d.installedApps[name]
	onDashboard := d.openApp == ledger.DashboardAppName
	d.mutex.Unlock()

	switch {
	case !onDashboard:
		return status(ledger.SWInsNotSupported), nil
	case !installed:
		return status(ledger.SWAppNotInstalled), nil
	}

	approved, err := d.awaitDecision(ctx, closed)
	if err != nil {
		return nil, err
	}
	if !approved {
		return status(ledger.SWConditionsNotSatisfied), nil
	}

	d.SetOpenApp(name)

	return status(ledger.SWOk), nil
}

func (d *Device) handleWalletApp(ctx context.Context, apdu *ledger.APDU, closed chan struct{}) (*ledger.Response, error) {
	d.mutex.Lock()
	if d.openApp != d.walletApp {
		d.mutex.Unlock()

		return status(ledger.SWClaNotSupportedApp), nil
	}

	if apdu.INS == ledger.InsGetAppConfig {
		var flags byte
		if d.locked {
			flags = 1
		}
		d.mutex.Unlock()

		return &ledger.Response{Data: []byte{0, 8, 4, flags, 0}, StatusWord: ledger.SWOk}, nil
	}

	if d.locked {
		d.mutex.Unlock()

		return status(ledger.SWDeviceLocked), nil
	}
	d.mutex.Unlock()

	switch apdu.INS {
	case ledger.InsSetAccount:
		values, ok := decodeUint32s(apdu.Data, 1)
		if !ok {
			return status(ledger.SWIncorrectLength), nil
		}

		d.mutex.Lock()
		d.account = values[0]
		d.resetSigning()
		d.mutex.Unlock()

		return status(ledger.SWOk), nil
	case ledger.InsClearDataBuffer:
		d.mutex.Lock()
		d.resetSigning()
		d.mutex.Unlock()

		return status(ledger.SWOk), nil
	case ledger.InsWriteDataBuffer:
		d.mutex.Lock()
		defer d.mutex.Unlock()

		if apdu.P1 != d.nextBlock {
			return status(ledger.SWIncorrectData), nil
		}
		d.dataBuffer = append(d.dataBuffer, apdu.Data...)
		d.nextBlock++

		return status(ledger.SWOk), nil
	case ledger.InsGenerateAddress:
		return d.handleGenerateAddress(ctx, apdu, closed)
	case ledger.InsPrepareSigning:
		d.mutex.Lock()
		defer d.mutex.Unlock()

		payload, err := ledger.SigningPayloadFromBytes(d.dataBuffer)
		if err != nil || (apdu.P1 == 1) != (payload.Remainder != nil) {
			return status(ledger.SWIncorrectData), nil
		}
		d.prepared = payload
		d.confirmed = false

		return status(ledger.SWOk), nil
	case ledger.InsUserConfirm:
		return d.handleUserConfirm(ctx, closed)
	case ledger.InsSignSingle:
		return d.handleSignSingle(int(apdu.P1))
	default:
		return status(ledger.SWInsNotSupported), nil
	}
}

func (d *Device) handleGenerateAddress(ctx context.Context, apdu *ledger.APDU, closed chan struct{}) (*ledger.Response, error) {
	values, ok := decodeUint32s(apdu.Data, 2)
	if !ok || values[0] > uint32(keys.Internal) {
		return status(ledger.SWIncorrectData), nil
	}

	d.mutex.Lock()
	path := keys.Path{Account: d.account, Chain: keys.Chain(values[0]), Index: values[1]}
	d.mutex.Unlock()

	if apdu.P1 == 1 {
		approved, err := d.awaitDecision(ctx, closed)
		if err != nil {
			return nil, err
		}
		if !approved {
			return status(ledger.SWConditionsNotSatisfied), nil
		}
	}

	return &ledger.Response{Data: d.keyManager.Address(path, address.Mainnet).Payload(), StatusWord: ledger.SWOk}, nil
}

func (d *Device) handleUserConfirm(ctx context.Context, closed chan struct{}) (*ledger.Response, error) {
	d.mutex.Lock()
	prepared := d.prepared != nil
	d.mutex.Unlock()

	if !prepared {
		return status(ledger.SWConditionsNotSatisfied), nil
	}

	approved, err := d.awaitDecision(ctx, closed)
	if err != nil {
		return nil, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !approved {
		d.prepared = nil

		return status(ledger.SWConditionsNotSatisfied), nil
	}
	d.confirmed = true

	return status(ledger.SWOk), nil
}

func (d *Device) handleSignSingle(inputIndex int) (*ledger.Response, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.prepared == nil || !d.confirmed {
		return status(ledger.SWConditionsNotSatisfied), nil
	}
	if inputIndex >= len(d.prepared.Inputs) {
		return status(ledger.SWIncorrectData), nil
	}

	input := d.prepared.Inputs[inputIndex]
	publicKey, signature := d.keyManager.Sign(keys.Path{Account: d.account, Chain: input.Chain, Index: input.Index}, d.prepared.Digest[:])

	return &ledger.Response{Data: append(append([]byte{}, publicKey...), signature...), StatusWord: ledger.SWOk}, nil
}

// awaitDecision shows a prompt and waits for the user.
func (d *Device) awaitDecision(ctx context.Context, closed chan struct{}) (bool, error) {
	d.mutex.Lock()
	d.prompts++
	d.mutex.Unlock()

	select {
	case approved := <-d.decisions:
		return approved, nil
	case <-closed:
		return false, ErrNotConnected
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *Device) resetSigning() {
	d.dataBuffer = nil
	d.nextBlock = 0
	d.prepared = nil
	d.confirmed = false
}

func status(statusWord uint16) *ledger.Response {
	return &ledger.Response{StatusWord: statusWord}
}

func decodeUint32s(data []byte, count int) ([]uint32, bool) {
	if len(data) != count*serializer.UInt32ByteSize {
		return nil, false
	}

	byteReader := stream.NewByteReader(data)
	values := make([]uint32, count)
	for i := range values {
		value, err := stream.Read[uint32](byteReader)
		if err != nil {
			return nil, false
		}
		values[i] = value
	}

	return values, true
}

// WithOpenApp sets the application that is open when the device gets connected.
func WithOpenApp(name string) options.Option[Device] {
	return func(d *Device) {
		d.openApp = name
	}
}

// WithInstalledApps replaces the installed applications.
func WithInstalledApps(apps map[string]string) options.Option[Device] {
	return func(d *Device) {
		d.installedApps = apps
	}
}

func WithLocked(locked bool) options.Option[Device] {
	return func(d *Device) {
		d.locked = locked
	}
}
