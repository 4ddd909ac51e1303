package ledger

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	iotago "github.com/iotaledger/iota.go/v4"
)

// appConfig is the answer of the wallet application to InsGetAppConfig.
type appConfig struct {
	Version [3]byte
	Locked  bool
}

func (c *appConfig) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", c.Version[0], c.Version[1], c.Version[2])
}

// exchange sends the APDU and waits for the answer. Transport failures are reported as ErrDeviceDisconnected,
// status words are mapped by Response.Err.
func exchange(ctx context.Context, transport Transport, apdu *APDU) (*Response, error) {
	raw, err := apdu.Bytes()
	if err != nil {
		return nil, ierrors.Join(signing.ErrInvalidInput, err)
	}

	if err = transport.Send(ctx, raw); err != nil {
		return nil, transportError(ctx, err)
	}

	rawResponse, err := transport.Receive(ctx)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	response, err := ParseResponse(rawResponse)
	if err != nil {
		return nil, err
	}

	return response, response.Err(apdu.INS)
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ierrors.Wrap(ctx.Err(), "device exchange aborted")
	}
	if ierrors.Is(err, signing.ErrDevice) {
		return err
	}

	return ierrors.Join(signing.ErrDeviceDisconnected, err)
}

// getAppInfo asks the device which application is open. It works in the dashboard and in every application.
func getAppInfo(ctx context.Context, transport Transport) (*signing.LedgerApp, error) {
	response, err := exchange(ctx, transport, &APDU{CLA: ClaDashboard, INS: InsGetAppName})
	if err != nil {
		return nil, err
	}

	byteReader := stream.NewByteReader(response.Data)
	if format, err := stream.Read[byte](byteReader); err != nil || format != 1 {
		return nil, ierrors.Wrap(ErrMalformedResponse, "unknown app info format")
	}

	name, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, ierrors.Join(ErrMalformedResponse, err)
	}

	version, err := stream.ReadBytesWithSize(byteReader, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, ierrors.Join(ErrMalformedResponse, err)
	}

	return &signing.LedgerApp{Name: string(name), Version: string(version)}, nil
}

// openApp asks the dashboard to start the application with the given name. The user has to approve this.
func openApp(ctx context.Context, transport Transport, name string) error {
	if _, err := exchange(ctx, transport, &APDU{CLA: ClaOpenApp, INS: InsOpenApp, Data: []byte(name)}); err != nil {
		if ierrors.Is(err, signing.ErrUserRejected) {
			return ierrors.Wrapf(signing.ErrWrongApp, "user declined to open %s", name)
		}

		return err
	}

	return nil
}

func getAppConfig(ctx context.Context, transport Transport) (*appConfig, error) {
	response, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsGetAppConfig})
	if err != nil {
		return nil, err
	}

	if len(response.Data) < 4 {
		return nil, ierrors.Wrapf(ErrMalformedResponse, "app config of %d bytes", len(response.Data))
	}

	return &appConfig{
		Version: [3]byte(response.Data[:3]),
		Locked:  response.Data[3]&flagLocked != 0,
	}, nil
}

func setAccount(ctx context.Context, transport Transport, accountIndex uint32) error {
	data, err := encodeUint32s(accountIndex)
	if err != nil {
		return err
	}

	_, err = exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsSetAccount, Data: data})

	return err
}

func generateAddress(ctx context.Context, transport Transport, chain keys.Chain, index uint32, display bool) ([]byte, error) {
	data, err := encodeUint32s(uint32(chain), index)
	if err != nil {
		return nil, err
	}

	var p1 byte
	if display {
		p1 = 1
	}

	response, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsGenerateAddress, P1: p1, Data: data})
	if err != nil {
		return nil, err
	}

	if len(response.Data) != address.PayloadLength {
		return nil, ierrors.Wrapf(ErrMalformedResponse, "address of %d bytes", len(response.Data))
	}

	return response.Data, nil
}

// writeDataBuffer replaces the content of the device data buffer with the given payload.
func writeDataBuffer(ctx context.Context, transport Transport, payload []byte) error {
	if _, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsClearDataBuffer}); err != nil {
		return err
	}

	for block := 0; len(payload) > 0; block++ {
		if block > 0xff {
			return ierrors.Wrap(signing.ErrInvalidInput, "signing payload exceeds the device data buffer")
		}

		chunk := payload[:min(len(payload), DataBufferBlockSize)]
		payload = payload[len(chunk):]

		if _, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsWriteDataBuffer, P1: byte(block), Data: chunk}); err != nil {
			return err
		}
	}

	return nil
}

func prepareSigning(ctx context.Context, transport Transport, hasRemainder bool) error {
	var p1 byte
	if hasRemainder {
		p1 = 1
	}

	_, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsPrepareSigning, P1: p1})

	return err
}

// userConfirm blocks until the user approved or declined the prepared request on the device.
func userConfirm(ctx context.Context, transport Transport) error {
	_, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsUserConfirm})

	return err
}

func signSingle(ctx context.Context, transport Transport, inputIndex int, digest []byte) (*iotago.Ed25519Signature, error) {
	if inputIndex > 0xff {
		return nil, ierrors.Wrapf(signing.ErrInvalidInput, "input index %d exceeds device limit", inputIndex)
	}

	response, err := exchange(ctx, transport, &APDU{CLA: ClaWalletApp, INS: InsSignSingle, P1: byte(inputIndex)})
	if err != nil {
		return nil, err
	}

	if len(response.Data) != ed25519.PublicKeySize+ed25519.SignatureSize {
		return nil, ierrors.Wrapf(ErrMalformedResponse, "signature of %d bytes", len(response.Data))
	}

	signature := &iotago.Ed25519Signature{}
	copy(signature.PublicKey[:], response.Data[:ed25519.PublicKeySize])
	copy(signature.Signature[:], response.Data[ed25519.PublicKeySize:])

	if !ed25519.Verify(signature.PublicKey[:], digest, signature.Signature[:]) {
		return nil, ierrors.Wrapf(ErrMalformedResponse, "device returned an invalid signature for input %d", inputIndex)
	}

	return signature, nil
}

func encodeUint32s(values ...uint32) ([]byte, error) {
	byteBuffer := stream.NewByteBuffer(len(values) * serializer.UInt32ByteSize)
	for _, value := range values {
		if err := stream.Write(byteBuffer, value); err != nil {
			return nil, ierrors.Wrap(err, "failed to encode apdu data")
		}
	}

	return byteBuffer.Bytes()
}
