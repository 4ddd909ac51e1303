package ledger

import (
	"encoding/binary"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/pkg/signing"
)

// Classes and instructions understood by the wallet application and by the device dashboard.
const (
	ClaWalletApp byte = 0x7b
	ClaDashboard byte = 0xb0
	ClaOpenApp   byte = 0xe0

	InsGetAppConfig    byte = 0x10
	InsSetAccount      byte = 0x11
	InsWriteDataBuffer byte = 0x80
	InsClearDataBuffer byte = 0x82
	InsGenerateAddress byte = 0xa1
	InsPrepareSigning  byte = 0xa2
	InsUserConfirm     byte = 0xa3
	InsSignSingle      byte = 0xa4

	InsGetAppName byte = 0x01
	InsOpenApp    byte = 0xd8
)

// Status words returned by the device.
const (
	SWOk                     uint16 = 0x9000
	SWConditionsNotSatisfied uint16 = 0x6985
	SWSecurityStatus         uint16 = 0x6982
	SWDeviceLocked           uint16 = 0x5515
	SWAppNotInstalled        uint16 = 0x6807
	SWInsNotSupported        uint16 = 0x6d00
	SWClaNotSupported        uint16 = 0x6e00
	SWClaNotSupportedApp     uint16 = 0x6e01
	SWIncorrectData          uint16 = 0x6a80
	SWIncorrectLength        uint16 = 0x6700
)

const (
	// MaxDataLength is the maximum payload of a short APDU.
	MaxDataLength = 255

	// DataBufferBlockSize is the size of the blocks written into the signing data buffer of the device.
	DataBufferBlockSize = 250

	// DashboardAppName is reported by the device when no application is open.
	DashboardAppName = "BOLOS"

	flagLocked byte = 1 << 0
)

// ErrMalformedResponse is returned when the device answered with something that can not be decoded.
var ErrMalformedResponse = ierrors.Wrap(signing.ErrDevice, "malformed device response")

// APDU is a command sent to the device.
type APDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// Bytes encodes the command as short APDU.
func (a *APDU) Bytes() ([]byte, error) {
	if len(a.Data) > MaxDataLength {
		return nil, ierrors.Errorf("apdu data of %d bytes exceeds %d bytes", len(a.Data), MaxDataLength)
	}

	encoded := make([]byte, 0, 5+len(a.Data))
	encoded = append(encoded, a.CLA, a.INS, a.P1, a.P2, byte(len(a.Data)))

	return append(encoded, a.Data...), nil
}

// ParseAPDU decodes a short APDU.
func ParseAPDU(b []byte) (*APDU, error) {
	if len(b) < 5 || len(b) != 5+int(b[4]) {
		return nil, ierrors.Errorf("invalid apdu length %d", len(b))
	}

	return &APDU{CLA: b[0], INS: b[1], P1: b[2], P2: b[3], Data: b[5:]}, nil
}

// Response is the answer of the device to an APDU.
type Response struct {
	Data       []byte
	StatusWord uint16
}

// ParseResponse splits a raw device answer into data and status word.
func ParseResponse(b []byte) (*Response, error) {
	if len(b) < 2 {
		return nil, ierrors.Wrapf(ErrMalformedResponse, "response of %d bytes has no status word", len(b))
	}

	return &Response{
		Data:       b[:len(b)-2],
		StatusWord: binary.BigEndian.Uint16(b[len(b)-2:]),
	}, nil
}

// Bytes encodes the response the way the device sends it.
func (r *Response) Bytes() []byte {
	return binary.BigEndian.AppendUint16(append([]byte{}, r.Data...), r.StatusWord)
}

// Err maps the status word to the error taxonomy of the signing package.
func (r *Response) Err(ins byte) error {
	switch r.StatusWord {
	case SWOk:
		return nil
	case SWConditionsNotSatisfied:
		return ierrors.Wrapf(signing.ErrUserRejected, "instruction 0x%02x", ins)
	case SWDeviceLocked, SWSecurityStatus:
		return ierrors.Wrapf(signing.ErrDeviceLocked, "instruction 0x%02x: status word 0x%04x", ins, r.StatusWord)
	case SWClaNotSupported, SWClaNotSupportedApp, SWInsNotSupported, SWAppNotInstalled:
		return ierrors.Wrapf(signing.ErrWrongApp, "instruction 0x%02x: status word 0x%04x", ins, r.StatusWord)
	default:
		return ierrors.Wrapf(signing.ErrDevice, "instruction 0x%02x: status word 0x%04x", ins, r.StatusWord)
	}
}
