package signing

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrConfiguration is returned when a signer or its metadata is not usable.
	ErrConfiguration = ierrors.New("signer configuration error")
	// ErrNoSignerRegistered is returned when no signer is installed for a SignerType.
	ErrNoSignerRegistered = ierrors.Wrap(ErrConfiguration, "no signer registered")
	// ErrInvalidMetadata is returned when caller supplied metadata is incomplete or out of range.
	ErrInvalidMetadata = ierrors.Wrap(ErrConfiguration, "invalid metadata")

	// ErrDerivation is returned when a key can not be derived for the requested path.
	ErrDerivation = ierrors.New("key derivation failed")

	// ErrInvalidInput is returned when the inputs handed to SignMessage can not be signed.
	ErrInvalidInput = ierrors.New("invalid signing input")

	// ErrUserRejected is returned when the user declined the request on the device.
	ErrUserRejected = ierrors.New("request rejected by user")

	// ErrDevice is the parent of all errors caused by a hardware device or its transport.
	ErrDevice = ierrors.New("device error")
	// ErrDeviceDisconnected is returned when the device is not reachable or the transport failed.
	ErrDeviceDisconnected = ierrors.Wrap(ErrDevice, "device disconnected")
	// ErrWrongApp is returned when the wallet application is not open on the device and could not be opened.
	ErrWrongApp = ierrors.Wrap(ErrDevice, "wrong application open on device")
	// ErrDeviceBusy is returned when the device is serving another session.
	ErrDeviceBusy = ierrors.Wrap(ErrDevice, "device busy")
	// ErrDeviceLocked is returned when the device is locked with its PIN.
	ErrDeviceLocked = ierrors.Wrap(ErrDevice, "device locked")
	// ErrConfirmationTimeout is returned when the user did not react on the device in time.
	ErrConfirmationTimeout = ierrors.Wrap(ErrDevice, "timed out waiting for user confirmation")
	// ErrSessionReset is returned when a previous session was abandoned and the device has to be reset.
	ErrSessionReset = ierrors.Wrap(ErrDevice, "device session needs to be reset")
)

// IsRetryable returns true if the operation that returned err can be retried without new user input.
// User rejections are never retryable.
func IsRetryable(err error) bool {
	if err == nil || ierrors.Is(err, ErrUserRejected) {
		return false
	}

	return ierrors.Is(err, ErrDevice)
}
