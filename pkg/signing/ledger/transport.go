package ledger

import (
	"context"
)

// Transport is the byte level channel to a device. Implementations for USB or BLE devices live outside this package.
type Transport interface {
	// Connect opens the channel.
	Connect(ctx context.Context) error

	// Send writes a raw APDU to the device.
	Send(ctx context.Context, apdu []byte) error

	// Receive blocks until the device answers the last APDU, the context is done or Disconnect is called.
	Receive(ctx context.Context) ([]byte, error)

	// Disconnect closes the channel and unblocks pending Receive calls.
	Disconnect() error
}
