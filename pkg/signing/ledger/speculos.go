package ledger

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota-wallet/pkg/signing"
)

// DefaultSpeculosAddress is the APDU endpoint of a locally running Speculos emulator.
const DefaultSpeculosAddress = "127.0.0.1:9999"

// SpeculosTransport talks to the Speculos device emulator over its TCP APDU endpoint. Every frame is prefixed with
// its length as big endian uint32. Responses carry the length of the data without the status word.
type SpeculosTransport struct {
	address string
	dialer  net.Dialer

	conn  net.Conn
	mutex syncutils.Mutex
}

// NewSpeculosTransport creates a transport for the emulator listening on the given address.
func NewSpeculosTransport(address string) *SpeculosTransport {
	return &SpeculosTransport{
		address: address,
		dialer:  net.Dialer{Timeout: 5 * time.Second},
	}
}

func (s *SpeculosTransport) Connect(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return ierrors.Wrapf(signing.ErrDeviceDisconnected, "failed to connect to emulator at %s: %s", s.address, err)
	}
	s.conn = conn

	return nil
}

func (s *SpeculosTransport) Send(ctx context.Context, apdu []byte) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}

	defer context.AfterFunc(ctx, func() { _ = conn.SetWriteDeadline(time.Now()) })()

	frame := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(apdu)), uint32(len(apdu)))
	if _, err = conn.Write(append(frame, apdu...)); err != nil {
		return ierrors.Wrapf(signing.ErrDeviceDisconnected, "failed to send apdu: %s", err)
	}

	return nil
}

func (s *SpeculosTransport) Receive(ctx context.Context) ([]byte, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}

	defer context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })()

	var header [4]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return nil, ierrors.Wrapf(signing.ErrDeviceDisconnected, "failed to read response header: %s", err)
	}

	// the announced length does not include the two status word bytes
	response := make([]byte, binary.BigEndian.Uint32(header[:])+2)
	if _, err = io.ReadFull(conn, response); err != nil {
		return nil, ierrors.Wrapf(signing.ErrDeviceDisconnected, "failed to read response: %s", err)
	}

	return response, nil
}

func (s *SpeculosTransport) Disconnect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil

	return err
}

func (s *SpeculosTransport) connection() (net.Conn, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn == nil {
		return nil, ierrors.Wrap(signing.ErrDeviceDisconnected, "not connected")
	}

	return s.conn, nil
}
