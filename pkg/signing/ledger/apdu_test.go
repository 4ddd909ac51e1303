package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota-wallet/pkg/address"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/keys"
	iotago "github.com/iotaledger/iota.go/v4"
)

func TestAPDU(t *testing.T) {
	apdu := &APDU{CLA: ClaWalletApp, INS: InsSetAccount, P1: 1, P2: 2, Data: []byte{0, 0, 0, 7}}

	encoded, err := apdu.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{ClaWalletApp, InsSetAccount, 1, 2, 4, 0, 0, 0, 7}, encoded)

	decoded, err := ParseAPDU(encoded)
	require.NoError(t, err)
	require.Equal(t, apdu, decoded)

	_, err = ParseAPDU(encoded[:len(encoded)-1])
	require.Error(t, err)

	_, err = (&APDU{Data: make([]byte, MaxDataLength+1)}).Bytes()
	require.Error(t, err)
}

func TestResponse(t *testing.T) {
	response, err := ParseResponse([]byte{1, 2, 0x90, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, response.Data)
	require.Equal(t, SWOk, response.StatusWord)
	require.Equal(t, []byte{1, 2, 0x90, 0x00}, response.Bytes())
	require.NoError(t, response.Err(InsSignSingle))

	_, err = ParseResponse([]byte{0x90})
	require.ErrorIs(t, err, ErrMalformedResponse)

	for statusWord, expectedErr := range map[uint16]error{
		SWConditionsNotSatisfied: signing.ErrUserRejected,
		SWDeviceLocked:           signing.ErrDeviceLocked,
		SWSecurityStatus:         signing.ErrDeviceLocked,
		SWClaNotSupportedApp:     signing.ErrWrongApp,
		SWAppNotInstalled:        signing.ErrWrongApp,
		SWIncorrectData:          signing.ErrDevice,
	} {
		require.ErrorIs(t, (&Response{StatusWord: statusWord}).Err(InsSignSingle), expectedErr)
	}
}

func TestSigningPayload(t *testing.T) {
	remainderAddress, err := address.New(make([]byte, address.PayloadLength), address.Testnet)
	require.NoError(t, err)

	metadata := &signing.SignMessageMetadata{
		Network:   address.Testnet,
		Digest:    signing.EssenceDigest([]byte("essence")),
		Remainder: &signing.Remainder{Address: remainderAddress, Amount: 1337, AddressIndex: 3, Internal: true},
	}
	inputs := []*signing.TransactionInput{
		{OutputID: iotago.OutputIDFromTransactionIDAndIndex(iotago.TransactionID{1}, 0), AddressIndex: 4},
		{OutputID: iotago.OutputIDFromTransactionIDAndIndex(iotago.TransactionID{1}, 1), AddressIndex: 1, Internal: true},
	}

	payload := NewSigningPayload(metadata, inputs)
	require.Equal(t, []InputPath{{Chain: keys.Public, Index: 4}, {Chain: keys.Internal, Index: 1}}, payload.Inputs)

	payloadBytes, err := payload.Bytes()
	require.NoError(t, err)

	decoded, err := SigningPayloadFromBytes(payloadBytes)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)

	_, err = SigningPayloadFromBytes(append(payloadBytes, 0))
	require.Error(t, err)

	metadata.Remainder = nil
	withoutRemainder, err := NewSigningPayload(metadata, inputs).Bytes()
	require.NoError(t, err)

	decoded, err = SigningPayloadFromBytes(withoutRemainder)
	require.NoError(t, err)
	require.Nil(t, decoded.Remainder)
}

func TestStateMachine(t *testing.T) {
	machine := newStateMachine(NewEvents())

	require.ErrorIs(t, machine.Transition(Ready), ErrInvalidTransition)
	require.Equal(t, Disconnected, machine.State())

	machine.Fail()
	require.Equal(t, Disconnected, machine.State())

	require.NoError(t, machine.Transition(Connecting))
	require.NoError(t, machine.Transition(Ready))
	require.ErrorIs(t, machine.Transition(Completed), ErrInvalidTransition)
	require.NoError(t, machine.Transition(AwaitingUserConfirmation))
	require.ErrorIs(t, machine.Transition(Disconnected), ErrInvalidTransition)

	machine.Fail()
	require.Equal(t, Error, machine.State())
	require.ErrorIs(t, machine.Transition(Ready), ErrInvalidTransition)
	require.NoError(t, machine.Transition(Disconnected))

	require.Equal(t, "AwaitingUserConfirmation", AwaitingUserConfirmation.String())
	require.Equal(t, "State(42)", State(42).String())
}
