package signing

import (
	"context"

	"github.com/iotaledger/iota-wallet/pkg/promise"
	iotago "github.com/iotaledger/iota.go/v4"
)

// SignAsync starts a signing request and returns its result as a promise. Signers without external interaction
// complete the promise before SignAsync returns. Signers that wait for device confirmation complete it in the
// background once the user reacted, the context is done or the device failed.
func SignAsync(ctx context.Context, signer Signer, metadata *SignMessageMetadata, inputs []*TransactionInput) *promise.Promise[[]*iotago.Ed25519Signature] {
	if signer.Interaction() == InteractionNone {
		return promise.New[[]*iotago.Ed25519Signature]().Complete(signer.SignMessage(ctx, metadata, inputs))
	}

	p := promise.New[[]*iotago.Ed25519Signature]()
	go func() {
		p.Complete(signer.SignMessage(ctx, metadata, inputs))
	}()

	return p
}
