package signing

import (
	"reflect"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/syncutils"
)

// Registry holds exactly one active Signer per SignerType. It is created once at startup and handed to everything
// that needs to sign. Callers that obtained a Signer keep using it even if it gets replaced in the meantime.
type Registry struct {
	signers map[SignerType]Signer
	mutex   syncutils.RWMutex
}

// NewRegistry creates a Registry pre-populated with the given signers, usually the result of DefaultSigners.
func NewRegistry(signers map[SignerType]Signer) (*Registry, error) {
	r := &Registry{
		signers: make(map[SignerType]Signer),
	}

	for signerType, signer := range signers {
		if err := r.SetSigner(signerType, signer); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// SetSigner installs or replaces the signer for the given type.
func (r *Registry) SetSigner(signerType SignerType, signer Signer) error {
	if !signerType.IsValid() {
		return ierrors.Wrapf(ErrConfiguration, "unknown signer type %s", signerType)
	}
	if isNil(signer) {
		return ierrors.Wrapf(ErrConfiguration, "signer for %s is nil", signerType)
	}
	if signer.Type() != signerType {
		return ierrors.Wrapf(ErrConfiguration, "signer of type %s can not be registered as %s", signer.Type(), signerType)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.signers[signerType] = signer

	return nil
}

// Signer returns the signer installed for the given type.
func (r *Registry) Signer(signerType SignerType) (Signer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	signer, exists := r.signers[signerType]
	if !exists {
		return nil, ierrors.Wrapf(ErrNoSignerRegistered, "signer type %s", signerType)
	}

	return signer, nil
}

// RemoveSigner uninstalls the signer of the given type and returns whether one was installed.
func (r *Registry) RemoveSigner(signerType SignerType) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists := r.signers[signerType]
	delete(r.signers, signerType)

	return exists
}

// Types returns the signer types that currently have a signer installed.
func (r *Registry) Types() []SignerType {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	types := make([]SignerType, 0, len(r.signers))
	for _, signerType := range SignerTypes {
		if _, exists := r.signers[signerType]; exists {
			types = append(types, signerType)
		}
	}

	return types
}

func isNil(signer Signer) bool {
	if signer == nil {
		return true
	}

	switch value := reflect.ValueOf(signer); value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return value.IsNil()
	default:
		return false
	}
}
