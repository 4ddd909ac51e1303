package promise

import (
	"context"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/ds/orderedmap"
	"github.com/iotaledger/hive.go/runtime/syncutils"
)

// Promise is the result of an operation that either completed synchronously or is waiting for something outside
// the process (for example a user confirming on a hardware device).
type Promise[T any] struct {
	// successCallbacks are called when the promise is resolved.
	successCallbacks *orderedmap.OrderedMap[uint64, func(T)]

	// errorCallbacks are called when the promise is rejected.
	errorCallbacks *orderedmap.OrderedMap[uint64, func(error)]

	result T
	err    error

	// done is closed once the promise is resolved or rejected.
	done chan struct{}

	mutex syncutils.RWMutex
}

// New creates a pending promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{
		successCallbacks: orderedmap.New[uint64, func(T)](),
		errorCallbacks:   orderedmap.New[uint64, func(error)](),
		done:             make(chan struct{}),
	}
}

// Resolved creates a promise that is already resolved with the given result.
func Resolved[T any](result T) *Promise[T] {
	return New[T]().Resolve(result)
}

// Rejected creates a promise that is already rejected with the given error.
func Rejected[T any](err error) *Promise[T] {
	return New[T]().Reject(err)
}

// Resolve resolves the promise with the given result. Calls after the promise completed are ignored.
func (p *Promise[T]) Resolve(result T) *Promise[T] {
	p.mutex.Lock()
	if p.isComplete() {
		p.mutex.Unlock()

		return p
	}

	p.result = result
	successCallbacks := p.successCallbacks
	p.clearCallbacks()
	close(p.done)
	p.mutex.Unlock()

	successCallbacks.ForEach(func(_ uint64, callback func(T)) bool {
		callback(result)
		return true
	})

	return p
}

// Reject rejects the promise with the given error. Calls after the promise completed are ignored.
func (p *Promise[T]) Reject(err error) *Promise[T] {
	p.mutex.Lock()
	if p.isComplete() {
		p.mutex.Unlock()

		return p
	}

	p.err = err
	errorCallbacks := p.errorCallbacks
	p.clearCallbacks()
	close(p.done)
	p.mutex.Unlock()

	errorCallbacks.ForEach(func(_ uint64, callback func(error)) bool {
		callback(err)
		return true
	})

	return p
}

// Complete resolves or rejects the promise depending on err.
func (p *Promise[T]) Complete(result T, err error) *Promise[T] {
	if err != nil {
		return p.Reject(err)
	}

	return p.Resolve(result)
}

// OnSuccess registers a callback that is called when the promise is resolved. If the promise is already resolved
// the callback is executed immediately.
func (p *Promise[T]) OnSuccess(callback func(result T)) (unsubscribe func()) {
	p.mutex.Lock()
	if p.isComplete() {
		result, err := p.result, p.err
		p.mutex.Unlock()

		if err == nil {
			callback(result)
		}

		return func() {}
	}
	defer p.mutex.Unlock()

	callbackID := callbackIDCounter.Inc()
	p.successCallbacks.Set(callbackID, callback)

	return func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.successCallbacks != nil {
			p.successCallbacks.Delete(callbackID)
		}
	}
}

// OnError registers a callback that is called when the promise is rejected. If the promise is already rejected
// the callback is executed immediately.
func (p *Promise[T]) OnError(callback func(err error)) (unsubscribe func()) {
	p.mutex.Lock()
	if p.isComplete() {
		err := p.err
		p.mutex.Unlock()

		if err != nil {
			callback(err)
		}

		return func() {}
	}
	defer p.mutex.Unlock()

	callbackID := callbackIDCounter.Inc()
	p.errorCallbacks.Set(callbackID, callback)

	return func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.errorCallbacks != nil {
			p.errorCallbacks.Delete(callbackID)
		}
	}
}

// Await blocks until the promise completes or the context is done.
func (p *Promise[T]) Await(ctx context.Context) (result T, err error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return result, ctx.Err()
	}
}

// Done returns a channel that is closed when the promise completes.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the result and error of a completed promise, or zero values if it is still pending.
func (p *Promise[T]) Result() (T, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.result, p.err
}

// IsComplete returns true if the promise was resolved or rejected.
func (p *Promise[T]) IsComplete() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.isComplete()
}

func (p *Promise[T]) isComplete() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Promise[T]) clearCallbacks() {
	p.successCallbacks = nil
	p.errorCallbacks = nil
}

var callbackIDCounter atomic.Uint64
