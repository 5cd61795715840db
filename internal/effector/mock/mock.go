// Package mock provides a test double for the effector.Effector interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/effector"
)

// Effector is a scripted effector that records every call.
type Effector struct {
	mu sync.Mutex

	// Result is returned by Execute on success.
	Result effector.Result

	// Err, if non-nil, is returned by Execute.
	Err error

	// Calls records every ValidatedCall passed to Execute in order.
	Calls []capability.ValidatedCall
}

// Execute records the call and returns the scripted Result, Err.
func (e *Effector) Execute(_ context.Context, call capability.ValidatedCall) (effector.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, call)
	return e.Result, e.Err
}

// CallCount reports how many times Execute ran.
func (e *Effector) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// LastCall returns the most recent call, or a zero ValidatedCall.
func (e *Effector) LastCall() capability.ValidatedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Calls) == 0 {
		return capability.ValidatedCall{}
	}
	return e.Calls[len(e.Calls)-1]
}

// Reset clears recorded calls.
func (e *Effector) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = nil
}

var _ effector.Effector = (*Effector)(nil)
