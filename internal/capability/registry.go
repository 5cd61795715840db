package capability

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicate is returned by [Registry.Register] when a capability with the
// same name is already registered.
var ErrDuplicate = errors.New("capability: duplicate capability")

// ErrUnknown is returned by [Registry.Lookup] and [Validator.Validate] when
// no capability with the requested name exists.
var ErrUnknown = errors.New("capability: unknown capability")

// Registry is the static catalog of invocable actions. It is populated once
// during startup and read-mostly afterwards; Register and Lookup are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	order []string
	specs map[string]Spec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds spec to the registry. It returns [ErrDuplicate] when the name
// is already taken and a descriptive error when the spec itself is malformed.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("capability: register: name is required")
	}
	if err := checkSpec(spec); err != nil {
		return fmt.Errorf("capability: register %q: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.specs[spec.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, spec.Name)
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Lookup returns the Spec registered under name, or [ErrUnknown].
func (r *Registry) Lookup(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return spec, nil
}

// Specs returns all registered specs in registration order. The returned
// slice is a copy and safe to retain.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// checkSpec verifies structural soundness of a spec before registration.
func checkSpec(spec Spec) error {
	seen := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if !p.Type.IsValid() {
			return fmt.Errorf("parameter %q has invalid type %q", p.Name, p.Type)
		}
		if p.Type == ParamEnum && len(p.Enum) == 0 {
			return fmt.Errorf("enum parameter %q lists no values", p.Name)
		}
		if p.bounded() && p.Min > p.Max {
			return fmt.Errorf("parameter %q has min %d > max %d", p.Name, p.Min, p.Max)
		}
	}
	for _, name := range spec.AtLeastOne {
		if !seen[name] {
			return fmt.Errorf("at_least_one references unknown parameter %q", name)
		}
	}
	return nil
}
