package capability

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a [ValidationError].
type Kind string

const (
	// KindTypeMismatch means a raw value could not be coerced to the
	// parameter's semantic type.
	KindTypeMismatch Kind = "type_mismatch"

	// KindOutOfRange means a coerced value violates the declared range or
	// enum set.
	KindOutOfRange Kind = "out_of_range"

	// KindMissingParameter means a required parameter is absent.
	KindMissingParameter Kind = "missing_parameter"
)

// ValidationError describes why a FunctionCall failed schema validation.
type ValidationError struct {
	Kind       Kind
	Capability string
	Param      string
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("capability %q: %s: %s", e.Capability, e.Kind, e.Detail)
	}
	return fmt.Sprintf("capability %q: parameter %q: %s: %s", e.Capability, e.Param, e.Kind, e.Detail)
}

// Validator checks FunctionCalls against a Registry. Validation is pure: it
// never touches external state, so a Validator may be shared freely.
type Validator struct {
	reg *Registry

	// confirmThreshold is the confidence below which a structurally valid
	// call is flagged RequiresConfirmation.
	confirmThreshold float64
}

// NewValidator creates a Validator over reg. Calls whose confidence is below
// confirmThreshold are flagged for explicit confirmation; a threshold of 0
// disables the flag entirely.
func NewValidator(reg *Registry, confirmThreshold float64) *Validator {
	return &Validator{reg: reg, confirmThreshold: confirmThreshold}
}

// Validate resolves call against the registry and coerces and range-checks
// every argument. On success it returns a ValidatedCall referencing exactly
// one registered Spec; otherwise it returns [ErrUnknown] or a
// [ValidationError].
//
// Unknown arguments not declared by the spec are dropped, mirroring the
// decoder's tolerance for extra fields in model replies.
func (v *Validator) Validate(call FunctionCall) (*ValidatedCall, error) {
	spec, err := v.reg.Lookup(call.Name)
	if err != nil {
		return nil, err
	}

	args := make(map[string]any, len(spec.Params))
	for _, p := range spec.Params {
		raw, ok := call.Args[p.Name]
		if !ok {
			continue
		}
		coerced, err := coerce(raw, p, spec.Name)
		if err != nil {
			return nil, err
		}
		args[p.Name] = coerced
	}

	for _, p := range spec.Params {
		if p.Required {
			if _, ok := args[p.Name]; !ok {
				return nil, &ValidationError{
					Kind:       KindMissingParameter,
					Capability: spec.Name,
					Param:      p.Name,
					Detail:     "required parameter is absent",
				}
			}
		}
	}

	if len(spec.AtLeastOne) > 0 {
		present := false
		for _, name := range spec.AtLeastOne {
			if _, ok := args[name]; ok {
				present = true
				break
			}
		}
		if !present {
			return nil, &ValidationError{
				Kind:       KindMissingParameter,
				Capability: spec.Name,
				Detail:     fmt.Sprintf("at least one of %s is required", strings.Join(spec.AtLeastOne, ", ")),
			}
		}
	}

	return &ValidatedCall{
		Spec:                 spec,
		Args:                 args,
		Confidence:           call.Confidence,
		Delay:                call.Delay,
		RequiresConfirmation: v.confirmThreshold > 0 && call.Confidence < v.confirmThreshold,
	}, nil
}

// coerce converts a raw JSON-decoded value to the parameter's semantic type
// and enforces its range or enum constraint.
func coerce(raw any, p Param, capName string) (any, error) {
	mismatch := func(detail string) error {
		return &ValidationError{Kind: KindTypeMismatch, Capability: capName, Param: p.Name, Detail: detail}
	}
	outOfRange := func(detail string) error {
		return &ValidationError{Kind: KindOutOfRange, Capability: capName, Param: p.Name, Detail: detail}
	}

	switch p.Type {
	case ParamInt:
		n, ok := toInt(raw)
		if !ok {
			return nil, mismatch(fmt.Sprintf("cannot interpret %v as integer", raw))
		}
		if p.bounded() && (n < p.Min || n > p.Max) {
			return nil, outOfRange(fmt.Sprintf("%d is outside [%d, %d]", n, p.Min, p.Max))
		}
		return n, nil

	case ParamString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("expected string, got %T", raw))
		}
		if strings.TrimSpace(s) == "" {
			return nil, mismatch("empty string")
		}
		return s, nil

	case ParamEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("expected string, got %T", raw))
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(p.Enum, s) {
			return nil, outOfRange(fmt.Sprintf("%q is not one of %s", s, strings.Join(p.Enum, ", ")))
		}
		return s, nil

	case ParamBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch(fmt.Sprintf("expected bool, got %T", raw))
		}
		return b, nil

	case ParamDuration:
		d, ok := toDuration(raw)
		if !ok {
			return nil, mismatch(fmt.Sprintf("cannot interpret %v as duration", raw))
		}
		if d < 0 {
			return nil, outOfRange("duration must not be negative")
		}
		return d, nil
	}

	return nil, mismatch(fmt.Sprintf("unsupported parameter type %q", p.Type))
}

// toInt accepts the numeric shapes a JSON decode can produce, plus numeric
// strings (models occasionally quote numbers, e.g. "50" or "50%").
func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(v), "%")
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// toDuration accepts a number of seconds or a Go duration string.
func toDuration(raw any) (time.Duration, bool) {
	switch v := raw.(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int:
		return time.Duration(v) * time.Second, true
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return d, true
	}
	return 0, false
}
