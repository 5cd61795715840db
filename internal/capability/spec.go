// Package capability defines the catalog of invocable system actions and the
// schema validator that checks model-proposed function calls against it.
//
// A [Spec] describes one action the assistant may perform: its name, its
// parameters with semantic types and ranges, and which fields of the system
// state snapshot a successful execution affects. Specs are registered once at
// startup in a [Registry] and are immutable afterwards. The [Validator] turns
// an untrusted [FunctionCall] decoded from a model reply into a [ValidatedCall]
// or a typed [ValidationError].
package capability

import "time"

// ParamType is the semantic type of a capability parameter.
type ParamType string

const (
	// ParamString accepts any non-empty string.
	ParamString ParamType = "string"

	// ParamInt accepts an integer, optionally bounded by Min/Max.
	ParamInt ParamType = "int"

	// ParamEnum accepts one of a fixed set of string values.
	ParamEnum ParamType = "enum"

	// ParamBool accepts a boolean.
	ParamBool ParamType = "bool"

	// ParamDuration accepts a duration, either as a number of seconds or a
	// Go duration string (e.g. "90s", "5m").
	ParamDuration ParamType = "duration"
)

// IsValid reports whether t is a recognised parameter type.
func (t ParamType) IsValid() bool {
	switch t {
	case ParamString, ParamInt, ParamEnum, ParamBool, ParamDuration:
		return true
	}
	return false
}

// StateField names a mutable field of the system state snapshot that a
// capability may affect. Used by the dispatcher to decide which snapshot
// fields to update after a successful effector call.
type StateField string

const (
	StateBrightness  StateField = "brightness"
	StateVolume      StateField = "volume"
	StateMuted       StateField = "muted"
	StateBackground  StateField = "background"
	StateActiveModel StateField = "active_model"
)

// Param describes a single parameter of a capability.
type Param struct {
	// Name is the parameter key the model must use in its arguments object.
	Name string

	// Type is the semantic type the raw value is coerced to.
	Type ParamType

	// Required marks the parameter as mandatory. Validation fails with a
	// MissingParameter error when a required parameter is absent.
	Required bool

	// Min and Max bound ParamInt values inclusively. Both zero means unbounded.
	Min, Max int

	// Enum lists the accepted values for ParamEnum parameters.
	Enum []string

	// Description explains the parameter to the model (included in prompts).
	Description string
}

// bounded reports whether the parameter declares an integer range.
func (p Param) bounded() bool { return p.Min != 0 || p.Max != 0 }

// Spec describes one registered capability. Specs are value types; once a
// Spec has been registered it must not be mutated.
type Spec struct {
	// Name is the unique capability key (e.g. "set_brightness").
	Name string

	// Description explains what the capability does. Sent to the model as part
	// of the advertised tool catalog.
	Description string

	// Params is the ordered parameter list.
	Params []Param

	// AtLeastOne, when non-empty, lists parameter names of which at least one
	// must be present. Covers capabilities with alternative argument forms
	// (e.g. set_volume accepts either a numeric level or a named preset).
	AtLeastOne []string

	// Affects lists the snapshot fields updated after successful execution.
	Affects []StateField

	// Example is a JSON example of a well-formed call, shown to the model.
	Example string
}

// Param returns the parameter named name and whether it exists.
func (s Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// FunctionCall is the model's structured proposal to invoke a capability.
// It is untrusted input: arguments carry raw JSON-decoded values and the
// name may not correspond to any registered capability.
type FunctionCall struct {
	// Name is the candidate capability name.
	Name string

	// Args maps parameter names to raw values as decoded from the reply.
	Args map[string]any

	// Confidence is the model-reported confidence in [0, 1]. When the reply
	// omits it, the decoder fills in a configured default.
	Confidence float64

	// Delay is how long execution should be deferred. Zero means immediate.
	Delay time.Duration

	// RawText is the reply segment the call was decoded from, kept for
	// failed-turn explanations.
	RawText string
}

// ValidatedCall is a FunctionCall proven to satisfy its Spec. Args hold
// coerced values: int for ParamInt, string for ParamString/ParamEnum,
// bool for ParamBool, time.Duration for ParamDuration.
type ValidatedCall struct {
	Spec       Spec
	Args       map[string]any
	Confidence float64
	Delay      time.Duration

	// RequiresConfirmation is set when Confidence is below the configured
	// auto-confirm threshold. The dispatcher suspends such calls until an
	// explicit confirm or reject signal arrives.
	RequiresConfirmation bool
}

// Int returns the named argument as an int. Valid only for parameters
// validated as ParamInt; returns 0 when absent.
func (c ValidatedCall) Int(name string) int {
	v, _ := c.Args[name].(int)
	return v
}

// String returns the named argument as a string, or "" when absent.
func (c ValidatedCall) String(name string) string {
	v, _ := c.Args[name].(string)
	return v
}

// Has reports whether the named argument is present.
func (c ValidatedCall) Has(name string) bool {
	_, ok := c.Args[name]
	return ok
}
