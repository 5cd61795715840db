package capability

import (
	"errors"
	"testing"
	"time"
)

func builtinValidator(t *testing.T, threshold float64) *Validator {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltin(reg, nil); err != nil {
		t.Fatalf("RegisterBuiltin: %v", err)
	}
	return NewValidator(reg, threshold)
}

func TestValidate_AllRequiredInRange(t *testing.T) {
	v := builtinValidator(t, 0.6)

	// Every builtin capability with all required parameters present and
	// in-range must validate.
	tests := []struct {
		name string
		call FunctionCall
	}{
		{"brightness", FunctionCall{Name: "set_brightness", Args: map[string]any{"level": float64(50)}, Confidence: 0.9}},
		{"background", FunctionCall{Name: "change_background", Args: map[string]any{"color": "blue"}, Confidence: 0.9}},
		{"volume level", FunctionCall{Name: "set_volume", Args: map[string]any{"level": float64(30)}, Confidence: 0.9}},
		{"volume preset", FunctionCall{Name: "set_volume", Args: map[string]any{"level_text": "mid"}, Confidence: 0.9}},
		{"mute", FunctionCall{Name: "control_volume", Args: map[string]any{"action": "mute"}, Confidence: 0.9}},
		{"launch", FunctionCall{Name: "open_application", Args: map[string]any{"app_name": "notepad"}, Confidence: 0.9}},
		{"sysinfo", FunctionCall{Name: "get_system_info", Confidence: 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc, err := v.Validate(tt.call)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if vc.Spec.Name != tt.call.Name {
				t.Errorf("Spec.Name = %q, want %q", vc.Spec.Name, tt.call.Name)
			}
			if vc.RequiresConfirmation {
				t.Error("RequiresConfirmation set for high-confidence call")
			}
		})
	}
}

func TestValidate_MissingRequiredParameter(t *testing.T) {
	v := builtinValidator(t, 0)

	call := FunctionCall{Name: "set_brightness", Args: map[string]any{}}
	_, err := v.Validate(call)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Kind != KindMissingParameter {
		t.Errorf("Kind = %q, want missing_parameter", verr.Kind)
	}
	if verr.Param != "level" {
		t.Errorf("Param = %q, want level", verr.Param)
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	v := builtinValidator(t, 0)

	call := FunctionCall{Name: "set_brightness", Args: map[string]any{"level": float64(150)}}
	_, err := v.Validate(call)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Kind != KindOutOfRange {
		t.Errorf("Kind = %q, want out_of_range", verr.Kind)
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	v := builtinValidator(t, 0)

	tests := []struct {
		name string
		call FunctionCall
	}{
		{"string for int", FunctionCall{Name: "set_brightness", Args: map[string]any{"level": "bright"}}},
		{"fractional int", FunctionCall{Name: "set_brightness", Args: map[string]any{"level": 49.5}}},
		{"number for string", FunctionCall{Name: "change_background", Args: map[string]any{"color": float64(7)}}},
		{"empty string", FunctionCall{Name: "open_application", Args: map[string]any{"app_name": "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.call)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Kind != KindTypeMismatch {
				t.Errorf("Kind = %q, want type_mismatch", verr.Kind)
			}
		})
	}
}

func TestValidate_EnumOutOfRange(t *testing.T) {
	v := builtinValidator(t, 0)

	call := FunctionCall{Name: "control_volume", Args: map[string]any{"action": "explode"}}
	_, err := v.Validate(call)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Kind != KindOutOfRange {
		t.Errorf("Kind = %q, want out_of_range", verr.Kind)
	}
}

func TestValidate_UnknownCapability(t *testing.T) {
	v := builtinValidator(t, 0)

	_, err := v.Validate(FunctionCall{Name: "format_disk"})
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}
}

func TestValidate_AtLeastOne(t *testing.T) {
	v := builtinValidator(t, 0)

	_, err := v.Validate(FunctionCall{Name: "set_volume", Args: map[string]any{}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Kind != KindMissingParameter {
		t.Errorf("Kind = %q, want missing_parameter", verr.Kind)
	}
}

func TestValidate_CoercesNumericStrings(t *testing.T) {
	v := builtinValidator(t, 0)

	// Models occasionally quote numbers or append a percent sign.
	for _, raw := range []any{"50", "50%", float64(50)} {
		vc, err := v.Validate(FunctionCall{Name: "set_brightness", Args: map[string]any{"level": raw}})
		if err != nil {
			t.Fatalf("Validate(%v): %v", raw, err)
		}
		if got := vc.Int("level"); got != 50 {
			t.Errorf("level = %d for raw %v, want 50", got, raw)
		}
	}
}

func TestValidate_DropsUndeclaredArgs(t *testing.T) {
	v := builtinValidator(t, 0)

	vc, err := v.Validate(FunctionCall{
		Name: "set_brightness",
		Args: map[string]any{"level": float64(10), "explanation": "making it dim"},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if vc.Has("explanation") {
		t.Error("undeclared argument survived validation")
	}
}

func TestValidate_ConfidenceThreshold(t *testing.T) {
	v := builtinValidator(t, 0.6)

	low, err := v.Validate(FunctionCall{Name: "get_system_info", Confidence: 0.3})
	if err != nil {
		t.Fatalf("Validate low: %v", err)
	}
	if !low.RequiresConfirmation {
		t.Error("low-confidence call not flagged for confirmation")
	}

	high, err := v.Validate(FunctionCall{Name: "get_system_info", Confidence: 0.95})
	if err != nil {
		t.Fatalf("Validate high: %v", err)
	}
	if high.RequiresConfirmation {
		t.Error("high-confidence call flagged for confirmation")
	}
}

func TestValidate_PreservesDelay(t *testing.T) {
	v := builtinValidator(t, 0)

	vc, err := v.Validate(FunctionCall{
		Name:       "change_background",
		Args:       map[string]any{"color": "blue"},
		Confidence: 0.9,
		Delay:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if vc.Delay != 5*time.Second {
		t.Errorf("Delay = %v, want 5s", vc.Delay)
	}
}
