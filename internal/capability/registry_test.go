package capability

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	spec := Spec{
		Name: "set_brightness",
		Params: []Param{
			{Name: "level", Type: ParamInt, Required: true, Min: 0, Max: 100},
		},
	}
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Lookup("set_brightness")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Name != "set_brightness" {
		t.Errorf("Lookup name = %q, want set_brightness", got.Name)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	spec := Spec{Name: "get_system_info"}
	if err := reg.Register(spec); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := reg.Register(spec)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Register err = %v, want ErrDuplicate", err)
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("explode")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("Lookup err = %v, want ErrUnknown", err)
	}
}

func TestRegistry_SpecsPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := reg.Register(Spec{Name: n}); err != nil {
			t.Fatalf("Register %q: %v", n, err)
		}
	}
	specs := reg.Specs()
	if len(specs) != len(names) {
		t.Fatalf("len(Specs) = %d, want %d", len(specs), len(names))
	}
	for i, n := range names {
		if specs[i].Name != n {
			t.Errorf("Specs[%d].Name = %q, want %q", i, specs[i].Name, n)
		}
	}
}

func TestRegistry_RejectsMalformedSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"empty name", Spec{}},
		{"empty param name", Spec{Name: "x", Params: []Param{{Type: ParamString}}}},
		{"duplicate param", Spec{Name: "x", Params: []Param{
			{Name: "a", Type: ParamString}, {Name: "a", Type: ParamString},
		}}},
		{"invalid type", Spec{Name: "x", Params: []Param{{Name: "a", Type: "float128"}}}},
		{"enum without values", Spec{Name: "x", Params: []Param{{Name: "a", Type: ParamEnum}}}},
		{"min above max", Spec{Name: "x", Params: []Param{{Name: "a", Type: ParamInt, Min: 10, Max: 1}}}},
		{"at_least_one unknown param", Spec{Name: "x", AtLeastOne: []string{"ghost"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Register(tt.spec); err == nil {
				t.Error("Register accepted malformed spec")
			}
		})
	}
}

func TestRegisterBuiltin_EnableFlags(t *testing.T) {
	reg := NewRegistry()
	err := RegisterBuiltin(reg, map[string]bool{"open_application": false})
	if err != nil {
		t.Fatalf("RegisterBuiltin: %v", err)
	}
	if _, err := reg.Lookup("open_application"); !errors.Is(err, ErrUnknown) {
		t.Errorf("disabled capability still registered")
	}
	if _, err := reg.Lookup("set_brightness"); err != nil {
		t.Errorf("set_brightness missing: %v", err)
	}
}
