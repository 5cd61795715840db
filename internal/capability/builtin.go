package capability

import "log/slog"

// Presets are the named brightness/volume levels accepted instead of a
// numeric value. Their numeric meaning lives with the effectors.
var Presets = []string{"low", "mid", "high"}

// Builtin returns the default capability catalog. enabled filters the
// catalog by name: a capability listed with false is skipped, names absent
// from the map are kept. Pass nil to enable everything.
func Builtin(enabled map[string]bool) []Spec {
	all := []Spec{
		{
			Name:        "change_background",
			Description: "Change the desktop background to a solid colour.",
			Params: []Param{
				{Name: "color", Type: ParamString, Required: true, Description: "colour name, e.g. blue, red, green"},
			},
			Affects: []StateField{StateBackground},
			Example: `{"name": "change_background", "args": {"color": "blue"}}`,
		},
		{
			Name:        "set_brightness",
			Description: "Set the display brightness to a percentage.",
			Params: []Param{
				{Name: "level", Type: ParamInt, Required: true, Min: 0, Max: 100, Description: "brightness percentage 0-100"},
			},
			Affects: []StateField{StateBrightness},
			Example: `{"name": "set_brightness", "args": {"level": 80}}`,
		},
		{
			Name:        "set_volume",
			Description: "Set the system volume to a level or a named preset.",
			Params: []Param{
				{Name: "level", Type: ParamInt, Min: 0, Max: 100, Description: "volume percentage 0-100"},
				{Name: "level_text", Type: ParamEnum, Enum: Presets, Description: "named preset: low, mid, or high"},
			},
			AtLeastOne: []string{"level", "level_text"},
			Affects:    []StateField{StateVolume, StateMuted},
			Example:    `{"name": "set_volume", "args": {"level": 50}}`,
		},
		{
			Name:        "control_volume",
			Description: "Mute, unmute, or step the system volume.",
			Params: []Param{
				{Name: "action", Type: ParamEnum, Required: true, Enum: []string{"mute", "unmute", "increase", "decrease"}, Description: "volume action"},
			},
			Affects: []StateField{StateVolume, StateMuted},
			Example: `{"name": "control_volume", "args": {"action": "mute"}}`,
		},
		{
			Name:        "open_application",
			Description: "Launch an application by name or path.",
			Params: []Param{
				{Name: "app_name", Type: ParamString, Required: true, Description: "application name or executable path"},
			},
			Example: `{"name": "open_application", "args": {"app_name": "notepad"}}`,
		},
		{
			Name:        "get_system_info",
			Description: "Report a CPU, memory, and disk usage summary.",
			Example:     `{"name": "get_system_info", "args": {}}`,
		},
		{
			Name:        "set_model",
			Description: "Switch the assistant to a different language model.",
			Params: []Param{
				{Name: "model", Type: ParamString, Required: true, Description: "model name as listed by the endpoint"},
			},
			Affects: []StateField{StateActiveModel},
			Example: `{"name": "set_model", "args": {"model": "mistral"}}`,
		},
	}

	if enabled == nil {
		return all
	}

	out := all[:0]
	for _, spec := range all {
		if on, listed := enabled[spec.Name]; listed && !on {
			slog.Debug("capability disabled by configuration", "capability", spec.Name)
			continue
		}
		out = append(out, spec)
	}
	return out
}

// RegisterBuiltin registers the filtered builtin catalog on reg.
func RegisterBuiltin(reg *Registry, enabled map[string]bool) error {
	for _, spec := range Builtin(enabled) {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
